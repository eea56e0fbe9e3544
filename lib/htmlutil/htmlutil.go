package htmlutil

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// GetText concatenates every text node under `node`.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s+`)

// NormalizeText collapses runs of whitespace and trims the result.
func NormalizeText(text string) string {
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(text, " "))
}

// PageTitle returns the normalized <title> of a document, or "" if there is none.
func PageTitle(doc *goquery.Document) string {
	nodes := doc.Find("title").Nodes
	if len(nodes) == 0 {
		return ""
	}
	return NormalizeText(GetText(nodes[0]))
}

// InputValue returns the value attribute of the first <input> with the given name.
// ok is false when the input or its value attribute is missing.
func InputValue(doc *goquery.Document, name string) (value string, ok bool) {
	input := doc.Find(fmt.Sprintf(`input[name="%s"]`, name)).First()
	if input.Length() == 0 {
		return "", false
	}
	return input.Attr("value")
}
