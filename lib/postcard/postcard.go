package postcard

import (
	"bytes"
	_ "embed"
	"encoding/xml"
	"fmt"
	"strings"
)

// Postcard is the data of a single card, it owns no network state.
type Postcard struct {
	// ImageLocation is the filesystem path of the picture on the front.
	ImageLocation string
	Sender        Sender
	Recipient     Recipient
	Message       string
}

// Validate checks the recipient and then the sender.
func (p Postcard) Validate() error {
	err := p.Recipient.Validate()
	if err != nil {
		return err
	}
	return p.Sender.Validate()
}

func (p Postcard) IsValid() bool {
	return p.Validate() == nil
}

//go:embed templates/page_1.svg
var page1Template string

//go:embed templates/page_2.svg
var page2Template string

const (
	PageFront = 1
	PageBack  = 2
)

// PageContext carries the values a page needs that do not come from the postcard itself.
type PageContext struct {
	UserId string
}

func escapeXml(value string) string {
	var buff bytes.Buffer
	// xml.EscapeText only fails when the writer fails
	_ = xml.EscapeText(&buff, []byte(value))
	return buff.String()
}

func replacer(pairs ...string) *strings.Replacer {
	for i := 1; i < len(pairs); i += 2 {
		pairs[i] = escapeXml(pairs[i])
	}
	return strings.NewReplacer(pairs...)
}

// RenderPage fills the placeholders of the svg template of the given page.
func (p Postcard) RenderPage(page int, ctx PageContext) (string, error) {
	switch page {
	case PageFront:
		return replacer(
			"{user_id}", ctx.UserId,
		).Replace(page1Template), nil
	case PageBack:
		return replacer(
			"{message}", p.Message,

			"{salutation}", p.Recipient.Salutation,
			"{first_name}", p.Recipient.GivenName,
			"{last_name}", p.Recipient.FamilyName,
			"{company}", p.Recipient.Company,
			"{company_addition}", p.Recipient.CompanyAddition,
			"{street}", p.Recipient.Street,
			"{zip_code}", p.Recipient.PostalCode,
			"{place}", p.Recipient.Place,

			"{sender_company}", p.Sender.Company,
			"{sender_name}", p.Sender.FullName(),
			"{sender_street}", p.Sender.Street,
			"{sender_zip_code}", p.Sender.PostalCode,
			"{sender_place}", p.Sender.Place,
		).Replace(page2Template), nil
	default:
		return "", fmt.Errorf("postcard: unknown page %d", page)
	}
}
