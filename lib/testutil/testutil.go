package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"postcard-creator/lib/postcard"
)

// PngPicture is the header of a 1x1 png, enough for content sniffing.
var PngPicture = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// WriteFile writes `contents` to `name` inside a temporary directory that is
// removed when the test ends and returns the full path.
func WriteFile(t testing.TB, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	err := os.WriteFile(path, contents, 0600)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

// ValidPostcard returns a complete postcard with a png picture on disk.
func ValidPostcard(t testing.TB) postcard.Postcard {
	return postcard.Postcard{
		ImageLocation: WriteFile(t, "asset.png", PngPicture),
		Sender: postcard.Sender{
			GivenName:  "Anna",
			FamilyName: "Muster",
			Street:     "Bahnhofstrasse 1",
			PostalCode: "8001",
			Place:      "Zürich",
		},
		Recipient: postcard.Recipient{
			GivenName:  "Beat",
			FamilyName: "Beispiel",
			Street:     "Marktgasse 5",
			PostalCode: "3011",
			Place:      "Bern",
		},
		Message: "Hello from Zürich",
	}
}
