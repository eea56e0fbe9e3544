package postcard

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var ErrNotAnImage = errors.New("postcard: picture is not an image")

// Picture is the loaded front image of a postcard.
type Picture struct {
	Data        []byte
	ContentType string
	// Extension includes the leading dot, ex. ".jpg"
	Extension string
}

// LoadPicture reads the file at ImageLocation and detects its content type.
func (p Postcard) LoadPicture() (Picture, error) {
	if p.ImageLocation == "" {
		return Picture{}, fmt.Errorf("postcard: no picture location given")
	}
	data, err := os.ReadFile(p.ImageLocation)
	if err != nil {
		return Picture{}, fmt.Errorf("postcard: read picture: %w", err)
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return Picture{}, fmt.Errorf("%w: %s is %s", ErrNotAnImage, p.ImageLocation, mime.String())
	}

	return Picture{
		Data:        data,
		ContentType: mime.String(),
		Extension:   mime.Extension(),
	}, nil
}
