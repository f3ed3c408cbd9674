// Package imaging provides image decoding, validation, and conversion to
// model input tensors for the CLIP visual encoder.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for files or payloads that are not a
// decodable JPEG, PNG, or WebP image.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// SupportedExtension reports whether path has one of the indexable image extensions.
func SupportedExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if len(extensions) == 0 {
		return ext == ".jpg" || ext == ".jpeg" || ext == ".png" || ext == ".webp"
	}
	for _, e := range extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// Decode decodes JPEG, PNG, or WebP bytes into an image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return img, nil
}

// Validate reports whether data is a decodable image.
func Validate(data []byte) bool {
	_, err := Decode(data)
	return err == nil
}

// DecodeDataURL extracts and decodes the payload of a base64 image data URL
// ("data:image/png;base64,..."). Raw base64 without a data URL prefix is
// also accepted.
func DecodeDataURL(s string) ([]byte, error) {
	payload := s
	if strings.HasPrefix(s, "data:image") {
		idx := strings.IndexByte(s, ',')
		if idx < 0 {
			return nil, fmt.Errorf("%w: malformed data URL", ErrUnsupportedFormat)
		}
		payload = s[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrUnsupportedFormat, err)
	}
	return data, nil
}
