// Package media handles the data-URL encoded images attached to posts.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"
)

var (
	// ErrInvalidDataURL is returned for strings that are not base64 data-URLs.
	ErrInvalidDataURL = errors.New("invalid data URL")
	// ErrUnsupportedImage is returned for content that is not a supported image.
	ErrUnsupportedImage = errors.New("unsupported image")
	// ErrTooLarge is returned when an upload exceeds the configured size.
	ErrTooLarge = errors.New("image too large")
)

// DataURL is a decoded data: URL.
type DataURL struct {
	MIME string
	Data []byte
}

// ParseDataURL decodes a `data:<mime>;base64,<payload>` string.
func ParseDataURL(s string) (DataURL, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return DataURL{}, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return DataURL{}, fmt.Errorf("%w: missing payload", ErrInvalidDataURL)
	}
	mediaType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return DataURL{}, fmt.Errorf("%w: payload is not base64", ErrInvalidDataURL)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return DataURL{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if len(data) == 0 {
		return DataURL{}, fmt.Errorf("%w: empty payload", ErrInvalidDataURL)
	}

	return DataURL{MIME: normalizeContentType(mediaType), Data: data}, nil
}

func (d DataURL) String() string {
	return EncodeDataURL(d.MIME, d.Data)
}

// EncodeDataURL renders data as a base64 data-URL of the given MIME type.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
