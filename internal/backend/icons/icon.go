package icons

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jo-hoe/iconforge/internal/backend/input"
)

// Format is an output image format
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// Formats lists the supported output formats in display order
var Formats = []Format{FormatPNG, FormatJPEG, FormatWebP}

// ParseFormat accepts png, jpeg (or jpg) and webp, case-insensitively
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	}
	return "", &input.ValidationError{Field: "format", Message: fmt.Sprintf("Unsupported output format %q", value)}
}

// MIMEType returns the content type of the format
func (f Format) MIMEType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// SourceType says where the master image came from
type SourceType string

const (
	SourceUpload SourceType = "upload"
	SourceText   SourceType = "text"
)

// GeneratedIcon is one emitted artifact
type GeneratedIcon struct {
	Size         int        `json:"size"`
	Format       Format     `json:"format"`
	EncodedImage string     `json:"encodedImage"`
	SourceType   SourceType `json:"sourceType"`
	CreatedAt    time.Time  `json:"createdAt"`
	Filename     string     `json:"filename"`
}

// Bytes decodes the icon payload
func (i GeneratedIcon) Bytes() ([]byte, error) {
	_, data, err := DecodeDataURL(i.EncodedImage)
	return data, err
}

// MasterImage is the normalized square PNG every icon is scaled from
type MasterImage struct {
	Data       []byte
	Size       int
	SourceType SourceType
	CreatedAt  time.Time
}

// Filename returns icon-{size}x{size}.{format}
func Filename(size int, format Format) string {
	return fmt.Sprintf("icon-%dx%d.%s", size, size, format)
}

// ErrInvalidDataURL is returned for payloads that are not base64 data URLs
var ErrInvalidDataURL = errors.New("invalid data URL")

// EncodeDataURL returns data:<mime>;base64,<payload>
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a base64 data URL into its MIME type and bytes
func DecodeDataURL(value string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(value, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: payload is not base64", ErrInvalidDataURL)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
	}
	return mimeType, data, nil
}
