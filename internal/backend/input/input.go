// Package input validates user supplied uploads, text and generation options
// before any rasterising or emitting work starts.
package input

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// MaxTextLength is the maximum number of characters accepted for text icons
	MaxTextLength = 3
	MinIconSize   = 1
	MaxIconSize   = 4096

	DefaultMaxFileSizeMB = 10
)

// DefaultAllowedTypes are the upload MIME types accepted when none are configured
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/bmp"}

// ValidationError is a rejected input. Message is safe to show to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AsValidationError reports whether err carries a ValidationError and returns it
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// FilePolicy describes which uploads are accepted
type FilePolicy struct {
	MaxBytes     int64
	AllowedTypes []string
}

// DefaultFilePolicy allows JPEG, PNG and BMP up to 10 MB
func DefaultFilePolicy() FilePolicy {
	return NewFilePolicy(DefaultMaxFileSizeMB, DefaultAllowedTypes)
}

// NewFilePolicy builds a policy from a size limit in megabytes and a list of MIME types
func NewFilePolicy(maxFileSizeMB int, allowedTypes []string) FilePolicy {
	types := make([]string, 0, len(allowedTypes))
	for _, t := range allowedTypes {
		types = append(types, normalizeMIME(t))
	}
	return FilePolicy{
		MaxBytes:     int64(maxFileSizeMB) * 1024 * 1024,
		AllowedTypes: types,
	}
}

// ValidateFile checks the declared and the sniffed content type as well as the size.
// It returns the sniffed MIME type of an accepted file.
func (p FilePolicy) ValidateFile(declaredType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", newValidationError("image", "Please select an image file")
	}
	if p.MaxBytes > 0 && int64(len(data)) > p.MaxBytes {
		return "", newValidationError("image", "File size must be less than %dMB", p.MaxBytes/(1024*1024))
	}

	declared := normalizeMIME(declaredType)
	if declared != "" && declared != "application/octet-stream" && !p.allows(declared) {
		return "", newValidationError("image", "Please select a valid image file (%s)", p.describeTypes())
	}

	sniffed := normalizeMIME(mimetype.Detect(data).String())
	if !p.allows(sniffed) {
		return "", newValidationError("image", "Please select a valid image file (%s)", p.describeTypes())
	}
	return sniffed, nil
}

func (p FilePolicy) allows(mimeType string) bool {
	for _, t := range p.AllowedTypes {
		if t == mimeType {
			return true
		}
	}
	return false
}

func (p FilePolicy) describeTypes() string {
	names := make([]string, 0, len(p.AllowedTypes))
	for _, t := range p.AllowedTypes {
		names = append(names, strings.ToUpper(strings.TrimPrefix(t, "image/")))
	}
	return strings.Join(names, ", ")
}

// normalizeMIME strips parameters and folds common aliases
func normalizeMIME(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch mimeType {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/x-ms-bmp", "image/x-bmp", "image/ms-bmp":
		return "image/bmp"
	}
	return mimeType
}

// ValidateText trims the text and checks it has 1 to MaxTextLength characters
func ValidateText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", newValidationError("text", "Please enter some text")
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxTextLength {
		return "", newValidationError("text", "Text must be %d characters or less", MaxTextLength)
	}
	return trimmed, nil
}

// ValidateSizes requires at least one size, each within [MinIconSize, MaxIconSize] and unique
func ValidateSizes(sizes []int) error {
	if len(sizes) == 0 {
		return newValidationError("sizes", "Please select at least one icon size")
	}
	seen := make(map[int]struct{}, len(sizes))
	for _, size := range sizes {
		if size < MinIconSize || size > MaxIconSize {
			return newValidationError("sizes", "Icon size %d must be between %d and %d", size, MinIconSize, MaxIconSize)
		}
		if _, dup := seen[size]; dup {
			return newValidationError("sizes", "Icon size %d was selected more than once", size)
		}
		seen[size] = struct{}{}
	}
	return nil
}

// ParseSizes parses a comma separated list such as "16,32,48". An empty string yields nil.
func ParseSizes(value string) ([]int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	sizes := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		size, err := strconv.Atoi(part)
		if err != nil {
			return nil, newValidationError("sizes", "Invalid icon size %q", part)
		}
		sizes = append(sizes, size)
	}
	return sizes, nil
}
