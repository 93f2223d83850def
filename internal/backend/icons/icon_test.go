package icons

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jo-hoe/iconforge/internal/backend/input"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		value   string
		want    Format
		wantErr bool
	}{
		{"png", FormatPNG, false},
		{"JPEG", FormatJPEG, false},
		{"jpg", FormatJPEG, false},
		{" webp ", FormatWebP, false},
		{"gif", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseFormat(tt.value)
			if tt.wantErr {
				if _, ok := input.AsValidationError(err); !ok {
					t.Fatalf("Expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, %v, want %v", tt.value, got, err, tt.want)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		size   int
		format Format
		want   string
	}{
		{16, FormatPNG, "icon-16x16.png"},
		{192, FormatJPEG, "icon-192x192.jpeg"},
		{512, FormatWebP, "icon-512x512.webp"},
	}
	for _, tt := range tests {
		if got := Filename(tt.size, tt.format); got != tt.want {
			t.Errorf("Filename(%d, %s) = %s, want %s", tt.size, tt.format, got, tt.want)
		}
	}
}

func TestDataURL_RoundTrip(t *testing.T) {
	payload := []byte{0x00, 0x01, 0xfe, 0xff}
	encoded := EncodeDataURL("image/png", payload)
	if encoded != "data:image/png;base64,AAH+/w==" {
		t.Errorf("Unexpected data URL %s", encoded)
	}

	mimeType, data, err := DecodeDataURL(encoded)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if mimeType != "image/png" || !bytes.Equal(data, payload) {
		t.Errorf("Round trip mismatch: %s %v", mimeType, data)
	}
}

func TestDecodeDataURL_Invalid(t *testing.T) {
	for _, value := range []string{
		"",
		"image/png;base64,AAAA",
		"data:image/png;base64",
		"data:text/plain,hello",
		"data:image/png;base64,***",
	} {
		if _, _, err := DecodeDataURL(value); !errors.Is(err, ErrInvalidDataURL) {
			t.Errorf("DecodeDataURL(%q): expected ErrInvalidDataURL, got %v", value, err)
		}
	}
}
