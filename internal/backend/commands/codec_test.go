package commands

import (
	"image/color"
	"testing"
)

func TestParseColorParam(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    color.Color
		wantErr bool
	}{
		{"Long hex", "#1e293b", color.RGBA{R: 0x1e, G: 0x29, B: 0x3b, A: 255}, false},
		{"Short hex", "#fff", color.RGBA{R: 255, G: 255, B: 255, A: 255}, false},
		{"Empty is transparent", "", nil, false},
		{"Transparent keyword", "Transparent", nil, false},
		{"Garbage", "blue-ish", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseColorParam(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseColorParam() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseColorParam() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasCorrectPngSignature(t *testing.T) {
	if !hasCorrectPngSignature(newTestPNG(t, 1, 1, color.Black)) {
		t.Error("Expected encoded PNG to carry the signature")
	}
	if hasCorrectPngSignature([]byte{0x89, 'P'}) {
		t.Error("Expected truncated data to be rejected")
	}
}
