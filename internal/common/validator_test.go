package common

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type sample struct {
	Format string `validate:"required,oneof=png jpeg webp"`
	Sizes  []int  `validate:"required,min=1,dive,min=1,max=4096"`
}

func TestGenericEchoValidator(t *testing.T) {
	v := &GenericEchoValidator{}

	tests := []struct {
		name    string
		input   sample
		wantErr string
	}{
		{"valid", sample{Format: "png", Sizes: []int{16, 32}}, ""},
		{"missing format", sample{Sizes: []int{16}}, "format failed on required"},
		{"unknown format", sample{Format: "gif", Sizes: []int{16}}, "format failed on oneof"},
		{"no sizes", sample{Format: "png"}, "sizes failed on required"},
		{"size too large", sample{Format: "png", Sizes: []int{9000}}, "failed on max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var httpErr *echo.HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("expected echo.HTTPError, got %v", err)
			}
			if httpErr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", httpErr.Code)
			}
			if msg, _ := httpErr.Message.(string); !strings.Contains(msg, tt.wantErr) {
				t.Errorf("expected message containing %q, got %q", tt.wantErr, msg)
			}
		})
	}
}
