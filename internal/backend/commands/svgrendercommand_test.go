package commands

import (
	"testing"
)

const redSquareSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><rect x="0" y="0" width="10" height="10" fill="#ff0000"/></svg>`

func TestNewSvgRenderCommand(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		wantErr bool
	}{
		{"Size", map[string]any{"size": 64}, false},
		{"Width and height", map[string]any{"width": 32, "height": 16}, false},
		{"Missing", map[string]any{}, true},
		{"Zero height", map[string]any{"width": 32, "height": 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSvgRenderCommand(tt.params)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSvgRenderCommand() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSvgRenderCommand_Execute(t *testing.T) {
	command, err := NewSvgRenderCommand(map[string]any{"size": 64})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	result, err := command.Execute([]byte(redSquareSVG))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	img := mustDecodePNG(t, result)
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 64 {
		t.Fatalf("Expected 64x64, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
	if r, g, _, a := rgba8(img.At(32, 32)); r < 250 || g > 5 || a < 250 {
		t.Errorf("Expected red centre pixel, got r=%d g=%d a=%d", r, g, a)
	}
}

func TestSvgRenderCommand_Execute_NotSVG(t *testing.T) {
	command, err := NewSvgRenderCommand(map[string]any{"size": 16})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}
	if _, err := command.Execute([]byte{0x89, 'P', 'N', 'G'}); err == nil {
		t.Error("Expected error for non-SVG input")
	}
}

func TestIsSVGData(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{"Plain svg", redSquareSVG, true},
		{"XML prolog", `<?xml version="1.0"?>` + "\n" + redSquareSVG, true},
		{"Upper case", "<SVG></SVG>", true},
		{"Empty", "", false},
		{"HTML", "<html><body></body></html>", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSVGData([]byte(tt.data)); got != tt.want {
				t.Errorf("isSVGData() = %v, want %v", got, tt.want)
			}
		})
	}
}
