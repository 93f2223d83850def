package commands

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/jo-hoe/iconforge/internal/backend/commandstructure"
	"golang.org/x/image/bmp"
)

func newSolidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPngConverterCommand_Execute(t *testing.T) {
	src := newSolidImage(20, 10, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	var jpegBuf bytes.Buffer
	if err := jpeg.Encode(&jpegBuf, src, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("failed to encode JPEG fixture: %v", err)
	}
	var bmpBuf bytes.Buffer
	if err := bmp.Encode(&bmpBuf, src); err != nil {
		t.Fatalf("failed to encode BMP fixture: %v", err)
	}

	tests := []struct {
		name  string
		input []byte
	}{
		{"JPEG input", jpegBuf.Bytes()},
		{"BMP input", bmpBuf.Bytes()},
	}

	command, err := NewPngConverterCommand(nil)
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := command.Execute(tt.input)
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if !hasCorrectPngSignature(result) {
				t.Fatal("Expected PNG signature on output")
			}
			img := mustDecodePNG(t, result)
			if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
				t.Errorf("Expected 20x10, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
			}
		})
	}
}

func TestPngConverterCommand_Execute_PNGPassThrough(t *testing.T) {
	input := newTestPNG(t, 4, 4, color.NRGBA{A: 255})
	command, _ := NewPngConverterCommand(nil)

	result, err := command.Execute(input)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !bytes.Equal(result, input) {
		t.Error("Expected PNG input to be returned unchanged")
	}
}

func TestPngConverterCommand_Execute_InvalidData(t *testing.T) {
	command, _ := NewPngConverterCommand(nil)
	if _, err := command.Execute([]byte("definitely not an image")); err == nil {
		t.Error("Expected error for undecodable input")
	}
}

func TestPngConverterCommand_RegisteredInDefaultRegistry(t *testing.T) {
	if !commandstructure.DefaultRegistry.IsRegistered("PngConverterCommand") {
		t.Error("Expected PngConverterCommand to be registered in DefaultRegistry")
	}
}
