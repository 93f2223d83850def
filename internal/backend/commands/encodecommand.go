package commands

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"math"

	"github.com/HugoSmits86/nativewebp"
	"github.com/jo-hoe/iconforge/internal/backend/commandstructure"
)

// DefaultQuality is the lossy quality used when none is configured (0.9 on a 0..1 scale)
const DefaultQuality = 90

// EncodeParams represents typed parameters for the encode command
type EncodeParams struct {
	Format string
	// Quality applies to JPEG only; WebP output is always lossless
	Quality int
	// Background is composited under transparent pixels for formats without alpha
	Background color.Color
}

// NewEncodeParamsFromMap creates EncodeParams from a generic map.
// "quality" accepts either a fraction in (0, 1] or a percentage in (1, 100].
func NewEncodeParamsFromMap(params map[string]any) (*EncodeParams, error) {
	if err := commandstructure.ValidateRequiredParams(params, []string{"format"}); err != nil {
		return nil, err
	}

	format := commandstructure.GetStringParam(params, "format", "")
	switch format {
	case FormatPNG, FormatJPEG, FormatWebP:
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}

	quality := DefaultQuality
	if _, ok := params["quality"]; ok {
		q := commandstructure.GetFloatParam(params, "quality", 0)
		if q > 0 && q <= 1 {
			q *= 100
		}
		quality = int(math.Round(q))
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("quality must be within 1..100, got %d", quality)
	}

	background, err := parseColorParam(commandstructure.GetStringParam(params, "background", "#ffffff"))
	if err != nil {
		return nil, err
	}
	if background == nil {
		background = color.White
	}

	return &EncodeParams{
		Format:     format,
		Quality:    quality,
		Background: background,
	}, nil
}

// EncodeCommand re-encodes an image into the configured output format
type EncodeCommand struct {
	name   string
	params *EncodeParams
}

// NewEncodeCommand creates a new encode command from configuration parameters
func NewEncodeCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewEncodeParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &EncodeCommand{
		name:   "EncodeCommand",
		params: typedParams,
	}, nil
}

// Name returns the command name
func (c *EncodeCommand) Name() string {
	return c.name
}

// GetParams returns the typed parameters
func (c *EncodeCommand) GetParams() *EncodeParams {
	return c.params
}

// Execute encodes the image. PNG input requested as PNG passes through unchanged.
func (c *EncodeCommand) Execute(imageData []byte) ([]byte, error) {
	if c.params.Format == FormatPNG && hasCorrectPngSignature(imageData) {
		return imageData, nil
	}

	img, sourceFormat, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		slog.Error("EncodeCommand: failed to decode image", "error", err)
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	switch c.params.Format {
	case FormatPNG:
		out, err := encodePNG(img)
		if err != nil {
			return nil, fmt.Errorf("failed to encode PNG image: %w", err)
		}
		return out, nil
	case FormatJPEG:
		flat := flattenOnto(toRGBA(img), c.params.Background)
		if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: c.params.Quality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG image: %w", err)
		}
	case FormatWebP:
		if err := nativewebp.Encode(&buf, img, nil); err != nil {
			return nil, fmt.Errorf("failed to encode WebP image: %w", err)
		}
	}

	slog.Debug("EncodeCommand: encoded image",
		"source_format", sourceFormat,
		"target_format", c.params.Format,
		"quality", c.params.Quality,
		"output_size_bytes", buf.Len())
	return buf.Bytes(), nil
}

// flattenOnto composites img over an opaque background in place and returns it
func flattenOnto(img *image.RGBA, background color.Color) *image.RGBA {
	br, bg, bb, _ := background.RGBA()
	bgR, bgG, bgB := uint32(br>>8), uint32(bg>>8), uint32(bb>>8)
	w := img.Bounds().Dx()

	parallelRows(img.Bounds().Dy(), func(y int) {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for i := 0; i < len(row); i += 4 {
			a := uint32(row[i+3])
			if a == 255 {
				continue
			}
			// RGBA is alpha-premultiplied: out = src + bg*(1-a)
			inv := 255 - a
			row[i] = uint8(uint32(row[i]) + (bgR*inv+127)/255)
			row[i+1] = uint8(uint32(row[i+1]) + (bgG*inv+127)/255)
			row[i+2] = uint8(uint32(row[i+2]) + (bgB*inv+127)/255)
			row[i+3] = 255
		}
	})
	return img
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("EncodeCommand", NewEncodeCommand); err != nil {
		panic(fmt.Sprintf("failed to register EncodeCommand: %v", err))
	}
}
