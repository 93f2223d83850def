package commands

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/jo-hoe/iconforge/internal/backend/commandstructure"
	"golang.org/x/image/draw"
)

// Fit modes for ScaleCommand
const (
	FitStretch = "stretch"
	FitContain = "contain"
	FitCover   = "cover"
)

// ScaleParams represents typed parameters for the scale command
type ScaleParams struct {
	Height     int
	Width      int
	Fit        string
	Background color.Color
}

// NewScaleParamsFromMap creates ScaleParams from a generic map.
// "size" sets a square target; otherwise both "width" and "height" are required.
func NewScaleParamsFromMap(params map[string]any) (*ScaleParams, error) {
	var width, height int
	if _, ok := params["size"]; ok {
		width = commandstructure.GetIntParam(params, "size", 0)
		height = width
	} else {
		if err := commandstructure.ValidateRequiredParams(params, []string{"height", "width"}); err != nil {
			return nil, err
		}
		height = commandstructure.GetIntParam(params, "height", 0)
		width = commandstructure.GetIntParam(params, "width", 0)
	}

	if height <= 0 {
		return nil, fmt.Errorf("height must be positive, got %d", height)
	}
	if width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %d", width)
	}

	fit := commandstructure.GetStringParam(params, "fit", FitStretch)
	switch fit {
	case FitStretch, FitContain, FitCover:
	default:
		return nil, fmt.Errorf("unsupported fit mode %q", fit)
	}

	background, err := parseColorParam(commandstructure.GetStringParam(params, "background", ""))
	if err != nil {
		return nil, err
	}

	return &ScaleParams{
		Height:     height,
		Width:      width,
		Fit:        fit,
		Background: background,
	}, nil
}

// ScaleCommand resamples a PNG image onto a target canvas with CatmullRom filtering
type ScaleCommand struct {
	name   string
	params *ScaleParams
}

// NewScaleCommand creates a new scale command from configuration parameters
func NewScaleCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewScaleParamsFromMap(params)
	if err != nil {
		return nil, err
	}

	return &ScaleCommand{
		name:   "ScaleCommand",
		params: typedParams,
	}, nil
}

// NewSquareScaleCommand creates a stretch-to-square scale command
func NewSquareScaleCommand(size int) (*ScaleCommand, error) {
	if size <= 0 {
		return nil, fmt.Errorf("size must be positive, got %d", size)
	}
	return &ScaleCommand{
		name:   "ScaleCommand",
		params: &ScaleParams{Height: size, Width: size, Fit: FitStretch},
	}, nil
}

// Name returns the command name
func (c *ScaleCommand) Name() string {
	return c.name
}

// GetParams returns the typed parameters
func (c *ScaleCommand) GetParams() *ScaleParams {
	return c.params
}

// Execute scales the image to the target dimensions using the configured fit mode
func (c *ScaleCommand) Execute(imageData []byte) ([]byte, error) {
	img, err := decodePNG(imageData)
	if err != nil {
		slog.Error("ScaleCommand: failed to decode PNG image", "error", err)
		return nil, fmt.Errorf("failed to decode PNG image: %w", err)
	}

	bounds := img.Bounds()
	targetWidth := c.params.Width
	targetHeight := c.params.Height

	if bounds.Dx() == targetWidth && bounds.Dy() == targetHeight {
		slog.Debug("ScaleCommand: target dimensions equal original; skipping scaling")
		return imageData, nil
	}

	srcRect, dstRect := computeFitRects(bounds, targetWidth, targetHeight, c.params.Fit)
	slog.Debug("ScaleCommand: scaling image",
		"original_width", bounds.Dx(),
		"original_height", bounds.Dy(),
		"target_width", targetWidth,
		"target_height", targetHeight,
		"fit", c.params.Fit,
		"src_rect", srcRect.String(),
		"dst_rect", dstRect.String())

	dst := createTargetCanvas(targetWidth, targetHeight, c.params.Background)
	draw.CatmullRom.Scale(dst, dstRect, img, srcRect, draw.Over, nil)

	out, err := encodePNG(dst)
	if err != nil {
		slog.Error("ScaleCommand: failed to encode scaled image", "error", err)
		return nil, fmt.Errorf("failed to encode scaled PNG image: %w", err)
	}
	return out, nil
}

// computeFitRects returns the source region to sample and the destination region to fill
func computeFitRects(src image.Rectangle, targetWidth, targetHeight int, fit string) (image.Rectangle, image.Rectangle) {
	full := image.Rect(0, 0, targetWidth, targetHeight)
	switch fit {
	case FitContain:
		scaledWidth, scaledHeight := computeScaledDimensions(src.Dx(), src.Dy(), targetWidth, targetHeight)
		offsetX, offsetY := (targetWidth-scaledWidth)/2, (targetHeight-scaledHeight)/2
		return src, image.Rect(offsetX, offsetY, offsetX+scaledWidth, offsetY+scaledHeight)
	case FitCover:
		cropWidth, cropHeight := computeCropDimensions(src.Dx(), src.Dy(), targetWidth, targetHeight)
		x0 := src.Min.X + (src.Dx()-cropWidth)/2
		y0 := src.Min.Y + (src.Dy()-cropHeight)/2
		return image.Rect(x0, y0, x0+cropWidth, y0+cropHeight), full
	default:
		return src, full
	}
}

// computeScaledDimensions fits the original into the target while preserving aspect ratio
func computeScaledDimensions(originalWidth, originalHeight, targetWidth, targetHeight int) (int, int) {
	originalAspect := float64(originalWidth) / float64(originalHeight)
	targetAspect := float64(targetWidth) / float64(targetHeight)
	if originalAspect > targetAspect {
		return targetWidth, max(1, int(float64(targetWidth)/originalAspect))
	}
	return max(1, int(float64(targetHeight)*originalAspect)), targetHeight
}

// computeCropDimensions returns the largest centred source region with the target's aspect ratio
func computeCropDimensions(originalWidth, originalHeight, targetWidth, targetHeight int) (int, int) {
	originalAspect := float64(originalWidth) / float64(originalHeight)
	targetAspect := float64(targetWidth) / float64(targetHeight)
	if originalAspect > targetAspect {
		return max(1, int(float64(originalHeight)*targetAspect)), originalHeight
	}
	return originalWidth, max(1, int(float64(originalWidth)/targetAspect))
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("ScaleCommand", NewScaleCommand); err != nil {
		panic(fmt.Sprintf("failed to register ScaleCommand: %v", err))
	}
}
