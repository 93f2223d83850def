package textraster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"strings"

	"github.com/jo-hoe/iconforge/internal/backend/input"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Font size search bounds in pixels
const (
	MinFontSize      = 12.0
	MaxFontSize      = 420.0
	searchIterations = 14
	// share of the canvas left empty on every side
	insetRatio = 0.10
)

// Style controls how text is drawn
type Style struct {
	Family     string
	Weight     int
	Italic     bool
	Foreground color.Color
	Background color.Color
}

// DefaultStyle is bold white Go text on a dark slate background
func DefaultStyle() Style {
	return Style{
		Family:     DefaultFamily,
		Weight:     700,
		Foreground: color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		Background: color.RGBA{R: 0x1e, G: 0x29, B: 0x3b, A: 0xff},
	}
}

// Result is a rendered master image plus the chosen font size
type Result struct {
	Image    *image.RGBA
	FontSize float64
	Face     *Face
}

// Rasterizer draws short text centred on a square canvas
type Rasterizer struct {
	fonts      *FontLibrary
	canvasSize int
}

// NewRasterizer creates a rasterizer drawing onto canvasSize x canvasSize images
func NewRasterizer(fonts *FontLibrary, canvasSize int) *Rasterizer {
	return &Rasterizer{fonts: fonts, canvasSize: canvasSize}
}

// NormalizeWeight rounds to the nearest multiple of 100 and clamps to [100, 900]
func NormalizeWeight(weight int) int {
	rounded := ((weight + 50) / 100) * 100
	return min(900, max(100, rounded))
}

// ParseHexColor parses "#rgb" or "#rrggbb" into an opaque colour
func ParseHexColor(value string) (color.Color, error) {
	c, err := colorful.Hex(strings.TrimSpace(value))
	if err != nil {
		return nil, &input.ValidationError{Field: "color", Message: fmt.Sprintf("Invalid colour %q", value)}
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// Render draws text onto a filled canvas at the largest font size the search finds.
// The size is a bounded approximation: a 14 step binary search over [12, 420] px,
// so the text fits the inset box but is not guaranteed to touch it.
func (r *Rasterizer) Render(text string, style Style) (*Result, error) {
	text, err := input.ValidateText(text)
	if err != nil {
		return nil, err
	}
	if err := r.fonts.Ready(); err != nil {
		return nil, fmt.Errorf("fonts not available: %w", err)
	}

	face, err := r.fonts.Match(style.Family, NormalizeWeight(style.Weight), style.Italic)
	if err != nil {
		return nil, err
	}

	size := r.canvasSize
	inset := int(float64(size) * insetRatio)
	box := float64(size - 2*inset)

	fontSize, err := searchFontSize(func(px float64) (textMetrics, error) {
		return measure(face, text, px)
	}, box)
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	background := style.Background
	if background == nil {
		background = DefaultStyle().Background
	}
	foreground := style.Foreground
	if foreground == nil {
		foreground = DefaultStyle().Foreground
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	if err := drawCentered(dst, face, text, fontSize, foreground); err != nil {
		return nil, err
	}

	slog.Debug("Rasterizer: rendered text",
		"text_length", len([]rune(text)),
		"family", face.Family,
		"weight", face.Weight,
		"italic", face.Italic,
		"font_size", fontSize)

	return &Result{Image: dst, FontSize: fontSize, Face: face}, nil
}

type textMetrics struct {
	// left is the ink offset from the pen position; width is the ink width
	left    float64
	width   float64
	ascent  float64
	descent float64
}

func (m textMetrics) height() float64 {
	return m.ascent + m.descent
}

// searchFontSize binary searches the largest size whose metrics fit into a box x box square
func searchFontSize(measureAt func(px float64) (textMetrics, error), box float64) (float64, error) {
	lo, hi := MinFontSize, MaxFontSize
	best := MinFontSize
	for i := 0; i < searchIterations; i++ {
		mid := (lo + hi) / 2
		m, err := measureAt(mid)
		if err != nil {
			return 0, err
		}
		if m.width <= box && m.height() <= box {
			best = mid
			lo = mid
		} else {
			hi = mid
		}
	}
	return best, nil
}

func newFace(face *Face, px float64) (font.Face, error) {
	f, err := opentype.NewFace(face.font, &opentype.FaceOptions{
		Size:    px,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return f, nil
}

// measure returns the ink extent of text at px relative to the pen position.
// Italic and overhanging glyphs can reach past their advance, so width is the ink width.
// Blank glyphs have no ink: width falls back to the advance, ascent and descent to 0.8 and 0.2 of px.
func measure(face *Face, text string, px float64) (textMetrics, error) {
	f, err := newFace(face, px)
	if err != nil {
		return textMetrics{}, err
	}
	defer f.Close()

	bounds, advance := font.BoundString(f, text)
	if bounds.Empty() {
		return textMetrics{width: fixedToFloat(advance), ascent: 0.8 * px, descent: 0.2 * px}, nil
	}
	return textMetrics{
		left:    fixedToFloat(bounds.Min.X),
		width:   fixedToFloat(bounds.Max.X - bounds.Min.X),
		ascent:  -fixedToFloat(bounds.Min.Y),
		descent: fixedToFloat(bounds.Max.Y),
	}, nil
}

// drawCentered draws text with its ink bounds centred on both axes
func drawCentered(dst *image.RGBA, face *Face, text string, px float64, fg color.Color) error {
	f, err := newFace(face, px)
	if err != nil {
		return err
	}
	defer f.Close()

	m, err := measure(face, text, px)
	if err != nil {
		return err
	}

	size := float64(dst.Bounds().Dx())
	// centre the ink, not the advance box
	x := (size-m.width)/2 - m.left
	baseline := (size-m.height())/2 + m.ascent

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fg),
		Face: f,
		Dot:  fixed.Point26_6{X: floatToFixed(x), Y: floatToFixed(baseline)},
	}
	d.DrawString(text)
	return nil
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}
