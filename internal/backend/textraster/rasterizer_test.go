package textraster

import (
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/jo-hoe/iconforge/internal/backend/input"
	"golang.org/x/image/font"
)

func TestNormalizeWeight(t *testing.T) {
	tests := []struct {
		weight int
		want   int
	}{
		{400, 400},
		{449, 400},
		{450, 500},
		{0, 100},
		{-20, 100},
		{949, 900},
		{2000, 900},
	}

	for _, tt := range tests {
		if got := NormalizeWeight(tt.weight); got != tt.want {
			t.Errorf("NormalizeWeight(%d) = %d, want %d", tt.weight, got, tt.want)
		}
	}
}

func TestSearchFontSize(t *testing.T) {
	tests := []struct {
		name    string
		measure func(px float64) (textMetrics, error)
		box     float64
		wantMin float64
		wantMax float64
	}{
		{
			name:    "Proportional text converges below the box",
			measure: func(px float64) (textMetrics, error) { return textMetrics{width: px, ascent: 0.8 * px, descent: 0.2 * px}, nil },
			box:     410,
			wantMin: 409,
			wantMax: 410,
		},
		{
			name:    "Wide text is limited by width",
			measure: func(px float64) (textMetrics, error) { return textMetrics{width: 2 * px, ascent: px}, nil },
			box:     410,
			wantMin: 204,
			wantMax: 205,
		},
		{
			name:    "Nothing fits keeps the minimum",
			measure: func(px float64) (textMetrics, error) { return textMetrics{width: 1e6}, nil },
			box:     410,
			wantMin: MinFontSize,
			wantMax: MinFontSize,
		},
		{
			name:    "Everything fits approaches the maximum",
			measure: func(px float64) (textMetrics, error) { return textMetrics{}, nil },
			box:     410,
			wantMin: MaxFontSize - 1,
			wantMax: MaxFontSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := searchFontSize(tt.measure, tt.box)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("searchFontSize() = %f, want within [%f, %f]", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestSearchFontSize_IterationCount(t *testing.T) {
	calls := 0
	_, err := searchFontSize(func(px float64) (textMetrics, error) {
		calls++
		if px < MinFontSize || px > MaxFontSize {
			t.Errorf("size %f outside search bounds", px)
		}
		return textMetrics{width: px}, nil
	}, 100)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if calls != searchIterations {
		t.Errorf("Expected %d calls, got %d", searchIterations, calls)
	}
}

// inkBounds returns the rectangle of pixels that differ from the background
func inkBounds(img *image.RGBA, background color.Color) image.Rectangle {
	br, bg, bb, _ := background.RGBA()
	ink := image.Rectangle{}
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r != br || g != bg || b != bb {
				ink = ink.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return ink
}

func TestRasterizer_Render_FitsInsetBox(t *testing.T) {
	rasterizer := NewRasterizer(NewFontLibrary(""), 512)
	// 51px inset with a little room for antialiasing
	box := image.Rect(51-3, 51-3, 461+3, 461+3)
	// how far the left and right margins may differ after centring
	const maxImbalance = 6

	tests := []struct {
		family string
		weight int
		italic bool
		texts  []string
	}{
		{"Go", 700, false, []string{"A", "AB", "IMG", "g"}},
		{"Go", 900, false, []string{"fjf", "WWW", "AV"}},
		{"Go", 400, true, []string{"W", "fjf", "Ågj"}},
		{"Go", 100, true, []string{"AV", "ff"}},
		{"Go Mono", 400, false, []string{"WWW", "@@@"}},
		{"Go Mono", 900, true, []string{"ff", "fjf", "W"}},
		{"Go Smallcaps", 400, true, []string{"W", "AV", "WWW"}},
		{"Go Smallcaps", 400, false, []string{"Ågj", "fjf"}},
	}

	for _, tt := range tests {
		for _, text := range tt.texts {
			name := fmt.Sprintf("%s/%d/italic=%v/%s", tt.family, tt.weight, tt.italic, text)
			t.Run(name, func(t *testing.T) {
				style := DefaultStyle()
				style.Family = tt.family
				style.Weight = tt.weight
				style.Italic = tt.italic

				result, err := rasterizer.Render(text, style)
				if err != nil {
					t.Fatalf("Render failed: %v", err)
				}
				if result.FontSize < MinFontSize || result.FontSize > MaxFontSize {
					t.Errorf("Font size %f outside [%f, %f]", result.FontSize, MinFontSize, MaxFontSize)
				}
				if result.Image.Bounds() != image.Rect(0, 0, 512, 512) {
					t.Fatalf("Expected 512x512 canvas, got %v", result.Image.Bounds())
				}

				ink := inkBounds(result.Image, style.Background)
				if ink.Empty() {
					t.Fatal("Expected text to be drawn")
				}
				if !ink.In(box) {
					t.Errorf("Ink bounds %v exceed inset box %v at size %.1f", ink, box, result.FontSize)
				}

				left, right := ink.Min.X, 512-ink.Max.X
				if diff := left - right; diff > maxImbalance || diff < -maxImbalance {
					t.Errorf("Ink not centred horizontally: left margin %d, right margin %d", left, right)
				}
			})
		}
	}
}

func TestMeasure_UsesInkWidth(t *testing.T) {
	fonts := NewFontLibrary("")
	if err := fonts.Ready(); err != nil {
		t.Fatalf("Ready failed: %v", err)
	}
	face, err := fonts.Match("Go", 400, true)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	m, err := measure(face, "W", 200)
	if err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	f, err := newFace(face, 200)
	if err != nil {
		t.Fatalf("newFace failed: %v", err)
	}
	defer f.Close()
	bounds, _ := font.BoundString(f, "W")

	if want := fixedToFloat(bounds.Max.X - bounds.Min.X); m.width != want {
		t.Errorf("Expected ink width %f, got %f", want, m.width)
	}
	if want := fixedToFloat(bounds.Min.X); m.left != want {
		t.Errorf("Expected ink offset %f, got %f", want, m.left)
	}
}

func TestMeasure_BlankFallsBackToAdvance(t *testing.T) {
	fonts := NewFontLibrary("")
	if err := fonts.Ready(); err != nil {
		t.Fatalf("Ready failed: %v", err)
	}
	face, err := fonts.Match("Go", 400, false)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	m, err := measure(face, " ", 100)
	if err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	if m.width <= 0 || m.left != 0 {
		t.Errorf("Expected advance width and zero offset for blank text, got %+v", m)
	}
	if m.ascent != 80 || m.descent != 20 {
		t.Errorf("Expected 0.8/0.2 fallback metrics, got ascent %f descent %f", m.ascent, m.descent)
	}
}

func TestRasterizer_Render_FillsBackground(t *testing.T) {
	rasterizer := NewRasterizer(NewFontLibrary(""), 128)
	style := DefaultStyle()
	style.Background = color.RGBA{R: 0xff, A: 0xff}

	result, err := rasterizer.Render("x", style)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got := result.Image.RGBAAt(0, 0); got != (color.RGBA{R: 0xff, A: 0xff}) {
		t.Errorf("Expected red corner, got %v", got)
	}
}

func TestRasterizer_Render_InvalidText(t *testing.T) {
	rasterizer := NewRasterizer(NewFontLibrary(""), 512)

	for _, text := range []string{"", "  ", "ABCD"} {
		_, err := rasterizer.Render(text, DefaultStyle())
		if _, ok := input.AsValidationError(err); !ok {
			t.Errorf("Render(%q): expected ValidationError, got %v", text, err)
		}
	}
}

func TestRasterizer_Render_AppliesWeight(t *testing.T) {
	rasterizer := NewRasterizer(NewFontLibrary(""), 256)
	style := DefaultStyle()
	style.Weight = 333

	result, err := rasterizer.Render("A", style)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if result.Face.Weight != 400 {
		t.Errorf("Expected weight 333 to resolve to the 400 face, got %d", result.Face.Weight)
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#1e293b")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if c != (color.RGBA{R: 0x1e, G: 0x29, B: 0x3b, A: 0xff}) {
		t.Errorf("Unexpected colour %v", c)
	}

	if _, err := ParseHexColor("red"); err == nil {
		t.Error("Expected error for non-hex colour")
	} else if _, ok := input.AsValidationError(err); !ok {
		t.Errorf("Expected ValidationError, got %v", err)
	}
}
