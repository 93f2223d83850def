package textraster

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomediumitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
	"golang.org/x/image/font/gofont/gosmallcapsitalic"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// DefaultFamily is used when a requested family is unknown
const DefaultFamily = "Go"

// generic CSS family names mapped onto the embedded faces
var familyAliases = map[string]string{
	"sans-serif": "go",
	"serif":      "go",
	"system-ui":  "go",
	"cursive":    "go",
	"fantasy":    "go",
	"monospace":  "go mono",
}

type embeddedFace struct {
	family string
	weight int
	italic bool
	ttf    []byte
}

var embeddedFaces = []embeddedFace{
	{"Go", 400, false, goregular.TTF},
	{"Go", 400, true, goitalic.TTF},
	{"Go", 500, false, gomedium.TTF},
	{"Go", 500, true, gomediumitalic.TTF},
	{"Go", 700, false, gobold.TTF},
	{"Go", 700, true, gobolditalic.TTF},
	{"Go Mono", 400, false, gomono.TTF},
	{"Go Mono", 400, true, gomonoitalic.TTF},
	{"Go Mono", 700, false, gomonobold.TTF},
	{"Go Mono", 700, true, gomonobolditalic.TTF},
	{"Go Smallcaps", 400, false, gosmallcaps.TTF},
	{"Go Smallcaps", 400, true, gosmallcapsitalic.TTF},
}

// Face is one parsed font face of a family
type Face struct {
	Family string
	Weight int
	Italic bool
	font   *opentype.Font
}

// FontLibrary holds the faces available to the rasterizer.
// Faces are parsed lazily, once, on the first call to Ready.
type FontLibrary struct {
	fontsDir string

	once     sync.Once
	readyErr error
	families map[string][]*Face
	names    map[string]string
}

// NewFontLibrary creates a library backed by the embedded Go fonts and,
// when fontsDir is non-empty, every .ttf/.otf file found there
func NewFontLibrary(fontsDir string) *FontLibrary {
	return &FontLibrary{fontsDir: fontsDir}
}

// Ready parses all font resources. It is safe to call concurrently; only the first call does work.
func (l *FontLibrary) Ready() error {
	l.once.Do(func() {
		l.families = make(map[string][]*Face)
		l.names = make(map[string]string)

		for _, ef := range embeddedFaces {
			f, err := opentype.Parse(ef.ttf)
			if err != nil {
				l.readyErr = fmt.Errorf("failed to parse embedded font %s: %w", ef.family, err)
				return
			}
			l.add(&Face{Family: ef.family, Weight: ef.weight, Italic: ef.italic, font: f})
		}

		if l.fontsDir != "" {
			l.loadDir(l.fontsDir)
		}
		slog.Debug("FontLibrary: fonts ready", "families", len(l.families), "fonts_dir", l.fontsDir)
	})
	return l.readyErr
}

func (l *FontLibrary) add(face *Face) {
	key := strings.ToLower(face.Family)
	l.families[key] = append(l.families[key], face)
	l.names[key] = face.Family
}

// loadDir adds custom fonts. Unreadable files are skipped with a warning.
func (l *FontLibrary) loadDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("FontLibrary: could not read fonts directory", "dir", dir, "error", err)
		return
	}
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		face, err := parseFontFile(path)
		if err != nil {
			slog.Warn("FontLibrary: skipping font", "path", path, "error", err)
			continue
		}
		l.add(face)
		slog.Debug("FontLibrary: loaded custom font", "family", face.Family, "weight", face.Weight, "italic", face.Italic)
	}
}

func parseFontFile(path string) (*Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	var buf sfnt.Buffer
	family, err := f.Name(&buf, sfnt.NameIDTypographicFamily)
	if err != nil || family == "" {
		family, err = f.Name(&buf, sfnt.NameIDFamily)
		if err != nil {
			return nil, fmt.Errorf("font has no family name: %w", err)
		}
	}
	subfamily, _ := f.Name(&buf, sfnt.NameIDSubfamily)
	weight, italic := styleFromSubfamily(subfamily)

	return &Face{Family: family, Weight: weight, Italic: italic, font: f}, nil
}

// styleFromSubfamily derives weight and slant from names like "Bold Italic" or "SemiBold"
func styleFromSubfamily(subfamily string) (int, bool) {
	s := strings.ToLower(strings.ReplaceAll(subfamily, " ", ""))
	italic := strings.Contains(s, "italic") || strings.Contains(s, "oblique")

	// longer names first so "extrabold" is not read as "bold"
	weights := []struct {
		name   string
		weight int
	}{
		{"extralight", 200}, {"ultralight", 200},
		{"extrabold", 800}, {"ultrabold", 800},
		{"semibold", 600}, {"demibold", 600},
		{"thin", 100}, {"hairline", 100},
		{"light", 300},
		{"medium", 500},
		{"bold", 700},
		{"black", 900}, {"heavy", 900},
	}
	for _, w := range weights {
		if strings.Contains(s, w.name) {
			return w.weight, italic
		}
	}
	return 400, italic
}

// Families returns the display names of all loaded families, sorted
func (l *FontLibrary) Families() []string {
	if err := l.Ready(); err != nil {
		return nil
	}
	names := make([]string, 0, len(l.names))
	for _, name := range l.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Match picks the face closest to the requested family, weight and style.
// Family lookup is case-insensitive and unknown families fall back to DefaultFamily.
// Within a family the nearest weight with the requested style wins, then the nearest weight of any style.
func (l *FontLibrary) Match(family string, weight int, italic bool) (*Face, error) {
	if err := l.Ready(); err != nil {
		return nil, err
	}

	key := strings.ToLower(strings.Trim(strings.TrimSpace(family), `"'`))
	if alias, ok := familyAliases[key]; ok {
		key = alias
	}
	faces, ok := l.families[key]
	if !ok {
		slog.Debug("FontLibrary: unknown family, using default", "family", family)
		faces = l.families[strings.ToLower(DefaultFamily)]
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("no font faces available")
	}

	if face := nearestWeight(faces, weight, func(f *Face) bool { return f.Italic == italic }); face != nil {
		return face, nil
	}
	return nearestWeight(faces, weight, func(*Face) bool { return true }), nil
}

// nearestWeight returns the accepted face with the smallest weight distance; ties go to the heavier face
func nearestWeight(faces []*Face, weight int, accept func(*Face) bool) *Face {
	var best *Face
	bestDist := 0
	for _, f := range faces {
		if !accept(f) {
			continue
		}
		dist := abs(f.Weight - weight)
		if best == nil || dist < bestDist || (dist == bestDist && f.Weight > best.Weight) {
			best, bestDist = f, dist
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
