package textraster

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func TestFontLibrary_Match(t *testing.T) {
	lib := NewFontLibrary("")

	tests := []struct {
		name       string
		family     string
		weight     int
		italic     bool
		wantFamily string
		wantWeight int
		wantItalic bool
	}{
		{"Exact", "Go", 700, false, "Go", 700, false},
		{"Case insensitive", "gO mOnO", 400, true, "Go Mono", 400, true},
		{"Quoted", `"Go Mono"`, 700, false, "Go Mono", 700, false},
		{"Unknown falls back", "Comic Sans", 400, false, "Go", 400, false},
		{"Generic monospace", "monospace", 400, false, "Go Mono", 400, false},
		{"Nearest weight", "Go", 900, false, "Go", 700, false},
		{"Tie goes heavier", "Go Mono", 600, false, "Go Mono", 700, false},
		{"Light resolves regular", "Go", 100, true, "Go", 400, true},
		{"Smallcaps bold", "Go Smallcaps", 700, false, "Go Smallcaps", 400, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			face, err := lib.Match(tt.family, tt.weight, tt.italic)
			if err != nil {
				t.Fatalf("Match failed: %v", err)
			}
			if face.Family != tt.wantFamily || face.Weight != tt.wantWeight || face.Italic != tt.wantItalic {
				t.Errorf("Match() = %s %d italic=%v, want %s %d italic=%v",
					face.Family, face.Weight, face.Italic, tt.wantFamily, tt.wantWeight, tt.wantItalic)
			}
		})
	}
}

func TestFontLibrary_Families(t *testing.T) {
	families := NewFontLibrary("").Families()
	want := []string{"Go", "Go Mono", "Go Smallcaps"}
	if len(families) != len(want) {
		t.Fatalf("Expected %v, got %v", want, families)
	}
	for i := range want {
		if families[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, families)
		}
	}
}

func TestFontLibrary_CustomFontsDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "extra.ttf"), goregular.TTF, 0o644); err != nil {
		t.Fatalf("failed to write font: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.otf"), []byte("nope"), 0o644); err != nil {
		t.Fatalf("failed to write font: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	lib := NewFontLibrary(dir)
	if err := lib.Ready(); err != nil {
		t.Fatalf("Ready failed: %v", err)
	}

	// goregular's family name is "Go", so the extra face joins that family
	var regular int
	for _, face := range lib.families["go"] {
		if face.Weight == 400 && !face.Italic {
			regular++
		}
	}
	if regular != 2 {
		t.Errorf("Expected custom font to be added to the Go family, got %d regular faces", regular)
	}
}

func TestFontLibrary_MissingFontsDir(t *testing.T) {
	lib := NewFontLibrary(filepath.Join(t.TempDir(), "does-not-exist"))
	if err := lib.Ready(); err != nil {
		t.Errorf("Expected missing fonts dir to be tolerated, got %v", err)
	}
}

func TestStyleFromSubfamily(t *testing.T) {
	tests := []struct {
		subfamily  string
		wantWeight int
		wantItalic bool
	}{
		{"Regular", 400, false},
		{"Bold", 700, false},
		{"Bold Italic", 700, true},
		{"ExtraBold", 800, false},
		{"Semi Bold", 600, false},
		{"Light Oblique", 300, true},
		{"Black", 900, false},
		{"", 400, false},
	}

	for _, tt := range tests {
		t.Run(tt.subfamily, func(t *testing.T) {
			weight, italic := styleFromSubfamily(tt.subfamily)
			if weight != tt.wantWeight || italic != tt.wantItalic {
				t.Errorf("styleFromSubfamily(%q) = %d, %v, want %d, %v", tt.subfamily, weight, italic, tt.wantWeight, tt.wantItalic)
			}
		})
	}
}
