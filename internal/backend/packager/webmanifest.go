package packager

import (
	"fmt"

	"github.com/jo-hoe/iconforge/internal/backend/icons"
)

const (
	// MinManifestIconSize is the smallest icon listed in a web app manifest
	MinManifestIconSize = 72
	// MinMaskableIconSize is the smallest icon marked maskable
	MinMaskableIconSize = 192
	maskablePurpose     = "maskable any"
)

// AppInfo carries the descriptive fields of a web app manifest
type AppInfo struct {
	Name            string
	ShortName       string
	Description     string
	StartURL        string
	Display         string
	ThemeColor      string
	BackgroundColor string
}

// WebAppManifest is a W3C web app manifest
type WebAppManifest struct {
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name,omitempty"`
	Description     string         `json:"description,omitempty"`
	StartURL        string         `json:"start_url"`
	Display         string         `json:"display"`
	ThemeColor      string         `json:"theme_color,omitempty"`
	BackgroundColor string         `json:"background_color,omitempty"`
	Icons           []ManifestIcon `json:"icons"`
}

// ManifestIcon is one entry of the manifest icons list
type ManifestIcon struct {
	Src     string `json:"src"`
	Sizes   string `json:"sizes"`
	Type    string `json:"type"`
	Purpose string `json:"purpose,omitempty"`
}

// NewWebAppManifest fills the descriptive fields with defaults for empty values
func NewWebAppManifest(app AppInfo) WebAppManifest {
	manifest := WebAppManifest{
		Name:            app.Name,
		ShortName:       app.ShortName,
		Description:     app.Description,
		StartURL:        app.StartURL,
		Display:         app.Display,
		ThemeColor:      app.ThemeColor,
		BackgroundColor: app.BackgroundColor,
		Icons:           []ManifestIcon{},
	}
	if manifest.StartURL == "" {
		manifest.StartURL = "/"
	}
	if manifest.Display == "" {
		manifest.Display = "standalone"
	}
	return manifest
}

// AddIcon appends an icon entry if it is at least MinManifestIconSize.
// Icons of MinMaskableIconSize and above are marked "maskable any".
func (m *WebAppManifest) AddIcon(src string, size int, mimeType string) {
	if size < MinManifestIconSize {
		return
	}
	icon := ManifestIcon{
		Src:   src,
		Sizes: fmt.Sprintf("%dx%d", size, size),
		Type:  mimeType,
	}
	if size >= MinMaskableIconSize {
		icon.Purpose = maskablePurpose
	}
	m.Icons = append(m.Icons, icon)
}

// BuildWebAppManifest lists the generated icons under their archive filenames
func BuildWebAppManifest(list []icons.GeneratedIcon, app AppInfo) WebAppManifest {
	manifest := NewWebAppManifest(app)
	for _, icon := range list {
		manifest.AddIcon(icon.Filename, icon.Size, icon.Format.MIMEType())
	}
	return manifest
}
