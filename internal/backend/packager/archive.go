package packager

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alexmullins/zip"
	"github.com/jo-hoe/iconforge/internal/backend/icons"
)

var (
	// ErrNoIcons is returned when there is nothing to package
	ErrNoIcons = errors.New("no icons to package")
	// ErrIconNotFound is returned for an unknown artifact filename
	ErrIconNotFound = errors.New("icon not found")
)

const manifestFilename = "manifest.json"

// ArchiveOptions configures BuildArchive
type ArchiveOptions struct {
	// Name is written into manifest.json
	Name string
	// Password encrypts every entry with AES-256 when set
	Password string
	// GeneratedAt defaults to the current time
	GeneratedAt time.Time
}

// Archive is a finished zip file ready for download
type Archive struct {
	Filename string
	Data     []byte
}

// ArchiveManifest is the manifest.json stored next to the icons
type ArchiveManifest struct {
	Name        string                `json:"name"`
	GeneratedAt time.Time             `json:"generated_at"`
	TotalIcons  int                   `json:"total_icons"`
	Format      icons.Format          `json:"format"`
	Sizes       []int                 `json:"sizes"`
	Icons       []ArchiveManifestIcon `json:"icons"`
}

// ArchiveManifestIcon describes one archived icon
type ArchiveManifestIcon struct {
	Filename   string           `json:"filename"`
	Size       int              `json:"size"`
	Format     icons.Format     `json:"format"`
	SourceType icons.SourceType `json:"source_type"`
}

// ArchiveFilename returns pwa-icons-YYYYMMDD-HHMMSS.zip
func ArchiveFilename(t time.Time) string {
	return "pwa-icons-" + t.Format("20060102-150405") + ".zip"
}

// NewArchiveManifest describes the given icons
func NewArchiveManifest(name string, generatedAt time.Time, list []icons.GeneratedIcon) ArchiveManifest {
	manifest := ArchiveManifest{
		Name:        name,
		GeneratedAt: generatedAt,
		TotalIcons:  len(list),
		Sizes:       make([]int, 0, len(list)),
		Icons:       make([]ArchiveManifestIcon, 0, len(list)),
	}
	if len(list) > 0 {
		manifest.Format = list[0].Format
	}
	for _, icon := range list {
		manifest.Sizes = append(manifest.Sizes, icon.Size)
		manifest.Icons = append(manifest.Icons, ArchiveManifestIcon{
			Filename:   icon.Filename,
			Size:       icon.Size,
			Format:     icon.Format,
			SourceType: icon.SourceType,
		})
	}
	return manifest
}

// BuildArchive zips every icon under its filename plus manifest.json.
// Entries use deflate at the default level. Any payload that fails to decode aborts the build.
func BuildArchive(list []icons.GeneratedIcon, opts ArchiveOptions) (*Archive, error) {
	if len(list) == 0 {
		return nil, ErrNoIcons
	}
	generatedAt := opts.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	for _, icon := range list {
		data, err := icon.Bytes()
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", icon.Filename, err)
		}
		if err := writeEntry(zipWriter, icon.Filename, data, opts.Password); err != nil {
			return nil, err
		}
	}

	manifest, err := json.MarshalIndent(NewArchiveManifest(opts.Name, generatedAt, list), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := writeEntry(zipWriter, manifestFilename, manifest, opts.Password); err != nil {
		return nil, err
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	slog.Debug("Packager: archive built",
		"icons", len(list),
		"encrypted", opts.Password != "",
		"size_bytes", buf.Len())

	return &Archive{
		Filename: ArchiveFilename(generatedAt),
		Data:     buf.Bytes(),
	}, nil
}

func writeEntry(zipWriter *zip.Writer, name string, data []byte, password string) error {
	var (
		w   io.Writer
		err error
	)
	if password != "" {
		w, err = zipWriter.Encrypt(name, password)
	} else {
		w, err = zipWriter.Create(name)
	}
	if err != nil {
		return fmt.Errorf("failed to create archive entry for %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write archive entry for %s: %w", name, err)
	}
	return nil
}

// Artifact is a single icon prepared for download
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// FindArtifact decodes the icon with the given filename
func FindArtifact(list []icons.GeneratedIcon, filename string) (*Artifact, error) {
	for _, icon := range list {
		if icon.Filename != filename {
			continue
		}
		data, err := icon.Bytes()
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
		}
		return &Artifact{
			Filename:    icon.Filename,
			ContentType: icon.Format.MIMEType(),
			Data:        data,
		}, nil
	}
	return nil, ErrIconNotFound
}
