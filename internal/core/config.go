package core

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jo-hoe/iconforge/internal/backend/commandstructure"
	"github.com/jo-hoe/iconforge/internal/backend/icons"
	"github.com/jo-hoe/iconforge/internal/backend/input"
	"github.com/jo-hoe/iconforge/internal/backend/offline"
	"github.com/jo-hoe/iconforge/internal/backend/textraster"
	"github.com/jo-hoe/iconforge/internal/logging"
	"gopkg.in/yaml.v3"
)

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type Upload struct {
	MaxFileSizeMB int      `yaml:"maxFileSizeMB"`
	AllowedTypes  []string `yaml:"allowedTypes"`
}

// TextDefaults apply when a text request leaves a style field empty
type TextDefaults struct {
	Family     string `yaml:"family"`
	Weight     int    `yaml:"weight"`
	Foreground string `yaml:"foreground"`
	Background string `yaml:"background"`
}

type Generation struct {
	MasterSize       int           `yaml:"masterSize"`
	DefaultSizes     []int         `yaml:"defaultSizes"`
	DefaultFormat    string        `yaml:"defaultFormat"`
	JPEGQuality      float64       `yaml:"jpegQuality"`
	FontsDir         string        `yaml:"fontsDir"`
	SlowRunThreshold time.Duration `yaml:"slowRunThreshold"`
	ArchiveName      string        `yaml:"archiveName"`
	Text             TextDefaults  `yaml:"text"`
	// MasterCommands normalize an upload into the square master image
	MasterCommands []commandstructure.CommandConfig `yaml:"masterCommands"`
}

type OfflineRoute struct {
	Path     string `yaml:"path"`
	Prefix   bool   `yaml:"prefix"`
	Strategy string `yaml:"strategy"`
}

type Offline struct {
	MaxEntries int            `yaml:"maxEntries"`
	Routes     []OfflineRoute `yaml:"routes"`
}

// App describes the installable application itself
type App struct {
	Name            string `yaml:"name"`
	ShortName       string `yaml:"shortName"`
	Description     string `yaml:"description"`
	ThemeColor      string `yaml:"themeColor"`
	BackgroundColor string `yaml:"backgroundColor"`
	IconSizes       []int  `yaml:"iconSizes"`
}

type ServiceConfig struct {
	Port       int            `yaml:"port"`
	Logging    logging.Config `yaml:"logging"`
	Database   Database       `yaml:"database"`
	Upload     Upload         `yaml:"upload"`
	Generation Generation     `yaml:"generation"`
	Offline    Offline        `yaml:"offline"`
	App        App            `yaml:"app"`
	SessionTTL time.Duration  `yaml:"sessionTTL"`
}

// DefaultSizes are the icon sizes offered when nothing was saved
var DefaultSizes = []int{16, 32, 48, 72, 96, 128, 144, 152, 192, 384, 512}

// DefaultConfig returns the configuration used for every field a config file leaves out
func DefaultConfig() *ServiceConfig {
	masterSize := 512
	return &ServiceConfig{
		Port:     8080,
		Logging:  logging.Config{Level: "info", Format: "text"},
		Database: Database{Type: "sqlite", ConnectionString: ":memory:"},
		Upload: Upload{
			MaxFileSizeMB: input.DefaultMaxFileSizeMB,
			AllowedTypes:  append([]string(nil), input.DefaultAllowedTypes...),
		},
		Generation: Generation{
			MasterSize:       masterSize,
			DefaultSizes:     append([]int(nil), DefaultSizes...),
			DefaultFormat:    string(icons.FormatPNG),
			JPEGQuality:      0.9,
			SlowRunThreshold: 5 * time.Second,
			ArchiveName:      "PWA Icons",
			Text: TextDefaults{
				Family:     textraster.DefaultFamily,
				Weight:     700,
				Foreground: "#ffffff",
				Background: "#1e293b",
			},
			MasterCommands: []commandstructure.CommandConfig{
				{Name: "PngConverterCommand", Params: map[string]any{}},
				{Name: "ScaleCommand", Params: map[string]any{"size": masterSize, "fit": "contain"}},
			},
		},
		Offline: Offline{
			MaxEntries: offline.DefaultMaxEntries,
			Routes: []OfflineRoute{
				{Path: "/", Strategy: string(offline.NetworkFirst)},
				{Path: "/index.html", Strategy: string(offline.NetworkFirst)},
				{Path: "/manifest.webmanifest", Strategy: string(offline.StaleWhileRevalidate)},
				{Path: "/icon.svg", Strategy: string(offline.CacheFirst)},
				{Path: "/app-icons/", Prefix: true, Strategy: string(offline.CacheFirst)},
			},
		},
		App: App{
			Name:            "PWA Icon Generator",
			ShortName:       "Icons",
			Description:     "Generate PWA icon sets from an image or a few letters",
			ThemeColor:      "#1e293b",
			BackgroundColor: "#ffffff",
			IconSizes:       []int{72, 96, 128, 144, 152, 192, 384, 512},
		},
		SessionTTL: 24 * time.Hour,
	}
}

// LoadConfig reads the YAML file at configPath over the defaults.
// A missing file yields the defaults.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("Config: no config file found, using defaults", "path", configPath)
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}
	return config, nil
}

// Validate checks ranges, formats, strategies and the master command list
func (c *ServiceConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be within 1..65535, got %d", c.Port)
	}
	if c.Upload.MaxFileSizeMB <= 0 {
		return fmt.Errorf("upload.maxFileSizeMB must be positive, got %d", c.Upload.MaxFileSizeMB)
	}
	if len(c.Upload.AllowedTypes) == 0 {
		return fmt.Errorf("upload.allowedTypes must not be empty")
	}

	g := c.Generation
	if g.MasterSize <= 0 {
		return fmt.Errorf("generation.masterSize must be positive, got %d", g.MasterSize)
	}
	if err := input.ValidateSizes(g.DefaultSizes); err != nil {
		return fmt.Errorf("generation.defaultSizes: %w", err)
	}
	if _, err := icons.ParseFormat(g.DefaultFormat); err != nil {
		return fmt.Errorf("generation.defaultFormat: %w", err)
	}
	if g.JPEGQuality <= 0 || g.JPEGQuality > 100 {
		return fmt.Errorf("generation.jpegQuality must be within (0, 100], got %v", g.JPEGQuality)
	}
	if g.SlowRunThreshold < 0 {
		return fmt.Errorf("generation.slowRunThreshold must not be negative")
	}
	for name, value := range map[string]string{"foreground": g.Text.Foreground, "background": g.Text.Background} {
		if _, err := textraster.ParseHexColor(value); err != nil {
			return fmt.Errorf("generation.text.%s: %w", name, err)
		}
	}
	if err := validateCommands(g.MasterCommands); err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	for i, route := range c.Offline.Routes {
		if route.Path == "" {
			return fmt.Errorf("offline route at index %d has empty path", i)
		}
		if _, err := offline.ParseStrategy(route.Strategy); err != nil {
			return fmt.Errorf("offline route %s: %w", route.Path, err)
		}
	}

	for _, size := range c.App.IconSizes {
		if size <= 0 {
			return fmt.Errorf("app.iconSizes must be positive, got %d", size)
		}
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("sessionTTL must be positive")
	}
	return nil
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []commandstructure.CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}
		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true

		if !commandstructure.DefaultRegistry.IsRegistered(cmd.Name) {
			return fmt.Errorf("unknown command: %s", cmd.Name)
		}
	}

	return nil
}

// OfflineRoutes converts the configured routes for the cache middleware
func (c *ServiceConfig) OfflineRoutes() []offline.Route {
	routes := make([]offline.Route, 0, len(c.Offline.Routes))
	for _, r := range c.Offline.Routes {
		strategy, err := offline.ParseStrategy(r.Strategy)
		if err != nil {
			continue
		}
		routes = append(routes, offline.Route{Path: r.Path, Prefix: r.Prefix, Strategy: strategy})
	}
	return routes
}
