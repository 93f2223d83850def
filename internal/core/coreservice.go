package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"time"

	"github.com/jo-hoe/iconforge/internal/backend/commandstructure"
	"github.com/jo-hoe/iconforge/internal/backend/database"
	"github.com/jo-hoe/iconforge/internal/backend/icons"
	"github.com/jo-hoe/iconforge/internal/backend/input"
	"github.com/jo-hoe/iconforge/internal/backend/offline"
	"github.com/jo-hoe/iconforge/internal/backend/packager"
	"github.com/jo-hoe/iconforge/internal/backend/textraster"
	"github.com/jo-hoe/iconforge/internal/metrics"
)

// IconRecordsSyncTag is the background sync that persists icon records
const IconRecordsSyncTag = "icon-records"

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	filePolicy      input.FilePolicy
	fonts           *textraster.FontLibrary
	rasterizer      *textraster.Rasterizer
	emitter         *icons.Emitter
	registry        *commandstructure.CommandRegistry
	sessions        *SessionStore
	worker          *offline.Worker
	stopPruning     context.CancelFunc
	now             func() time.Time
}

// UploadRequest is a bitmap to turn into icons
type UploadRequest struct {
	Filename    string
	ContentType string
	Data        []byte
	Sizes       []int
	Format      string
}

// TextRequest is a short text to turn into icons. Empty style fields use the configured defaults.
type TextRequest struct {
	Text       string
	Family     string
	Weight     int
	Italic     bool
	Foreground string
	Background string
	Sizes      []int
	Format     string
}

// GenerationResult describes a completed run
type GenerationResult struct {
	Icons      []icons.GeneratedIcon
	Format     icons.Format
	Sizes      []int
	SourceType icons.SourceType
	// FontSize is set for text runs
	FontSize float64
	Elapsed  time.Duration
}

// NewCoreService wires the store, fonts, emitter and offline worker.
// A store that cannot be initialised degrades to the no-op store.
func NewCoreService(ctx context.Context, config *ServiceConfig) (*CoreService, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	registry := commandstructure.DefaultRegistry
	if _, err := registry.Build(config.Generation.MasterCommands); err != nil {
		return nil, fmt.Errorf("invalid master commands: %w", err)
	}

	fonts := textraster.NewFontLibrary(config.Generation.FontsDir)
	if err := fonts.Ready(); err != nil {
		return nil, fmt.Errorf("failed to load fonts: %w", err)
	}

	pruneCtx, cancel := context.WithCancel(ctx)
	service := &CoreService{
		config:          config,
		databaseService: getDatabaseService(ctx, config),
		filePolicy:      input.NewFilePolicy(config.Upload.MaxFileSizeMB, config.Upload.AllowedTypes),
		fonts:           fonts,
		rasterizer:      textraster.NewRasterizer(fonts, config.Generation.MasterSize),
		emitter: icons.NewEmitter(icons.EmitterOptions{
			Quality:          config.Generation.JPEGQuality,
			SlowRunThreshold: config.Generation.SlowRunThreshold,
			Registry:         registry,
		}),
		registry:    registry,
		sessions:    NewSessionStore(config.SessionTTL),
		worker:      offline.NewWorker(ctx, config.Offline.MaxEntries),
		stopPruning: cancel,
		now:         time.Now,
	}

	if err := service.worker.RegisterSync(IconRecordsSyncTag, service.syncIconRecords); err != nil {
		_ = service.Close()
		return nil, err
	}
	go service.pruneSessions(pruneCtx)

	return service, nil
}

func getDatabaseService(ctx context.Context, config *ServiceConfig) database.DatabaseService {
	databaseService, err := database.NewDatabase(ctx, config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		slog.Warn("CoreService: database unavailable, continuing without persistence",
			"type", config.Database.Type, "error", err)
		return database.NewNoopDatabase()
	}
	slog.Info("CoreService: database initialized successfully", "type", config.Database.Type)
	return databaseService
}

func (s *CoreService) Config() *ServiceConfig {
	return s.config
}

func (s *CoreService) Sessions() *SessionStore {
	return s.sessions
}

func (s *CoreService) Worker() *offline.Worker {
	return s.worker
}

// FontFamilies lists the families a text request may ask for
func (s *CoreService) FontFamilies() []string {
	return s.fonts.Families()
}

// GenerateFromUpload validates the file, normalizes it into the master image and emits every size
func (s *CoreService) GenerateFromUpload(ctx context.Context, session *Session, req UploadRequest) (*GenerationResult, error) {
	mimeType, err := s.filePolicy.ValidateFile(req.ContentType, req.Data)
	if err != nil {
		return nil, s.rejected(err)
	}
	sizes, format, err := s.resolveOptions(ctx, req.Sizes, req.Format)
	if err != nil {
		return nil, s.rejected(err)
	}

	start := s.now()
	masterData, err := commandstructure.ExecuteCommands(s.registry, req.Data, s.config.Generation.MasterCommands)
	if err != nil {
		slog.Error("CoreService: failed to normalize upload", "filename", req.Filename, "mime_type", mimeType, "error", err)
		return nil, fmt.Errorf("%w: %w", icons.ErrProcessingFailed, err)
	}

	master := &icons.MasterImage{
		Data:       masterData,
		Size:       s.config.Generation.MasterSize,
		SourceType: icons.SourceUpload,
		CreatedAt:  s.now(),
	}
	return s.emit(session, master, sizes, format, start, 0)
}

// GenerateFromText validates the text, rasterizes it into the master image and emits every size
func (s *CoreService) GenerateFromText(ctx context.Context, session *Session, req TextRequest) (*GenerationResult, error) {
	text, err := input.ValidateText(req.Text)
	if err != nil {
		return nil, s.rejected(err)
	}
	style, err := s.textStyle(req)
	if err != nil {
		return nil, s.rejected(err)
	}
	sizes, format, err := s.resolveOptions(ctx, req.Sizes, req.Format)
	if err != nil {
		return nil, s.rejected(err)
	}

	start := s.now()
	rendered, err := s.rasterizer.Render(text, style)
	if err != nil {
		if _, ok := input.AsValidationError(err); ok {
			return nil, s.rejected(err)
		}
		slog.Error("CoreService: failed to rasterize text", "error", err)
		return nil, fmt.Errorf("%w: %w", icons.ErrProcessingFailed, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, rendered.Image); err != nil {
		return nil, fmt.Errorf("%w: %w", icons.ErrProcessingFailed, err)
	}

	master := &icons.MasterImage{
		Data:       buf.Bytes(),
		Size:       s.config.Generation.MasterSize,
		SourceType: icons.SourceText,
		CreatedAt:  s.now(),
	}
	return s.emit(session, master, sizes, format, start, rendered.FontSize)
}

func (s *CoreService) emit(session *Session, master *icons.MasterImage, sizes []int, format icons.Format, start time.Time, fontSize float64) (*GenerationResult, error) {
	list, err := s.emitter.Emit(master, sizes, format)
	if err != nil {
		return nil, err
	}
	session.replace(master, list)
	s.queueIconRecords(list)

	return &GenerationResult{
		Icons:      list,
		Format:     format,
		Sizes:      sizes,
		SourceType: master.SourceType,
		FontSize:   fontSize,
		Elapsed:    s.now().Sub(start),
	}, nil
}

func (s *CoreService) textStyle(req TextRequest) (textraster.Style, error) {
	defaults := s.config.Generation.Text
	style := textraster.Style{
		Family: firstNonEmpty(req.Family, defaults.Family),
		Weight: req.Weight,
		Italic: req.Italic,
	}
	if style.Weight == 0 {
		style.Weight = defaults.Weight
	}

	var err error
	if style.Foreground, err = textraster.ParseHexColor(firstNonEmpty(req.Foreground, defaults.Foreground)); err != nil {
		return style, err
	}
	if style.Background, err = textraster.ParseHexColor(firstNonEmpty(req.Background, defaults.Background)); err != nil {
		return style, err
	}
	return style, nil
}

// resolveOptions fills empty sizes or format from the saved settings, then from the config
func (s *CoreService) resolveOptions(ctx context.Context, sizes []int, format string) ([]int, icons.Format, error) {
	if len(sizes) == 0 || format == "" {
		settings := s.LoadSettings(ctx)
		if len(sizes) == 0 {
			sizes = settings.SelectedSizes
		}
		if format == "" {
			format = settings.OutputFormat
		}
	}

	if err := input.ValidateSizes(sizes); err != nil {
		return nil, "", err
	}
	parsed, err := icons.ParseFormat(format)
	if err != nil {
		return nil, "", err
	}
	return sizes, parsed, nil
}

func (s *CoreService) rejected(err error) error {
	if verr, ok := input.AsValidationError(err); ok {
		metrics.ValidationRejections.WithLabelValues(verr.Field).Inc()
		slog.Debug("CoreService: input rejected", "field", verr.Field, "reason", verr.Message)
	}
	return err
}

// GetIcons returns the icons of the session's latest run
func (s *CoreService) GetIcons(session *Session) []icons.GeneratedIcon {
	return session.Icons()
}

// GetIcon returns one decoded icon of the session's latest run
func (s *CoreService) GetIcon(session *Session, filename string) (*packager.Artifact, error) {
	return packager.FindArtifact(session.Icons(), filename)
}

// BuildArchive zips the session's latest run. An empty password leaves the archive unencrypted.
func (s *CoreService) BuildArchive(session *Session, password string) (*packager.Archive, error) {
	archive, err := packager.BuildArchive(session.Icons(), packager.ArchiveOptions{
		Name:        s.config.Generation.ArchiveName,
		Password:    password,
		GeneratedAt: s.now(),
	})
	metrics.RecordArchive(err)
	if err != nil && !errors.Is(err, packager.ErrNoIcons) {
		slog.Error("CoreService: failed to build archive", "session", session.ID, "error", err)
	}
	return archive, err
}

// BuildManifest returns the web app manifest listing the session's icons
func (s *CoreService) BuildManifest(session *Session) (*packager.WebAppManifest, error) {
	list := session.Icons()
	if len(list) == 0 {
		return nil, packager.ErrNoIcons
	}
	manifest := packager.BuildWebAppManifest(list, s.AppInfo())
	return &manifest, nil
}

// AppInfo returns the descriptive manifest fields of the application
func (s *CoreService) AppInfo() packager.AppInfo {
	app := s.config.App
	return packager.AppInfo{
		Name:            app.Name,
		ShortName:       app.ShortName,
		Description:     app.Description,
		StartURL:        "/",
		Display:         "standalone",
		ThemeColor:      app.ThemeColor,
		BackgroundColor: app.BackgroundColor,
	}
}

// SaveSettings validates and stores the selected sizes and format.
// Store failures are logged; the validated settings are returned either way.
func (s *CoreService) SaveSettings(ctx context.Context, sizes []int, format string) (*database.Settings, error) {
	if err := input.ValidateSizes(sizes); err != nil {
		return nil, s.rejected(err)
	}
	parsed, err := icons.ParseFormat(format)
	if err != nil {
		return nil, s.rejected(err)
	}

	settings := &database.Settings{
		SelectedSizes: sizes,
		OutputFormat:  string(parsed),
		Timestamp:     s.now(),
	}
	err = s.databaseService.SaveSettings(ctx, settings)
	metrics.RecordDatabaseOperation("save_settings", err)
	if err != nil {
		slog.Warn("CoreService: failed to save settings", "error", err)
	}
	return settings, nil
}

// LoadSettings returns the saved settings, or the configured defaults
func (s *CoreService) LoadSettings(ctx context.Context) *database.Settings {
	settings, err := s.databaseService.LoadSettings(ctx)
	if err == nil && settings != nil {
		metrics.RecordDatabaseOperation("load_settings", nil)
		if len(settings.SelectedSizes) == 0 {
			settings.SelectedSizes = append([]int(nil), s.config.Generation.DefaultSizes...)
		}
		if settings.OutputFormat == "" {
			settings.OutputFormat = s.config.Generation.DefaultFormat
		}
		return settings
	}
	if !errors.Is(err, database.ErrNotFound) {
		metrics.RecordDatabaseOperation("load_settings", err)
		slog.Warn("CoreService: failed to load settings, using defaults", "error", err)
	}
	return &database.Settings{
		SelectedSizes: append([]int(nil), s.config.Generation.DefaultSizes...),
		OutputFormat:  s.config.Generation.DefaultFormat,
	}
}

// GetIconHistory lists stored icon records, newest first
func (s *CoreService) GetIconHistory(ctx context.Context, sourceType string, limit int) ([]*database.IconRecord, error) {
	if sourceType != "" && sourceType != string(icons.SourceUpload) && sourceType != string(icons.SourceText) {
		return nil, s.rejected(&input.ValidationError{Field: "type", Message: fmt.Sprintf("Unknown source type %q", sourceType)})
	}
	records, err := s.databaseService.GetIconRecords(ctx, sourceType, limit)
	metrics.RecordDatabaseOperation("get_icon_records", err)
	if err != nil {
		return nil, fmt.Errorf("failed to load icon history: %w", err)
	}
	return records, nil
}

// queueIconRecords hands the run to the worker so generation does not wait on storage
func (s *CoreService) queueIconRecords(list []icons.GeneratedIcon) {
	records := make([]database.IconRecord, 0, len(list))
	for _, icon := range list {
		records = append(records, database.IconRecord{
			Filename:   icon.Filename,
			Size:       icon.Size,
			Format:     string(icon.Format),
			SourceType: string(icon.SourceType),
			Preview:    database.TruncatePreview(icon.EncodedImage),
			CreatedAt:  icon.CreatedAt,
		})
	}
	if err := s.worker.RequestSync(IconRecordsSyncTag, records); err != nil {
		slog.Warn("CoreService: could not queue icon records", "error", err)
	}
}

func (s *CoreService) syncIconRecords(ctx context.Context, payload any) error {
	records, ok := payload.([]database.IconRecord)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", payload, IconRecordsSyncTag)
	}
	for i := range records {
		_, err := s.databaseService.AddIconRecord(ctx, &records[i])
		metrics.RecordDatabaseOperation("add_icon_record", err)
		if err != nil {
			return fmt.Errorf("failed to store icon record %s: %w", records[i].Filename, err)
		}
	}
	slog.Debug("CoreService: icon records stored", "count", len(records))
	return nil
}

func (s *CoreService) pruneSessions(ctx context.Context) {
	interval := max(s.config.SessionTTL/2, time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.sessions.Prune(); removed > 0 {
				slog.Debug("CoreService: pruned idle sessions", "removed", removed)
			}
		}
	}
}

// Close stops the worker and releases the store
func (s *CoreService) Close() error {
	s.stopPruning()
	s.worker.Stop()
	if s.databaseService != nil {
		return s.databaseService.Close()
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
