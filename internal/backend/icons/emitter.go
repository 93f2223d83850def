package icons

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/jo-hoe/iconforge/internal/backend/commandstructure"
	"github.com/jo-hoe/iconforge/internal/metrics"

	// registers the image commands in commandstructure.DefaultRegistry
	_ "github.com/jo-hoe/iconforge/internal/backend/commands"
)

// ErrProcessingFailed is returned when any artifact of a run could not be produced
var ErrProcessingFailed = errors.New("failed to process image")

// EmitterOptions configures an Emitter
type EmitterOptions struct {
	// Quality for lossy formats, either a fraction in (0, 1] or a percentage
	Quality float64
	// SlowRunThreshold is advisory; slower runs are only logged
	SlowRunThreshold time.Duration
	Registry         *commandstructure.CommandRegistry
}

// Emitter scales a master image into every requested size and encodes each one
type Emitter struct {
	quality          float64
	slowRunThreshold time.Duration
	registry         *commandstructure.CommandRegistry
	now              func() time.Time
}

// NewEmitter creates an emitter. A nil registry uses commandstructure.DefaultRegistry.
func NewEmitter(opts EmitterOptions) *Emitter {
	registry := opts.Registry
	if registry == nil {
		registry = commandstructure.DefaultRegistry
	}
	quality := opts.Quality
	if quality <= 0 {
		quality = 0.9
	}
	return &Emitter{
		quality:          quality,
		slowRunThreshold: opts.SlowRunThreshold,
		registry:         registry,
		now:              time.Now,
	}
}

// pipelineFor returns the command configs producing one icon of the given size
func (e *Emitter) pipelineFor(size int, format Format) []commandstructure.CommandConfig {
	return []commandstructure.CommandConfig{
		{Name: "ScaleCommand", Params: map[string]any{"size": size}},
		{Name: "EncodeCommand", Params: map[string]any{"format": string(format), "quality": e.quality}},
	}
}

// Emit produces one icon per requested size, in the given order and without deduplication.
// Any failure aborts the whole run; no partial result is returned.
func (e *Emitter) Emit(master *MasterImage, sizes []int, format Format) ([]GeneratedIcon, error) {
	if master == nil || len(master.Data) == 0 {
		return nil, fmt.Errorf("%w: no master image", ErrProcessingFailed)
	}

	start := e.now()
	result, err := e.emit(master, sizes, format)
	elapsed := e.now().Sub(start)
	metrics.RecordGeneration(string(master.SourceType), string(format), len(result), elapsed, err)

	if err != nil {
		slog.Error("Emitter: generation failed", "source_type", master.SourceType, "format", format, "error", err)
		return nil, err
	}
	if e.slowRunThreshold > 0 && elapsed > e.slowRunThreshold {
		slog.Warn("Emitter: generation exceeded advisory threshold",
			"elapsed", elapsed, "threshold", e.slowRunThreshold, "icons", len(result))
	}
	slog.Debug("Emitter: generation complete", "icons", len(result), "format", format, "elapsed", elapsed)
	return result, nil
}

func (e *Emitter) emit(master *MasterImage, sizes []int, format Format) ([]GeneratedIcon, error) {
	result := make([]GeneratedIcon, 0, len(sizes))
	for i, size := range sizes {
		data, err := commandstructure.ExecuteCommands(e.registry, master.Data, e.pipelineFor(size, format))
		if err != nil {
			return nil, fmt.Errorf("%w: size %d: %w", ErrProcessingFailed, size, err)
		}

		result = append(result, GeneratedIcon{
			Size:         size,
			Format:       format,
			EncodedImage: EncodeDataURL(format.MIMEType(), data),
			SourceType:   master.SourceType,
			CreatedAt:    e.now(),
			Filename:     Filename(size, format),
		})

		if i < len(sizes)-1 {
			runtime.Gosched()
		}
	}
	return result, nil
}
