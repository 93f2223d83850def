package frontend

import (
	"bytes"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/jo-hoe/iconforge/internal/backend/icons"
	"github.com/jo-hoe/iconforge/internal/backend/input"
	"github.com/jo-hoe/iconforge/internal/backend/offline"
	"github.com/jo-hoe/iconforge/internal/backend/packager"
	"github.com/jo-hoe/iconforge/internal/common"
	"github.com/jo-hoe/iconforge/internal/core"
	"github.com/labstack/echo/v4"
)

const (
	MainPageName = "index.html"
	mimePNG      = "image/png"
	// previewMaxSize caps how large an icon is drawn in the preview grid
	previewMaxSize = 128
)

type FrontendService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
	bridge      *offline.Bridge
	appIcons    *appIconRenderer
}

type option[T comparable] struct {
	Value    T
	Selected bool
}

type indexView struct {
	App           core.App
	Sizes         []option[int]
	Formats       []option[string]
	Families      []string
	Weights       []int
	Text          core.TextDefaults
	Accept        string
	MaxFileSizeMB int
	MaxTextLength int
}

type previewIcon struct {
	Filename    string
	Size        int
	Src         template.URL
	DisplaySize int
}

type previewView struct {
	Icons     []previewIcon
	Format    icons.Format
	FontSize  float64
	ElapsedMS int64
}

type toastView struct {
	Kind    string
	Message string
}

func NewFrontendService(config *core.ServiceConfig, coreService *core.CoreService) *FrontendService {
	svg, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		// embedded at build time
		panic(err)
	}
	return &FrontendService{
		coreService: coreService,
		config:      config,
		bridge:      offline.NewBridge(coreService.Worker()),
		appIcons:    newAppIconRenderer(svg, config.App.IconSizes),
	}
}

// rootRedirectHandler redirects root path to index.html
func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusMovedPermanently, "/"+MainPageName)
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = newTemplate()

	e.GET("/", service.rootRedirectHandler) // Redirect root to index.html
	e.GET("/"+MainPageName, service.indexHandler)
	e.POST("/htmx/generate/upload", service.htmxGenerateUploadHandler)
	e.POST("/htmx/generate/text", service.htmxGenerateTextHandler)

	// Self-install surface
	e.GET("/manifest.webmanifest", service.webManifestHandler)
	e.GET("/icon.svg", service.iconHandler)
	e.GET("/app-icons/:file", service.appIconHandler)

	// Offline worker
	e.GET(offline.IconPathPrefix+":filename", service.bridge.ServeCachedIcon)
	e.GET("/ws/worker", service.bridge.Handle)
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	settings := service.coreService.LoadSettings(ctx.Request().Context())
	generation := service.config.Generation

	sizes := slices.Clone(generation.DefaultSizes)
	for _, size := range settings.SelectedSizes {
		if !slices.Contains(sizes, size) {
			sizes = append(sizes, size)
		}
	}
	slices.Sort(sizes)

	view := indexView{
		App:           service.config.App,
		Families:      service.coreService.FontFamilies(),
		Weights:       []int{100, 200, 300, 400, 500, 600, 700, 800, 900},
		Text:          generation.Text,
		Accept:        strings.Join(service.config.Upload.AllowedTypes, ","),
		MaxFileSizeMB: service.config.Upload.MaxFileSizeMB,
		MaxTextLength: input.MaxTextLength,
	}
	for _, size := range sizes {
		view.Sizes = append(view.Sizes, option[int]{Value: size, Selected: slices.Contains(settings.SelectedSizes, size)})
	}
	for _, format := range icons.Formats {
		view.Formats = append(view.Formats, option[string]{Value: string(format), Selected: string(format) == settings.OutputFormat})
	}

	return ctx.Render(http.StatusOK, MainPageName, view)
}

func (service *FrontendService) htmxGenerateUploadHandler(ctx echo.Context) error {
	upload, err := common.ReadUpload(ctx, "image", int64(service.config.Upload.MaxFileSizeMB)*1024*1024)
	if err != nil {
		slog.Error("htmxGenerateUploadHandler: failed to read uploaded file",
			"status", http.StatusBadRequest, "error", err)
		return service.toast(ctx, "Failed to get uploaded file")
	}

	sizes, err := formSizes(ctx)
	if err != nil {
		return service.errorToast(ctx, "htmxGenerateUploadHandler", err)
	}

	session := common.ResolveSession(ctx, service.coreService.Sessions(), service.config.SessionTTL)
	result, err := service.coreService.GenerateFromUpload(ctx.Request().Context(), session, core.UploadRequest{
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		Data:        upload.Data,
		Sizes:       sizes,
		Format:      ctx.FormValue("format"),
	})
	if err != nil {
		return service.errorToast(ctx, "htmxGenerateUploadHandler", err)
	}
	return service.renderPreview(ctx, result)
}

func (service *FrontendService) htmxGenerateTextHandler(ctx echo.Context) error {
	sizes, err := formSizes(ctx)
	if err != nil {
		return service.errorToast(ctx, "htmxGenerateTextHandler", err)
	}

	weight := 0
	if raw := ctx.FormValue("weight"); raw != "" {
		if weight, err = strconv.Atoi(raw); err != nil {
			return service.errorToast(ctx, "htmxGenerateTextHandler",
				&input.ValidationError{Field: "weight", Message: "Font weight must be a number"})
		}
	}

	session := common.ResolveSession(ctx, service.coreService.Sessions(), service.config.SessionTTL)
	result, err := service.coreService.GenerateFromText(ctx.Request().Context(), session, core.TextRequest{
		Text:       ctx.FormValue("text"),
		Family:     ctx.FormValue("family"),
		Weight:     weight,
		Italic:     ctx.FormValue("italic") == "true",
		Foreground: ctx.FormValue("foreground"),
		Background: ctx.FormValue("background"),
		Sizes:      sizes,
		Format:     ctx.FormValue("format"),
	})
	if err != nil {
		return service.errorToast(ctx, "htmxGenerateTextHandler", err)
	}
	return service.renderPreview(ctx, result)
}

func (service *FrontendService) renderPreview(ctx echo.Context, result *core.GenerationResult) error {
	view := previewView{
		Format:    result.Format,
		FontSize:  result.FontSize,
		ElapsedMS: result.Elapsed.Milliseconds(),
	}
	for _, icon := range result.Icons {
		view.Icons = append(view.Icons, previewIcon{
			Filename: icon.Filename,
			Size:     icon.Size,
			// generated by the emitter, never user supplied
			Src:         template.URL(icon.EncodedImage),
			DisplaySize: min(icon.Size, previewMaxSize),
		})
	}

	common.SetNoCache(ctx)
	return ctx.Render(http.StatusOK, "preview", view)
}

// errorToast logs err and shows its user message as a toast
func (service *FrontendService) errorToast(ctx echo.Context, handler string, err error) error {
	status, message := common.ErrorStatus(err, icons.ErrProcessingFailed.Error())
	if status >= http.StatusInternalServerError {
		slog.Error(handler+": generation failed", "status", status, "error", err)
	} else {
		slog.Debug(handler+": input rejected", "status", status, "error", err)
	}
	return service.toast(ctx, message)
}

// toast retargets the htmx swap to the notification area
func (service *FrontendService) toast(ctx echo.Context, message string) error {
	ctx.Response().Header().Set("HX-Retarget", "#toast")
	ctx.Response().Header().Set("HX-Reswap", "innerHTML")
	common.SetNoCache(ctx)
	return ctx.Render(http.StatusOK, "toast", toastView{Kind: "error", Message: message})
}

func (service *FrontendService) webManifestHandler(ctx echo.Context) error {
	manifest := packager.NewWebAppManifest(service.coreService.AppInfo())
	for _, size := range service.config.App.IconSizes {
		manifest.AddIcon("/app-icons/"+appIconFilename(size), size, mimePNG)
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(manifest); err != nil {
		slog.Error("webManifestHandler: failed to encode manifest", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to build manifest")
	}
	return ctx.Blob(http.StatusOK, "application/manifest+json", buf.Bytes())
}

func (service *FrontendService) appIconHandler(ctx echo.Context) error {
	size, ok := parseAppIconFilename(ctx.Param("file"))
	if !ok {
		return ctx.String(http.StatusNotFound, "Icon not found")
	}
	data, err := service.appIcons.render(size)
	if err != nil {
		slog.Warn("appIconHandler: app icon not available",
			"status", http.StatusNotFound, "size", size, "error", err)
		return ctx.String(http.StatusNotFound, "Icon not found")
	}
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, mimePNG, data)
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}

// formSizes reads the comma separated sizes field; empty means saved settings apply
func formSizes(ctx echo.Context) ([]int, error) {
	raw := strings.TrimSpace(ctx.FormValue("sizes"))
	if raw == "" {
		return nil, nil
	}
	return input.ParseSizes(raw)
}
