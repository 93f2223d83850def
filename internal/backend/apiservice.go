package backend

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jo-hoe/iconforge/internal/backend/database"
	"github.com/jo-hoe/iconforge/internal/backend/icons"
	"github.com/jo-hoe/iconforge/internal/backend/input"
	"github.com/jo-hoe/iconforge/internal/common"
	"github.com/jo-hoe/iconforge/internal/core"
	"github.com/labstack/echo/v4"
)

const defaultHistoryLimit = 50

// APIService exposes generation, packaging and settings as JSON
type APIService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
}

type TextIconsRequest struct {
	Text       string `json:"text"`
	Family     string `json:"family"`
	Weight     int    `json:"weight" validate:"omitempty,min=1,max=1000"`
	Italic     bool   `json:"italic"`
	Foreground string `json:"foreground"`
	Background string `json:"background"`
	Sizes      []int  `json:"sizes"`
	Format     string `json:"format"`
}

type SettingsRequest struct {
	SelectedSizes []int  `json:"selectedSizes" validate:"required,min=1"`
	OutputFormat  string `json:"outputFormat" validate:"required"`
}

type IconsResponse struct {
	Icons      []icons.GeneratedIcon `json:"icons"`
	Format     icons.Format          `json:"format,omitempty"`
	Sizes      []int                 `json:"sizes,omitempty"`
	SourceType icons.SourceType      `json:"sourceType,omitempty"`
	FontSize   float64               `json:"fontSize,omitempty"`
	ElapsedMS  int64                 `json:"elapsedMs,omitempty"`
}

type SettingsResponse struct {
	SelectedSizes []int     `json:"selectedSizes"`
	OutputFormat  string    `json:"outputFormat"`
	Timestamp     time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService) *APIService {
	return &APIService{
		coreService: coreService,
		config:      config,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	api := e.Group("/api", noCache)

	api.POST("/icons/upload", s.uploadIconsHandler)
	api.POST("/icons/text", s.textIconsHandler)
	api.GET("/icons", s.listIconsHandler)
	api.GET("/icons/archive", s.archiveHandler)
	api.GET("/icons/manifest", s.manifestHandler)
	api.GET("/icons/:filename", s.iconHandler)

	api.GET("/settings", s.getSettingsHandler)
	api.PUT("/settings", s.putSettingsHandler)
	api.GET("/history", s.historyHandler)
}

func noCache(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		common.SetNoCache(c)
		return next(c)
	}
}

func (s *APIService) session(c echo.Context) *core.Session {
	return common.ResolveSession(c, s.coreService.Sessions(), s.config.SessionTTL)
}

// errorJSON logs server side failures and answers with the user message
func (s *APIService) errorJSON(c echo.Context, handler string, err error, fallback string) error {
	status, message := common.ErrorStatus(err, fallback)
	if status >= http.StatusInternalServerError {
		slog.Error(handler+": request failed", "status", status, "error", err)
	} else {
		slog.Debug(handler+": request rejected", "status", status, "error", err)
	}
	return c.JSON(status, ErrorResponse{Error: message})
}

func (s *APIService) uploadIconsHandler(c echo.Context) error {
	upload, err := common.ReadUpload(c, "image", int64(s.config.Upload.MaxFileSizeMB)*1024*1024)
	if err != nil {
		return s.errorJSON(c, "uploadIconsHandler", echo.NewHTTPError(http.StatusBadRequest, "Failed to get uploaded file"), "")
	}

	sizes, err := parseSizesParam(c.FormValue("sizes"))
	if err != nil {
		return s.errorJSON(c, "uploadIconsHandler", err, "")
	}

	result, err := s.coreService.GenerateFromUpload(c.Request().Context(), s.session(c), core.UploadRequest{
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		Data:        upload.Data,
		Sizes:       sizes,
		Format:      c.FormValue("format"),
	})
	if err != nil {
		return s.errorJSON(c, "uploadIconsHandler", err, icons.ErrProcessingFailed.Error())
	}
	return c.JSON(http.StatusOK, toIconsResponse(result))
}

func (s *APIService) textIconsHandler(c echo.Context) error {
	var req TextIconsRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		return s.errorJSON(c, "textIconsHandler", err, "")
	}

	result, err := s.coreService.GenerateFromText(c.Request().Context(), s.session(c), core.TextRequest{
		Text:       req.Text,
		Family:     req.Family,
		Weight:     req.Weight,
		Italic:     req.Italic,
		Foreground: req.Foreground,
		Background: req.Background,
		Sizes:      req.Sizes,
		Format:     req.Format,
	})
	if err != nil {
		return s.errorJSON(c, "textIconsHandler", err, icons.ErrProcessingFailed.Error())
	}
	return c.JSON(http.StatusOK, toIconsResponse(result))
}

func (s *APIService) listIconsHandler(c echo.Context) error {
	list := s.coreService.GetIcons(s.session(c))
	return c.JSON(http.StatusOK, IconsResponse{Icons: list})
}

func (s *APIService) archiveHandler(c echo.Context) error {
	archive, err := s.coreService.BuildArchive(s.session(c), c.QueryParam("password"))
	if err != nil {
		return s.errorJSON(c, "archiveHandler", err, "failed to build archive")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", archive.Filename))
	return c.Blob(http.StatusOK, "application/zip", archive.Data)
}

func (s *APIService) manifestHandler(c echo.Context) error {
	manifest, err := s.coreService.BuildManifest(s.session(c))
	if err != nil {
		return s.errorJSON(c, "manifestHandler", err, "failed to build manifest")
	}
	return c.JSON(http.StatusOK, manifest)
}

func (s *APIService) iconHandler(c echo.Context) error {
	artifact, err := s.coreService.GetIcon(s.session(c), c.Param("filename"))
	if err != nil {
		return s.errorJSON(c, "iconHandler", err, icons.ErrProcessingFailed.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	return c.Blob(http.StatusOK, artifact.ContentType, artifact.Data)
}

func (s *APIService) getSettingsHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, toSettingsResponse(s.coreService.LoadSettings(c.Request().Context())))
}

func (s *APIService) putSettingsHandler(c echo.Context) error {
	var req SettingsRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		return s.errorJSON(c, "putSettingsHandler", err, "")
	}

	settings, err := s.coreService.SaveSettings(c.Request().Context(), req.SelectedSizes, req.OutputFormat)
	if err != nil {
		return s.errorJSON(c, "putSettingsHandler", err, "failed to save settings")
	}
	return c.JSON(http.StatusOK, toSettingsResponse(settings))
}

func (s *APIService) historyHandler(c echo.Context) error {
	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return s.errorJSON(c, "historyHandler", &input.ValidationError{Field: "limit", Message: "Limit must be a non-negative number"}, "")
		}
		limit = parsed
	}

	records, err := s.coreService.GetIconHistory(c.Request().Context(), c.QueryParam("type"), limit)
	if err != nil {
		return s.errorJSON(c, "historyHandler", err, "failed to load icon history")
	}
	if records == nil {
		records = []*database.IconRecord{}
	}
	return c.JSON(http.StatusOK, records)
}

// parseSizesParam accepts an empty value so saved settings apply
func parseSizesParam(value string) ([]int, error) {
	if value == "" {
		return nil, nil
	}
	return input.ParseSizes(value)
}

func toIconsResponse(result *core.GenerationResult) IconsResponse {
	return IconsResponse{
		Icons:      result.Icons,
		Format:     result.Format,
		Sizes:      result.Sizes,
		SourceType: result.SourceType,
		FontSize:   result.FontSize,
		ElapsedMS:  result.Elapsed.Milliseconds(),
	}
}

func toSettingsResponse(settings *database.Settings) SettingsResponse {
	return SettingsResponse{
		SelectedSizes: settings.SelectedSizes,
		OutputFormat:  settings.OutputFormat,
		Timestamp:     settings.Timestamp,
	}
}
