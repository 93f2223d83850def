package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jo-hoe/iconforge/internal/backend/icons"
	"github.com/jo-hoe/iconforge/internal/backend/input"
	"github.com/jo-hoe/iconforge/internal/backend/packager"
	"github.com/labstack/echo/v4"
)

// ErrorStatus maps an error to the status code and the message shown to the user.
// fallback is used for errors that carry no user message.
func ErrorStatus(err error, fallback string) (int, string) {
	if verr, ok := input.AsValidationError(err); ok {
		return http.StatusBadRequest, verr.Message
	}

	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code, fmt.Sprint(httpErr.Message)
	case errors.Is(err, packager.ErrNoIcons):
		return http.StatusNotFound, "No icons generated yet"
	case errors.Is(err, packager.ErrIconNotFound):
		return http.StatusNotFound, "Icon not found"
	case errors.Is(err, icons.ErrProcessingFailed):
		return http.StatusInternalServerError, icons.ErrProcessingFailed.Error()
	}
	return http.StatusInternalServerError, fallback
}
