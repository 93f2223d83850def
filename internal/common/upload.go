package common

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Upload is a multipart file read into memory
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReadUpload reads the multipart file in field; a missing file yields an empty upload.
// At most maxBytes+1 bytes are read so oversized files still reach validation and are rejected there.
func ReadUpload(c echo.Context, field string, maxBytes int64) (*Upload, error) {
	file, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		// an empty upload is rejected by input validation with a user message
		return &Upload{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get uploaded file: %w", err)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("ReadUpload: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(src, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	return &Upload{
		Filename:    file.Filename,
		ContentType: file.Header.Get(echo.HeaderContentType),
		Data:        data,
	}, nil
}
