package handler

import (
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/suiichiba/marketplace/internal/core/ports"
)

// FileHandler streams objects from the object store.
type FileHandler struct {
	store ports.ObjectStore
}

func NewFileHandler(store ports.ObjectStore) *FileHandler {
	return &FileHandler{store: store}
}

// Get handles GET /v1/files/*.
//
// @Summary      Download an uploaded file
// @Tags         files
// @Produce      octet-stream
// @Param        path  path  string  true  "Object path"
// @Success      200
// @Failure      404  {object}  errorResponse
// @Router       /v1/files/{path} [get]
func (h *FileHandler) Get(c echo.Context) error {
	p := strings.TrimPrefix(path.Clean("/"+c.Param("*")), "/")
	if p == "" {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}

	rc, contentType, err := h.store.Open(c.Request().Context(), p)
	if err != nil {
		return err
	}
	defer rc.Close()

	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	return c.Stream(http.StatusOK, contentType, rc)
}
