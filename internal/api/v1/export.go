package v1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	mw "github.com/tphakala/treesurvey/internal/api/middleware"
	"github.com/tphakala/treesurvey/internal/export"
)

// Export handles GET /api/v1/export/:format and streams the artifact as a
// download. Partial archives carry the number of skipped entries in
// X-Export-Warnings.
func (c *Controller) Export(ctx echo.Context) error {
	format, err := export.ParseFormat(ctx.Param("format"))
	if err != nil {
		return c.HandleError(ctx, err, "unsupported export format", http.StatusBadRequest)
	}

	artifact, err := c.exporter.Export(ctx.Request().Context(), format)
	if err != nil {
		return c.HandleError(ctx, err, "export failed", StatusForError(err))
	}

	h := ctx.Response().Header()
	h.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", artifact.FileName))
	if artifact.Partial() {
		h.Set(mw.HeaderExportWarnings, strconv.Itoa(len(artifact.Warnings)))
	}
	return ctx.Blob(http.StatusOK, artifact.ContentType, artifact.Data)
}
