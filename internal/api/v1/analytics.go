package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetAnalytics handles GET /api/v1/analytics.
func (c *Controller) GetAnalytics(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.analytics.Summary())
}
