// Package v1 implements the JSON endpoints under /api/v1.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	mw "github.com/tphakala/treesurvey/internal/api/middleware"
	"github.com/tphakala/treesurvey/internal/analytics"
	"github.com/tphakala/treesurvey/internal/capture"
	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/export"
	"github.com/tphakala/treesurvey/internal/logger"
)

// Controller holds the dependencies of the v1 handlers.
type Controller struct {
	Group     *echo.Group
	Settings  *conf.Settings
	processor *capture.Processor
	analytics *analytics.Service
	exporter  *export.Manager
	log       logger.Logger
}

// New creates the controller and registers its routes on e.
func New(e *echo.Echo, settings *conf.Settings, processor *capture.Processor, analyticsSvc *analytics.Service, exporter *export.Manager) *Controller {
	c := &Controller{
		Group:     e.Group("/api/v1"),
		Settings:  settings,
		processor: processor,
		analytics: analyticsSvc,
		exporter:  exporter,
		log:       logger.Global().Module("api").Module("v1"),
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.POST("/entries", c.CreateEntry)
	c.Group.GET("/entries", c.ListEntries)
	c.Group.DELETE("/entries", c.ResetEntries)
	c.Group.GET("/entries/:id/photo", c.EntryPhoto)

	c.Group.GET("/analytics", c.GetAnalytics)
	c.Group.GET("/export/:format", c.Export)
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse builds an error body. The error text falls back to
// message when err is nil.
func NewErrorResponse(err error, message string, code int, correlationID string) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

// HandleError logs err and writes the JSON error body.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code, mw.CorrelationID(ctx))

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("path", ctx.Path()),
		logger.Int("code", code),
		logger.Error(err),
	}
	if code >= http.StatusInternalServerError {
		c.log.Error(message, fields...)
	} else {
		c.log.Debug(message, fields...)
	}

	return ctx.JSON(code, resp)
}

// StatusForError maps an error category to an HTTP status.
func StatusForError(err error) int {
	switch {
	case errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, export.ErrExportFailed):
		return http.StatusUnprocessableEntity
	case errors.IsCategory(err, errors.CategoryCancellation):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
