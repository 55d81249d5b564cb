package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
)

// RequestRecorder receives per-request measurements.
type RequestRecorder interface {
	RecordHTTPRequest(method, path string, statusCode int, seconds float64, sizeBytes int64)
}

// NewMetrics records every request under its route template so entry ids
// do not explode the label space. Unmatched routes are recorded as
// "unmatched".
func NewMetrics(rec RequestRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let the error handler write the response so the status is final
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			rec.RecordHTTPRequest(c.Request().Method, path, c.Response().Status,
				time.Since(start).Seconds(), c.Response().Size)
			return nil
		}
	}
}
