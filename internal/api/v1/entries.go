package v1

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/survey"
)

// maxPhotoBytes bounds the photo read from a multipart upload.
const maxPhotoBytes = 32 << 20

// EntryResponse is an entry as returned by the API. Photo bytes are
// served separately.
type EntryResponse struct {
	*survey.Entry
	PhotoURL   string `json:"photo_url"`
	PhotoBytes int    `json:"photo_bytes"`
}

// CreateEntryResponse is returned by POST /entries.
type CreateEntryResponse struct {
	Entry          EntryResponse `json:"entry"`
	Embedding      string        `json:"embedding"`
	EmbeddingError string        `json:"embedding_error,omitempty"`
	UploadError    string        `json:"upload_error,omitempty"`
}

// EntryPage is one page of the newest-first list.
type EntryPage struct {
	Items      []EntryResponse `json:"items"`
	Page       int             `json:"page"`
	Size       int             `json:"size"`
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
}

func toResponse(e *survey.Entry) EntryResponse {
	return EntryResponse{
		Entry:      e,
		PhotoURL:   "/api/v1/entries/" + e.ID + "/photo",
		PhotoBytes: len(e.Photo),
	}
}

// CreateEntry handles POST /api/v1/entries. The request is multipart with
// a "photo" file and the form fields.
func (c *Controller) CreateEntry(ctx echo.Context) error {
	file, err := ctx.FormFile("photo")
	if err != nil {
		return c.HandleError(ctx, err, "photo file is required", http.StatusBadRequest)
	}
	src, err := file.Open()
	if err != nil {
		return c.HandleError(ctx, err, "cannot read photo", http.StatusBadRequest)
	}
	defer func() { _ = src.Close() }()

	photo, err := io.ReadAll(io.LimitReader(src, maxPhotoBytes+1))
	if err != nil {
		return c.HandleError(ctx, err, "cannot read photo", http.StatusBadRequest)
	}
	if len(photo) > maxPhotoBytes {
		return c.HandleError(ctx, nil, "photo is too large", http.StatusRequestEntityTooLarge)
	}

	form, gps, err := c.parseForm(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid form", http.StatusBadRequest)
	}

	result, err := c.processor.Capture(ctx.Request().Context(), form, gps, photo)
	if err != nil {
		return c.HandleError(ctx, err, "capture failed", StatusForError(err))
	}

	resp := CreateEntryResponse{
		Entry:     toResponse(result.Entry),
		Embedding: result.Embedding.Status.String(),
	}
	if result.Embedding.Err != nil {
		resp.EmbeddingError = result.Embedding.Err.Error()
	}
	if result.UploadErr != nil {
		resp.UploadError = result.UploadErr.Error()
	}
	return ctx.JSON(http.StatusCreated, resp)
}

// parseForm reads the entry fields as entered. Only type coercion can
// fail; empty fields fall back to the configured defaults and lat and lon
// must be given together.
func (c *Controller) parseForm(ctx echo.Context) (survey.Form, *survey.GeoFix, error) {
	defaults := c.Settings.Survey
	form := survey.Form{
		HeightCm:     defaults.DefaultHeight,
		PlantingYear: time.Now().Year(),
		Species:      valueOr(ctx.FormValue("species"), defaults.FirstSpecies()),
		Location:     valueOr(ctx.FormValue("location"), defaults.DefaultLocation),
		JobName:      valueOr(ctx.FormValue("job"), defaults.DefaultJob),
		Supervisor:   valueOr(ctx.FormValue("supervisor"), defaults.DefaultSupervisor),
		Vendor:       valueOr(ctx.FormValue("vendor"), defaults.DefaultVendor),
		Team:         valueOr(ctx.FormValue("team"), defaults.DefaultTeam),
	}

	var err error
	if v := ctx.FormValue("height"); v != "" {
		if form.HeightCm, err = parseInt("height", v); err != nil {
			return form, nil, err
		}
	}
	if v := ctx.FormValue("year"); v != "" {
		if form.PlantingYear, err = parseInt("year", v); err != nil {
			return form, nil, err
		}
	}
	if v := ctx.FormValue("health"); v != "" {
		if form.Health, err = survey.ParseHealth(v); err != nil {
			return form, nil, err
		}
	}

	gps, err := parseGPS(ctx.FormValue("lat"), ctx.FormValue("lon"), ctx.FormValue("accuracy"))
	return form, gps, err
}

func parseGPS(lat, lon, accuracy string) (*survey.GeoFix, error) {
	if lat == "" && lon == "" {
		return nil, nil
	}
	if lat == "" || lon == "" {
		return nil, validation("lat and lon must be given together", "gps", lat+","+lon)
	}

	var fix survey.GeoFix
	var err error
	if fix.Latitude, err = parseFloat("lat", lat); err != nil {
		return nil, err
	}
	if fix.Longitude, err = parseFloat("lon", lon); err != nil {
		return nil, err
	}
	if accuracy != "" {
		if fix.AccuracyMeters, err = parseFloat("accuracy", accuracy); err != nil {
			return nil, err
		}
	}
	if err := fix.Validate(); err != nil {
		return nil, err
	}
	return &fix, nil
}

// ListEntries handles GET /api/v1/entries?page=N&size=M.
func (c *Controller) ListEntries(ctx echo.Context) error {
	page, _ := strconv.Atoi(ctx.QueryParam("page"))
	size, _ := strconv.Atoi(ctx.QueryParam("size"))
	if size < 1 {
		size = c.Settings.Survey.PageSize
	}

	p := c.analytics.Page(page, size)
	out := EntryPage{
		Items:      make([]EntryResponse, len(p.Items)),
		Page:       p.Page,
		Size:       p.Size,
		Total:      p.Total,
		TotalPages: p.TotalPages,
	}
	for i, e := range p.Items {
		out.Items[i] = toResponse(e)
	}
	return ctx.JSON(http.StatusOK, out)
}

// EntryPhoto handles GET /api/v1/entries/:id/photo.
func (c *Controller) EntryPhoto(ctx echo.Context) error {
	id := ctx.Param("id")
	entry, ok := c.processor.Collection().Get(id)
	if !ok {
		return c.HandleError(ctx, nil, fmt.Sprintf("entry %s not found", id), http.StatusNotFound)
	}
	if len(entry.Photo) == 0 {
		return c.HandleError(ctx, nil, fmt.Sprintf("entry %s has no photo", id), http.StatusNotFound)
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", entry.PhotoFileName()))
	return ctx.Blob(http.StatusOK, "image/jpeg", entry.Photo)
}

// ResetEntries handles DELETE /api/v1/entries.
func (c *Controller) ResetEntries(ctx echo.Context) error {
	if err := c.processor.Reset(ctx.Request().Context()); err != nil {
		return c.HandleError(ctx, err, "reset failed", StatusForError(err))
	}
	c.analytics.Invalidate()
	return ctx.NoContent(http.StatusNoContent)
}

func valueOr(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

func parseInt(field, v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, validation(field+" must be a whole number", field, v)
	}
	return n, nil
}

func parseFloat(field, v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, validation(field+" must be a number", field, v)
	}
	return f, nil
}

func validation(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("api").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprint(value)).
		Build()
}
