// Package survey holds the tree survey record, the field form it is built
// from and the in-memory collection that exporters read from.
package survey

import (
	"strings"
	"time"

	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/exif"
	"github.com/tphakala/treesurvey/internal/geo"
)

// IDLayout formats the capture instant into an entry id. Two captures in
// the same second get the same id.
const IDLayout = "20060102-150405"

// GeoFix is a single GPS reading taken at capture time.
type GeoFix = geo.Fix

// Health is the observed condition of a planted tree.
type Health int

const (
	Healthy Health = iota
	Struggling
	Dead
)

// AllHealth lists every health value in display order.
var AllHealth = []Health{Healthy, Struggling, Dead}

// Label returns the crew vocabulary used on forms and in uploads.
func (h Health) Label() string {
	switch h {
	case Healthy:
		return "Sehat"
	case Struggling:
		return "Merana"
	case Dead:
		return "Mati"
	default:
		return "Unknown"
	}
}

// Color is the display color used in charts and map styles.
func (h Health) Color() string {
	switch h {
	case Healthy:
		return "#10b981"
	case Struggling:
		return "#f59e0b"
	case Dead:
		return "#ef4444"
	default:
		return "#64748b"
	}
}

func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Struggling:
		return "struggling"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// MarshalText renders the crew label so stored and uploaded values match
// what the field team typed.
func (h Health) MarshalText() ([]byte, error) {
	return []byte(h.Label()), nil
}

func (h *Health) UnmarshalText(text []byte) error {
	parsed, err := ParseHealth(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHealth accepts either the crew label ("Sehat") or the English name
// ("healthy"), case-insensitively.
func ParseHealth(s string) (Health, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sehat", "healthy":
		return Healthy, nil
	case "merana", "struggling":
		return Struggling, nil
	case "mati", "dead":
		return Dead, nil
	}
	return Healthy, errors.Newf("unknown health value %q", s).
		Component("survey").
		Category(errors.CategoryValidation).
		Context("value", s).
		Build()
}

// Form is the data a crew member fills in before taking the photo.
type Form struct {
	HeightCm     int    `json:"height_cm"`
	PlantingYear int    `json:"planting_year"`
	Species      string `json:"species"`
	Health       Health `json:"health"`
	Location     string `json:"location"`
	JobName      string `json:"job"`
	Supervisor   string `json:"supervisor"`
	Vendor       string `json:"vendor"`
	Team         string `json:"team"`
}

// Entry is one surveyed tree. Entries are not modified after creation.
type Entry struct {
	ID           string    `json:"id"`
	CapturedAt   time.Time `json:"timestamp"`
	HeightCm     int       `json:"height_cm"`
	PlantingYear int       `json:"planting_year"`
	Species      string    `json:"species"`
	Health       Health    `json:"health"`
	Location     string    `json:"location"`
	JobName      string    `json:"job"`
	Supervisor   string    `json:"supervisor"`
	Vendor       string    `json:"vendor"`
	Team         string    `json:"team"`
	GPS          *GeoFix   `json:"gps,omitempty"`
	Photo        []byte    `json:"-"`
}

// HasGPS reports whether a fix was available at capture.
func (e *Entry) HasGPS() bool {
	return e.GPS != nil
}

// PhotoFileName is the archive member name for the entry's photo.
func (e *Entry) PhotoFileName() string {
	return "foto_" + e.ID + ".jpg"
}

// Metadata returns the block embedded into the entry's photo.
func (e *Entry) Metadata() exif.Metadata {
	return exif.Metadata{
		HeightCm:   e.HeightCm,
		Species:    e.Species,
		Health:     e.Health.Label(),
		Supervisor: e.Supervisor,
		Vendor:     e.Vendor,
		Team:       e.Team,
		CapturedAt: e.CapturedAt,
		GPS:        e.GPS,
	}
}

// CreateEntry builds an entry for a capture happening now.
func CreateEntry(form Form, gps *GeoFix, rawPhoto []byte) (*Entry, exif.Result) {
	return CreateEntryAt(time.Now(), form, gps, rawPhoto)
}

// CreateEntryAt builds an entry captured at now and embeds its metadata
// into rawPhoto. An embedding failure is reported in the result and the
// entry keeps a copy of the original photo bytes.
func CreateEntryAt(now time.Time, form Form, gps *GeoFix, rawPhoto []byte) (*Entry, exif.Result) {
	now = now.Truncate(time.Second)

	var fix *GeoFix
	if gps != nil {
		copied := *gps
		fix = &copied
	}

	entry := &Entry{
		ID:           now.Format(IDLayout),
		CapturedAt:   now,
		HeightCm:     form.HeightCm,
		PlantingYear: form.PlantingYear,
		Species:      form.Species,
		Health:       form.Health,
		Location:     form.Location,
		JobName:      form.JobName,
		Supervisor:   form.Supervisor,
		Vendor:       form.Vendor,
		Team:         form.Team,
		GPS:          fix,
	}

	photo, result := exif.Embed(rawPhoto, entry.Metadata())
	entry.Photo = photo

	return entry, result
}
