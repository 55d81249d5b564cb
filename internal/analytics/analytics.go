// Package analytics derives the dashboard summary of a survey: health
// breakdown, height average, covered area and planting density.
package analytics

import (
	"cmp"
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tphakala/treesurvey/internal/geo"
	"github.com/tphakala/treesurvey/internal/survey"
)

// Metric is a derived value that may be undefined, for example the area
// of fewer than two GPS points. Undefined metrics marshal as "N/A".
type Metric struct {
	Value     float64
	OK        bool
	precision int
}

func metric(v float64, ok bool, precision int) Metric {
	return Metric{Value: v, OK: ok, precision: precision}
}

// Rounded returns the value rounded to the metric's display precision.
func (m Metric) Rounded() float64 {
	scale := math.Pow10(m.precision)
	return math.Round(m.Value*scale) / scale
}

func (m Metric) String() string {
	if !m.OK {
		return survey.NotAvailable
	}
	return strconv.FormatFloat(m.Value, 'f', m.precision, 64)
}

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.OK {
		return json.Marshal(survey.NotAvailable)
	}
	return json.Marshal(m.Rounded())
}

// HealthCount is one slice of the health chart.
type HealthCount struct {
	Health survey.Health `json:"health"`
	Count  int           `json:"count"`
	Color  string        `json:"color"`
}

// SpeciesCount is one row of the species breakdown.
type SpeciesCount struct {
	Species string `json:"species"`
	Count   int    `json:"count"`
}

// Summary is the dashboard view of a snapshot.
type Summary struct {
	Total           int            `json:"total"`
	WithGPS         int            `json:"with_gps"`
	Health          []HealthCount  `json:"health"`
	AverageHeightCm Metric         `json:"average_height_cm"`
	AreaHectares    Metric         `json:"area_ha"`
	DensityPerHa    Metric         `json:"density_per_ha"`
	AverageDistance Metric         `json:"average_distance_m"`
	Species         []SpeciesCount `json:"species"`
	Version         uint64         `json:"version"`
}

var speciesCaser = cases.Title(language.Indonesian)

// NormalizeSpecies folds spelling variants like "jati " and "JATI" into
// one display name.
func NormalizeSpecies(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "Unknown"
	}
	return speciesCaser.String(strings.ToLower(name))
}

// Summarize computes the summary of entries. Every health value is present
// in the result, zero-filled.
func Summarize(entries []*survey.Entry) Summary {
	s := Summary{Total: len(entries)}

	healthCounts := make(map[survey.Health]int, len(survey.AllHealth))
	species := make(map[string]int)
	points := make([]geo.Fix, 0, len(entries))
	heightSum := 0

	for _, e := range entries {
		healthCounts[e.Health]++
		species[NormalizeSpecies(e.Species)]++
		heightSum += e.HeightCm
		if e.GPS != nil {
			points = append(points, *e.GPS)
		}
	}

	for _, h := range survey.AllHealth {
		s.Health = append(s.Health, HealthCount{Health: h, Count: healthCounts[h], Color: h.Color()})
	}

	s.WithGPS = len(points)
	if len(entries) > 0 {
		s.AverageHeightCm = metric(float64(heightSum)/float64(len(entries)), true, 1)
	}
	area, ok := geo.BoundingBoxAreaHectares(points)
	s.AreaHectares = metric(area, ok, 4)
	density, ok := geo.Density(len(points), points)
	s.DensityPerHa = metric(density, ok, 0)
	distance, ok := geo.AveragePairwiseDistance(points)
	s.AverageDistance = metric(distance, ok, 2)

	for name, count := range species {
		s.Species = append(s.Species, SpeciesCount{Species: name, Count: count})
	}
	slices.SortFunc(s.Species, func(a, b SpeciesCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Species, b.Species)
	})

	return s
}
