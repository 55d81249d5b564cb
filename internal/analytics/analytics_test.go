package analytics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/treesurvey/internal/survey"
)

func entryAt(id int, species string, health survey.Health, height int, gps *survey.GeoFix) *survey.Entry {
	at := time.Date(2024, 1, 1, 8, 0, id, 0, time.UTC)
	return &survey.Entry{
		ID:         at.Format(survey.IDLayout),
		CapturedAt: at,
		Species:    species,
		Health:     health,
		HeightCm:   height,
		GPS:        gps,
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	entries := []*survey.Entry{
		entryAt(1, "Jati", survey.Healthy, 100, &survey.GeoFix{Latitude: 0, Longitude: 0}),
		entryAt(2, "jati ", survey.Healthy, 50, &survey.GeoFix{Latitude: 0.001, Longitude: 0.001}),
		entryAt(3, "Sengon", survey.Dead, 30, nil),
		entryAt(4, "mahoni", survey.Healthy, 20, nil),
	}

	s := Summarize(entries)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.WithGPS)
	require.Len(t, s.Health, 3)
	assert.Equal(t, HealthCount{Health: survey.Healthy, Count: 3, Color: "#10b981"}, s.Health[0])
	assert.Equal(t, 0, s.Health[1].Count)
	assert.Equal(t, 1, s.Health[2].Count)
	assert.InDelta(t, 50.0, s.AverageHeightCm.Value, 1e-9)

	require.True(t, s.AreaHectares.OK)
	// ~111.19 m per 0.001 degree at the equator on both legs
	assert.InDelta(t, 1.2364, s.AreaHectares.Value, 0.01)
	assert.True(t, s.DensityPerHa.OK)
	assert.True(t, s.AverageDistance.OK)

	assert.Equal(t, []SpeciesCount{
		{Species: "Jati", Count: 2},
		{Species: "Mahoni", Count: 1},
		{Species: "Sengon", Count: 1},
	}, s.Species)
}

func TestSummarizeUndefinedMetrics(t *testing.T) {
	t.Parallel()

	s := Summarize([]*survey.Entry{entryAt(1, "Jati", survey.Dead, 10, &survey.GeoFix{Latitude: 1, Longitude: 1})})
	assert.False(t, s.AreaHectares.OK)
	assert.False(t, s.DensityPerHa.OK)
	assert.False(t, s.AverageDistance.OK)
	assert.Equal(t, "N/A", s.AreaHectares.String())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"area_ha":"N/A"`)
	assert.Contains(t, string(data), `"average_height_cm":10`)

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.Total)
	assert.False(t, empty.AverageHeightCm.OK)
	assert.Len(t, empty.Health, 3)
}

func TestNormalizeSpecies(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Jati Putih", NormalizeSpecies("  jati   PUTIH "))
	assert.Equal(t, "Unknown", NormalizeSpecies("   "))
}

func TestPaginateNewestFirst(t *testing.T) {
	t.Parallel()

	var entries []*survey.Entry
	for i := range 12 {
		entries = append(entries, entryAt(i, "Jati", survey.Healthy, 10, nil))
	}

	p := Paginate(entries, 1, 0)
	assert.Equal(t, 5, p.Size)
	assert.Equal(t, 3, p.TotalPages)
	require.Len(t, p.Items, 5)
	assert.Equal(t, entries[11].ID, p.Items[0].ID)
	assert.Equal(t, entries[7].ID, p.Items[4].ID)

	last := Paginate(entries, 3, 5)
	require.Len(t, last.Items, 2)
	assert.Equal(t, entries[0].ID, last.Items[1].ID)

	past := Paginate(entries, 9, 5)
	assert.Empty(t, past.Items)
	assert.NotNil(t, past.Items)

	assert.Equal(t, 0, Paginate(nil, 1, 5).TotalPages)
}

func TestServiceCachesPerVersion(t *testing.T) {
	t.Parallel()

	c := survey.NewCollection()
	svc := NewService(c, time.Minute)

	c.Append(entryAt(1, "Jati", survey.Healthy, 10, nil))
	first := svc.Summary()
	assert.Equal(t, 1, first.Total)
	assert.Equal(t, uint64(1), first.Version)

	assert.Equal(t, first, svc.Summary())

	c.Append(entryAt(2, "Sengon", survey.Dead, 20, nil))
	second := svc.Summary()
	assert.Equal(t, 2, second.Total)
	assert.Equal(t, uint64(2), second.Version)

	page := svc.Page(1, 5)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Sengon", page.Items[0].Species)

	c.Reset()
	assert.Equal(t, 0, svc.Summary().Total)
	assert.Empty(t, svc.Page(1, 5).Items)

	svc.Invalidate()
}
