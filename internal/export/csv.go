package export

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/tphakala/treesurvey/internal/survey"
)

// Columns is the header shared by the CSV and XLSX exports.
var Columns = []string{
	"id", "timestamp", "height", "species", "health", "location",
	"year", "job", "supervisor", "vendor", "team", "coordinates",
}

func row(e *survey.Entry) []string {
	return []string{
		e.ID,
		e.CapturedAt.Format(time.RFC3339),
		strconv.Itoa(e.HeightCm),
		e.Species,
		e.Health.Label(),
		e.Location,
		strconv.Itoa(e.PlantingYear),
		e.JobName,
		e.Supervisor,
		e.Vendor,
		e.Team,
		e.Coordinates(),
	}
}

// ToCSV writes one row per entry in collection order. An empty input
// yields the header line alone.
func ToCSV(entries []*survey.Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Columns); err != nil {
		return nil, failure(FormatCSV, err, "write header")
	}
	for _, e := range entries {
		if err := w.Write(row(e)); err != nil {
			return nil, failure(FormatCSV, err, "write row "+e.ID)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, failure(FormatCSV, err, "flush")
	}
	return buf.Bytes(), nil
}
