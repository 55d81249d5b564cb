package export

import (
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tphakala/treesurvey/internal/survey"
)

const xlsxSheet = "Survey"

// ToXLSX writes the CSV columns into a single worksheet. Numbers stay
// numeric and the health cell is filled with the health display color.
func ToXLSX(entries []*survey.Entry) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, failure(FormatXLSX, err, "rename sheet")
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return nil, failure(FormatXLSX, err, "write header")
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, failure(FormatXLSX, err, "create header style")
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetCellStyle(xlsxSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, failure(FormatXLSX, err, "style header")
	}

	healthStyles := make(map[survey.Health]int, len(survey.AllHealth))
	for _, h := range survey.AllHealth {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{h.Color()}},
		})
		if err != nil {
			return nil, failure(FormatXLSX, err, "create health style")
		}
		healthStyles[h] = id
	}
	healthCol := columnIndex("health")

	for i, e := range entries {
		rowNum := i + 2
		values := []any{
			e.ID,
			e.CapturedAt.Format(time.RFC3339),
			e.HeightCm,
			e.Species,
			e.Health.Label(),
			e.Location,
			e.PlantingYear,
			e.JobName,
			e.Supervisor,
			e.Vendor,
			e.Team,
			e.Coordinates(),
		}
		start, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := f.SetSheetRow(xlsxSheet, start, &values); err != nil {
			return nil, failure(FormatXLSX, err, "write row "+e.ID)
		}

		if style, ok := healthStyles[e.Health]; ok {
			cell, _ := excelize.CoordinatesToCellName(healthCol, rowNum)
			if err := f.SetCellStyle(xlsxSheet, cell, cell, style); err != nil {
				return nil, failure(FormatXLSX, err, "style health cell")
			}
		}
	}

	if err := f.SetColWidth(xlsxSheet, "A", lastCol, 18); err != nil {
		return nil, failure(FormatXLSX, err, "set column width")
	}
	if err := f.SetPanes(xlsxSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, failure(FormatXLSX, err, "freeze header")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, failure(FormatXLSX, err, "write workbook")
	}
	return buf.Bytes(), nil
}

// columnIndex returns the 1-based column of name in Columns.
func columnIndex(name string) int {
	for i, c := range Columns {
		if c == name {
			return i + 1
		}
	}
	return 0
}
