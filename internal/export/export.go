package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"call-compliance-go/internal/types"
)

// Row is one flattened violation, suitable for spreadsheets and audits.
type Row struct {
	CallID      string    `json:"call_id"`
	Filename    string    `json:"filename"`
	Type        string    `json:"violation_type"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	Rule        string    `json:"rule"`
	CreatedAt   time.Time `json:"created_at"`
}

var header = []string{"call_id", "filename", "violation_type", "severity", "description", "rule", "created_at"}

// Rows flattens each analysis' violations, keeping analysis order.
func Rows(analyses []types.CallAnalysis, calls map[string]types.Call) []Row {
	var rows []Row
	for _, a := range analyses {
		filename := calls[a.CallID].Filename
		for _, v := range a.Violations {
			rows = append(rows, Row{
				CallID:      a.CallID,
				Filename:    filename,
				Type:        v.Type,
				Severity:    v.Severity,
				Description: v.Description,
				Rule:        v.Rule,
				CreatedAt:   a.CreatedAt,
			})
		}
	}
	return rows
}

// Violations encodes rows in the requested format and returns the payload
// with its content type.
func Violations(rows []Row, format string) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case "xlsx":
		b, err := toXLSX(rows)
		return b, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", err
	case "csv":
		b, err := toCSV(rows)
		return b, "text/csv", err
	case "json", "":
		b, err := json.MarshalIndent(rows, "", "  ")
		return b, "application/json", err
	}
	return nil, "", fmt.Errorf("unsupported export format: %q", format)
}

func toXLSX(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Violations"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	for col, name := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return nil, err
		}
	}
	for i, row := range rows {
		for col, value := range row.values() {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func toCSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(row.values()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r Row) values() []string {
	return []string{
		r.CallID,
		r.Filename,
		r.Type,
		r.Severity,
		r.Description,
		r.Rule,
		r.CreatedAt.Format(time.RFC3339),
	}
}
