package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/okian/podium/internal/domain/discipline"
	"github.com/okian/podium/internal/domain/format"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/performance"
)

// Output formats.
const (
	outputText = "text"
	outputJSON = "json"
)

// display renders v the way results lists show it for the discipline.
// Disciplines outside the catalog fall back to the canonical form.
func display(disciplineID string, v performance.Value) string {
	d, err := discipline.Lookup(disciplineID)
	if err != nil {
		return v.Canonical()
	}
	return format.Display(v, d.Kind, d.Profile)
}

func keyLabel(key model.RecordKey) string {
	name := ""
	if d, err := discipline.Lookup(key.DisciplineID); err == nil {
		name = d.Name
	}
	return format.KeyLabel(key, name)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
)

// writeTable prints rows under headers as a bordered table. Columns grow
// to their widest cell; nothing is truncated.
func writeTable(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeRecords prints records as a table or as a JSON array.
func (c *cli) writeRecords(w io.Writer, recs []model.Record) error {
	if c.output == outputJSON {
		if recs == nil {
			recs = []model.Record{}
		}
		return writeJSON(w, recs)
	}

	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		prev := "-"
		if r.PreviousRecord.Valid {
			prev = r.PreviousRecord.UUID.String()
		}
		rows = append(rows, []string{
			r.ID.String(), keyLabel(r.Key()), display(r.DisciplineID, r.Performance),
			r.AthleteID, r.LocationID, r.AchievedOn.Format(model.DateLayout), r.State().String(), prev,
		})
	}
	return writeTable(w, []string{"ID", "EVENT", "PERFORMANCE", "ATHLETE", "LOCATION", "DATE", "STATE", "PREVIOUS"}, rows)
}

// writeRecord prints a single record.
func (c *cli) writeRecord(w io.Writer, rec model.Record) error {
	if c.output == outputJSON {
		return writeJSON(w, rec)
	}
	return c.writeRecords(w, []model.Record{rec})
}
