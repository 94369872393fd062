// Package profile summarizes an input dataset before any window is chosen.
package profile

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/Veraticus/intelliinspect/internal/report"
	"github.com/Veraticus/intelliinspect/internal/table"
	"github.com/Veraticus/intelliinspect/internal/window"
)

// ColumnProfile describes one column.
type ColumnProfile struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Distinct int    `json:"distinct"`
	Missing  int    `json:"missing"`
}

// Profile is the dataset summary. PassRate, StartDate and EndDate are null
// when the target or timestamp column is absent or has no usable values.
type Profile struct {
	FileName     string          `json:"fileName"`
	Records      int             `json:"records"`
	Columns      int             `json:"columns"`
	PassRate     *float64        `json:"passRate"`
	StartDate    *string         `json:"startDate"`
	EndDate      *string         `json:"endDate"`
	HasTimestamp bool            `json:"hasTimestamp"`
	Details      []ColumnProfile `json:"columnsDetail"`
}

// Build profiles tbl read from path.
func Build(path string, tbl *table.Table, timestampColumn, targetColumn string) *Profile {
	p := &Profile{
		FileName: filepath.Base(path),
		Records:  tbl.Len(),
		Columns:  tbl.Width(),
		Details:  make([]ColumnProfile, 0, tbl.Width()),
	}

	for _, col := range tbl.Columns() {
		p.Details = append(p.Details, describe(col))
	}

	if col, ok := tbl.Column(targetColumn); ok {
		p.PassRate = passRate(col)
	}

	if col, ok := tbl.Column(timestampColumn); ok {
		p.HasTimestamp = true
		var first, last time.Time
		for _, ts := range window.ParseTimestamps(col) {
			if ts.IsZero() {
				continue
			}
			if first.IsZero() || ts.Before(first) {
				first = ts
			}
			if ts.After(last) {
				last = ts
			}
		}
		if !first.IsZero() {
			start, end := first.Format(report.TimeLayout), last.Format(report.TimeLayout)
			p.StartDate, p.EndDate = &start, &end
		}
	}
	return p
}

// passRate is the percentage of valid targets equal to zero.
func passRate(col *table.Column) *float64 {
	valid, pass := 0, 0
	for i := 0; i < col.Len(); i++ {
		v, ok := col.Float(i)
		if !ok {
			continue
		}
		valid++
		if int(v) == 0 {
			pass++
		}
	}
	if valid == 0 {
		return nil
	}
	rate := report.Round(float64(pass)/float64(valid)*100, 2)
	return &rate
}

func describe(col *table.Column) ColumnProfile {
	seen := make(map[string]struct{})
	missing := 0
	for i := 0; i < col.Len(); i++ {
		v, ok := col.Text(i)
		if !ok {
			missing++
			continue
		}
		seen[v] = struct{}{}
	}
	return ColumnProfile{
		Name:     col.Name,
		Kind:     col.Kind.String(),
		Distinct: len(seen),
		Missing:  missing,
	}
}

// Pairs flattens the summary for key/value rendering.
func (p *Profile) Pairs() [][2]string {
	orNone := func(s *string) string {
		if s == nil {
			return "-"
		}
		return *s
	}
	rate := "-"
	if p.PassRate != nil {
		rate = strconv.FormatFloat(*p.PassRate, 'f', 2, 64) + "%"
	}
	return [][2]string{
		{"file", p.FileName},
		{"records", strconv.Itoa(p.Records)},
		{"columns", strconv.Itoa(p.Columns)},
		{"pass rate", rate},
		{"first timestamp", orNone(p.StartDate)},
		{"last timestamp", orNone(p.EndDate)},
	}
}

// Rows flattens the column details for table rendering.
func (p *Profile) Rows() [][]string {
	rows := make([][]string, len(p.Details))
	for i, d := range p.Details {
		rows[i] = []string{d.Name, d.Kind, strconv.Itoa(d.Distinct), strconv.Itoa(d.Missing)}
	}
	return rows
}
