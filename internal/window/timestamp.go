package window

import (
	"strings"
	"time"

	"github.com/Veraticus/intelliinspect/internal/table"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
}

// ParseTimestamp parses a single cell. Zone-qualified values are converted to
// UTC wall time.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || table.IsNA(s) {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}

// ParseTimestamps converts a column to instants. Cells that are missing or do
// not parse yield the zero time.
func ParseTimestamps(col *table.Column) []time.Time {
	out := make([]time.Time, col.Len())
	for i := range out {
		raw, ok := col.Text(i)
		if !ok {
			continue
		}
		if t, ok := ParseTimestamp(raw); ok {
			out[i] = t
		}
	}
	return out
}
