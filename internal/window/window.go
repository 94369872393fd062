// Package window selects date-bounded row subsets from a table.
package window

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/intelliinspect/internal/common"
	"github.com/Veraticus/intelliinspect/internal/table"
)

// ErrInvalidDate is returned when a window bound cannot be parsed.
var ErrInvalidDate = errors.New("invalid date")

// EmptyWindowError reports that at least one window selected no rows.
type EmptyWindowError struct {
	Message   string
	TrainRows int
	EvalRows  int
}

func (e *EmptyWindowError) Error() string { return e.Message }

// ExitCode implements common.ExitCoder.
func (e *EmptyWindowError) ExitCode() int { return common.ExitEmptyWindow }

// Window is an inclusive [Start, End] range at second granularity.
type Window struct {
	Start time.Time
	End   time.Time
}

// dateLayouts are accepted for window bounds; only the calendar date is kept.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseDate parses a date or date-time and truncates it to midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// New builds the window from the start of startDate to 23:59:59 of endDate.
func New(startDate, endDate string) (Window, error) {
	start, err := ParseDate(startDate)
	if err != nil {
		return Window{}, err
	}
	end, err := ParseDate(endDate)
	if err != nil {
		return Window{}, err
	}
	return Window{
		Start: start,
		End:   end.Add(23*time.Hour + 59*time.Minute + 59*time.Second),
	}, nil
}

// Contains reports whether t falls inside the window. 23:59:59.5 on the end
// date is outside.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) String() string {
	return w.Start.Format(time.DateOnly) + ".." + w.End.Format(time.DateOnly)
}

// Selection holds the rows chosen for both windows.
type Selection struct {
	// Timestamps for every row of the source table; the zero value marks a row
	// whose timestamp did not parse.
	Timestamps []time.Time
	Train      []int
	Eval       []int
	// Dropped counts rows removed because the timestamp was missing or invalid.
	Dropped int
}

// Select parses the timestamp column and returns the row indices, in file order,
// that fall inside each window. emptyMessage becomes the EmptyWindowError text.
func Select(tbl *table.Table, timestampColumn string, train, eval Window, emptyMessage string) (*Selection, error) {
	col, ok := tbl.Column(timestampColumn)
	if !ok {
		return nil, fmt.Errorf("timestamp column %q not found", timestampColumn)
	}

	sel := &Selection{Timestamps: ParseTimestamps(col)}
	for i, ts := range sel.Timestamps {
		if ts.IsZero() {
			sel.Dropped++
			continue
		}
		if train.Contains(ts) {
			sel.Train = append(sel.Train, i)
		}
		if eval.Contains(ts) {
			sel.Eval = append(sel.Eval, i)
		}
	}

	if len(sel.Train) == 0 || len(sel.Eval) == 0 {
		return nil, &EmptyWindowError{
			Message:   emptyMessage,
			TrainRows: len(sel.Train),
			EvalRows:  len(sel.Eval),
		}
	}
	return sel, nil
}
