// Package testutil builds inspection datasets and journals for tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/intelliinspect/internal/storage"
)

// TimestampLayout is the layout of generated timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Column generates one cell per row from the row index and its label.
type Column struct {
	Value func(row, label int) string
	Name  string
}

// Dataset builds a CSV with an Id column, an hourly Timestamp column, the
// configured feature columns and a Response column. Even rows pass, odd
// rows fail.
type Dataset struct {
	t       *testing.T
	start   time.Time
	columns []Column
	rows    int
	step    time.Duration
	target  bool
}

// NewDataset starts a dataset of rows rows from 2024-01-01 00:00 UTC.
func NewDataset(t *testing.T, rows int) *Dataset {
	t.Helper()
	return &Dataset{
		t:      t,
		rows:   rows,
		start:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		step:   time.Hour,
		target: true,
	}
}

// WithColumn appends a feature column.
func (d *Dataset) WithColumn(name string, value func(row, label int) string) *Dataset {
	d.columns = append(d.columns, Column{Name: name, Value: value})
	return d
}

// WithSensors adds a temperature that separates the labels, a pressure
// reading, a low-cardinality line and a unique serial number.
func (d *Dataset) WithSensors() *Dataset {
	lines := []string{"L1", "L2", "L3"}
	return d.
		WithColumn("Temperature", func(row, label int) string {
			return fmt.Sprintf("%.2f", 20+float64(row%7)*0.1+float64(label)*15)
		}).
		WithColumn("Pressure_kPa", func(row, _ int) string { return fmt.Sprint(100 + row%5) }).
		WithColumn("Line", func(row, _ int) string { return lines[row%3] }).
		WithColumn("Serial", func(row, _ int) string { return fmt.Sprintf("SN%05d", row) })
}

// WithoutTarget omits the Response column.
func (d *Dataset) WithoutTarget() *Dataset {
	d.target = false
	return d
}

// Time returns the timestamp of row.
func (d *Dataset) Time(row int) time.Time {
	return d.start.Add(time.Duration(row) * d.step)
}

// ID returns the Id value of row.
func (d *Dataset) ID(row int) int {
	return 1000 + row
}

// CSV renders the dataset.
func (d *Dataset) CSV() string {
	var b strings.Builder
	header := []string{"Id", "Timestamp"}
	for _, c := range d.columns {
		header = append(header, c.Name)
	}
	if d.target {
		header = append(header, "Response")
	}
	b.WriteString(strings.Join(header, ",") + "\n")

	for i := 0; i < d.rows; i++ {
		label := i % 2
		cells := []string{fmt.Sprint(d.ID(i)), d.Time(i).Format(TimestampLayout)}
		for _, c := range d.columns {
			cells = append(cells, c.Value(i, label))
		}
		if d.target {
			cells = append(cells, fmt.Sprint(label))
		}
		b.WriteString(strings.Join(cells, ",") + "\n")
	}
	return b.String()
}

// WriteFile writes the dataset into dir, or a fresh temp dir when dir is
// empty, and returns its path.
func (d *Dataset) WriteFile(dir string) string {
	d.t.Helper()
	if dir == "" {
		dir = d.t.TempDir()
	}
	path := filepath.Join(dir, "dataset.csv")
	if err := os.WriteFile(path, []byte(d.CSV()), 0o600); err != nil {
		d.t.Fatalf("failed to write dataset: %v", err)
	}
	return path
}

// SetupJournal opens a migrated in-memory run journal closed at cleanup.
func SetupJournal(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test journal: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
