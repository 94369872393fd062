package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/intelliinspect/internal/table"
)

func TestDataset_CSV(t *testing.T) {
	d := NewDataset(t, 3).WithSensors()
	tbl, err := table.ReadCSV(strings.NewReader(d.CSV()), table.ReadOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Id", "Timestamp", "Temperature", "Pressure_kPa", "Line", "Serial", "Response"}, tbl.Names())
	assert.Equal(t, 3, tbl.Len())

	y, _ := tbl.Column("Response")
	labels, err := y.Ints()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 0}, labels)

	ts, _ := tbl.Column("Timestamp")
	got, _ := ts.Text(2)
	assert.Equal(t, "2024-01-01 02:00:00", got)
}

func TestDataset_WithoutTarget(t *testing.T) {
	csv := NewDataset(t, 1).WithoutTarget().CSV()
	assert.True(t, strings.HasPrefix(csv, "Id,Timestamp\n"))
}

func TestSetupJournal(t *testing.T) {
	store := SetupJournal(t)
	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
