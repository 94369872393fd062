package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/intelliinspect/internal/common"
	"github.com/Veraticus/intelliinspect/internal/testutil"
)

func lineDataset(t *testing.T, rows int) *testutil.Dataset {
	t.Helper()
	return testutil.NewDataset(t, rows).
		WithColumn("temp_c", func(row, label int) string { return fmt.Sprint(20 + label*10 + row%3) }).
		WithColumn("Line", func(_, label int) string { return fmt.Sprintf("L%d", label) })
}

func writeCSV(t *testing.T, dir string, rows int) string {
	t.Helper()
	return lineDataset(t, rows).WriteFile(dir)
}

type result struct {
	stdout string
	stderr string
	code   int
}

func invoke(t *testing.T, dir string, args ...string) result {
	t.Helper()
	cfg := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(cfg); os.IsNotExist(err) {
		require.NoError(t, os.WriteFile(cfg, []byte("model:\n  n_estimators: 20\n"), 0o600))
	}
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"--config", cfg}, args...), &stdout, &stderr)
	return result{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

func errorDoc(t *testing.T, out string) string {
	t.Helper()
	var doc map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	return doc["error"]
}

var trainArgs = []string{
	"--train-start", "2024-01-01", "--train-end", "2024-01-03",
	"--test-start", "2024-01-04", "--test-end", "2024-01-05",
}

func TestTrainCommand(t *testing.T) {
	dir := t.TempDir()
	csv := writeCSV(t, dir, 100)
	journal := filepath.Join(dir, "runs.db")

	res := invoke(t, dir, append([]string{"--journal", journal, "train", "--csv", csv}, trainArgs...)...)
	require.Equal(t, common.ExitOK, res.code, res.stdout+res.stderr)

	var doc struct {
		Confusion map[string]int `json:"confusion"`
		History   struct {
			Epochs []int `json:"epochs"`
		} `json:"history"`
		Accuracy float64 `json:"accuracy"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc))
	assert.Equal(t, 28, doc.Confusion["tp"]+doc.Confusion["tn"]+doc.Confusion["fp"]+doc.Confusion["fn"])
	assert.NotEmpty(t, doc.History.Epochs)
	assert.Equal(t, 1, strings.Count(res.stdout, "\n"))

	runs := invoke(t, dir, "--journal", journal, "runs")
	require.Equal(t, common.ExitOK, runs.code, runs.stdout)
	var listed []map[string]any
	require.NoError(t, json.Unmarshal([]byte(runs.stdout), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "train", listed[0]["command"])

	one := invoke(t, dir, "--journal", journal, "runs", listed[0]["id"].(string))
	assert.Equal(t, common.ExitOK, one.code, one.stdout)
}

func TestSimulateCommand(t *testing.T) {
	dir := t.TempDir()
	csv := writeCSV(t, dir, 100)

	res := invoke(t, dir, "simulate", "--csv", csv,
		"--train-start", "2024-01-01", "--train-end", "2024-01-02",
		"--sim-start", "2024-01-03", "--sim-end", "2024-01-09", "--max-rows", "10")
	require.Equal(t, common.ExitOK, res.code, res.stdout+res.stderr)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &rows))
	require.Len(t, rows, 10)
	assert.InDelta(t, 1048.0, rows[0]["sampleId"], 0)
	assert.NotNil(t, rows[0]["temperature"])
	assert.Nil(t, rows[0]["pressure"])
}

func TestTrainCommand_MissingTarget(t *testing.T) {
	dir := t.TempDir()
	csv := writeCSV(t, dir, 100)

	res := invoke(t, dir, append([]string{"train", "--csv", csv, "--target-col", "Label"}, trainArgs...)...)
	assert.Equal(t, common.ExitSchema, res.code)
	assert.Equal(t, "Target column 'Label' missing in CSV.", errorDoc(t, res.stdout))
}

func TestTrainCommand_EmptyWindow(t *testing.T) {
	dir := t.TempDir()
	csv := writeCSV(t, dir, 100)

	res := invoke(t, dir, "train", "--csv", csv,
		"--train-start", "2030-01-01", "--train-end", "2030-01-02",
		"--test-start", "2024-01-04", "--test-end", "2024-01-05")
	assert.Equal(t, common.ExitEmptyWindow, res.code)
	assert.Equal(t, "No rows in train and/or test ranges.", errorDoc(t, res.stdout))
}

func TestTrainCommand_MissingFile(t *testing.T) {
	dir := t.TempDir()
	res := invoke(t, dir, append([]string{"train", "--csv", filepath.Join(dir, "nope.csv")}, trainArgs...)...)
	assert.Equal(t, common.ExitFailure, res.code)
	assert.True(t, strings.HasPrefix(errorDoc(t, res.stdout), "training failed: PathError: "))
}

func TestProfileCommand(t *testing.T) {
	dir := t.TempDir()
	csv := writeCSV(t, dir, 10)

	res := invoke(t, dir, "profile", "--csv", csv)
	require.Equal(t, common.ExitOK, res.code, res.stdout)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc))
	assert.InDelta(t, 50.0, doc["passRate"], 1e-9)
	assert.Equal(t, true, doc["hasTimestamp"])

	table := invoke(t, dir, "profile", "--csv", csv, "--format", "table")
	require.Equal(t, common.ExitOK, table.code)
	assert.Contains(t, table.stdout, "dataset.csv")
}

func TestRunsCommand_WithoutJournal(t *testing.T) {
	res := invoke(t, t.TempDir(), "runs")
	assert.Equal(t, common.ExitFailure, res.code)
	assert.Contains(t, errorDoc(t, res.stdout), "journal")
}

func TestVersionCommand(t *testing.T) {
	res := invoke(t, t.TempDir(), "version")
	require.Equal(t, common.ExitOK, res.code)
	assert.JSONEq(t, `{"version":"dev"}`, res.stdout)
}

func TestInvalidConfig(t *testing.T) {
	res := invoke(t, t.TempDir(), "--backend", "xgboost", "version")
	assert.Equal(t, common.ExitFailure, res.code)
	assert.Contains(t, errorDoc(t, res.stdout), "invalid configuration")
}

func TestRunsCommand_InvalidFlags(t *testing.T) {
	dir := t.TempDir()
	journal := filepath.Join(dir, "runs.db")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"negative limit", []string{"--limit", "-1"}, "runs failed: UserError: invalid --limit: must be 0 or more, got -1"},
		{"unknown format", []string{"--format", "yaml"}, `runs failed: UserError: invalid --format: want json or table, got "yaml"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := invoke(t, dir, append([]string{"--journal", journal, "runs"}, tt.args...)...)
			assert.Equal(t, common.ExitFailure, res.code)
			assert.Equal(t, tt.want, errorDoc(t, res.stdout))
		})
	}
}

func TestTrainCommand_InvalidDate(t *testing.T) {
	dir := t.TempDir()
	csv := writeCSV(t, dir, 10)

	res := invoke(t, dir, "train", "--csv", csv,
		"--train-start", "someday", "--train-end", "2024-01-01",
		"--test-start", "2024-01-01", "--test-end", "2024-01-01")
	assert.Equal(t, common.ExitFailure, res.code)
	assert.Equal(t, `training failed: UserError: invalid train window: invalid date: "someday"`, errorDoc(t, res.stdout))
}
