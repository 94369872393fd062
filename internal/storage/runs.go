package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Journaled commands.
const (
	CommandTrain    = "train"
	CommandSimulate = "simulate"
)

// RunRecord is one completed train or simulate invocation.
type RunRecord struct {
	CreatedAt  time.Time
	Summary    map[string]float64
	ID         string
	Command    string
	CSVPath    string
	TrainStart string
	TrainEnd   string
	EvalStart  string
	EvalEnd    string
	Backend    string
	Strategy   string
	TrainRows  int
	EvalRows   int
	Features   int
	Duration   time.Duration
	OneHot     bool
}

// SaveRun inserts run, assigning an ID and creation time when unset.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *RunRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	summary := run.Summary
	if summary == nil {
		summary = map[string]float64{}
	}
	encoded, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, command, csv_path, train_start, train_end, eval_start, eval_end,
			backend, strategy, train_rows, eval_rows, features, one_hot,
			duration_ms, created_at, summary
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Command, run.CSVPath, run.TrainStart, run.TrainEnd, run.EvalStart, run.EvalEnd,
		run.Backend, run.Strategy, run.TrainRows, run.EvalRows, run.Features, run.OneHot,
		run.Duration.Milliseconds(), run.CreatedAt, string(encoded),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

const runColumns = `id, command, csv_path, train_start, train_end, eval_start, eval_end,
	backend, strategy, train_rows, eval_rows, features, one_hot, duration_ms, created_at, summary`

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []RunRecord{}
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run with id or ErrRunNotFound.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*RunRecord, error) {
	var (
		run        RunRecord
		strategy   sql.NullString
		durationMS int64
		summary    string
	)
	err := sc.Scan(
		&run.ID, &run.Command, &run.CSVPath, &run.TrainStart, &run.TrainEnd, &run.EvalStart, &run.EvalEnd,
		&run.Backend, &strategy, &run.TrainRows, &run.EvalRows, &run.Features, &run.OneHot,
		&durationMS, &run.CreatedAt, &summary,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Strategy = strategy.String
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary of run %s: %w", run.ID, err)
	}
	return &run, nil
}
