package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrInvalidRun   = errors.New("invalid run")
	ErrRunNotFound  = errors.New("run not found")
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateRun(run *RunRecord) error {
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	switch run.Command {
	case CommandTrain, CommandSimulate:
	default:
		return fmt.Errorf("%w: unknown command %q", ErrInvalidRun, run.Command)
	}
	if strings.TrimSpace(run.CSVPath) == "" {
		return fmt.Errorf("%w: csv path is required", ErrInvalidRun)
	}
	if run.TrainRows < 0 || run.EvalRows < 0 || run.Features < 0 {
		return fmt.Errorf("%w: counts must not be negative", ErrInvalidRun)
	}
	return nil
}
