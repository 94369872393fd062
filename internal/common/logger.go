package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields represents structured logging fields.
type Fields map[string]any

// LogFile configures the optional rotated log file.
type LogFile struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, level)
	}
}

// NewHandler builds a text or json handler on w.
func NewHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case "json":
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}

// SetupLogger configures the global logger on stderr, teed to a rotated file
// when file has a path. The returned closer releases the file.
func SetupLogger(levelName, format string, file LogFile) (io.Closer, error) {
	level, err := ParseLevel(levelName)
	if err != nil {
		return nil, err
	}

	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if file.Path != "" {
		rotated := &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
		}
		w = io.MultiWriter(os.Stderr, rotated)
		closer = rotated
	}

	slog.SetDefault(slog.New(NewHandler(w, level, format)))
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// LogError logs err at error level with additional context. A nil logger
// means slog.Default().
func LogError(logger *slog.Logger, err error, msg string, fields Fields) {
	logWithError(logger, slog.LevelError, err, msg, fields)
}

// LogWarn logs err at warn level with additional context.
func LogWarn(logger *slog.Logger, err error, msg string, fields Fields) {
	logWithError(logger, slog.LevelWarn, err, msg, fields)
}

// LogInfo logs an info message with fields.
func LogInfo(logger *slog.Logger, msg string, fields Fields) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(context.Background(), slog.LevelInfo, msg, attrs(fields)...)
}

func logWithError(logger *slog.Logger, level slog.Level, err error, msg string, fields Fields) {
	if logger == nil {
		logger = slog.Default()
	}
	all := append([]slog.Attr{slog.String("error", err.Error())}, attrs(fields)...)
	logger.LogAttrs(context.Background(), level, msg, all...)
}

// attrs converts fields in key order.
func attrs(fields Fields) []slog.Attr {
	out := make([]slog.Attr, 0, len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		out = append(out, slog.Any(k, fields[k]))
	}
	return out
}
