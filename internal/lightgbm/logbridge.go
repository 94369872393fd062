package lightgbm

import (
	"context"
	"log/slog"

	scigolog "github.com/YuminosukeSato/scigo/pkg/log"
)

// LogProvider routes scigo's component loggers onto slog.
type LogProvider struct {
	logger *slog.Logger
	floor  *slog.LevelVar
}

var _ scigolog.LoggerProvider = (*LogProvider)(nil)

// NewLogProvider returns a provider writing through logger.
func NewLogProvider(logger *slog.Logger) *LogProvider {
	floor := new(slog.LevelVar)
	floor.Set(slog.LevelDebug)
	return &LogProvider{logger: logger, floor: floor}
}

// GetLogger implements scigolog.LoggerProvider.
func (p *LogProvider) GetLogger() scigolog.Logger {
	return &slogLogger{logger: p.logger, floor: p.floor}
}

// GetLoggerWithName implements scigolog.LoggerProvider.
func (p *LogProvider) GetLoggerWithName(name string) scigolog.Logger {
	return &slogLogger{logger: p.logger.With("component", name), floor: p.floor}
}

// SetLevel raises or lowers the floor applied on top of the slog handler.
func (p *LogProvider) SetLevel(level scigolog.Level) {
	p.floor.Set(slog.Level(level))
}

type slogLogger struct {
	logger *slog.Logger
	floor  *slog.LevelVar
}

func (l *slogLogger) log(level slog.Level, msg string, fields ...any) {
	if level < l.floor.Level() {
		return
	}
	l.logger.Log(context.Background(), level, msg, fields...)
}

func (l *slogLogger) Debug(msg string, fields ...any) { l.log(slog.LevelDebug, msg, fields...) }
func (l *slogLogger) Info(msg string, fields ...any)  { l.log(slog.LevelInfo, msg, fields...) }
func (l *slogLogger) Warn(msg string, fields ...any)  { l.log(slog.LevelWarn, msg, fields...) }
func (l *slogLogger) Error(msg string, fields ...any) { l.log(slog.LevelError, msg, fields...) }

func (l *slogLogger) With(fields ...any) scigolog.Logger {
	return &slogLogger{logger: l.logger.With(fields...), floor: l.floor}
}

func (l *slogLogger) Enabled(ctx context.Context, level scigolog.Level) bool {
	return slog.Level(level) >= l.floor.Level() && l.logger.Enabled(ctx, slog.Level(level))
}
