package common

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codedError struct{ code int }

func (e *codedError) Error() string { return "coded " + strconv.Itoa(e.code) }
func (e *codedError) ExitCode() int { return e.code }

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want int
	}{
		{nil, "nil", ExitOK},
		{errors.New("boom"), "plain", ExitFailure},
		{NewSchemaError("Target", "Response"), "schema", ExitSchema},
		{fmt.Errorf("wrapped: %w", NewSchemaError("Timestamp", "ts")), "wrapped schema", ExitSchema},
		{&codedError{code: ExitEmptyWindow}, "coder", ExitEmptyWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestSchemaError_Message(t *testing.T) {
	err := NewSchemaError("Timestamp", "When")
	assert.Equal(t, "Timestamp column 'When' missing in CSV.", err.Error())

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "When", schemaErr.Column)
}

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }

func TestErrorMessage(t *testing.T) {
	inner := &parseError{msg: "bad cell"}
	tests := []struct {
		err  error
		name string
		want string
	}{
		{
			name: "first typed error in chain",
			err:  fmt.Errorf("encode: %w", fmt.Errorf("column x: %w", inner)),
			want: "training failed: parseError: encode: column x: bad cell",
		},
		{
			name: "plain error",
			err:  errors.New("out of memory"),
			want: "training failed: Error: out of memory",
		},
		{
			name: "joined errors use the first",
			err:  fmt.Errorf("fit: %w", errors.Join(inner, errors.New("second"))),
			want: "training failed: parseError: fit: bad cell\nsecond",
		},
		{
			name: "schema errors are verbatim",
			err:  fmt.Errorf("load: %w", NewSchemaError("Target", "Response")),
			want: "Target column 'Response' missing in CSV.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorMessage("training", tt.err))
		})
	}
}

func TestUserError(t *testing.T) {
	base := errors.New("disk full")
	err := NewUserError("could not save run", base)
	assert.Equal(t, "could not save run: disk full", err.Error())
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "only message", NewUserError("only message", nil).Error())
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "warn": slog.LevelWarn,
		"warning": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSetupLogger_File(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "inspect.log")
	closer, err := SetupLogger("info", "json", LogFile{Path: path, MaxSizeMB: 1})
	require.NoError(t, err)

	LogInfo(nil, "hello", Fields{"rows": 3})
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"rows":3`)

	_, err = SetupLogger("nope", "json", LogFile{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLogErrorAndWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogWarn(logger, errors.New("disk full"), "journal write failed", Fields{"command": "train", "attempt": 1})
	assert.Equal(t,
		`level=WARN msg="journal write failed" error="disk full" attempt=1 command=train`,
		strings.TrimSpace(removeTime(buf.String())))

	buf.Reset()
	LogError(logger, NewUserError("invalid --limit", errors.New("must not be negative")), "command failed", nil)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), `error="invalid --limit: must not be negative"`)
}

// removeTime drops the leading time=... attribute of a text log line.
func removeTime(line string) string {
	if i := strings.Index(line, " "); strings.HasPrefix(line, "time=") && i >= 0 {
		return line[i+1:]
	}
	return line
}
