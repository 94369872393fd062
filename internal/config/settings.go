package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/intelliinspect/internal/classifier"
	"github.com/Veraticus/intelliinspect/internal/common"
	"github.com/Veraticus/intelliinspect/internal/features"
)

// Supported classifier backends.
const (
	BackendGBDT     = "gbdt"
	BackendLightGBM = "lightgbm"
)

// Logging configures diagnostics on stderr and the optional rotated file.
type Logging struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Data names the input columns and the file encoding.
type Data struct {
	Charset         string `mapstructure:"charset"`
	TimestampColumn string `mapstructure:"timestamp_column"`
	TargetColumn    string `mapstructure:"target_column"`
	IDColumn        string `mapstructure:"id_column"`
}

// Simulation configures the simulate command.
type Simulation struct {
	// MaxRows caps scored rows; values <= 0 mean unlimited.
	MaxRows int `mapstructure:"max_rows"`
}

// Journal configures the run journal. An empty path disables it.
type Journal struct {
	Path string `mapstructure:"path"`
}

// Settings is the resolved configuration of one invocation.
type Settings struct {
	Logging    Logging             `mapstructure:"logging"`
	Data       Data                `mapstructure:"data"`
	Journal    Journal             `mapstructure:"journal"`
	Backend    string              `mapstructure:"backend"`
	Model      classifier.Params   `mapstructure:"model"`
	Features   features.Thresholds `mapstructure:"features"`
	Simulation Simulation          `mapstructure:"simulation"`
	Progress   bool                `mapstructure:"progress"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		Logging: Logging{
			Level:      "warn",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Data: Data{
			Charset:         "utf-8",
			TimestampColumn: "Timestamp",
			TargetColumn:    "Response",
			IDColumn:        "Id",
		},
		Backend:    BackendGBDT,
		Model:      classifier.DefaultParams(),
		Features:   features.DefaultThresholds(),
		Simulation: Simulation{MaxRows: 1000},
	}
}

// SetDefaults registers Defaults on v so env vars and flags can override
// individual keys.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)

	v.SetDefault("data.charset", d.Data.Charset)
	v.SetDefault("data.timestamp_column", d.Data.TimestampColumn)
	v.SetDefault("data.target_column", d.Data.TargetColumn)
	v.SetDefault("data.id_column", d.Data.IDColumn)

	v.SetDefault("backend", d.Backend)
	v.SetDefault("progress", d.Progress)
	v.SetDefault("journal.path", d.Journal.Path)
	v.SetDefault("simulation.max_rows", d.Simulation.MaxRows)

	v.SetDefault("model.n_estimators", d.Model.NEstimators)
	v.SetDefault("model.max_depth", d.Model.MaxDepth)
	v.SetDefault("model.learning_rate", d.Model.LearningRate)
	v.SetDefault("model.subsample", d.Model.Subsample)
	v.SetDefault("model.colsample_bytree", d.Model.ColsampleByTree)
	v.SetDefault("model.reg_lambda", d.Model.RegLambda)
	v.SetDefault("model.min_child_weight", d.Model.MinChildWeight)
	v.SetDefault("model.max_bins", d.Model.MaxBins)
	v.SetDefault("model.random_state", d.Model.RandomState)
	v.SetDefault("model.workers", d.Model.Workers)

	v.SetDefault("features.low_card_max", d.Features.LowCardMax)
	v.SetDefault("features.one_hot_max_width", d.Features.OneHotMaxWidth)
	v.SetDefault("features.row_fraction_cap", d.Features.RowFractionCap)
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	SetDefaults(v)

	s := Defaults()
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	s.Model.ScalePosWeight = 1
	s.Journal.Path = ExpandPath(s.Journal.Path)
	s.Logging.File = ExpandPath(s.Logging.File)
	s.Backend = strings.ToLower(s.Backend)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate reports the first invalid setting.
func (s *Settings) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", common.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if _, err := common.ParseLevel(s.Logging.Level); err != nil {
		return err
	}
	if !slices.Contains([]string{"console", "json"}, s.Logging.Format) {
		return invalid("logging.format must be console or json, got %q", s.Logging.Format)
	}
	if !slices.Contains([]string{BackendGBDT, BackendLightGBM}, s.Backend) {
		return invalid("backend must be %s or %s, got %q", BackendGBDT, BackendLightGBM, s.Backend)
	}
	if s.Data.TimestampColumn == "" || s.Data.TargetColumn == "" {
		return invalid("data.timestamp_column and data.target_column are required")
	}

	m := s.Model
	switch {
	case m.NEstimators <= 0:
		return invalid("model.n_estimators must be positive, got %d", m.NEstimators)
	case m.MaxDepth <= 0:
		return invalid("model.max_depth must be positive, got %d", m.MaxDepth)
	case m.LearningRate <= 0:
		return invalid("model.learning_rate must be positive, got %g", m.LearningRate)
	case m.Subsample <= 0 || m.Subsample > 1:
		return invalid("model.subsample must be in (0, 1], got %g", m.Subsample)
	case m.ColsampleByTree <= 0 || m.ColsampleByTree > 1:
		return invalid("model.colsample_bytree must be in (0, 1], got %g", m.ColsampleByTree)
	case m.RegLambda < 0:
		return invalid("model.reg_lambda must not be negative, got %g", m.RegLambda)
	case m.MaxBins < 2 || m.MaxBins > 65535:
		return invalid("model.max_bins must be in [2, 65535], got %d", m.MaxBins)
	}

	f := s.Features
	if f.LowCardMax < 0 || f.OneHotMaxWidth < 0 || f.RowFractionCap < 0 {
		return invalid("features thresholds must not be negative")
	}
	return nil
}
