// Package classifier defines the capability surface shared by the gradient
// boosting backends.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/Veraticus/intelliinspect/internal/matrix"
)

// Evaluation metric names.
const (
	MetricLogLoss      = "logloss"
	MetricError        = "error"
	MetricMultiLogLoss = "mlogloss"
	MetricMultiError   = "merror"
)

// ErrUnsupported is matched by every FitCapabilityError.
var ErrUnsupported = errors.New("unsupported by backend")

// FitCapabilityError reports that a backend does not accept a call shape.
// It is the only fit error callers may recover from by simplifying the call.
type FitCapabilityError struct {
	Backend string
	Op      string
	Option  string
}

func (e *FitCapabilityError) Error() string {
	return fmt.Sprintf("%s: %s does not support %s", e.Backend, e.Op, e.Option)
}

// Is makes errors.Is(err, ErrUnsupported) true.
func (e *FitCapabilityError) Is(target error) bool {
	return target == ErrUnsupported
}

// IsCapability reports whether err is, or wraps, a FitCapabilityError.
func IsCapability(err error) bool {
	var capErr *FitCapabilityError
	return errors.As(err, &capErr)
}

// EvalSet is a labelled matrix evaluated after every boosting round.
type EvalSet struct {
	X *matrix.CSR
	Y []int
}

// FitOptions are the optional parts of a fit call.
type FitOptions struct {
	// Progress, when set, is called after each boosting round.
	Progress            func(round, total int)
	EvalSets            []EvalSet
	EarlyStoppingRounds int
	Verbose             bool
}

// Classifier is a gradient-boosted tree model.
type Classifier interface {
	SetEvalMetrics(metrics ...string) error
	Fit(ctx context.Context, X *matrix.CSR, y []int, opts FitOptions) error
	Predict(X *matrix.CSR) ([]int, error)
	PredictProba(X *matrix.CSR) ([][]float64, error)
}

// EvalHistory is eval set name -> metric name -> value per round. Sets are
// named validation_0, validation_1, ... in the order given to Fit.
type EvalHistory map[string]map[string][]float64

// HistoryProvider is implemented by backends that record evaluation history.
type HistoryProvider interface {
	EvalsResult() (EvalHistory, error)
}

// RoundReporter is implemented by backends that report how many boosting
// rounds they kept.
type RoundReporter interface {
	NumRounds() int
	BestIteration() int
}

// EvalSetName returns the history key of the i-th eval set.
func EvalSetName(i int) string {
	return fmt.Sprintf("validation_%d", i)
}

// Params are the fixed model hyperparameters.
type Params struct {
	NEstimators     int     `mapstructure:"n_estimators"`
	MaxDepth        int     `mapstructure:"max_depth"`
	LearningRate    float64 `mapstructure:"learning_rate"`
	Subsample       float64 `mapstructure:"subsample"`
	ColsampleByTree float64 `mapstructure:"colsample_bytree"`
	RegLambda       float64 `mapstructure:"reg_lambda"`
	MinChildWeight  float64 `mapstructure:"min_child_weight"`
	MaxBins         int     `mapstructure:"max_bins"`
	RandomState     int64   `mapstructure:"random_state"`
	// Workers bounds internal parallelism; values <= 0 use every CPU.
	Workers         int     `mapstructure:"workers"`
	ScalePosWeight  float64 `mapstructure:"-"`
}

// DefaultParams returns 200 trees of depth 6 at learning rate 0.1 with 0.8 row
// and column sampling and seed 42.
func DefaultParams() Params {
	return Params{
		NEstimators:     200,
		MaxDepth:        6,
		LearningRate:    0.1,
		Subsample:       0.8,
		ColsampleByTree: 0.8,
		RegLambda:       1.0,
		MinChildWeight:  1.0,
		MaxBins:         256,
		RandomState:     42,
		Workers:         -1,
		ScalePosWeight:  1.0,
	}
}

// WorkerCount resolves Workers against the machine.
func (p Params) WorkerCount() int {
	if p.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return p.Workers
}

// Factory builds a fresh classifier for one run.
type Factory func(p Params) (Classifier, error)
