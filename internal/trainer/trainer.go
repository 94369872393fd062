// Package trainer fits a classifier with imbalance weighting and a descending
// sequence of fit strategies for backends with narrower capabilities.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/intelliinspect/internal/classifier"
	"github.com/Veraticus/intelliinspect/internal/matrix"
)

// EarlyStoppingRounds is the patience used when the backend supports it.
const EarlyStoppingRounds = 25

// Fit strategy names, strongest first.
const (
	StrategyEarlyStopping = "with-eval-early-stopping"
	StrategyEval          = "with-eval"
	StrategyPlain         = "plain"
)

// ErrNoStrategy is returned when every fit strategy was rejected.
var ErrNoStrategy = errors.New("no fit strategy accepted")

// ScalePosWeight returns max(1, negatives) / max(1, positives).
func ScalePosWeight(y []int) float64 {
	pos, neg := 0, 0
	for _, label := range y {
		switch label {
		case 1:
			pos++
		case 0:
			neg++
		}
	}
	return float64(max(1, neg)) / float64(max(1, pos))
}

// ChooseMetrics returns the loss and error metric names for the labels.
// Only more than two distinct labels selects the multiclass pair.
func ChooseMetrics(y []int) (loss, errMetric string) {
	distinct := make(map[int]struct{})
	for _, label := range y {
		distinct[label] = struct{}{}
		if len(distinct) > 2 {
			return classifier.MetricMultiLogLoss, classifier.MetricMultiError
		}
	}
	return classifier.MetricLogLoss, classifier.MetricError
}

// Input is one training request.
type Input struct {
	X     *matrix.CSR
	EvalX *matrix.CSR
	// Progress receives boosting round updates when set.
	Progress func(round, total int)
	Y        []int
	EvalY    []int
	// TrackEval enables the metric list and the eval-set strategies. Without
	// it the primary loss is set and only a plain fit is attempted.
	TrackEval bool
}

// Result describes the fitted model and how it was obtained.
type Result struct {
	Model          classifier.Classifier
	LossMetric     string
	ErrorMetric    string
	Strategy       string
	Metrics        []string
	ScalePosWeight float64
}

// Trainer builds and fits one classifier per call.
type Trainer struct {
	factory classifier.Factory
	logger  *slog.Logger
	params  classifier.Params
}

// New returns a trainer. A nil logger uses slog.Default.
func New(factory classifier.Factory, params classifier.Params, logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{factory: factory, params: params, logger: logger}
}

type strategy struct {
	fit  func(ctx context.Context) error
	name string
}

// Train fits a fresh model on in.X and in.Y.
func (t *Trainer) Train(ctx context.Context, in Input) (*Result, error) {
	params := t.params
	params.ScalePosWeight = ScalePosWeight(in.Y)

	model, err := t.factory(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	loss, errMetric := ChooseMetrics(in.Y)
	res := &Result{
		Model:          model,
		LossMetric:     loss,
		ErrorMetric:    errMetric,
		ScalePosWeight: params.ScalePosWeight,
	}

	candidates := [][]string{{loss}}
	if in.TrackEval {
		candidates = [][]string{{loss, errMetric}, {loss}}
	}
	if res.Metrics, err = t.configureMetrics(model, candidates); err != nil {
		return nil, err
	}

	strategies := t.strategies(model, in)
	var lastErr error
	for _, s := range strategies {
		err := s.fit(ctx)
		if err == nil {
			res.Strategy = s.name
			t.logger.Info("classifier fitted",
				"strategy", s.name,
				"metrics", strings.Join(res.Metrics, ","),
				"scale_pos_weight", res.ScalePosWeight,
				"rows", in.X.Rows,
				"features", in.X.Cols)
			return res, nil
		}
		if !classifier.IsCapability(err) {
			return nil, fmt.Errorf("fit (%s): %w", s.name, err)
		}
		t.logger.Debug("fit strategy rejected", "strategy", s.name, "error", err)
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %w", ErrNoStrategy, lastErr)
}

// configureMetrics tries each metric list in turn and falls through to no
// explicit metrics when all are rejected.
func (t *Trainer) configureMetrics(model classifier.Classifier, candidates [][]string) ([]string, error) {
	for _, metrics := range candidates {
		err := model.SetEvalMetrics(metrics...)
		if err == nil {
			return metrics, nil
		}
		if !classifier.IsCapability(err) {
			return nil, fmt.Errorf("failed to set eval metrics: %w", err)
		}
		t.logger.Debug("eval metrics rejected", "metrics", strings.Join(metrics, ","), "error", err)
	}
	return nil, nil
}

func (t *Trainer) strategies(model classifier.Classifier, in Input) []strategy {
	plain := strategy{name: StrategyPlain, fit: func(ctx context.Context) error {
		return model.Fit(ctx, in.X, in.Y, classifier.FitOptions{Progress: in.Progress})
	}}
	if !in.TrackEval {
		return []strategy{plain}
	}

	evalSets := []classifier.EvalSet{
		{X: in.X, Y: in.Y},
		{X: in.EvalX, Y: in.EvalY},
	}
	return []strategy{
		{name: StrategyEarlyStopping, fit: func(ctx context.Context) error {
			return model.Fit(ctx, in.X, in.Y, classifier.FitOptions{
				EvalSets:            evalSets,
				EarlyStoppingRounds: EarlyStoppingRounds,
				Progress:            in.Progress,
			})
		}},
		{name: StrategyEval, fit: func(ctx context.Context) error {
			return model.Fit(ctx, in.X, in.Y, classifier.FitOptions{
				EvalSets: evalSets,
				Progress: in.Progress,
			})
		}},
		plain,
	}
}
