// Package lightgbm adapts the scigo LightGBM port to classifier.Classifier.
//
// The port trains on dense gonum matrices and takes a single metric name. It
// keeps no per-round evaluation history, so a fit that asks for eval sets
// without early stopping is rejected with a FitCapabilityError. Early
// stopping runs through scigo's Trainer against the last eval set.
package lightgbm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	lgbm "github.com/YuminosukeSato/scigo/sklearn/lightgbm"
	scigolog "github.com/YuminosukeSato/scigo/pkg/log"
	"gonum.org/v1/gonum/mat"

	"github.com/Veraticus/intelliinspect/internal/classifier"
	"github.com/Veraticus/intelliinspect/internal/matrix"
)

// BackendName identifies this backend in logs and errors.
const BackendName = "lightgbm"

// Adapter errors.
var (
	ErrEmptyTraining = errors.New("training matrix has no rows")
	ErrUnknownMetric = errors.New("unknown eval metric")
	ErrNotFitted     = errors.New("model is not fitted")
	ErrInvalidLabel  = errors.New("invalid label")
)

var metricNames = map[string]string{
	classifier.MetricLogLoss:      "binary_logloss",
	classifier.MetricError:        "binary_error",
	classifier.MetricMultiLogLoss: "multi_logloss",
	classifier.MetricMultiError:   "multi_error",
}

// Classifier wraps an LGBMClassifier. After Fit exactly one of clf's model,
// predictor or constant serves predictions.
type Classifier struct {
	clf       *lgbm.LGBMClassifier
	predictor *lgbm.Predictor
	logger    *slog.Logger
	// constant holds the class probabilities of a single-class fit.
	constant []float64
	classes  []int
	params   classifier.Params
	rounds   int
	fitted   bool
}

var (
	_ classifier.Classifier    = (*Classifier)(nil)
	_ classifier.RoundReporter = (*Classifier)(nil)
)

// New builds an unfitted classifier. scigo's package logger is redirected to
// logger so nothing is written to stdout.
func New(p classifier.Params, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	scigolog.SetLoggerProvider(NewLogProvider(logger))

	clf := lgbm.NewLGBMClassifier()
	clf.NumIterations = p.NEstimators
	clf.MaxDepth = p.MaxDepth
	clf.NumLeaves = numLeaves(p.MaxDepth)
	clf.LearningRate = p.LearningRate
	clf.Subsample = p.Subsample
	if p.Subsample > 0 && p.Subsample < 1 {
		clf.SubsampleFreq = 1
	}
	clf.ColsampleBytree = p.ColsampleByTree
	clf.RegLambda = p.RegLambda
	clf.MinChildWeight = p.MinChildWeight
	clf.RandomState = int(p.RandomState)
	clf.NumThreads = p.WorkerCount()
	clf.Deterministic = true
	clf.Verbosity = -1

	return &Classifier{clf: clf, logger: logger, params: p}
}

// NewClassifier adapts New to classifier.Factory.
func NewClassifier(p classifier.Params) (classifier.Classifier, error) {
	return New(p, slog.Default()), nil
}

// numLeaves caps leaves at 31, the LightGBM default, or what the depth allows.
func numLeaves(depth int) int {
	if depth <= 0 || depth >= 5 {
		return 31
	}
	return 1 << depth
}

// SetEvalMetrics accepts at most one metric.
func (c *Classifier) SetEvalMetrics(metrics ...string) error {
	switch len(metrics) {
	case 0:
		c.clf.Metric = "auto"
		return nil
	case 1:
		name, ok := metricNames[metrics[0]]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownMetric, metrics[0])
		}
		c.clf.Metric = name
		return nil
	default:
		return &classifier.FitCapabilityError{Backend: BackendName, Op: "SetEvalMetrics", Option: "metric lists"}
	}
}

// Fit trains on X and y. Positive rows are weighted by ScalePosWeight. A
// single observed class yields a constant model.
func (c *Classifier) Fit(ctx context.Context, X *matrix.CSR, y []int, opts classifier.FitOptions) error {
	if len(opts.EvalSets) > 0 && opts.EarlyStoppingRounds <= 0 {
		return &classifier.FitCapabilityError{Backend: BackendName, Op: "Fit", Option: "eval_set"}
	}
	if opts.EarlyStoppingRounds > 0 && len(opts.EvalSets) == 0 {
		return &classifier.FitCapabilityError{Backend: BackendName, Op: "Fit", Option: "early_stopping_rounds"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if X == nil || X.Rows == 0 {
		return ErrEmptyTraining
	}
	if len(y) != X.Rows {
		return fmt.Errorf("%w: %d labels for %d rows", matrix.ErrShape, len(y), X.Rows)
	}
	for _, set := range opts.EvalSets {
		if set.X == nil || set.X.Rows != len(set.Y) || set.X.Cols != X.Cols {
			return fmt.Errorf("%w: eval set", matrix.ErrShape)
		}
	}

	c.reset()
	c.classes = observedClasses(y)
	if c.classes[0] < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLabel, c.classes[0])
	}
	if len(c.classes) == 1 {
		c.fitConstant(c.classes[0])
		c.logger.Debug("lightgbm fit single class", "rows", X.Rows, "class", c.classes[0])
		return c.finish(opts, X)
	}

	labels := labelMatrix(y)
	weights := c.weights(y)

	if opts.EarlyStoppingRounds > 0 {
		if err := c.fitWithValidation(X, labels, weights, opts); err != nil {
			return fmt.Errorf("lightgbm fit failed: %w", err)
		}
		return c.finish(opts, X)
	}

	c.clf.ShowProgress = opts.Verbose
	if err := c.clf.FitWeighted(X.Dense(), labels, weights); err != nil {
		return fmt.Errorf("lightgbm fit failed: %w", err)
	}
	if c.clf.Model != nil {
		c.rounds = c.clf.Model.NumIteration
	}
	return c.finish(opts, X)
}

func (c *Classifier) reset() {
	c.predictor = nil
	c.constant = nil
	c.classes = nil
	c.rounds = 0
	c.fitted = false
}

// fitWithValidation trains through scigo's Trainer, stopping once the loss on
// the last eval set has not improved for EarlyStoppingRounds rounds.
func (c *Classifier) fitWithValidation(X *matrix.CSR, labels *mat.Dense, weights []float64, opts classifier.FitOptions) error {
	objective, numClass := string(lgbm.BinaryLogistic), 1
	if len(c.classes) > 2 {
		objective, numClass = string(lgbm.MulticlassSoftmax), len(c.classes)
	}

	t := lgbm.NewTrainer(lgbm.TrainingParams{
		NumIterations:   c.clf.NumIterations,
		LearningRate:    c.clf.LearningRate,
		NumLeaves:       c.clf.NumLeaves,
		MaxDepth:        c.clf.MaxDepth,
		MinDataInLeaf:   c.clf.MinChildSamples,
		Lambda:          c.clf.RegLambda,
		Alpha:           c.clf.RegAlpha,
		MinGainToSplit:  1e-7,
		BaggingFraction: c.clf.Subsample,
		BaggingFreq:     c.clf.SubsampleFreq,
		FeatureFraction: c.clf.ColsampleBytree,
		MaxBin:          255,
		MinDataInBin:    3,
		Objective:       objective,
		NumClass:        numClass,
		Seed:            c.clf.RandomState,
		Deterministic:   true,
		Verbosity:       -1,
		EarlyStopping:   opts.EarlyStoppingRounds,
		Metric:          c.clf.Metric,
	})
	t.SetSampleWeight(weights)

	eval := opts.EvalSets[len(opts.EvalSets)-1]
	if err := t.FitWithValidation(X.Dense(), labels, &lgbm.ValidationData{
		X: eval.X.Dense(),
		Y: labelMatrix(eval.Y),
	}); err != nil {
		return err
	}

	model := t.GetModel()
	c.predictor = lgbm.NewPredictor(model)
	c.predictor.SetNumThreads(c.params.WorkerCount())
	c.predictor.SetDeterministic(true)
	c.rounds = model.NumIteration
	return nil
}

// fitConstant predicts class with certainty for every row.
func (c *Classifier) fitConstant(class int) {
	width := max(2, class+1)
	c.constant = make([]float64, width)
	c.constant[class] = 1
}

func (c *Classifier) finish(opts classifier.FitOptions, X *matrix.CSR) error {
	c.fitted = true
	if opts.Progress != nil {
		opts.Progress(c.params.NEstimators, c.params.NEstimators)
	}
	c.logger.Debug("lightgbm fit complete",
		"rows", X.Rows,
		"features", X.Cols,
		"rounds", c.rounds,
		"metric", c.clf.Metric)
	return nil
}

func (c *Classifier) weights(y []int) []float64 {
	weights := make([]float64, len(y))
	for i, label := range y {
		weights[i] = 1
		if label == 1 && c.params.ScalePosWeight > 0 {
			weights[i] = c.params.ScalePosWeight
		}
	}
	return weights
}

func observedClasses(y []int) []int {
	classes := slices.Clone(y)
	slices.Sort(classes)
	return slices.Compact(classes)
}

func labelMatrix(y []int) *mat.Dense {
	labels := make([]float64, len(y))
	for i, label := range y {
		labels[i] = float64(label)
	}
	return mat.NewDense(len(y), 1, labels)
}

// Predict returns the predicted class per row.
func (c *Classifier) Predict(X *matrix.CSR) ([]int, error) {
	probs, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(probs))
	for i, row := range probs {
		if len(c.classes) == 2 {
			out[i] = c.classes[0]
			if row[1] >= 0.5 {
				out[i] = c.classes[1]
			}
			continue
		}
		best := 0
		for j, p := range row {
			if p > row[best] {
				best = j
			}
		}
		out[i] = best
		if best < len(c.classes) {
			out[i] = c.classes[best]
		}
	}
	return out, nil
}

// PredictProba returns class probabilities per row in sorted label order.
func (c *Classifier) PredictProba(X *matrix.CSR) ([][]float64, error) {
	if !c.fitted {
		return nil, ErrNotFitted
	}
	if c.constant != nil {
		out := make([][]float64, X.Rows)
		for i := range out {
			out[i] = slices.Clone(c.constant)
		}
		return out, nil
	}

	var (
		proba mat.Matrix
		err   error
	)
	if c.predictor != nil {
		proba, err = c.predictor.PredictProba(X.Dense())
	} else {
		proba, err = c.clf.PredictProba(X.Dense())
	}
	if err != nil {
		return nil, fmt.Errorf("lightgbm predict failed: %w", err)
	}

	rows, cols := proba.Dims()
	if rows != X.Rows || cols < 2 {
		return nil, fmt.Errorf("%w: probabilities %dx%d for %d rows", matrix.ErrShape, rows, cols, X.Rows)
	}
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
		for j := range out[i] {
			out[i][j] = proba.At(i, j)
		}
	}
	return out, nil
}

// NumRounds is the number of trees in the fitted model.
func (c *Classifier) NumRounds() int {
	return c.rounds
}

// BestIteration is the zero-based index of the last tree used for prediction.
func (c *Classifier) BestIteration() int {
	return c.rounds - 1
}
