// Package gbdt is a histogram gradient-boosted decision tree classifier for
// sparse float32 input.
//
// Trees grow depth-wise. Each level builds one gradient histogram per node and
// feature from the stored entries only; the zero bin is derived from the node
// totals, so sparse columns never densify. Binary labels use a logistic
// objective and more than two classes use softmax.
package gbdt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/Veraticus/intelliinspect/internal/classifier"
	"github.com/Veraticus/intelliinspect/internal/matrix"
)

// BackendName identifies this backend in logs and errors.
const BackendName = "gbdt"

// Booster errors.
var (
	ErrNotFitted              = errors.New("model is not fitted")
	ErrEmptyTraining          = errors.New("training matrix has no rows")
	ErrInvalidLabel           = errors.New("invalid label")
	ErrUnknownMetric          = errors.New("unknown eval metric")
	ErrMetricObjective        = errors.New("eval metric does not match objective")
	ErrEarlyStoppingNeedsEval = errors.New("early stopping needs at least one eval set")
	ErrNoEvalHistory          = errors.New("no evaluation result, eval sets were not used during training")
)

// Option configures a Booster.
type Option func(*Booster)

// WithLogger sets the logger used for verbose rounds and fit summaries.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Booster) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Booster implements classifier.Classifier and classifier.HistoryProvider.
type Booster struct {
	obj           objective
	logger        *slog.Logger
	history       classifier.EvalHistory
	metrics       []string
	base          []float64
	rounds        [][]*tree
	params        classifier.Params
	used          int
	bestIteration int
	nFeatures     int
}

var (
	_ classifier.Classifier      = (*Booster)(nil)
	_ classifier.HistoryProvider = (*Booster)(nil)
	_ classifier.RoundReporter   = (*Booster)(nil)
)

// New returns an unfitted booster.
func New(p classifier.Params, opts ...Option) *Booster {
	if p.MaxDepth <= 0 {
		p.MaxDepth = classifier.DefaultParams().MaxDepth
	}
	if p.MaxBins <= 1 || p.MaxBins > math.MaxUint16 {
		p.MaxBins = classifier.DefaultParams().MaxBins
	}
	if p.ScalePosWeight <= 0 {
		p.ScalePosWeight = 1
	}
	b := &Booster{params: p, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewClassifier adapts New to classifier.Factory.
func NewClassifier(p classifier.Params) (classifier.Classifier, error) {
	return New(p), nil
}

// SetEvalMetrics sets the metrics recorded for each eval set. The last one
// drives early stopping.
func (b *Booster) SetEvalMetrics(metrics ...string) error {
	for _, m := range metrics {
		if _, ok := metricFuncs[m]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownMetric, m)
		}
	}
	b.metrics = append([]string(nil), metrics...)
	return nil
}

// Fit trains the model, replacing any previous fit.
func (b *Booster) Fit(ctx context.Context, X *matrix.CSR, y []int, opts classifier.FitOptions) error {
	obj, err := b.validate(X, y, opts)
	if err != nil {
		return err
	}

	// Metrics only apply to eval sets; without them they are never checked.
	var metricNames []string
	var metricFns []metricFunc
	if len(opts.EvalSets) > 0 {
		metricNames = b.metrics
		if len(metricNames) == 0 {
			metricNames = []string{defaultMetric(obj)}
		}
		metricFns = make([]metricFunc, len(metricNames))
		for i, name := range metricNames {
			if metricFns[i], err = resolveMetric(name, obj); err != nil {
				return err
			}
		}
	}

	weights := make([]float64, len(y))
	for i, label := range y {
		weights[i] = 1
		if obj.groups() == 1 && label == 1 {
			weights[i] = b.params.ScalePosWeight
		}
	}

	b.obj = obj
	b.nFeatures = X.Cols
	b.base = obj.baseMargin(y, weights)
	b.rounds = nil
	b.history = nil
	b.used = 0
	b.bestIteration = -1

	groups := obj.groups()
	trainMargins := initMargins(X.Rows, b.base)
	evalMargins := make([][]float64, len(opts.EvalSets))
	if len(opts.EvalSets) > 0 {
		b.history = make(classifier.EvalHistory, len(opts.EvalSets))
		for i, es := range opts.EvalSets {
			evalMargins[i] = initMargins(es.X.Rows, b.base)
			series := make(map[string][]float64, len(metricNames))
			for _, name := range metricNames {
				series[name] = []float64{}
			}
			b.history[classifier.EvalSetName(i)] = series
		}
	}

	rng := rand.New(rand.NewPCG(uint64(b.params.RandomState), 0x9e3779b97f4a7c15)) // #nosec G404 -- reproducible sampling, not security
	gr := &grower{
		data:           quantize(X, b.params.MaxBins),
		lambda:         b.params.RegLambda,
		minChildWeight: b.params.MinChildWeight,
		maxDepth:       b.params.MaxDepth,
		workers:        b.params.WorkerCount(),
	}

	grad := make([]float64, X.Rows*groups)
	hess := make([]float64, X.Rows*groups)
	gp := make([]gradPair, X.Rows)
	rowNode := make([]int32, X.Rows)

	bestScore := math.Inf(1)
	for round := 0; round < b.params.NEstimators; round++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("boosting interrupted at round %d: %w", round, err)
		}

		obj.gradients(trainMargins, y, weights, grad, hess)
		sampled := b.sampleRows(rng, X.Rows)

		trees := make([]*tree, groups)
		for k := 0; k < groups; k++ {
			for r := range gp {
				gp[r] = gradPair{g: grad[r*groups+k], h: hess[r*groups+k]}
			}
			copy(rowNode, sampled)
			t, err := gr.grow(ctx, gp, rowNode, b.sampleFeatures(rng, X.Cols), b.params.LearningRate)
			if err != nil {
				return fmt.Errorf("boosting interrupted at round %d: %w", round, err)
			}
			trees[k] = t
			addTree(trainMargins, X, t, groups, k)
			for i, es := range opts.EvalSets {
				addTree(evalMargins[i], es.X, t, groups, k)
			}
		}
		b.rounds = append(b.rounds, trees)

		if len(opts.EvalSets) == 0 {
			b.progress(opts, round)
			continue
		}

		var last float64
		attrs := []any{"round", round}
		for i, es := range opts.EvalSets {
			probs := b.probabilities(evalMargins[i], es.X.Rows)
			name := classifier.EvalSetName(i)
			for m, fn := range metricFns {
				v := fn(probs, es.Y)
				b.history[name][metricNames[m]] = append(b.history[name][metricNames[m]], v)
				last = v
				attrs = append(attrs, name+"-"+metricNames[m], v)
			}
		}
		if opts.Verbose {
			b.logger.Info("boosting round", attrs...)
		}
		b.progress(opts, round)

		if opts.EarlyStoppingRounds > 0 {
			if last < bestScore {
				bestScore = last
				b.bestIteration = round
			} else if round-b.bestIteration >= opts.EarlyStoppingRounds {
				b.logger.Debug("early stopping",
					"round", round,
					"best_iteration", b.bestIteration,
					"best_score", bestScore)
				break
			}
		}
	}

	b.used = len(b.rounds)
	if opts.EarlyStoppingRounds > 0 && b.bestIteration >= 0 {
		b.used = b.bestIteration + 1
	}
	b.logger.Debug("gbdt fit complete",
		"objective", obj.name(),
		"rounds", len(b.rounds),
		"used", b.used,
		"features", X.Cols,
		"rows", X.Rows)
	return nil
}

func (b *Booster) validate(X *matrix.CSR, y []int, opts classifier.FitOptions) (objective, error) {
	if X == nil || X.Rows == 0 {
		return nil, ErrEmptyTraining
	}
	if len(y) != X.Rows {
		return nil, fmt.Errorf("%w: %d labels for %d rows", matrix.ErrShape, len(y), X.Rows)
	}
	if opts.EarlyStoppingRounds > 0 && len(opts.EvalSets) == 0 {
		return nil, ErrEarlyStoppingNeedsEval
	}

	maxLabel := 0
	for i, label := range y {
		if label < 0 {
			return nil, fmt.Errorf("%w: %d at row %d", ErrInvalidLabel, label, i)
		}
		if label > maxLabel {
			maxLabel = label
		}
	}
	var obj objective = binaryLogistic{}
	if maxLabel > 1 {
		obj = softmax{k: maxLabel + 1}
	}

	for i, es := range opts.EvalSets {
		if es.X == nil || es.X.Cols != X.Cols {
			return nil, fmt.Errorf("%w: eval set %d has a different width", matrix.ErrShape, i)
		}
		if len(es.Y) != es.X.Rows {
			return nil, fmt.Errorf("%w: eval set %d has %d labels for %d rows", matrix.ErrShape, i, len(es.Y), es.X.Rows)
		}
		for r, label := range es.Y {
			if label < 0 || label >= obj.classes() {
				return nil, fmt.Errorf("%w: eval set %d label %d at row %d", ErrInvalidLabel, i, label, r)
			}
		}
	}
	return obj, nil
}

func (b *Booster) sampleRows(rng *rand.Rand, rows int) []int32 {
	out := make([]int32, rows)
	if b.params.Subsample <= 0 || b.params.Subsample >= 1 {
		return out
	}
	for i := range out {
		if rng.Float64() >= b.params.Subsample {
			out[i] = -1
		}
	}
	return out
}

func (b *Booster) sampleFeatures(rng *rand.Rand, cols int) []int {
	if cols == 0 {
		return nil
	}
	k := cols
	if b.params.ColsampleByTree > 0 && b.params.ColsampleByTree < 1 {
		k = int(b.params.ColsampleByTree * float64(cols))
		if k < 1 {
			k = 1
		}
	}
	perm := rng.Perm(cols)[:k]
	slices.Sort(perm)
	return perm
}

func (b *Booster) progress(opts classifier.FitOptions, round int) {
	if opts.Progress != nil {
		opts.Progress(round+1, b.params.NEstimators)
	}
}

func (b *Booster) probabilities(margins []float64, rows int) [][]float64 {
	probs := make([][]float64, rows)
	for i := range probs {
		probs[i] = make([]float64, b.obj.classes())
		b.obj.probabilities(margins, i, probs[i])
	}
	return probs
}

// PredictProba returns one probability per class for each row.
func (b *Booster) PredictProba(X *matrix.CSR) ([][]float64, error) {
	if b.obj == nil {
		return nil, ErrNotFitted
	}
	if X.Cols != b.nFeatures {
		return nil, fmt.Errorf("%w: model has %d features, input has %d", matrix.ErrShape, b.nFeatures, X.Cols)
	}
	groups := b.obj.groups()
	margins := initMargins(X.Rows, b.base)
	for _, trees := range b.rounds[:b.used] {
		for k, t := range trees {
			addTree(margins, X, t, groups, k)
		}
	}
	return b.probabilities(margins, X.Rows), nil
}

// Predict returns the most likely class per row. Binary models predict 1 when
// P(1) > 0.5.
func (b *Booster) Predict(X *matrix.CSR) ([]int, error) {
	probs, err := b.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(probs))
	for i, p := range probs {
		if len(p) == 2 {
			if p[1] > 0.5 {
				out[i] = 1
			}
			continue
		}
		out[i] = argmax(p)
	}
	return out, nil
}

// EvalsResult returns a copy of the recorded evaluation history.
func (b *Booster) EvalsResult() (classifier.EvalHistory, error) {
	if b.history == nil {
		return nil, ErrNoEvalHistory
	}
	out := make(classifier.EvalHistory, len(b.history))
	for set, series := range b.history {
		out[set] = make(map[string][]float64, len(series))
		for metric, values := range series {
			out[set][metric] = append([]float64{}, values...)
		}
	}
	return out, nil
}

// BestIteration is the zero-based index of the last round used for prediction.
func (b *Booster) BestIteration() int {
	return b.used - 1
}

// NumRounds is the number of boosting rounds that were trained.
func (b *Booster) NumRounds() int {
	return len(b.rounds)
}

func initMargins(rows int, base []float64) []float64 {
	groups := len(base)
	m := make([]float64, rows*groups)
	for i := 0; i < rows; i++ {
		copy(m[i*groups:(i+1)*groups], base)
	}
	return m
}

func addTree(margins []float64, X *matrix.CSR, t *tree, groups, k int) {
	for i := 0; i < X.Rows; i++ {
		idx, vals := X.Row(i)
		margins[i*groups+k] += t.predict(idx, vals)
	}
}
