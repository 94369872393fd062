package trainer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/intelliinspect/internal/classifier"
	"github.com/Veraticus/intelliinspect/internal/matrix"
)

type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) SetEvalMetrics(metrics ...string) error {
	args := m.Called(metrics)
	return args.Error(0)
}

func (m *MockClassifier) Fit(ctx context.Context, X *matrix.CSR, y []int, opts classifier.FitOptions) error {
	args := m.Called(ctx, X, y, opts)
	return args.Error(0)
}

func (m *MockClassifier) Predict(X *matrix.CSR) ([]int, error) {
	args := m.Called(X)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockClassifier) PredictProba(X *matrix.CSR) ([][]float64, error) {
	args := m.Called(X)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float64), args.Error(1)
}

func capErr(op, option string) error {
	return &classifier.FitCapabilityError{Backend: "mock", Op: op, Option: option}
}

func withEarlyStopping(opts classifier.FitOptions) bool {
	return len(opts.EvalSets) == 2 && opts.EarlyStoppingRounds == EarlyStoppingRounds && !opts.Verbose
}

func withEvalOnly(opts classifier.FitOptions) bool {
	return len(opts.EvalSets) == 2 && opts.EarlyStoppingRounds == 0
}

func plainFit(opts classifier.FitOptions) bool {
	return len(opts.EvalSets) == 0 && opts.EarlyStoppingRounds == 0
}

func newInput(t *testing.T, track bool) Input {
	t.Helper()
	X, err := matrix.FromDense(4, 1, []float32{0, 1, 2, 3})
	require.NoError(t, err)
	return Input{
		X:         X,
		Y:         []int{0, 0, 0, 1},
		EvalX:     X,
		EvalY:     []int{0, 1, 0, 1},
		TrackEval: track,
	}
}

func factoryFor(m *MockClassifier, seen *classifier.Params) classifier.Factory {
	return func(p classifier.Params) (classifier.Classifier, error) {
		if seen != nil {
			*seen = p
		}
		return m, nil
	}
}

func TestScalePosWeight(t *testing.T) {
	tests := []struct {
		name string
		y    []int
		want float64
	}{
		{"balanced", []int{0, 1, 0, 1}, 1},
		{"imbalanced", []int{0, 0, 0, 1}, 3},
		{"no positives", []int{0, 0, 0}, 3},
		{"no negatives", []int{1, 1}, 0.5},
		{"empty", nil, 1},
		{"other labels ignored", []int{0, 0, 2, 1}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScalePosWeight(tt.y), 1e-12)
		})
	}
}

func TestChooseMetrics(t *testing.T) {
	tests := []struct {
		name     string
		y        []int
		wantLoss string
		wantErr  string
	}{
		{"binary", []int{0, 1, 1}, classifier.MetricLogLoss, classifier.MetricError},
		{"single class", []int{1, 1}, classifier.MetricLogLoss, classifier.MetricError},
		{"three classes", []int{0, 1, 2}, classifier.MetricMultiLogLoss, classifier.MetricMultiError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loss, errMetric := ChooseMetrics(tt.y)
			assert.Equal(t, tt.wantLoss, loss)
			assert.Equal(t, tt.wantErr, errMetric)
		})
	}
}

func TestTrain_FirstStrategyAccepted(t *testing.T) {
	m := &MockClassifier{}
	m.On("SetEvalMetrics", []string{"logloss", "error"}).Return(nil).Once()
	m.On("Fit", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(withEarlyStopping)).Return(nil).Once()

	var seen classifier.Params
	tr := New(factoryFor(m, &seen), classifier.DefaultParams(), nil)
	res, err := tr.Train(context.Background(), newInput(t, true))
	require.NoError(t, err)

	assert.Equal(t, StrategyEarlyStopping, res.Strategy)
	assert.Equal(t, []string{"logloss", "error"}, res.Metrics)
	assert.InDelta(t, 3.0, res.ScalePosWeight, 1e-12)
	assert.InDelta(t, 3.0, seen.ScalePosWeight, 1e-12)
	assert.Same(t, m, res.Model)
	m.AssertExpectations(t)
}

func TestTrain_DegradesOnCapabilityErrors(t *testing.T) {
	m := &MockClassifier{}
	m.On("SetEvalMetrics", []string{"logloss", "error"}).Return(capErr("SetEvalMetrics", "metric lists")).Once()
	m.On("SetEvalMetrics", []string{"logloss"}).Return(nil).Once()
	m.On("Fit", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(withEarlyStopping)).
		Return(capErr("Fit", "early_stopping_rounds")).Once()
	m.On("Fit", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(withEvalOnly)).
		Return(capErr("Fit", "eval_set")).Once()
	m.On("Fit", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(plainFit)).Return(nil).Once()

	tr := New(factoryFor(m, nil), classifier.DefaultParams(), nil)
	res, err := tr.Train(context.Background(), newInput(t, true))
	require.NoError(t, err)

	assert.Equal(t, StrategyPlain, res.Strategy)
	assert.Equal(t, []string{"logloss"}, res.Metrics)
	m.AssertExpectations(t)
}

func TestTrain_MetricsRejectedEntirely(t *testing.T) {
	m := &MockClassifier{}
	m.On("SetEvalMetrics", mock.Anything).Return(capErr("SetEvalMetrics", "metrics"))
	m.On("Fit", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(withEarlyStopping)).
		Return(capErr("Fit", "early_stopping_rounds")).Once()
	m.On("Fit", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(withEvalOnly)).Return(nil).Once()

	tr := New(factoryFor(m, nil), classifier.DefaultParams(), nil)
	res, err := tr.Train(context.Background(), newInput(t, true))
	require.NoError(t, err)

	assert.Equal(t, StrategyEval, res.Strategy)
	assert.Empty(t, res.Metrics)
	m.AssertNumberOfCalls(t, "SetEvalMetrics", 2)
}

func TestTrain_NonCapabilityErrorStops(t *testing.T) {
	boom := errors.New("singular matrix")
	m := &MockClassifier{}
	m.On("SetEvalMetrics", mock.Anything).Return(nil)
	m.On("Fit", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(withEarlyStopping)).Return(boom).Once()

	tr := New(factoryFor(m, nil), classifier.DefaultParams(), nil)
	_, err := tr.Train(context.Background(), newInput(t, true))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNoStrategy)
	m.AssertNumberOfCalls(t, "Fit", 1)
}

func TestTrain_MetricConfigurationFailure(t *testing.T) {
	boom := errors.New("bad metric")
	m := &MockClassifier{}
	m.On("SetEvalMetrics", mock.Anything).Return(boom)

	tr := New(factoryFor(m, nil), classifier.DefaultParams(), nil)
	_, err := tr.Train(context.Background(), newInput(t, true))
	assert.ErrorIs(t, err, boom)
	m.AssertNotCalled(t, "Fit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTrain_AllStrategiesRejected(t *testing.T) {
	m := &MockClassifier{}
	m.On("SetEvalMetrics", mock.Anything).Return(nil)
	m.On("Fit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(capErr("Fit", "anything"))

	tr := New(factoryFor(m, nil), classifier.DefaultParams(), nil)
	_, err := tr.Train(context.Background(), newInput(t, true))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoStrategy)
	assert.True(t, classifier.IsCapability(err))
	m.AssertNumberOfCalls(t, "Fit", 3)
}

func TestTrain_WithoutEvalTracking(t *testing.T) {
	m := &MockClassifier{}
	m.On("SetEvalMetrics", []string{"logloss"}).Return(nil).Once()
	m.On("Fit", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(plainFit)).Return(nil).Once()

	tr := New(factoryFor(m, nil), classifier.DefaultParams(), nil)
	res, err := tr.Train(context.Background(), newInput(t, false))
	require.NoError(t, err)

	assert.Equal(t, StrategyPlain, res.Strategy)
	assert.Equal(t, []string{"logloss"}, res.Metrics)
	m.AssertExpectations(t)
}

func TestTrain_FactoryError(t *testing.T) {
	boom := errors.New("no backend")
	tr := New(func(classifier.Params) (classifier.Classifier, error) { return nil, boom }, classifier.DefaultParams(), nil)
	_, err := tr.Train(context.Background(), newInput(t, true))
	assert.ErrorIs(t, err, boom)
}
