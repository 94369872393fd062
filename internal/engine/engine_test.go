package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/intelliinspect/internal/common"
	"github.com/Veraticus/intelliinspect/internal/config"
	"github.com/Veraticus/intelliinspect/internal/storage"
	"github.com/Veraticus/intelliinspect/internal/table"
	"github.com/Veraticus/intelliinspect/internal/testutil"
	"github.com/Veraticus/intelliinspect/internal/trainer"
	"github.com/Veraticus/intelliinspect/internal/window"
)

type MockJournal struct {
	mock.Mock
}

func (m *MockJournal) SaveRun(ctx context.Context, run *storage.RunRecord) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// writeDataset writes rows spaced one hour apart from 2024-01-01. Even rows
// pass and run cool, odd rows fail and run hot.
func writeDataset(t *testing.T, rows int, withTarget bool) string {
	t.Helper()
	d := testutil.NewDataset(t, rows).WithSensors()
	if !withTarget {
		d = d.WithoutTarget()
	}
	return d.WriteFile("")
}

func testSettings() *config.Settings {
	s := config.Defaults()
	s.Model.NEstimators = 30
	s.Model.Workers = 2
	return &s
}

func newEngine(t *testing.T, s *config.Settings, opts ...Option) *Engine {
	t.Helper()
	e, err := New(s, opts...)
	require.NoError(t, err)
	return e
}

// 100 hourly rows cover 2024-01-01 00:00 to 2024-01-05 03:00.
func scenarioTrainRequest(path string) TrainRequest {
	return TrainRequest{
		Source:     Source{Path: path},
		TrainStart: "2024-01-01",
		TrainEnd:   "2024-01-03",
		TestStart:  "2024-01-04",
		TestEnd:    "2024-01-05",
	}
}

func TestTrain_BalancedDisjointWindows(t *testing.T) {
	path := writeDataset(t, 100, true)
	e := newEngine(t, testSettings())

	doc, err := e.Train(context.Background(), scenarioTrainRequest(path))
	require.NoError(t, err)

	for _, v := range []float64{doc.Accuracy, doc.Precision, doc.Recall, doc.F1Score} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
	c := doc.Confusion
	assert.Equal(t, 28, c.TP+c.TN+c.FP+c.FN)
	assert.Greater(t, doc.Accuracy, 90.0)

	require.NotEmpty(t, doc.History.Epochs)
	assert.Equal(t, 1, doc.History.Epochs[0])
	assert.Len(t, doc.History.TrainAccuracy, len(doc.History.Epochs))
	assert.Len(t, doc.History.TrainLogLoss, len(doc.History.Epochs))
}

func TestTrain_LightGBMBackendEarlyStopsWithoutHistory(t *testing.T) {
	path := writeDataset(t, 100, true)
	s := testSettings()
	s.Backend = config.BackendLightGBM

	j := &MockJournal{}
	j.On("SaveRun", mock.Anything, mock.MatchedBy(func(r *storage.RunRecord) bool {
		return r.Strategy == trainer.StrategyEarlyStopping &&
			r.Backend == config.BackendLightGBM &&
			r.Summary["rounds"] >= 1 &&
			r.Summary["best_iteration"] == r.Summary["rounds"]-1
	})).Return(nil).Once()

	doc, err := newEngine(t, s, WithJournal(j)).Train(context.Background(), scenarioTrainRequest(path))
	require.NoError(t, err)

	assert.Equal(t, []int{1}, doc.History.Epochs)
	assert.Len(t, doc.History.TrainAccuracy, 1)
	assert.Empty(t, doc.History.TrainLogLoss)
	assert.NotNil(t, doc.History.TrainLogLoss)
	j.AssertExpectations(t)
}

func TestSimulate_RowCap(t *testing.T) {
	// 24 training rows on 2024-01-01, then 2000 simulation rows.
	d := testutil.NewDataset(t, 2024).WithSensors()
	path := d.WriteFile("")
	s := testSettings()
	s.Simulation.MaxRows = 1000
	e := newEngine(t, s)

	rows, err := e.Simulate(context.Background(), SimulateRequest{
		Source:     Source{Path: path},
		TrainStart: "2024-01-01",
		TrainEnd:   "2024-01-01",
		SimStart:   "2024-01-02",
		SimEnd:     "2024-12-31",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1000)

	for i, r := range rows {
		assert.Equal(t, d.ID(24+i), r.SampleID)
		assert.Contains(t, []string{"Pass", "Fail"}, r.Prediction)
		assert.GreaterOrEqual(t, r.Confidence, 0.0)
		assert.LessOrEqual(t, r.Confidence, 100.0)
		require.NotNil(t, r.Temperature)
		require.NotNil(t, r.Pressure)
		assert.Nil(t, r.Humidity)
	}
	assert.Equal(t, d.Time(24).Format(testutil.TimestampLayout), rows[0].Time)
}

func TestSimulate_Unlimited(t *testing.T) {
	path := writeDataset(t, 60, true)
	s := testSettings()
	s.Simulation.MaxRows = 0

	rows, err := newEngine(t, s).Simulate(context.Background(), SimulateRequest{
		Source:     Source{Path: path},
		TrainStart: "2024-01-01",
		TrainEnd:   "2024-01-01",
		SimStart:   "2024-01-02",
		SimEnd:     "2024-01-31",
	})
	require.NoError(t, err)
	assert.Len(t, rows, 36)
}

func TestTrain_MissingTargetColumn(t *testing.T) {
	path := writeDataset(t, 100, false)
	_, err := newEngine(t, testSettings()).Train(context.Background(), scenarioTrainRequest(path))
	require.Error(t, err)

	assert.Equal(t, common.ExitSchema, common.ExitCode(err))
	assert.Equal(t, "Target column 'Response' missing in CSV.", common.ErrorMessage("training", err))
}

func TestTrain_MissingTimestampColumn(t *testing.T) {
	path := writeDataset(t, 10, true)
	req := scenarioTrainRequest(path)
	req.TimestampColumn = "When"

	_, err := newEngine(t, testSettings()).Train(context.Background(), req)
	assert.Equal(t, common.ExitSchema, common.ExitCode(err))
	assert.Contains(t, err.Error(), "'When'")
}

func TestTrain_EmptyTrainWindow(t *testing.T) {
	path := writeDataset(t, 100, true)
	req := scenarioTrainRequest(path)
	req.TrainStart, req.TrainEnd = "2023-01-01", "2023-01-31"

	_, err := newEngine(t, testSettings()).Train(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, common.ExitEmptyWindow, common.ExitCode(err))
	assert.Equal(t, EmptyTrainMessage, common.ErrorMessage("training", err))
}

func TestSimulate_EmptyWindow(t *testing.T) {
	path := writeDataset(t, 10, true)
	_, err := newEngine(t, testSettings()).Simulate(context.Background(), SimulateRequest{
		Source:     Source{Path: path},
		TrainStart: "2024-01-01",
		TrainEnd:   "2024-01-01",
		SimStart:   "2025-01-01",
		SimEnd:     "2025-01-02",
	})
	assert.Equal(t, common.ExitEmptyWindow, common.ExitCode(err))
	assert.Equal(t, EmptySimulateMessage, err.Error())
}

func TestTrain_InvalidTargetIsOrdinaryError(t *testing.T) {
	tbl, err := table.ReadCSV(strings.NewReader(
		"Timestamp,x,Response\n"+
			"2024-01-01 01:00:00,1,0\n"+
			"2024-01-01 02:00:00,2,yes\n"+
			"2024-01-02 01:00:00,3,1\n"), table.ReadOptions{})
	require.NoError(t, err)

	_, err = newEngine(t, testSettings()).Train(context.Background(), TrainRequest{
		Source:     Source{Table: tbl},
		TrainStart: "2024-01-01", TrainEnd: "2024-01-01",
		TestStart: "2024-01-02", TestEnd: "2024-01-02",
	})
	require.Error(t, err)
	assert.Equal(t, common.ExitFailure, common.ExitCode(err))
	assert.True(t, strings.HasPrefix(common.ErrorMessage("training", err), "training failed: ConversionError: "))
}

func TestTrain_InvalidDate(t *testing.T) {
	path := writeDataset(t, 10, true)
	req := scenarioTrainRequest(path)
	req.TestEnd = "next tuesday"

	_, err := newEngine(t, testSettings()).Train(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, window.ErrInvalidDate)
	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "invalid evaluation window", userErr.UserMessage)
	assert.Equal(t, common.ExitFailure, common.ExitCode(err))
	assert.True(t, strings.HasPrefix(common.ErrorMessage("training", err), "training failed: UserError: invalid evaluation window: "))
}

func TestTrain_JournalFailureDoesNotFailRun(t *testing.T) {
	path := writeDataset(t, 100, true)
	j := &MockJournal{}
	j.On("SaveRun", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	_, err := newEngine(t, testSettings(), WithJournal(j)).Train(context.Background(), scenarioTrainRequest(path))
	require.NoError(t, err)
	j.AssertExpectations(t)
}

func TestTrain_JournalsRun(t *testing.T) {
	path := writeDataset(t, 100, true)
	store := testutil.SetupJournal(t)

	var rounds int
	e := newEngine(t, testSettings(), WithJournal(store), WithProgress(func(round, _ int) { rounds = round }))
	doc, err := e.Train(context.Background(), scenarioTrainRequest(path))
	require.NoError(t, err)
	assert.Positive(t, rounds)

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, storage.CommandTrain, runs[0].Command)
	assert.Equal(t, path, runs[0].CSVPath)
	assert.Equal(t, 72, runs[0].TrainRows)
	assert.Equal(t, 28, runs[0].EvalRows)
	assert.Equal(t, trainer.StrategyEarlyStopping, runs[0].Strategy)
	assert.InDelta(t, doc.Accuracy, runs[0].Summary["accuracy"], 1e-9)
	assert.Positive(t, runs[0].Summary["rounds"])
	assert.Less(t, runs[0].Summary["best_iteration"], runs[0].Summary["rounds"])
}

func TestTrain_Canceled(t *testing.T) {
	path := writeDataset(t, 100, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(t, testSettings()).Train(ctx, scenarioTrainRequest(path))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, common.ExitFailure, common.ExitCode(err))
}

func TestNew_UnknownBackend(t *testing.T) {
	s := testSettings()
	s.Backend = "xgboost"
	_, err := New(s)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
