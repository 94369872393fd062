package engine

import (
	"context"
	"time"

	"github.com/Veraticus/intelliinspect/internal/classifier"
	"github.com/Veraticus/intelliinspect/internal/metrics"
	"github.com/Veraticus/intelliinspect/internal/report"
	"github.com/Veraticus/intelliinspect/internal/storage"
)

// TrainRequest trains on one window and scores another.
type TrainRequest struct {
	Source
	TrainStart string
	TrainEnd   string
	TestStart  string
	TestEnd    string
}

// Train fits a model on the train window and reports its scores on the test
// window together with the training curve.
func (e *Engine) Train(ctx context.Context, req TrainRequest) (*report.Training, error) {
	started := time.Now()
	p, err := e.prepare(req.Source, req.TrainStart, req.TrainEnd, req.TestStart, req.TestEnd, EmptyTrainMessage)
	if err != nil {
		return nil, err
	}
	yTest, err := targetLabels(p.evalRows, p.target)
	if err != nil {
		return nil, err
	}

	res, err := e.fit(ctx, p, true, yTest)
	if err != nil {
		return nil, err
	}

	yPred, err := res.Model.Predict(p.encoded.Eval)
	if err != nil {
		return nil, err
	}
	scores := metrics.Evaluate(yTest, yPred)

	history, err := metrics.ReconstructHistory(e.evalHistory(res.Model), res.LossMetric, res.ErrorMetric,
		func() (float64, error) {
			trainPred, err := res.Model.Predict(p.encoded.Train)
			if err != nil {
				return 0, err
			}
			return metrics.Accuracy(p.yTrain, trainPred), nil
		})
	if err != nil {
		return nil, err
	}

	doc := report.NewTraining(scores, history)

	run := e.runRecord(storage.CommandTrain, req.Source, p, res, started)
	run.TrainStart, run.TrainEnd = req.TrainStart, req.TrainEnd
	run.EvalStart, run.EvalEnd = req.TestStart, req.TestEnd
	run.Summary = summarize(map[string]float64{
		"accuracy":  doc.Accuracy,
		"precision": doc.Precision,
		"recall":    doc.Recall,
		"f1score":   doc.F1Score,
		"epochs":    float64(len(doc.History.Epochs)),
	}, res.Model)
	e.record(ctx, run)

	return doc, nil
}

// evalHistory returns the recorded history, or nil when the backend keeps
// none or cannot produce it.
func (e *Engine) evalHistory(model classifier.Classifier) classifier.EvalHistory {
	hp, ok := model.(classifier.HistoryProvider)
	if !ok {
		return nil
	}
	h, err := hp.EvalsResult()
	if err != nil {
		e.logger.Debug("no evaluation history", "error", err)
		return nil
	}
	return h
}
