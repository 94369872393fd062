package engine

import (
	"context"
	"time"

	"github.com/Veraticus/intelliinspect/internal/common"
	"github.com/Veraticus/intelliinspect/internal/report"
	"github.com/Veraticus/intelliinspect/internal/storage"
)

// SimulateRequest trains on one window and scores every row of another.
type SimulateRequest struct {
	Source
	TrainStart string
	TrainEnd   string
	SimStart   string
	SimEnd     string
}

// Simulate fits on the train window and scores the simulation window row by
// row, in file order, up to the configured row cap.
func (e *Engine) Simulate(ctx context.Context, req SimulateRequest) ([]report.SimulationRow, error) {
	started := time.Now()
	p, err := e.prepare(req.Source, req.TrainStart, req.TrainEnd, req.SimStart, req.SimEnd, EmptySimulateMessage)
	if err != nil {
		return nil, err
	}

	res, err := e.fit(ctx, p, false, nil)
	if err != nil {
		return nil, err
	}

	rows, X := p.evalRows, p.encoded.Eval
	if limit := e.settings.Simulation.MaxRows; limit > 0 && rows.Len() > limit {
		common.LogInfo(e.logger, "simulation rows capped", common.Fields{"rows": rows.Len(), "max_rows": limit})
		rows, X = rows.Head(limit), X.Head(limit)
	}

	proba, err := res.Model.PredictProba(X)
	if err != nil {
		return nil, err
	}

	timestamps := make([]time.Time, rows.Len())
	for i := range timestamps {
		timestamps[i] = p.selection.Timestamps[p.selection.Eval[i]]
	}

	out, err := report.Simulation(report.SimulationInput{
		Rows:       rows,
		IDColumn:   e.settings.Data.IDColumn,
		Timestamps: timestamps,
		Proba:      proba,
	})
	if err != nil {
		return nil, err
	}

	failures := 0
	for _, r := range out {
		if r.Prediction == report.LabelFail {
			failures++
		}
	}
	run := e.runRecord(storage.CommandSimulate, req.Source, p, res, started)
	run.TrainStart, run.TrainEnd = req.TrainStart, req.TrainEnd
	run.EvalStart, run.EvalEnd = req.SimStart, req.SimEnd
	run.Summary = summarize(map[string]float64{
		"rows":     float64(len(out)),
		"failures": float64(failures),
	}, res.Model)
	e.record(ctx, run)

	return out, nil
}
