// Package engine runs the train and simulate flows end to end: read the CSV,
// split it into time windows, encode features, fit and score.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/intelliinspect/internal/classifier"
	"github.com/Veraticus/intelliinspect/internal/common"
	"github.com/Veraticus/intelliinspect/internal/config"
	"github.com/Veraticus/intelliinspect/internal/features"
	"github.com/Veraticus/intelliinspect/internal/gbdt"
	"github.com/Veraticus/intelliinspect/internal/lightgbm"
	"github.com/Veraticus/intelliinspect/internal/storage"
	"github.com/Veraticus/intelliinspect/internal/table"
	"github.com/Veraticus/intelliinspect/internal/trainer"
	"github.com/Veraticus/intelliinspect/internal/window"
)

// Window error messages.
const (
	EmptyTrainMessage    = "No rows in train and/or test ranges."
	EmptySimulateMessage = "No rows in train and/or simulation ranges."
)

// Journal records completed runs.
type Journal interface {
	SaveRun(ctx context.Context, run *storage.RunRecord) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records every successful run in j.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithFactory overrides the classifier backend chosen by the settings.
func WithFactory(f classifier.Factory) Option {
	return func(e *Engine) { e.factory = f }
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProgress receives boosting round updates.
func WithProgress(fn func(round, total int)) Option {
	return func(e *Engine) { e.progress = fn }
}

// Engine runs train and simulate requests against one configuration.
type Engine struct {
	journal  Journal
	factory  classifier.Factory
	logger   *slog.Logger
	progress func(round, total int)
	settings config.Settings
}

// New builds an engine. The classifier backend comes from s.Backend unless
// WithFactory is given.
func New(s *config.Settings, opts ...Option) (*Engine, error) {
	e := &Engine{settings: *s, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	if e.factory == nil {
		f, err := FactoryFor(s.Backend, e.logger)
		if err != nil {
			return nil, err
		}
		e.factory = f
	}
	return e, nil
}

// FactoryFor returns the classifier factory for a backend name.
func FactoryFor(backend string, logger *slog.Logger) (classifier.Factory, error) {
	switch backend {
	case config.BackendGBDT, "":
		return func(p classifier.Params) (classifier.Classifier, error) {
			return gbdt.New(p, gbdt.WithLogger(logger)), nil
		}, nil
	case config.BackendLightGBM:
		return func(p classifier.Params) (classifier.Classifier, error) {
			return lightgbm.New(p, logger), nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", common.ErrInvalidConfig, backend)
	}
}

// Source names the input: a CSV path, or a table already in memory.
type Source struct {
	Table *table.Table
	Path  string
	// TimestampColumn and TargetColumn override the configured names.
	TimestampColumn string
	TargetColumn    string
}

// prepared is a dataset split into two windows and encoded.
type prepared struct {
	encoded   *features.Encoded
	table     *table.Table
	selection *window.Selection
	trainRows *table.Table
	evalRows  *table.Table
	yTrain    []int
	tsColumn  string
	target    string
}

func (e *Engine) columns(src Source) (string, string) {
	ts, target := src.TimestampColumn, src.TargetColumn
	if ts == "" {
		ts = e.settings.Data.TimestampColumn
	}
	if target == "" {
		target = e.settings.Data.TargetColumn
	}
	return ts, target
}

func (e *Engine) load(src Source) (*table.Table, error) {
	if src.Table != nil {
		return src.Table, nil
	}
	return table.ReadFile(src.Path, table.ReadOptions{Charset: e.settings.Data.Charset})
}

// prepare reads src, checks the schema, selects both windows and encodes
// them. Only the training target is converted here.
func (e *Engine) prepare(src Source, trainStart, trainEnd, evalStart, evalEnd, emptyMessage string) (*prepared, error) {
	tbl, err := e.load(src)
	if err != nil {
		return nil, err
	}

	tsColumn, target := e.columns(src)
	if !tbl.Has(tsColumn) {
		return nil, common.NewSchemaError("Timestamp", tsColumn)
	}
	if !tbl.Has(target) {
		return nil, common.NewSchemaError("Target", target)
	}

	trainWindow, err := window.New(trainStart, trainEnd)
	if err != nil {
		return nil, common.NewUserError("invalid train window", err)
	}
	evalWindow, err := window.New(evalStart, evalEnd)
	if err != nil {
		return nil, common.NewUserError("invalid evaluation window", err)
	}

	sel, err := window.Select(tbl, tsColumn, trainWindow, evalWindow, emptyMessage)
	if err != nil {
		return nil, err
	}
	if sel.Dropped > 0 {
		e.logger.Info("dropped rows with invalid timestamps", "rows", sel.Dropped, "column", tsColumn)
	}

	p := &prepared{
		table:     tbl,
		selection: sel,
		trainRows: tbl.Take(sel.Train),
		evalRows:  tbl.Take(sel.Eval),
		tsColumn:  tsColumn,
		target:    target,
	}
	p.yTrain, err = targetLabels(p.trainRows, target)
	if err != nil {
		return nil, err
	}

	pipeline := features.NewPipeline(e.settings.Features, e.logger)
	p.encoded, err = pipeline.Encode(
		p.trainRows.Without(tsColumn, target),
		p.evalRows.Without(tsColumn, target),
	)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("windows encoded",
		"train_rows", len(sel.Train),
		"eval_rows", len(sel.Eval),
		"features", p.encoded.Fitted.Width(),
		"one_hot", p.encoded.Fitted.OneHotApplied)
	return p, nil
}

func targetLabels(tbl *table.Table, target string) ([]int, error) {
	col, _ := tbl.Column(target)
	y, err := col.Ints()
	if err != nil {
		return nil, fmt.Errorf("failed to read target: %w", err)
	}
	return y, nil
}

func (e *Engine) fit(ctx context.Context, p *prepared, trackEval bool, yEval []int) (*trainer.Result, error) {
	t := trainer.New(e.factory, e.settings.Model, e.logger)
	return t.Train(ctx, trainer.Input{
		X:         p.encoded.Train,
		Y:         p.yTrain,
		EvalX:     p.encoded.Eval,
		EvalY:     yEval,
		TrackEval: trackEval,
		Progress:  e.progress,
	})
}

// record writes run to the journal. Failures are logged, never returned.
func (e *Engine) record(ctx context.Context, run *storage.RunRecord) {
	if e.journal == nil {
		return
	}
	if err := e.journal.SaveRun(ctx, run); err != nil {
		common.LogWarn(e.logger, err, "failed to journal run", common.Fields{"command": run.Command, "csv": run.CSVPath})
		return
	}
	e.logger.Debug("run journaled", "id", run.ID, "command", run.Command)
}

func (e *Engine) runRecord(command string, src Source, p *prepared, res *trainer.Result, started time.Time) *storage.RunRecord {
	path := src.Path
	if path == "" {
		path = "<memory>"
	}
	return &storage.RunRecord{
		Command:   command,
		CSVPath:   path,
		Backend:   e.settings.Backend,
		Strategy:  res.Strategy,
		TrainRows: len(p.selection.Train),
		EvalRows:  len(p.selection.Eval),
		Features:  p.encoded.Fitted.Width(),
		OneHot:    p.encoded.Fitted.OneHotApplied,
		Duration:  time.Since(started),
	}
}

// summarize adds the kept boosting rounds to a journal summary when the
// backend reports them.
func summarize(summary map[string]float64, model classifier.Classifier) map[string]float64 {
	if r, ok := model.(classifier.RoundReporter); ok {
		summary["rounds"] = float64(r.NumRounds())
		summary["best_iteration"] = float64(r.BestIteration())
	}
	return summary
}
