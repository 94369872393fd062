package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/intelliinspect/internal/cli"
	"github.com/Veraticus/intelliinspect/internal/common"
	"github.com/Veraticus/intelliinspect/internal/report"
	"github.com/Veraticus/intelliinspect/internal/storage"
)

var errJournalDisabled = errors.New("run journal is not configured, set --journal or journal.path")

// runView is the JSON shape of a journaled run.
type runView struct {
	Summary    map[string]float64 `json:"summary"`
	ID         string             `json:"id"`
	Command    string             `json:"command"`
	CSVPath    string             `json:"csv"`
	TrainStart string             `json:"trainStart"`
	TrainEnd   string             `json:"trainEnd"`
	EvalStart  string             `json:"evalStart"`
	EvalEnd    string             `json:"evalEnd"`
	Backend    string             `json:"backend"`
	Strategy   string             `json:"strategy"`
	CreatedAt  string             `json:"createdAt"`
	TrainRows  int                `json:"trainRows"`
	EvalRows   int                `json:"evalRows"`
	Features   int                `json:"features"`
	DurationMS int64              `json:"durationMs"`
	OneHot     bool               `json:"oneHot"`
}

func newRunView(r storage.RunRecord) runView {
	return runView{
		ID:         r.ID,
		Command:    r.Command,
		CSVPath:    r.CSVPath,
		TrainStart: r.TrainStart,
		TrainEnd:   r.TrainEnd,
		EvalStart:  r.EvalStart,
		EvalEnd:    r.EvalEnd,
		Backend:    r.Backend,
		Strategy:   r.Strategy,
		CreatedAt:  r.CreatedAt.UTC().Format(report.TimeLayout),
		TrainRows:  r.TrainRows,
		EvalRows:   r.EvalRows,
		Features:   r.Features,
		DurationMS: r.Duration.Milliseconds(),
		OneHot:     r.OneHot,
		Summary:    r.Summary,
	}
}

func runsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List journaled runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return failed("runs", runRuns(cmd, a, args))
		},
	}

	cmd.Flags().Int("limit", 20, "maximum runs to list (0 for all)")
	cmd.Flags().String("format", "json", "output format (json, table)")

	return cmd
}

func runRuns(cmd *cobra.Command, a *app, args []string) error {
	if a.settings.Journal.Path == "" {
		return errJournalDisabled
	}
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return common.NewUserError("invalid --limit", fmt.Errorf("must be 0 or more, got %d", limit))
	}

	ctx := cmd.Context()
	store, err := storage.NewSQLiteStorage(a.settings.Journal.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	if len(args) == 1 {
		run, err := store.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		return report.Write(a.stdout, newRunView(*run))
	}

	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	if format == "table" {
		rows := make([][]string, len(runs))
		for i, r := range runs {
			rows[i] = []string{
				r.ID[:min(8, len(r.ID))],
				r.Command,
				r.CreatedAt.UTC().Format(report.TimeLayout),
				r.Backend,
				r.Strategy,
				strconv.Itoa(r.TrainRows) + "/" + strconv.Itoa(r.EvalRows),
			}
		}
		_, err := fmt.Fprintln(a.stdout, cli.RenderTable(
			[]string{"id", "command", "created", "backend", "strategy", "rows"}, rows))
		return err
	}

	views := make([]runView, len(runs))
	for i, r := range runs {
		views[i] = newRunView(r)
	}
	return report.Write(a.stdout, views)
}
