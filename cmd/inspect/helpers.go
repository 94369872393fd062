package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/intelliinspect/internal/cli"
	"github.com/Veraticus/intelliinspect/internal/common"
	"github.com/Veraticus/intelliinspect/internal/engine"
	"github.com/Veraticus/intelliinspect/internal/storage"
)

// addColumnFlags adds the input flags shared by every data command.
func addColumnFlags(cmd *cobra.Command) {
	cmd.Flags().String("csv", "", "path to the input CSV")
	cmd.Flags().String("timestamp-col", "Timestamp", "timestamp column name")
	cmd.Flags().String("target-col", "Response", "target column name")
	markRequired(cmd, "csv")
}

func markRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			slog.Error("failed to mark flag as required", "error", err)
		}
	}
}

// source builds the engine input. Column flags override configuration only
// when given explicitly.
func source(cmd *cobra.Command) engine.Source {
	src := engine.Source{}
	src.Path, _ = cmd.Flags().GetString("csv")
	if cmd.Flags().Changed("timestamp-col") {
		src.TimestampColumn, _ = cmd.Flags().GetString("timestamp-col")
	}
	if cmd.Flags().Changed("target-col") {
		src.TargetColumn, _ = cmd.Flags().GetString("target-col")
	}
	return src
}

// openJournal opens the configured journal. A journal that cannot be opened
// is logged and skipped.
func (a *app) openJournal(ctx context.Context) *storage.SQLiteStorage {
	path := a.settings.Journal.Path
	if path == "" {
		return nil
	}
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		common.LogWarn(nil, err, "Run journal unavailable", common.Fields{"path": path})
		return nil
	}
	if err := store.Migrate(ctx); err != nil {
		common.LogWarn(nil, err, "Run journal migration failed", common.Fields{"path": path})
		_ = store.Close()
		return nil
	}
	return store
}

// newEngine builds the engine for a train or simulate run. The returned
// cleanup finishes the progress bar and closes the journal.
func (a *app) newEngine(ctx context.Context, description string) (*engine.Engine, func(), error) {
	opts := []engine.Option{engine.WithLogger(slog.Default())}

	var progress *cli.Progress
	if a.settings.Progress {
		progress = cli.NewProgress(a.stderr, description)
		opts = append(opts, engine.WithProgress(progress.Update))
	}

	store := a.openJournal(ctx)
	if store != nil {
		opts = append(opts, engine.WithJournal(store))
	}

	cleanup := func() {
		if progress != nil {
			progress.Finish()
		}
		if store != nil {
			_ = store.Close()
		}
	}

	e, err := engine.New(a.settings, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return e, cleanup, nil
}

// checkFormat accepts the output formats of profile and runs.
func checkFormat(format string) error {
	if format != "json" && format != "table" {
		return common.NewUserError("invalid --format", fmt.Errorf("want json or table, got %q", format))
	}
	return nil
}
