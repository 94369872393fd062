package main

import (
	"github.com/spf13/cobra"

	"github.com/Veraticus/intelliinspect/internal/engine"
	"github.com/Veraticus/intelliinspect/internal/report"
)

func trainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train on one date range and score another",
		Long: `Train a classifier on the rows of the train range and report accuracy,
precision, recall, F1, the confusion matrix and the training curve measured
on the test range. Ranges are inclusive calendar dates (YYYY-MM-DD).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return failed("training", runTrain(cmd, a))
		},
	}

	addColumnFlags(cmd)
	cmd.Flags().String("train-start", "", "first day of the training range")
	cmd.Flags().String("train-end", "", "last day of the training range")
	cmd.Flags().String("test-start", "", "first day of the test range")
	cmd.Flags().String("test-end", "", "last day of the test range")
	markRequired(cmd, "train-start", "train-end", "test-start", "test-end")

	return cmd
}

func runTrain(cmd *cobra.Command, a *app) error {
	req := engine.TrainRequest{Source: source(cmd)}
	req.TrainStart, _ = cmd.Flags().GetString("train-start")
	req.TrainEnd, _ = cmd.Flags().GetString("train-end")
	req.TestStart, _ = cmd.Flags().GetString("test-start")
	req.TestEnd, _ = cmd.Flags().GetString("test-end")

	ctx := cmd.Context()
	e, cleanup, err := a.newEngine(ctx, "Training...")
	if err != nil {
		return err
	}
	doc, err := e.Train(ctx, req)
	cleanup()
	if err != nil {
		return err
	}
	return report.Write(a.stdout, doc)
}
