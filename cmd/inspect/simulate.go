package main

import (
	"github.com/spf13/cobra"

	"github.com/Veraticus/intelliinspect/internal/engine"
	"github.com/Veraticus/intelliinspect/internal/report"
)

func simulateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Train on one date range and score every row of another",
		Long: `Train a classifier on the train range, then predict Pass or Fail with a
confidence for each row of the simulation range, in file order. Sensor
readings (temperature, pressure, humidity) are attached when matching columns
exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return failed("simulation", runSimulate(cmd, a))
		},
	}

	addColumnFlags(cmd)
	cmd.Flags().String("train-start", "", "first day of the training range")
	cmd.Flags().String("train-end", "", "last day of the training range")
	cmd.Flags().String("sim-start", "", "first day of the simulation range")
	cmd.Flags().String("sim-end", "", "last day of the simulation range")
	cmd.Flags().Int("max-rows", 1000, "maximum rows to score (0 for no limit)")
	markRequired(cmd, "train-start", "train-end", "sim-start", "sim-end")

	_ = a.v.BindPFlag("simulation.max_rows", cmd.Flags().Lookup("max-rows"))

	return cmd
}

func runSimulate(cmd *cobra.Command, a *app) error {
	req := engine.SimulateRequest{Source: source(cmd)}
	req.TrainStart, _ = cmd.Flags().GetString("train-start")
	req.TrainEnd, _ = cmd.Flags().GetString("train-end")
	req.SimStart, _ = cmd.Flags().GetString("sim-start")
	req.SimEnd, _ = cmd.Flags().GetString("sim-end")

	ctx := cmd.Context()
	e, cleanup, err := a.newEngine(ctx, "Simulating...")
	if err != nil {
		return err
	}
	rows, err := e.Simulate(ctx, req)
	cleanup()
	if err != nil {
		return err
	}
	return report.Write(a.stdout, rows)
}
