package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/intelliinspect/internal/cli"
	"github.com/Veraticus/intelliinspect/internal/profile"
	"github.com/Veraticus/intelliinspect/internal/report"
	"github.com/Veraticus/intelliinspect/internal/table"
)

func profileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Summarize a dataset before choosing date ranges",
		Long: `Report the record and column counts, the pass rate of the target column,
the first and last timestamp and the kind of every column.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return failed("profile", runProfile(cmd, a))
		},
	}

	addColumnFlags(cmd)
	cmd.Flags().String("format", "json", "output format (json, table)")

	return cmd
}

func runProfile(cmd *cobra.Command, a *app) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}

	src := source(cmd)
	if src.TimestampColumn == "" {
		src.TimestampColumn = a.settings.Data.TimestampColumn
	}
	if src.TargetColumn == "" {
		src.TargetColumn = a.settings.Data.TargetColumn
	}

	tbl, err := table.ReadFile(src.Path, table.ReadOptions{Charset: a.settings.Data.Charset})
	if err != nil {
		return err
	}
	p := profile.Build(src.Path, tbl, src.TimestampColumn, src.TargetColumn)

	if format == "table" {
		_, err := fmt.Fprintln(a.stdout, cli.RenderBox(cli.FormatTitle(p.FileName),
			cli.RenderKeyValues(p.Pairs())+"\n\n"+
				cli.RenderTable([]string{"column", "kind", "distinct", "missing"}, p.Rows())))
		return err
	}
	return report.Write(a.stdout, p)
}
