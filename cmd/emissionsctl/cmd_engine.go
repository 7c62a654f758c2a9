package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
)

func newForecastCmd(root *rootOptions) *cobra.Command {
	var (
		sourcesPath string
		years       int
		target      float64
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Project total emissions forward",
		Example: `  emissionsctl forecast --sources sources.json --years 10
  emissionsctl forecast --sources - --format json < sources.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.validate(); err != nil {
				return err
			}
			model, err := root.model()
			if err != nil {
				return err
			}
			sources, err := readSources(sourcesPath)
			if err != nil {
				return err
			}

			series, err := emissions.Forecast(model, emissions.TotalEmissions(sources), years)
			if err != nil {
				return err
			}
			analytics := emissions.AnalyzeForecast(series)
			targetYear, reached := emissions.TargetYear(series, target)

			out := cmd.OutOrStdout()
			if root.format == "json" {
				result := map[string]any{
					"total":     emissions.TotalEmissions(sources),
					"forecast":  series,
					"analytics": analytics,
				}
				if reached {
					result["target_year"] = targetYear
				}
				return writeJSON(out, result)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "YEAR\tEMISSION (t)")
			for _, p := range series {
				fmt.Fprintf(tw, "%d\t%.2f\n", p.Year, p.Emission)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nTrend: %s (%.2f t/year)\n", analytics.Trend, analytics.AverageAnnualChange)
			if reached {
				fmt.Fprintf(out, "Target of %.0f t met in %d\n", target, targetYear)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sourcesPath, "sources", "", "JSON source file, - for stdin")
	cmd.Flags().IntVar(&years, "years", 10, "forecast horizon")
	cmd.Flags().Float64Var(&target, "target", emissions.DefaultTarget, "emission target in tons")
	_ = cmd.MarkFlagRequired("sources")
	return cmd
}

func newOptimizeCmd(root *rootOptions) *cobra.Command {
	var (
		sourcesPath string
		budget      float64
	)

	cmd := &cobra.Command{
		Use:     "optimize",
		Short:   "Spend a budget on the cheapest reductions",
		Example: `  emissionsctl optimize --sources sources.json --budget 50000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.validate(); err != nil {
				return err
			}
			sources, err := readSources(sourcesPath)
			if err != nil {
				return err
			}

			result, err := emissions.OptimizeForBudget(sources, emissions.DefaultCostModel(), nil, budget)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if root.format == "json" {
				return writeJSON(out, result)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tREDUCTION %\tTONS\tSPENT")
			for _, a := range result.Allocations {
				fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\n", a.Type, a.Percent, a.TonsReduced, a.Spent)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nReduced %.2f t for %.2f of %.2f\n", result.TotalTonsReduced, result.TotalSpent, budget)
			return nil
		},
	}
	cmd.Flags().StringVar(&sourcesPath, "sources", "", "JSON source file, - for stdin")
	cmd.Flags().Float64Var(&budget, "budget", 10000, "reduction budget")
	_ = cmd.MarkFlagRequired("sources")
	return cmd
}

func newAnomaliesCmd(root *rootOptions) *cobra.Command {
	var sourcesPath string

	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Flag unusual source emissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.validate(); err != nil {
				return err
			}
			sources, err := readSources(sourcesPath)
			if err != nil {
				return err
			}

			indexes := emissions.DetectAnomalies(sources)
			out := cmd.OutOrStdout()
			if root.format == "json" {
				flagged := make([]emissions.EmissionSource, 0, len(indexes))
				for _, i := range indexes {
					flagged = append(flagged, sources[i])
				}
				return writeJSON(out, map[string]any{"indexes": indexes, "sources": flagged})
			}

			if len(indexes) == 0 {
				fmt.Fprintln(out, "No anomalies found")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tSOURCE\tEMISSION (t)")
			for _, i := range indexes {
				fmt.Fprintf(tw, "%d\t%s\t%.2f\n", i, sources[i].Type, sources[i].Emission)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&sourcesPath, "sources", "", "JSON source file, - for stdin")
	_ = cmd.MarkFlagRequired("sources")
	return cmd
}

func newPredictBatchCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict-batch FILE.csv",
		Short: "Run the regression model over a feature CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.validate(); err != nil {
				return err
			}
			model, err := root.model()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := emissions.BatchPredict(model, f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if root.format == "json" {
				return writeJSON(out, rows)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROW\tPREDICTION")
			for i, row := range rows {
				fmt.Fprintf(tw, "%d\t%.4f\n", i+1, row.Prediction)
			}
			return tw.Flush()
		},
	}
	return cmd
}
