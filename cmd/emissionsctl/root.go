package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
)

type rootOptions struct {
	modelPath string
	format    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "emissionsctl",
		Short: "CO2 emission forecasting toolkit",
		Long: `emissionsctl runs the emission engine against local source files and
operates the report delivery job.

Sources are read from a JSON array of {"type", "emission"} objects.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.modelPath, "model", "", "regression model file (default: reference model)")
	root.PersistentFlags().StringVar(&opts.format, "format", "table", "output format: table, json")

	root.AddCommand(
		newForecastCmd(opts),
		newOptimizeCmd(opts),
		newAnomaliesCmd(opts),
		newPredictBatchCmd(opts),
		newSendReportsCmd(opts),
	)
	return root
}

func (o *rootOptions) validate() error {
	if o.format != "table" && o.format != "json" {
		return fmt.Errorf("unsupported format %q", o.format)
	}
	return nil
}

func (o *rootOptions) model() (*emissions.LinearModel, error) {
	if o.modelPath == "" {
		return emissions.DefaultLinearModel(), nil
	}
	return emissions.LoadModel(o.modelPath)
}

// readSources loads and validates a JSON source list from path, or stdin for "-"
func readSources(path string) ([]emissions.EmissionSource, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var records []emissions.SourceRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: failed to decode sources: %v", emissions.ErrInvalidInput, err)
	}
	return emissions.ValidateRecords(records)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
