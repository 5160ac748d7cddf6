package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/pipeline"
)

var runPeriod string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a single period",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		period, err := model.ParsePeriod(runPeriod)
		if err != nil {
			return err
		}

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.Pipeline.Run(ctx, cfg.Region, period)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}
		logResult(res)

		return encodeJSON(os.Stdout, res.Dataset.Diagnostics)
	},
}

func logResult(res *pipeline.Result) {
	d := res.Dataset.Diagnostics
	zap.L().Info("period complete",
		zap.String("region", d.Region),
		zap.String("period", d.Period.String()),
		zap.String("status", string(d.Status)),
		zap.Int("polygons", d.Polygons),
		zap.Int("records", len(res.Dataset.Records)),
	)
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	runCmd.Flags().StringVar(&runPeriod, "period", "", "period to process, YYYY-MM (required)")
	_ = runCmd.MarkFlagRequired("period")
	rootCmd.AddCommand(runCmd)
}
