package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/urban-sprawl/internal/output"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the baseline and PostGIS output tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx, cfg)
		if err != nil {
			return err
		}
		if pool != nil {
			defer pool.Close()
		}

		st, err := openBaselines(ctx, cfg, pool)
		if err != nil {
			return eris.Wrap(err, "open baseline store")
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate baseline store")
		}

		if cfg.Output.PostGIS {
			sink := &output.PostGISSink{Pool: pool}
			if err := sink.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate postgis output")
			}
		}

		zap.L().Info("migrations complete",
			zap.String("baseline_driver", cfg.Baseline.Driver),
			zap.Bool("postgis_output", cfg.Output.PostGIS),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
