package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/urban-sprawl/internal/baseline"
	"github.com/sells-group/urban-sprawl/internal/model"
)

var baselineResetFrom string

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Inspect or reset stored baselines",
}

// withBaselines opens the configured store for a baseline subcommand.
func withBaselines(ctx context.Context, fn func(baseline.Store) error) error {
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
	return fn(st)
}

var baselineStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List the stored snapshots of the region",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBaselines(cmd.Context(), func(st baseline.Store) error {
			hist, err := st.History(cmd.Context(), cfg.Region)
			if err != nil {
				return eris.Wrap(err, "baseline history")
			}
			if hist == nil {
				hist = []baseline.Entry{}
			}
			return encodeJSON(os.Stdout, hist)
		})
	},
}

var baselineResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete snapshots from a period onwards",
	Long:  "Removes every snapshot of the region at or after --from so the periods can be reprocessed from the previous baseline.",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := model.ParsePeriod(baselineResetFrom)
		if err != nil {
			return err
		}
		return withBaselines(cmd.Context(), func(st baseline.Store) error {
			unlock, err := st.Lock(cmd.Context(), cfg.Region)
			if err != nil {
				return eris.Wrap(err, "lock baseline")
			}
			defer unlock(context.WithoutCancel(cmd.Context()))

			n, err := st.Reset(cmd.Context(), cfg.Region, from)
			if err != nil {
				return eris.Wrap(err, "baseline reset")
			}
			zap.L().Info("baseline reset",
				zap.String("region", cfg.Region),
				zap.String("from", from.String()),
				zap.Int("removed", n),
			)
			return nil
		})
	},
}

func init() {
	baselineResetCmd.Flags().StringVar(&baselineResetFrom, "from", "", "first period to delete, YYYY-MM (required)")
	_ = baselineResetCmd.MarkFlagRequired("from")
	baselineCmd.AddCommand(baselineStatusCmd, baselineResetCmd)
	rootCmd.AddCommand(baselineCmd)
}
