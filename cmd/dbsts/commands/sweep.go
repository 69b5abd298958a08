package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/dbsts/internal/config"
	"github.com/systmms/dbsts/internal/metrics"
)

func NewSweepCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Revoke expired credentials once and exit",
		Long: `Run a single reconciliation pass: every audit record whose validity
window has passed is revoked on the backend and then expired or removed
according to the configured retention policy.

Useful from cron or as a manual cleanup when the service is not running.

Examples:
  dbsts sweep --config /etc/dbsts/sts.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			metrics.Init()

			ctx := cmd.Context()
			st, err := buildStack(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			st.sweeper.Sweep(ctx)
			return nil
		},
	}
}
