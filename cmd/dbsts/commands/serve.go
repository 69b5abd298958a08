package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/dbsts/internal/config"
	"github.com/systmms/dbsts/internal/identity"
	"github.com/systmms/dbsts/internal/issuer"
	"github.com/systmms/dbsts/internal/metrics"
	"github.com/systmms/dbsts/internal/server"
)

const shutdownTimeout = 15 * time.Second

func NewServeCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the token exchange service",
		Long: `Start the HTTP listener that exchanges web identities for ephemeral
database accounts, together with the background sweep loop that revokes
accounts once their validity window has passed.

Examples:
  # Run with the default sts.yaml in the working directory
  dbsts serve

  # Run with an explicit config and debug logging
  dbsts serve --config /etc/dbsts/sts.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			metrics.Init()

			st, err := buildStack(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			def := cfg.Definition

			resolver, err := identity.NewResolver(def.JWT, defaultCredentialDuration(cfg), cfg.Logger)
			if err != nil {
				return err
			}

			iss, err := issuer.New(st.backend, st.store, issuer.Config{
				UsernameLength:  def.Credentials.UsernameLength,
				PasswordLength:  def.Credentials.PasswordLength,
				DefaultDuration: defaultCredentialDuration(cfg),
				DefaultRoles:    def.Credentials.Roles,
			}, cfg.Logger, st.metrics)
			if err != nil {
				return err
			}

			go st.sweeper.Run(ctx)

			srv := server.New(resolver, iss, def.Server, def.Client, def.Adapter, cfg.Logger)
			srv.Start()

			<-ctx.Done()
			cfg.Logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
}
