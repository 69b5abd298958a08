package commands

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/systmms/dbsts/internal/audit"
	"github.com/systmms/dbsts/internal/config"
	"github.com/systmms/dbsts/internal/metrics"
	"github.com/systmms/dbsts/internal/sweeper"
	"github.com/systmms/dbsts/pkg/adapter"
)

// stack bundles the wired service components shared by the serve and
// sweep commands.
type stack struct {
	backend adapter.Adapter
	store   *audit.Store
	auditDB *sql.DB
	metrics *metrics.Metrics
	sweeper *sweeper.Sweeper
}

func (s *stack) Close() {
	if s.auditDB != nil {
		_ = s.auditDB.Close()
	}
}

// buildStack opens the audit datasource, ensures its schema, connects
// the backend adapter and assembles the sweeper.
func buildStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	def := cfg.Definition

	auditDB, err := sql.Open("postgres", def.Audit.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open audit datasource: %w", err)
	}
	if err := auditDB.PingContext(ctx); err != nil {
		_ = auditDB.Close()
		return nil, fmt.Errorf("audit datasource unreachable: %w", err)
	}

	store := audit.NewStore(auditDB, cfg.Logger)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = auditDB.Close()
		return nil, err
	}

	backend, err := adapter.New(adapter.Config{
		Platform: def.Adapter.Platform,
		Host:     def.Adapter.Host,
		Port:     def.Adapter.Port,
		Database: def.Adapter.Database,
		Username: def.Adapter.Username,
		Password: def.Adapter.Password,
		SSLMode:  def.Adapter.SSLMode,
	}, cfg.Logger)
	if err != nil {
		_ = auditDB.Close()
		return nil, err
	}

	m := metrics.New()
	sw := sweeper.New(backend, store, def.Sweep, def.Credentials.Retention, cfg.Logger, m)

	return &stack{
		backend: backend,
		store:   store,
		auditDB: auditDB,
		metrics: m,
		sweeper: sw,
	}, nil
}

func defaultCredentialDuration(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Definition.Credentials.Duration) * time.Second
}
