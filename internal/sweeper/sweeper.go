// Package sweeper revokes database credentials whose validity window has
// passed and reconciles the audit ledger with the backend state.
package sweeper

import (
	"context"
	"time"

	"github.com/systmms/dbsts/internal/audit"
	"github.com/systmms/dbsts/internal/config"
	"github.com/systmms/dbsts/internal/logging"
	"github.com/systmms/dbsts/internal/metrics"
	"github.com/systmms/dbsts/pkg/adapter"
)

// Ledger is the slice of the audit store the sweeper needs.
type Ledger interface {
	FindExpired(ctx context.Context, asOf time.Time) ([]audit.Record, error)
	MarkExpired(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
}

// Sweeper periodically scans the ledger for credentials past their
// valid-until timestamp and revokes them on the backend.
type Sweeper struct {
	adapter      adapter.Adapter
	ledger       Ledger
	retention    string
	interval     time.Duration
	initialDelay time.Duration
	logger       *logging.Logger
	metrics      *metrics.Metrics
}

// New builds a sweeper. Retention decides what happens to the audit row
// after a successful revoke: RetentionExpire keeps it with status
// expired, RetentionDelete removes it.
func New(a adapter.Adapter, ledger Ledger, cfg config.SweepConfig, retention string, logger *logging.Logger, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		adapter:      a,
		ledger:       ledger,
		retention:    retention,
		interval:     time.Duration(cfg.Interval) * time.Second,
		initialDelay: time.Duration(cfg.InitialDelay) * time.Second,
		logger:       logger,
		metrics:      m,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval after
// the initial delay. Runs never overlap: the next tick waits for the
// previous sweep to finish.
func (s *Sweeper) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.initialDelay):
	}

	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs a single pass: find expired records, revoke each on the
// backend and apply the retention policy. A failed revoke leaves the
// record untouched so a later pass retries it.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.metrics.RecordSweepRun()

	records, err := s.ledger.FindExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("sweep: list expired credentials: %v", err)
		return
	}
	if len(records) == 0 {
		return
	}
	s.logger.Info("sweep: revoking %d expired credential(s)", len(records))

	for _, rec := range records {
		if err := s.revoke(ctx, rec); err != nil {
			s.metrics.RecordRevocation("error")
			s.logger.Error("sweep: revoke %s on %s: %v", rec.Username, rec.Database, err)
			continue
		}
		s.metrics.RecordRevocation("ok")
	}
}

func (s *Sweeper) revoke(ctx context.Context, rec audit.Record) error {
	cred := adapter.Credential{
		Database: rec.Database,
		Username: rec.Username,
		Roles:    rec.Roles,
	}
	if err := s.adapter.Delete(ctx, cred); err != nil {
		return err
	}

	if s.retention == config.RetentionDelete {
		return s.ledger.Remove(ctx, rec.ID)
	}
	return s.ledger.MarkExpired(ctx, rec.ID)
}
