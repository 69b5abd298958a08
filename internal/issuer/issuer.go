package issuer

import (
	"context"
	"fmt"
	"time"

	"github.com/systmms/dbsts/internal/audit"
	"github.com/systmms/dbsts/internal/identity"
	"github.com/systmms/dbsts/internal/logging"
	"github.com/systmms/dbsts/internal/metrics"
	"github.com/systmms/dbsts/pkg/adapter"
)

// AuditWriter persists the ledger entry for an issued credential.
type AuditWriter interface {
	Insert(ctx context.Context, rec audit.Record) error
}

// Config controls generated credential material and default lifetime.
type Config struct {
	UsernameLength  int
	PasswordLength  int
	DefaultDuration time.Duration
	DefaultRoles    []string
}

// Issuer orchestrates one identity-to-credential exchange: role merge,
// credential generation, adapter invocation and audit persistence.
type Issuer struct {
	adapter         adapter.Adapter
	audit           AuditWriter
	usernames       *KeyGenerator
	passwords       *KeyGenerator
	defaultDuration time.Duration
	defaultRoles    []string
	logger          *logging.Logger
	metrics         *metrics.Metrics
}

// New creates an Issuer.
func New(a adapter.Adapter, w AuditWriter, cfg Config, logger *logging.Logger, m *metrics.Metrics) (*Issuer, error) {
	usernames, err := NewKeyGenerator(cfg.UsernameLength, UsernameSpace)
	if err != nil {
		return nil, fmt.Errorf("invalid username length: %w", err)
	}
	passwords, err := NewKeyGenerator(cfg.PasswordLength, PasswordSpace)
	if err != nil {
		return nil, fmt.Errorf("invalid password length: %w", err)
	}

	return &Issuer{
		adapter:         a,
		audit:           w,
		usernames:       usernames,
		passwords:       passwords,
		defaultDuration: cfg.DefaultDuration,
		defaultRoles:    cfg.DefaultRoles,
		logger:          logger,
		metrics:         m,
	}, nil
}

// Exchange turns a web identity into an ephemeral backend credential.
// Role tiers are a strict override, not a union: requested roles beat
// identity roles beat service defaults.
func (i *Issuer) Exchange(ctx context.Context, id identity.WebIdentity, requestedRoles []string) (adapter.Credential, error) {
	start := time.Now()

	i.logger.Info("exchange web identity for db user")

	now := time.Now()
	expiration := id.ExpiresAt
	if expiration.IsZero() {
		expiration = now.Add(i.defaultDuration)
	}

	roles := i.defaultRoles
	if len(id.Roles) > 0 {
		roles = id.Roles
	}
	if len(requestedRoles) > 0 {
		roles = requestedRoles
	}

	username, err := i.usernames.GenerateKey()
	if err != nil {
		return adapter.Credential{}, err
	}
	password, err := i.passwords.GenerateKey()
	if err != nil {
		return adapter.Credential{}, err
	}

	draft := adapter.Credential{
		Database:   id.Database,
		Username:   username,
		Password:   password,
		Roles:      roles,
		ValidUntil: expiration,
	}

	cred, err := i.adapter.Create(ctx, draft)
	if err != nil {
		i.metrics.RecordExchange("error", time.Since(start))
		return adapter.Credential{}, err
	}

	rec := audit.Record{
		ID:         audit.NewRecordID(),
		CreatedAt:  now,
		WebIssuer:  id.Issuer,
		WebUser:    id.Username,
		Database:   cred.Database,
		Username:   cred.Username,
		Roles:      cred.Roles,
		ValidUntil: cred.ValidUntil,
		Status:     audit.StatusActive,
	}
	if err := i.audit.Insert(ctx, rec); err != nil {
		// The backend role is now live with no tracking row: the
		// credential is withheld from the caller and the leak is only
		// visible in logs. There is no compensating cleanup.
		i.logger.Error("audit store failed for issued user %s: %v", cred.Username, err)
		i.metrics.RecordExchange("error", time.Since(start))
		return adapter.Credential{}, fmt.Errorf("failed to record issued credential: %w", err)
	}

	i.logger.Debug("created db user %s valid until %s", cred.Username, cred.ValidUntil)
	i.metrics.RecordExchange("success", time.Since(start))

	return cred, nil
}
