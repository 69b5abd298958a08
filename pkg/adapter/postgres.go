package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	dberrors "github.com/systmms/dbsts/internal/errors"
	"github.com/systmms/dbsts/internal/logging"
)

// pgTimestampFormat renders VALID UNTIL timestamps as
// yyyy-MM-dd HH:mm:ssZ.
const pgTimestampFormat = "2006-01-02 15:04:05-0700"

// Postgres materializes credentials as PostgreSQL roles. Role
// management commands cannot go through bound parameters, so every
// interpolated value is quoted via pq before interpolation.
type Postgres struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewPostgres creates a Postgres adapter over an open connection pool.
func NewPostgres(db *sql.DB, logger *logging.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

// Platform returns the target platform identifier.
func (a *Postgres) Platform() string {
	return PlatformPostgres
}

// Create creates a login role with the credential's password and
// expiration, grants membership in the credential's roles and connect
// privilege on its database scope.
func (a *Postgres) Create(ctx context.Context, cred Credential) (Credential, error) {
	if cred.Username == "" || cred.Password == "" {
		return Credential{}, dberrors.AdapterError{
			Platform:  PlatformPostgres,
			Operation: "create",
			Err:       errors.New("username and password are required"),
		}
	}

	role := pq.QuoteIdentifier(cred.Username)

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE ROLE %s WITH LOGIN PASSWORD %s", role, pq.QuoteLiteral(cred.Password))
	if !cred.ValidUntil.IsZero() {
		fmt.Fprintf(&b, " VALID UNTIL %s", pq.QuoteLiteral(cred.ValidUntil.Format(pgTimestampFormat)))
	}
	if len(cred.Roles) > 0 {
		fmt.Fprintf(&b, " IN ROLE %s", quoteIdentifiers(cred.Roles))
	}

	statements := []string{b.String()}
	if cred.Database != "" {
		statements = append(statements,
			fmt.Sprintf("GRANT CONNECT ON DATABASE %s TO %s", pq.QuoteIdentifier(cred.Database), role))
	}
	if len(cred.Roles) > 0 {
		statements = append(statements,
			fmt.Sprintf("ALTER ROLE %s SET ROLE %s", role, pq.QuoteIdentifier(cred.Roles[0])))
	}

	for _, stmt := range statements {
		a.logger.Debug("exec: %s", logging.Redact(stmt, []string{cred.Password}))
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			// Principal may already exist by the time a grant fails;
			// cleanup is the caller's responsibility.
			return Credential{}, dberrors.AdapterError{
				Platform:  PlatformPostgres,
				Operation: "create",
				Err:       err,
			}
		}
	}

	return cred, nil
}

// Delete reverses the grants made by Create: revoke connect privilege,
// revoke role membership, disable login, drop the role. A principal
// that no longer exists is a no-op.
func (a *Postgres) Delete(ctx context.Context, cred Credential) error {
	if cred.Username == "" {
		return dberrors.AdapterError{
			Platform:  PlatformPostgres,
			Operation: "delete",
			Err:       errors.New("username is required"),
		}
	}

	var exists bool
	err := a.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", cred.Username).Scan(&exists)
	if err != nil {
		return dberrors.AdapterError{Platform: PlatformPostgres, Operation: "delete", Err: err}
	}
	if !exists {
		a.logger.Debug("role %s already removed", cred.Username)
		return nil
	}

	role := pq.QuoteIdentifier(cred.Username)

	var statements []string
	if cred.Database != "" {
		statements = append(statements,
			fmt.Sprintf("REVOKE CONNECT ON DATABASE %s FROM %s", pq.QuoteIdentifier(cred.Database), role))
	}
	for _, r := range cred.Roles {
		statements = append(statements,
			fmt.Sprintf("REVOKE %s FROM %s", pq.QuoteIdentifier(r), role))
	}
	statements = append(statements,
		fmt.Sprintf("ALTER USER %s WITH NOLOGIN", role),
		fmt.Sprintf("DROP ROLE IF EXISTS %s", role),
	)

	a.logger.Debug("drop role for %s", cred.Username)
	for _, stmt := range statements {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return dberrors.AdapterError{
				Platform:  PlatformPostgres,
				Operation: "delete",
				Err:       err,
			}
		}
	}

	return nil
}

func quoteIdentifiers(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = pq.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}
