package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/systmms/dbsts/internal/logging"
)

// Status of an audit record. A record starts active and is moved to a
// terminal status only by the expiry sweep.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusDeleted Status = "deleted"
)

// Record is one ledger entry tracking an issued credential.
type Record struct {
	ID         string
	CreatedAt  time.Time
	WebIssuer  string
	WebUser    string
	Database   string
	Username   string
	Roles      []string
	ValidUntil time.Time
	Status     Status
}

// NewRecordID generates an opaque unique record identifier.
func NewRecordID() string {
	return uuid.NewString()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS db_user (
    id          TEXT PRIMARY KEY,
    created_at  TIMESTAMPTZ NOT NULL,
    web_issuer  TEXT,
    web_user    TEXT,
    db_database TEXT,
    db_user     TEXT NOT NULL,
    db_roles    TEXT,
    valid_until TIMESTAMPTZ NOT NULL,
    status      TEXT NOT NULL
)`

// Store persists the ledger of issued credentials on the service
// datasource.
type Store struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewStore creates a Store over an open connection pool.
func NewStore(db *sql.DB, logger *logging.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// EnsureSchema creates the ledger table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure audit schema: %w", err)
	}
	return nil
}

// Insert writes a new record. Records are never mutated by the
// issuance path after creation.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO db_user (id, created_at, web_issuer, web_user, db_database, db_user, db_roles, valid_until, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID,
		rec.CreatedAt,
		rec.WebIssuer,
		rec.WebUser,
		rec.Database,
		rec.Username,
		EncodeRoles(rec.Roles),
		rec.ValidUntil,
		string(rec.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to store audit record: %w", err)
	}
	return nil
}

// FindExpired returns records whose validity ended before asOf and
// whose status is not already terminal. Result ordering is not
// significant.
func (s *Store) FindExpired(ctx context.Context, asOf time.Time) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, web_issuer, web_user, db_database, db_user, db_roles, valid_until, status
		 FROM db_user
		 WHERE valid_until < $1 AND status = $2`,
		asOf, string(StatusActive),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var rec Record
		var roles string
		var status string
		if err := rows.Scan(
			&rec.ID,
			&rec.CreatedAt,
			&rec.WebIssuer,
			&rec.WebUser,
			&rec.Database,
			&rec.Username,
			&roles,
			&rec.ValidUntil,
			&status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.Roles = DecodeRoles(roles)
		rec.Status = Status(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read expired records: %w", err)
	}

	return records, nil
}

// MarkExpired flips a record to the expired terminal status, used
// under the "expire" retention policy.
func (s *Store) MarkExpired(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE db_user SET status = $1 WHERE id = $2`, string(StatusExpired), id); err != nil {
		return fmt.Errorf("failed to mark record %s expired: %w", id, err)
	}
	return nil
}

// Remove deletes a record, used under the "delete" retention policy.
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM db_user WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to remove record %s: %w", id, err)
	}
	return nil
}
