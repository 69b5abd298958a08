package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver

	dberrors "github.com/systmms/dbsts/internal/errors"
	"github.com/systmms/dbsts/internal/logging"
)

// Supported target platforms. Selection happens once per deployment,
// not per call.
const (
	PlatformPostgres = "postgresql"
	PlatformMySQL    = "mysql"
)

// Credential is the ephemeral backend account materialized on the
// target data store.
type Credential struct {
	Database   string
	Username   string
	Password   string
	Roles      []string
	ValidUntil time.Time
}

// Adapter is the backend contract for materializing and revoking a
// credential on a specific target engine.
type Adapter interface {
	// Platform returns the target platform identifier.
	Platform() string

	// Create materializes a login-capable principal for the credential,
	// granting role membership and database connect scope when set.
	// Returns the (possibly augmented) credential.
	Create(ctx context.Context, cred Credential) (Credential, error)

	// Delete reverses the grants made by Create and removes the
	// principal. Safe to call when the principal does not exist and
	// safe to call more than once.
	Delete(ctx context.Context, cred Credential) error
}

// Config describes the connection to the target data store.
type Config struct {
	Platform string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

// New opens a connection to the configured platform and returns the
// matching adapter. An unsupported or missing platform is a
// ConfigurationError, surfaced at startup rather than at call time.
func New(cfg Config, logger *logging.Logger) (Adapter, error) {
	switch strings.ToLower(cfg.Platform) {
	case PlatformPostgres, "postgres":
		db, err := sql.Open("postgres", postgresDSN(cfg))
		if err != nil {
			return nil, dberrors.ConfigurationError{Field: "adapter", Message: err.Error()}
		}
		return NewPostgres(db, logger), nil

	case PlatformMySQL, "mariadb":
		db, err := sql.Open("mysql", mysqlDSN(cfg))
		if err != nil {
			return nil, dberrors.ConfigurationError{Field: "adapter", Message: err.Error()}
		}
		return NewMySQL(db, logger), nil

	case "":
		return nil, dberrors.ConfigurationError{
			Field:   "adapter.platform",
			Message: "target platform is required",
		}

	default:
		return nil, dberrors.ConfigurationError{
			Field:   "adapter.platform",
			Value:   cfg.Platform,
			Message: "unsupported platform",
		}
	}
}

// postgresDSN builds a libpq key/value connection string.
func postgresDSN(cfg Config) string {
	parts := []string{
		fmt.Sprintf("host=%s", cfg.Host),
		fmt.Sprintf("dbname=%s", cfg.Database),
		fmt.Sprintf("user=%s", cfg.Username),
	}

	if cfg.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", cfg.Port))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}
	if cfg.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", cfg.SSLMode))
	} else {
		parts = append(parts, "sslmode=require")
	}

	return strings.Join(parts, " ")
}

// mysqlDSN builds a go-sql-driver DSN: username:password@tcp(host:port)/database.
func mysqlDSN(cfg Config) string {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		port,
		cfg.Database,
	)
}
