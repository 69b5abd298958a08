package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	dberrors "github.com/systmms/dbsts/internal/errors"
	"github.com/systmms/dbsts/internal/logging"
)

// MySQL materializes credentials as MySQL users with role grants.
// MySQL accounts have no VALID UNTIL equivalent, so expiry is enforced
// by the sweep alone.
type MySQL struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewMySQL creates a MySQL adapter over an open connection pool.
func NewMySQL(db *sql.DB, logger *logging.Logger) *MySQL {
	return &MySQL{db: db, logger: logger}
}

// Platform returns the target platform identifier.
func (a *MySQL) Platform() string {
	return PlatformMySQL
}

// Create creates a user with the credential's password, grants
// membership in the credential's roles and usage scope on its database.
func (a *MySQL) Create(ctx context.Context, cred Credential) (Credential, error) {
	if cred.Username == "" || cred.Password == "" {
		return Credential{}, dberrors.AdapterError{
			Platform:  PlatformMySQL,
			Operation: "create",
			Err:       errors.New("username and password are required"),
		}
	}

	account := mysqlAccount(cred.Username)

	statements := []string{
		fmt.Sprintf("CREATE USER %s IDENTIFIED BY %s", account, mysqlLiteral(cred.Password)),
	}
	if cred.Database != "" {
		statements = append(statements,
			fmt.Sprintf("GRANT USAGE ON %s.* TO %s", mysqlIdentifier(cred.Database), account))
	}
	for _, r := range cred.Roles {
		statements = append(statements,
			fmt.Sprintf("GRANT %s TO %s", mysqlIdentifier(r), account))
	}
	if len(cred.Roles) > 0 {
		statements = append(statements,
			fmt.Sprintf("SET DEFAULT ROLE %s TO %s", mysqlIdentifier(cred.Roles[0]), account))
	}

	for _, stmt := range statements {
		a.logger.Debug("exec: %s", logging.Redact(stmt, []string{cred.Password}))
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return Credential{}, dberrors.AdapterError{
				Platform:  PlatformMySQL,
				Operation: "create",
				Err:       err,
			}
		}
	}

	return cred, nil
}

// Delete locks and drops the user. DROP USER removes the user's grants
// with it. A principal that no longer exists is a no-op.
func (a *MySQL) Delete(ctx context.Context, cred Credential) error {
	if cred.Username == "" {
		return dberrors.AdapterError{
			Platform:  PlatformMySQL,
			Operation: "delete",
			Err:       errors.New("username is required"),
		}
	}

	var exists bool
	err := a.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM mysql.user WHERE user = ?)", cred.Username).Scan(&exists)
	if err != nil {
		return dberrors.AdapterError{Platform: PlatformMySQL, Operation: "delete", Err: err}
	}
	if !exists {
		a.logger.Debug("user %s already removed", cred.Username)
		return nil
	}

	account := mysqlAccount(cred.Username)
	statements := []string{
		fmt.Sprintf("ALTER USER %s ACCOUNT LOCK", account),
		fmt.Sprintf("DROP USER IF EXISTS %s", account),
	}

	a.logger.Debug("drop user for %s", cred.Username)
	for _, stmt := range statements {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return dberrors.AdapterError{
				Platform:  PlatformMySQL,
				Operation: "delete",
				Err:       err,
			}
		}
	}

	return nil
}

func mysqlAccount(username string) string {
	return fmt.Sprintf("%s@'%%'", mysqlLiteral(username))
}

func mysqlIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func mysqlLiteral(value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return "'" + escaped + "'"
}
