package adapter

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dberrors "github.com/systmms/dbsts/internal/errors"
	"github.com/systmms/dbsts/internal/logging"
)

func newPostgresMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db, logging.New(false, true)), mock
}

var roleExistsQuery = regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)")

func TestPostgresCreate(t *testing.T) {
	validUntil := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		cred      Credential
		setupMock func(mock sqlmock.Sqlmock)
		expectErr bool
	}{
		{
			name: "full_credential",
			cred: Credential{
				Database:   "appdb",
				Username:   "u7f3k2",
				Password:   "s3cr3t",
				Roles:      []string{"PG_reader", "PG_writer"},
				ValidUntil: validUntil,
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(
					`CREATE ROLE "u7f3k2" WITH LOGIN PASSWORD 's3cr3t' VALID UNTIL '2026-08-29 10:30:00+0000' IN ROLE "PG_reader", "PG_writer"`,
				)).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(
					`GRANT CONNECT ON DATABASE "appdb" TO "u7f3k2"`,
				)).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(
					`ALTER ROLE "u7f3k2" SET ROLE "PG_reader"`,
				)).WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "no_roles_no_database",
			cred: Credential{
				Username:   "u7f3k2",
				Password:   "s3cr3t",
				ValidUntil: validUntil,
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(
					`CREATE ROLE "u7f3k2" WITH LOGIN PASSWORD 's3cr3t' VALID UNTIL '2026-08-29 10:30:00+0000'`,
				)).WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "quoting_defeats_injection",
			cred: Credential{
				Username:   `evil"; DROP TABLE db_user; --`,
				Password:   `p'w`,
				ValidUntil: validUntil,
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(
					`CREATE ROLE "evil""; DROP TABLE db_user; --" WITH LOGIN PASSWORD 'p''w' VALID UNTIL '2026-08-29 10:30:00+0000'`,
				)).WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "grant_failure_after_role_created",
			cred: Credential{
				Database:   "appdb",
				Username:   "u7f3k2",
				Password:   "s3cr3t",
				ValidUntil: validUntil,
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE ROLE").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec("GRANT CONNECT").WillReturnError(fmt.Errorf("pq: database does not exist"))
			},
			expectErr: true,
		},
		{
			name:      "missing_password",
			cred:      Credential{Username: "u7f3k2"},
			setupMock: func(mock sqlmock.Sqlmock) {},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, mock := newPostgresMock(t)
			tt.setupMock(mock)

			got, err := a.Create(context.Background(), tt.cred)
			if tt.expectErr {
				require.Error(t, err)
				var adapterErr dberrors.AdapterError
				assert.ErrorAs(t, err, &adapterErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.cred, got)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresDelete(t *testing.T) {
	tests := []struct {
		name      string
		cred      Credential
		setupMock func(mock sqlmock.Sqlmock)
		expectErr bool
	}{
		{
			name: "full_reversal",
			cred: Credential{
				Database: "appdb",
				Username: "u7f3k2",
				Roles:    []string{"PG_reader"},
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(roleExistsQuery).
					WithArgs("u7f3k2").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
				mock.ExpectExec(regexp.QuoteMeta(
					`REVOKE CONNECT ON DATABASE "appdb" FROM "u7f3k2"`,
				)).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(
					`REVOKE "PG_reader" FROM "u7f3k2"`,
				)).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(
					`ALTER USER "u7f3k2" WITH NOLOGIN`,
				)).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(
					`DROP ROLE IF EXISTS "u7f3k2"`,
				)).WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "missing_principal_is_noop",
			cred: Credential{Username: "ghost"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(roleExistsQuery).
					WithArgs("ghost").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
		},
		{
			name: "statement_failure",
			cred: Credential{Username: "u7f3k2"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(roleExistsQuery).
					WithArgs("u7f3k2").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
				mock.ExpectExec("ALTER USER").WillReturnError(fmt.Errorf("pq: permission denied"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, mock := newPostgresMock(t)
			tt.setupMock(mock)

			err := a.Delete(context.Background(), tt.cred)
			if tt.expectErr {
				require.Error(t, err)
				var adapterErr dberrors.AdapterError
				assert.ErrorAs(t, err, &adapterErr)
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// Delete of an already-removed principal must stay a no-op on repeated
// calls.
func TestPostgresDeleteIdempotent(t *testing.T) {
	a, mock := newPostgresMock(t)

	for i := 0; i < 3; i++ {
		mock.ExpectQuery(roleExistsQuery).
			WithArgs("gone").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, a.Delete(context.Background(), Credential{Username: "gone"}))
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
