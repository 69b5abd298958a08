package adapter

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dberrors "github.com/systmms/dbsts/internal/errors"
	"github.com/systmms/dbsts/internal/logging"
)

func newMySQLMock(t *testing.T) (*MySQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMySQL(db, logging.New(false, true)), mock
}

var userExistsQuery = regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM mysql.user WHERE user = ?)")

func TestMySQLCreate(t *testing.T) {
	tests := []struct {
		name      string
		cred      Credential
		setupMock func(mock sqlmock.Sqlmock)
		expectErr bool
	}{
		{
			name: "full_credential",
			cred: Credential{
				Database: "appdb",
				Username: "u7f3k2",
				Password: "s3cr3t",
				Roles:    []string{"reader"},
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(
					`CREATE USER 'u7f3k2'@'%' IDENTIFIED BY 's3cr3t'`,
				)).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(
					"GRANT USAGE ON `appdb`.* TO 'u7f3k2'@'%'",
				)).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(
					"GRANT `reader` TO 'u7f3k2'@'%'",
				)).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(
					"SET DEFAULT ROLE `reader` TO 'u7f3k2'@'%'",
				)).WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "literal_escaping",
			cred: Credential{
				Username: `u'1`,
				Password: `p\w'd`,
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(
					`CREATE USER 'u\'1'@'%' IDENTIFIED BY 'p\\w\'d'`,
				)).WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "grant_failure",
			cred: Credential{
				Username: "u7f3k2",
				Password: "s3cr3t",
				Roles:    []string{"reader"},
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE USER").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec("GRANT").WillReturnError(fmt.Errorf("role does not exist"))
			},
			expectErr: true,
		},
		{
			name:      "missing_username",
			cred:      Credential{Password: "s3cr3t"},
			setupMock: func(mock sqlmock.Sqlmock) {},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, mock := newMySQLMock(t)
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

func TestMySQLDelete(t *testing.T) {
	tests := []struct {
		name      string
		cred      Credential
		setupMock func(mock sqlmock.Sqlmock)
		expectErr bool
	}{
		{
			name: "lock_then_drop",
			cred: Credential{Username: "u7f3k2"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(userExistsQuery).
					WithArgs("u7f3k2").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
				mock.ExpectExec(regexp.QuoteMeta(
					`ALTER USER 'u7f3k2'@'%' ACCOUNT LOCK`,
				)).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(
					`DROP USER IF EXISTS 'u7f3k2'@'%'`,
				)).WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "missing_principal_is_noop",
			cred: Credential{Username: "ghost"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(userExistsQuery).
					WithArgs("ghost").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
		},
		{
			name: "drop_failure",
			cred: Credential{Username: "u7f3k2"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(userExistsQuery).
					WithArgs("u7f3k2").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
				mock.ExpectExec("ALTER USER").WillReturnError(fmt.Errorf("access denied"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, mock := newMySQLMock(t)
			tt.setupMock(mock)

			err := a.Delete(context.Background(), tt.cred)
			if tt.expectErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
