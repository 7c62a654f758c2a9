package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrate_AppliesPending(t *testing.T) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mockDB.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))

	for _, m := range Migrations[1:] {
		mockDB.ExpectBegin()
		for range m.Statements {
			mockDB.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
		}
		mockDB.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).
			WithArgs(m.Version, m.Description).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mockDB.ExpectCommit()
	}

	require.NoError(t, Migrate(context.Background(), sqlx.NewDb(db, "sqlmock"), zap.NewNop()))
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestMigrate_UpToDate(t *testing.T) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mockDB.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(Migrations[len(Migrations)-1].Version))

	require.NoError(t, Migrate(context.Background(), sqlx.NewDb(db, "sqlmock"), zap.NewNop()))
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestMigrate_RollsBackOnFailure(t *testing.T) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mockDB.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectQuery("SELECT COALESCE").WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(0))
	mockDB.ExpectBegin()
	mockDB.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnError(errors.New("permission denied"))
	mockDB.ExpectRollback()

	err = Migrate(context.Background(), sqlx.NewDb(db, "sqlmock"), zap.NewNop())
	assert.ErrorContains(t, err, "migration 1 failed")
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestMigrations_Ordered(t *testing.T) {
	for i, m := range Migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.Statements)
	}
}
