package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"002_outbox.up.sql":  {Data: []byte("CREATE TABLE outbox ();")},
		"001_items.up.sql":   {Data: []byte("CREATE TABLE items ();")},
		"001_items.down.sql": {Data: []byte("DROP TABLE items;")},
		"README.md":          {Data: []byte("ignored")},
	}
}

func TestRunMigrations_AppliesPendingInOrder(t *testing.T) {
	mock := NewMockPool(t)

	ExpectMigrationLedger(mock, []string{"001_items.up.sql", "002_outbox.up.sql"}, "001_items.up.sql")
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE outbox").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("002_outbox.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := RunMigrations(context.Background(), mock, testMigrations(), discardLogger())

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SQLErrorIsNotRetried(t *testing.T) {
	mock := NewMockPool(t)

	ExpectMigrationLedger(mock, []string{"001_items.up.sql"})
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE items").WillReturnError(errors.New("syntax error at or near"))
	mock.ExpectRollback()

	err := RunMigrations(context.Background(), mock, testMigrations(), discardLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_items.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationStatus(t *testing.T) {
	mock := NewMockPool(t)

	ExpectMigrationLedger(mock, []string{"001_items.up.sql", "002_outbox.up.sql"}, "001_items.up.sql")

	states, err := MigrationStatus(context.Background(), mock, testMigrations())

	require.NoError(t, err)
	assert.Equal(t, []MigrationState{
		{Version: "001_items.up.sql", Applied: true},
		{Version: "002_outbox.up.sql", Applied: false},
	}, states)
	assert.NoError(t, mock.ExpectationsWereMet())
}
