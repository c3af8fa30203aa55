package database

import (
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

// NewMockPool returns a pgxmock pool that is closed when tb finishes.
// Tests still assert ExpectationsWereMet themselves.
func NewMockPool(tb testing.TB) pgxmock.PgxPoolIface {
	tb.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		tb.Fatalf("create mock pool: %v", err)
	}
	tb.Cleanup(mock.Close)
	return mock
}

// ExpectMigrationLedger expects the schema_migrations bootstrap followed by
// one applied-check per version. applied lists the versions already recorded.
func ExpectMigrationLedger(mock pgxmock.PgxPoolIface, versions []string, applied ...string) {
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}
	for _, v := range versions {
		mock.ExpectQuery("SELECT EXISTS").WithArgs(v).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(done[v]))
	}
}
