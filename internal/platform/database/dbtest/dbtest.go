// Package dbtest connects repository tests to a real PostgreSQL database.
//
// Tests call Open and are skipped unless TEST_DATABASE_URL is set. The
// database is migrated and emptied for every test, so it must be a scratch
// database.
package dbtest

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/shopledger/internal/platform/database"
)

// EnvURL names the variable holding the scratch database URL.
const EnvURL = "TEST_DATABASE_URL"

// lockKey is the session advisory lock that keeps test binaries of different
// packages from truncating each other's rows.
const lockKey = 0x73686f706c6564

// Open returns a migrated, empty database and holds it exclusively until the
// test ends.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv(EnvURL)
	if url == "" {
		t.Skipf("%s not set", EnvURL)
	}
	ctx := context.Background()

	db, err := database.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conn, err := db.Conn(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, lockKey)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockKey) //nolint:errcheck
		conn.Close()
	})

	require.NoError(t, database.Migrate(db))
	_, err = db.ExecContext(ctx, `
		TRUNCATE sales_line_items, sales_tickets, stock_receipts, employees, products, shops
		RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `ALTER SEQUENCE sales_ticket_seq RESTART WITH 1`)
	require.NoError(t, err)
	return db
}
