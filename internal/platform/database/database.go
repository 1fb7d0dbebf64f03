package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"github.com/georgemunganga/shopledger/internal/platform/apperr"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgreSQL error codes the modules react to.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate applies every pending embedded migration.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// TranslateError turns driver errors into the apperr taxonomy. Unique
// violations become Conflict, foreign-key violations ReferentialConflict.
// Anything else is wrapped as an internal error with op as context.
func TranslateError(err error, op string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return apperr.Conflict(uniqueField(pqErr), "%s: duplicate value violates %s", op, pqErr.Constraint)
		case codeForeignKeyViolation:
			return apperr.ReferentialConflict("%s: record is referenced by %s", op, pqErr.Table)
		}
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Internal(err, "%s", op)
}

// uniqueField names the column behind a unique violation. PostgreSQL leaves
// Column empty for these, so it is read from a detail such as
// "Key (lower(code))=(g13) already exists.".
func uniqueField(e *pq.Error) string {
	if e.Column != "" {
		return e.Column
	}
	rest, ok := strings.CutPrefix(e.Detail, "Key (")
	if !ok {
		return ""
	}
	key, _, ok := strings.Cut(rest, ")=(")
	if !ok || strings.Contains(key, ",") {
		return ""
	}
	if inner, ok := strings.CutPrefix(key, "lower("); ok {
		key = strings.TrimSuffix(inner, ")")
	}
	key, _, _ = strings.Cut(key, "::")
	return key
}

// Queryer is satisfied by both *sql.DB and *sql.Tx.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
