// PostgreSQL persistence for the audit stream, consumed by cmd/auditor.
package audit

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore persists audit entries for moderator review.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to Postgres, applies pending migrations, and returns
// a ready store.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	if err := runMigrations(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStore wraps an existing database handle without running
// migrations.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts one audit entry.
func (s *PostgresStore) Create(ctx context.Context, entry Entry) error {
	const query = `
		INSERT INTO audit_events (at, origin, actor, action, detail)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		entry.At, entry.Origin, entry.Actor, entry.Action, entry.Detail)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// Recent returns the newest audit entries within the given window, newest
// first, for the moderation panel's event log.
func (s *PostgresStore) Recent(ctx context.Context, window time.Duration, limit int) ([]Entry, error) {
	const query = `
		SELECT at, origin, actor, action, detail
		FROM audit_events
		WHERE at >= NOW() - $1::interval
		ORDER BY at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, window.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("audit: select recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.At, &entry.Origin, &entry.Actor, &entry.Action, &entry.Detail); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// runMigrations applies the embedded schema migrations.
func runMigrations(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("audit: load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("audit: init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("audit: migrate: %w", err)
	}
	return nil
}
