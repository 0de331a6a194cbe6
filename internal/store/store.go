// Package store persists operator-added custom blocklist entries across
// restarts, so the Reload Controller's source list always includes both
// the files the config names and whatever entries Store.Add has
// recorded. The admin API exposes no endpoint that adds or removes
// entries.
//
// SQLite via the pure-Go modernc.org/sqlite driver, schema managed by
// golang-migrate/migrate/v4 against an embedded migrations FS, WAL mode
// for concurrent readers.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database of operator-added custom blocklist
// tokens (exact domains or "*."-prefixed wildcard bases).
type Store struct {
	conn *sql.DB
}

// Open opens or creates the database at path and brings its schema up
// to date.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: migration source: %w", err)
	}
	dbDriver, err := sqlite.WithInstance(s.conn, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("store: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("store: migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("store: migrate up: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Add inserts token (already in loader.ParseToken's raw form, e.g.
// "ads.example.com" or "*.ads.example.com"). Duplicate tokens are
// silently ignored.
func (s *Store) Add(ctx context.Context, token string) error {
	_, err := s.conn.ExecContext(ctx, `INSERT OR IGNORE INTO custom_entries (token) VALUES (?)`, token)
	if err != nil {
		return fmt.Errorf("store: add %q: %w", token, err)
	}
	return nil
}

// Remove deletes token if present.
func (s *Store) Remove(ctx context.Context, token string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM custom_entries WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("store: remove %q: %w", token, err)
	}
	return nil
}

// Tokens returns every persisted token, for merging into the Reload
// Controller's combined source list.
func (s *Store) Tokens(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT token FROM custom_entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("store: scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
