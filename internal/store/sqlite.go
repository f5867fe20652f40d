package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/danmuck/plenty/internal/history"
	"github.com/danmuck/plenty/internal/protocol/session"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - history table and unique index
// 1 - added index on "when" for ordered enumeration
const currentSchemaVersion = 1

// SQLite is the durable Store backed by a single SQLite file.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ session.Store = (*SQLite)(nil)

// Open creates or opens the database at path and applies the schema.
// Safe to call repeatedly on the same file.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connect %s: %w", path, err)
	}

	// One connection: every commit is serialized through a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db, path: path}, nil
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Path() string {
	return s.path
}

// Commit inserts batch in one transaction, ignoring records already stored.
func (s *SQLite) Commit(ctx context.Context, batch []history.Record) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: commit: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO history (cmd, "when", extra)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("store: commit: prepare: %w", err)
	}
	defer stmt.Close()

	for i, r := range batch {
		if _, err := stmt.ExecContext(ctx, r.Command, r.When, r.Extra); err != nil {
			return fmt.Errorf("store: commit: record %d of %d: %w", i+1, len(batch), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Enumerate returns every record ordered by ascending "when", ties in
// insertion order.
func (s *SQLite) Enumerate(ctx context.Context) ([]history.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(cmd, ''), COALESCE("when", 0), COALESCE(extra, '')
		FROM history
		ORDER BY "when" ASC, rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: enumerate: %w", err)
	}
	defer rows.Close()

	out := make([]history.Record, 0)
	for rows.Next() {
		var r history.Record
		if err := rows.Scan(&r.Command, &r.When, &r.Extra); err != nil {
			return nil, fmt.Errorf("store: enumerate: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: enumerate: %w", err)
	}
	return out, nil
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("store: %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("store: apply schema: %w", err)
	}
	return runMigrations(db)
}

func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("store: get user_version: %w", err)
	}
	if version < 1 {
		if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_history_when ON history("when")`); err != nil {
			return fmt.Errorf("store: migrate to v1: %w", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("store: set user_version: %w", err)
	}
	return nil
}
