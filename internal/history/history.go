// Package history keeps a queryable SQLite copy of the lamp's transitions.
package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/sweeney/lampd/internal/logic"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS transitions (
		id    INTEGER PRIMARY KEY AUTOINCREMENT,
		ts    REAL    NOT NULL,
		value REAL    NOT NULL,
		label TEXT    NOT NULL DEFAULT ''
	)`,
	"CREATE INDEX IF NOT EXISTS idx_transitions_ts ON transitions(ts)",
}

// Store is a SQLite-backed transition history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, applies WAL pragmas and
// creates the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// SQLite performs best with a single write connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Append records one transition.
func (s *Store) Append(ctx context.Context, t logic.Transition) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO transitions (ts, value, label) VALUES (?, ?, ?)",
		t.Timestamp, t.Value, t.Label,
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// Import inserts transitions in a single transaction.
func (s *Store) Import(ctx context.Context, ts []logic.Transition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO transitions (ts, value, label) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range ts {
		if _, err := stmt.ExecContext(ctx, t.Timestamp, t.Value, t.Label); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
			}
			return fmt.Errorf("insert transition: %w", err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored transitions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transitions").Scan(&n); err != nil {
		return 0, fmt.Errorf("count transitions: %w", err)
	}
	return n, nil
}

// Since returns transitions with a timestamp strictly after since, oldest
// first. Ties keep insertion order.
func (s *Store) Since(ctx context.Context, since float64) ([]logic.Transition, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ts, value, label FROM transitions WHERE ts > ? ORDER BY ts ASC, id ASC",
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	return scan(rows)
}

// Recent returns the newest n transitions, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]logic.Transition, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ts, value, label FROM transitions ORDER BY ts DESC, id DESC LIMIT ?",
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent transitions: %w", err)
	}
	return scan(rows)
}

// Load returns the full history, oldest first.
func (s *Store) Load(ctx context.Context) ([]logic.Transition, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ts, value, label FROM transitions ORDER BY ts ASC, id ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	return scan(rows)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func scan(rows *sql.Rows) ([]logic.Transition, error) {
	defer rows.Close()
	var out []logic.Transition
	for rows.Next() {
		var t logic.Transition
		if err := rows.Scan(&t.Timestamp, &t.Value, &t.Label); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}
