package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/blitzwolfz/aion-terminal/internal/shared/types"
)

// Store persists captured usage records in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the database at path, creating parent directories and the
// schema as needed. ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps SQLite free of SQLITE_BUSY between relays.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	PRAGMA journal_mode = WAL;

	CREATE TABLE IF NOT EXISTS token_usage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		agent TEXT NOT NULL,
		cost_usd REAL NOT NULL,
		tokens_in INTEGER NOT NULL,
		tokens_out INTEGER NOT NULL,
		tokens_total INTEGER NOT NULL,
		duration_s INTEGER,
		captured_at TEXT NOT NULL,
		raw_output TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_token_usage_session_id ON token_usage(session_id);
	CREATE INDEX IF NOT EXISTS idx_token_usage_captured_at ON token_usage(captured_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// InsertUsage appends a usage record and returns its id.
func (s *Store) InsertUsage(ctx context.Context, r types.UsageRecord) (int64, error) {
	capturedAt := r.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	query := `
	INSERT INTO token_usage (session_id, agent, cost_usd, tokens_in, tokens_out, tokens_total,
		duration_s, captured_at, raw_output)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		r.SessionID, r.Agent, r.CostUSD, r.TokensIn, r.TokensOut, r.TokensTotal,
		r.DurationS, capturedAt.UTC().Format(time.RFC3339Nano), r.RawOutput)
	if err != nil {
		return 0, fmt.Errorf("failed to insert usage: %w", err)
	}
	return result.LastInsertId()
}

// ListBySession returns the records captured for a session, oldest first.
func (s *Store) ListBySession(ctx context.Context, sessionID string) ([]types.UsageRecord, error) {
	query := `
	SELECT id, session_id, agent, cost_usd, tokens_in, tokens_out, tokens_total,
		duration_s, captured_at, COALESCE(raw_output, '')
	FROM token_usage
	WHERE session_id = ?
	ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	var records []types.UsageRecord
	for rows.Next() {
		var (
			r          types.UsageRecord
			duration   sql.NullInt64
			capturedAt string
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Agent, &r.CostUSD, &r.TokensIn, &r.TokensOut,
			&r.TokensTotal, &duration, &capturedAt, &r.RawOutput); err != nil {
			return nil, fmt.Errorf("failed to scan usage: %w", err)
		}
		if duration.Valid {
			d := duration.Int64
			r.DurationS = &d
		}
		if r.CapturedAt, err = time.Parse(time.RFC3339Nano, capturedAt); err != nil {
			return nil, fmt.Errorf("failed to parse captured_at %q: %w", capturedAt, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
