package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// EnsureSchema creates the tables, constraints, and indexes the store
// relies on. The unique constraints on cards.card_number and on
// attendance (session_id, card_id) are the authoritative guards behind
// the duplicate checks in the core; the foreign keys implement the
// profile->card and session->{attendance,participant} cascades.
func (d *DB) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			age INT NOT NULL DEFAULT 0,
			birthday TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			card_number TEXT NOT NULL,
			profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT cards_card_number_unique UNIQUE (card_number)
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			active BOOLEAN NOT NULL DEFAULT FALSE,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS session_participants (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			card_id TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
			PRIMARY KEY (session_id, card_id)
		)`,
		`CREATE TABLE IF NOT EXISTS attendance (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			card_id TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
			card_number TEXT NOT NULL,
			scan_time TIMESTAMPTZ NOT NULL,
			CONSTRAINT attendance_session_card_unique UNIQUE (session_id, card_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_session ON attendance (session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_profile ON cards (profile_id)`,
	}
	for _, stmt := range statements {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
