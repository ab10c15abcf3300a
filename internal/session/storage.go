package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gotd/td/session"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite database at path and creates the sessions table if
// it doesn't exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		name TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)

	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// SQLiteStorage implements gotd's session.Storage over a single row keyed by
// the session name, so the signed-in session survives restarts.
//
// On load it validates that the stored blob is actual JSON and falls back to
// session.ErrNotFound when it is corrupted (e.g. null bytes after a crash),
// forcing a fresh sign-in instead of a confusing decode error.
type SQLiteStorage struct {
	db   *sql.DB
	name string
}

func NewSQLiteStorage(db *sql.DB, name string) *SQLiteStorage {
	return &SQLiteStorage{db: db, name: name}
}

func (s *SQLiteStorage) LoadSession(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE name = ?`, s.name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %q: %w", s.name, err)
	}

	if len(data) == 0 || !json.Valid(data) {
		return nil, session.ErrNotFound
	}

	return data, nil
}

func (s *SQLiteStorage) StoreSession(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (name, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		s.name, data,
	)
	if err != nil {
		return fmt.Errorf("storing session %q: %w", s.name, err)
	}
	return nil
}
