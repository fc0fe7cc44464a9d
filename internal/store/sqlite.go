package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

// SQLiteStore persists the portfolio as a single JSON document. The
// portfolio is one aggregate written last-write-wins from a single
// writer, so a document row beats per-entity tables here.
type SQLiteStore struct {
	db *sql.DB
}

var _ interfaces.Store = (*SQLiteStore)(nil)

const portfolioSchema = `
CREATE TABLE IF NOT EXISTS portfolio (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if _, err := db.Exec(portfolioSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init portfolio schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, p *types.Portfolio) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal portfolio: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO portfolio (id, data, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save portfolio: %w", err)
	}
	return nil
}

// Load returns (nil, nil) when no portfolio has ever been saved.
func (s *SQLiteStore) Load(ctx context.Context) (*types.Portfolio, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM portfolio WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load portfolio: %w", err)
	}
	var p types.Portfolio
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("unmarshal portfolio: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
