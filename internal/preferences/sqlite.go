// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package preferences

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ManuGH/couchplay/internal/domain/media"
	"github.com/ManuGH/couchplay/internal/persistence/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS playback_preferences (
	item_id TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	updated_at_ms INTEGER NOT NULL
);
`

// SqliteStore stores each title's preferences as a JSON document.
type SqliteStore struct {
	db *sql.DB
}

func NewSqliteStore(path string) (*SqliteStore, error) {
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(db, schemaVersion, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("preferences: %w", err)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Get(ctx context.Context, itemID string) (*media.PlaybackPreferences, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM playback_preferences WHERE item_id = ?`, itemID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p media.PlaybackPreferences
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("preferences: decode %s: %w", itemID, err)
	}
	return &p, nil
}

func (s *SqliteStore) Save(ctx context.Context, itemID string, prefs media.PlaybackPreferences) error {
	if itemID == "" {
		return ErrEmptyItemID
	}
	payload, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO playback_preferences (item_id, payload, updated_at_ms) VALUES (?, ?, ?)
	ON CONFLICT(item_id) DO UPDATE SET payload = excluded.payload, updated_at_ms = excluded.updated_at_ms
	`, itemID, string(payload), prefs.UpdatedAt.UnixMilli())
	return err
}

func (s *SqliteStore) Close() error { return s.db.Close() }
