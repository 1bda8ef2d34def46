package resume

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ManuGH/couchplay/internal/persistence/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS resume_states (
	user_id TEXT NOT NULL,
	item_id TEXT NOT NULL,
	position_ticks INTEGER NOT NULL,
	runtime_ticks INTEGER NOT NULL DEFAULT 0,
	finished INTEGER NOT NULL DEFAULT 0,
	updated_at_ms INTEGER NOT NULL,
	PRIMARY KEY (user_id, item_id)
);
CREATE INDEX IF NOT EXISTS idx_resume_updated ON resume_states(updated_at_ms);
`

// SqliteStore implements Store using SQLite.
type SqliteStore struct {
	DB *sql.DB
}

// NewSqliteStore opens (and migrates) a resume database at dbPath.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(db, schemaVersion, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SqliteStore{DB: db}, nil
}

func (s *SqliteStore) Get(ctx context.Context, userID, itemID string) (*State, error) {
	const q = `SELECT position_ticks, runtime_ticks, finished, updated_at_ms FROM resume_states WHERE user_id = ? AND item_id = ?`
	var (
		st        State
		finished  int
		updatedMs int64
	)
	err := s.DB.QueryRowContext(ctx, q, userID, itemID).Scan(&st.PositionTicks, &st.RuntimeTicks, &finished, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.Finished = finished != 0
	st.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return &st, nil
}

func (s *SqliteStore) RecordProgress(ctx context.Context, userID, itemID string, positionTicks, runtimeTicks int64, observedAt time.Time) (bool, error) {
	const q = `
	INSERT INTO resume_states (user_id, item_id, position_ticks, runtime_ticks, finished, updated_at_ms)
	VALUES (?, ?, ?, ?, 0, ?)
	ON CONFLICT(user_id, item_id) DO UPDATE SET
		position_ticks = excluded.position_ticks,
		runtime_ticks = excluded.runtime_ticks,
		finished = 0,
		updated_at_ms = excluded.updated_at_ms
	WHERE excluded.updated_at_ms > resume_states.updated_at_ms
		OR (resume_states.finished = 0 AND excluded.updated_at_ms = resume_states.updated_at_ms)
	`
	res, err := s.DB.ExecContext(ctx, q, userID, itemID, positionTicks, runtimeTicks, observedAt.UnixMilli())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SqliteStore) MarkFinished(ctx context.Context, userID, itemID string, at time.Time) error {
	const q = `
	INSERT INTO resume_states (user_id, item_id, position_ticks, runtime_ticks, finished, updated_at_ms)
	VALUES (?, ?, 0, 0, 1, ?)
	ON CONFLICT(user_id, item_id) DO UPDATE SET
		position_ticks = 0,
		finished = 1,
		updated_at_ms = MAX(resume_states.updated_at_ms, excluded.updated_at_ms)
	`
	_, err := s.DB.ExecContext(ctx, q, userID, itemID, at.UnixMilli())
	return err
}

func (s *SqliteStore) Delete(ctx context.Context, userID, itemID string) error {
	_, err := s.DB.ExecContext(ctx, "DELETE FROM resume_states WHERE user_id = ? AND item_id = ?", userID, itemID)
	return err
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}
