package resume

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// State is the locally persisted resume position for one (user, item) pair.
type State struct {
	PositionTicks int64     `json:"positionTicks"`
	RuntimeTicks  int64     `json:"runtimeTicks,omitempty"`
	Finished      bool      `json:"finished"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Store persists resume positions. RecordProgress reports applied=false when the write
// was observed at or before the latest finished mark (or before a newer position).
type Store interface {
	Get(ctx context.Context, userID, itemID string) (*State, error)
	RecordProgress(ctx context.Context, userID, itemID string, positionTicks, runtimeTicks int64, observedAt time.Time) (bool, error)
	MarkFinished(ctx context.Context, userID, itemID string, at time.Time) error
	Delete(ctx context.Context, userID, itemID string) error
	Close() error
}

// SqliteFile is the database file name inside the data dir.
const SqliteFile = "resume.sqlite"

// NewStore creates a resume store. Positions have no JSON form, so the "file"
// backend keeps them in sqlite under the same data dir.
func NewStore(backend, dir string) (Store, error) {
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "sqlite", "file":
		if dir == "" {
			return NewMemoryStore(), nil
		}
		return NewSqliteStore(filepath.Join(dir, SqliteFile))
	case "memory":
		return NewMemoryStore(), nil
	case "bolt", "badger":
		return nil, fmt.Errorf("unsupported: %s backend removed, use 'sqlite'", backend)
	default:
		return nil, fmt.Errorf("unknown resume store backend: %s (supported: sqlite, file, memory)", backend)
	}
}

// MemoryStore implements Store using a map (thread-safe).
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]State
}

// NewMemoryStore creates an in-memory resume store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]State)}
}

func (s *MemoryStore) Get(_ context.Context, userID, itemID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if val, ok := s.data[compositeKey(userID, itemID)]; ok {
		return &val, nil
	}
	return nil, nil
}

func (s *MemoryStore) RecordProgress(_ context.Context, userID, itemID string, positionTicks, runtimeTicks int64, observedAt time.Time) (bool, error) {
	observedAt = observedAt.UTC().Truncate(time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	key := compositeKey(userID, itemID)
	if cur, ok := s.data[key]; ok && !accepts(cur, observedAt) {
		return false, nil
	}
	s.data[key] = State{
		PositionTicks: positionTicks,
		RuntimeTicks:  runtimeTicks,
		UpdatedAt:     observedAt,
	}
	return true, nil
}

func (s *MemoryStore) MarkFinished(_ context.Context, userID, itemID string, at time.Time) error {
	at = at.UTC().Truncate(time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	key := compositeKey(userID, itemID)
	cur := s.data[key]
	if cur.UpdatedAt.After(at) {
		at = cur.UpdatedAt
	}
	s.data[key] = State{RuntimeTicks: cur.RuntimeTicks, Finished: true, UpdatedAt: at}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, compositeKey(userID, itemID))
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.data = make(map[string]State)
	s.mu.Unlock()
	return nil
}

// accepts mirrors the sqlite upsert guard: newer observations always win; an equal
// timestamp only overwrites an unfinished row.
func accepts(cur State, observedAt time.Time) bool {
	if observedAt.After(cur.UpdatedAt) {
		return true
	}
	return !cur.Finished && observedAt.Equal(cur.UpdatedAt)
}

func compositeKey(user, item string) string {
	return user + "\x00" + item
}
