// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package preferences persists the last explicit playback choices per title.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ManuGH/couchplay/internal/domain/media"
)

// ErrEmptyItemID is returned when a preference is saved without a title id.
var ErrEmptyItemID = errors.New("preferences: empty item id")

// Store persists PlaybackPreferences keyed by item id. Get returns (nil, nil) when no
// preference has been recorded.
type Store interface {
	Get(ctx context.Context, itemID string) (*media.PlaybackPreferences, error)
	Save(ctx context.Context, itemID string, prefs media.PlaybackPreferences) error
	Close() error
}

// File names inside the data dir.
const (
	SqliteFile = "preferences.sqlite"
	JSONFile   = "preferences.json"
)

// NewStore creates a preference store for backend "sqlite" (default), "file" or "memory".
func NewStore(backend, dir string) (Store, error) {
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "sqlite":
		if dir == "" {
			return NewMemoryStore(), nil
		}
		return NewSqliteStore(filepath.Join(dir, SqliteFile))
	case "file":
		if dir == "" {
			return nil, fmt.Errorf("preferences: file backend requires a data dir")
		}
		return NewFileStore(filepath.Join(dir, JSONFile))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown preferences backend: %s (supported: sqlite, file, memory)", backend)
	}
}

// MemoryStore keeps preferences in a map.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]media.PlaybackPreferences
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]media.PlaybackPreferences)}
}

func (s *MemoryStore) Get(_ context.Context, itemID string) (*media.PlaybackPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data[itemID]
	if !ok {
		return nil, nil
	}
	out := p.Clone()
	return &out, nil
}

func (s *MemoryStore) Save(_ context.Context, itemID string, prefs media.PlaybackPreferences) error {
	if itemID == "" {
		return ErrEmptyItemID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[itemID] = prefs.Clone()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
