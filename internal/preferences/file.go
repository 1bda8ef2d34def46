// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/couchplay/internal/domain/media"
)

// FileStore keeps all preferences in one JSON document that is rewritten atomically
// on every save.
type FileStore struct {
	path string

	mu   sync.Mutex
	data map[string]media.PlaybackPreferences
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, data: make(map[string]media.PlaybackPreferences)}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("preferences: create dir: %w", err)
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("preferences: read %s: %w", path, err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("preferences: decode %s: %w", path, err)
		}
	}
	return s, nil
}

func (s *FileStore) Get(_ context.Context, itemID string) (*media.PlaybackPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data[itemID]
	if !ok {
		return nil, nil
	}
	out := p.Clone()
	return &out, nil
}

func (s *FileStore) Save(_ context.Context, itemID string, prefs media.PlaybackPreferences) error {
	if itemID == "" {
		return ErrEmptyItemID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.data[itemID]
	s.data[itemID] = prefs.Clone()
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err == nil {
		err = renameio.WriteFile(s.path, raw, 0o600)
	}
	if err != nil {
		if had {
			s.data[itemID] = prev
		} else {
			delete(s.data, itemID)
		}
		return fmt.Errorf("preferences: write %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
