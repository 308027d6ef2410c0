// Package jsonfile persists scene state and identity profiles as plain JSON
// documents on disk. It is the default backend: zero external services, and
// the files stay hand-editable.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/scrypster/sceneline/pkg/types"
)

// StateStore reads and writes the scene state as one pretty-printed JSON file.
type StateStore struct {
	path string
}

// NewStateStore creates a store backed by the given file path. The file does
// not need to exist yet; the parent directory is created on first save.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load reads the persisted scene state. A missing, unreadable or corrupt file
// yields an empty scene state, never an error.
func (s *StateStore) Load(ctx context.Context) *types.SceneState {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("jsonfile: unreadable state file %s, starting empty: %v", s.path, err)
		}
		return types.NewSceneState()
	}

	state := types.NewSceneState()
	if err := json.Unmarshal(data, state); err != nil {
		log.Printf("jsonfile: corrupt state file %s, starting empty: %v", s.path, err)
		return types.NewSceneState()
	}
	if state.Timeline == nil {
		state.Timeline = []*types.Event{}
	}
	if state.WorldState == nil {
		state.WorldState = map[string]*types.EntityState{}
	}
	return state
}

// Save writes the scene state to disk. The write goes to a temp file in the
// same directory followed by a rename, so a crash mid-write never leaves a
// truncated state file behind.
func (s *StateStore) Save(ctx context.Context, state *types.SceneState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: failed to encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("jsonfile: failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("jsonfile: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("jsonfile: failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("jsonfile: failed to flush state: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("jsonfile: failed to replace %s: %w", s.path, err)
	}
	return nil
}

// Close is a no-op; the store holds no open handles between calls.
func (s *StateStore) Close() error {
	return nil
}
