// Package storage defines the persistence contracts for scene state and
// identity profiles, plus the factory that selects a backend from
// configuration. Backends live in the jsonfile, sqlite and postgres
// subpackages.
package storage

import (
	"context"

	"github.com/scrypster/sceneline/internal/resolve"
	"github.com/scrypster/sceneline/pkg/types"
)

// StateStore persists and restores the combined timeline + world state as the
// unit of durable state.
type StateStore interface {
	// Load returns the persisted scene state. When no prior state exists,
	// or the stored state is unreadable or corrupt, Load returns an empty
	// scene state; it never fails. Stale-but-absent state is preferable to
	// a hard failure on every call.
	Load(ctx context.Context) *types.SceneState

	// Save persists the scene state so that a subsequent Load returns the
	// saved value. I/O failures propagate to the caller.
	Save(ctx context.Context, state *types.SceneState) error

	// Close releases any resources held by the store.
	Close() error
}

// ProfileLoader loads the identity profile set. Implementations return three
// empty buckets on a missing or corrupt source, never an error.
type ProfileLoader interface {
	Load() *resolve.ProfileSet
}
