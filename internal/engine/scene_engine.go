// Package engine merges normalized, identity-resolved scene events into the
// persisted timeline and world state. It is the ingestion orchestrator: one
// call takes a raw upstream payload through normalization, identity
// resolution, merging and persistence as a single load → merge → save cycle.
package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/sceneline/internal/normalize"
	"github.com/scrypster/sceneline/internal/resolve"
	"github.com/scrypster/sceneline/internal/storage"
	"github.com/scrypster/sceneline/pkg/types"
)

// eventIDPrefix starts synthesized ids for events that arrive without one.
const eventIDPrefix = "event-"

// ErrInvalidPayload marks ingestion failures caused by the payload itself
// rather than by storage. Callers can map these to a client error.
var ErrInvalidPayload = errors.New("invalid payload")

// IsValidationError reports whether err was caused by a malformed payload.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidPayload)
}

// SceneEngine folds upstream payloads into the durable scene state.
//
// Ingestion is serialized: the engine holds a mutex across the whole
// load-merge-save cycle, so at most one ingestion is in flight per engine.
// Two engines sharing one store remain a lost-update hazard; callers that
// need multi-process ingestion must serialize externally.
type SceneEngine struct {
	store    storage.StateStore
	resolver *resolve.Resolver

	mu sync.Mutex

	onEventIngested func(eventID string)
}

// NewSceneEngine creates an engine over the given state store and resolver.
// A nil resolver gets an empty profile set, so every entity synthesizes a
// fresh identity.
func NewSceneEngine(store storage.StateStore, resolver *resolve.Resolver) (*SceneEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("engine: state store is required")
	}
	if resolver == nil {
		resolver = resolve.NewResolver(nil)
	}
	return &SceneEngine{store: store, resolver: resolver}, nil
}

// SetOnEventIngested sets a callback fired once per newly persisted event,
// after the state has been saved. Useful for pushing live updates.
func (e *SceneEngine) SetOnEventIngested(callback func(eventID string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEventIngested = callback
}

// IngestJSON decodes a raw JSON payload document and ingests it.
func (e *SceneEngine) IngestJSON(ctx context.Context, data []byte) (*types.SceneState, error) {
	payload, err := normalize.PayloadJSON(data)
	if err != nil {
		return nil, fmt.Errorf("engine: %w: %v", ErrInvalidPayload, err)
	}
	return e.ingest(ctx, payload)
}

// IngestDocument ingests an already-decoded JSON-like document.
func (e *SceneEngine) IngestDocument(ctx context.Context, doc any) (*types.SceneState, error) {
	payload, err := normalize.Payload(doc)
	if err != nil {
		return nil, fmt.Errorf("engine: %w: %v", ErrInvalidPayload, err)
	}
	return e.ingest(ctx, payload)
}

// State returns the current persisted scene state.
func (e *SceneEngine) State(ctx context.Context) *types.SceneState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Load(ctx)
}

// ingest merges a validated payload into the persisted state. Normalization
// failures have already aborted the call by now, so from here on the batch is
// all-or-nothing: either every event lands and the state is saved, or the
// save fails and the caller sees the error with no partial persistence.
func (e *SceneEngine) ingest(ctx context.Context, payload *types.Payload) (*types.SceneState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.store.Load(ctx)
	existingIDs := state.EventIDs()

	ordered := make([]types.RawEvent, len(payload.Events))
	copy(ordered, payload.Events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	ingested := make([]string, 0, len(ordered))
	for index, raw := range ordered {
		eventID := raw.ID
		if eventID == "" {
			eventID = fmt.Sprintf("%s%s-%d", eventIDPrefix, raw.Timestamp.UTC().Format(time.RFC3339), index)
		}
		for {
			if _, taken := existingIDs[eventID]; !taken {
				break
			}
			eventID = fmt.Sprintf("%s-%s", eventID, randomSuffix())
		}
		existingIDs[eventID] = struct{}{}

		action := raw.Action
		if action == "" {
			if metaAction, ok := raw.Metadata["action"].(string); ok {
				action = metaAction
			}
		}
		if action == "" {
			action = types.DefaultAction
		}

		evt := &types.Event{
			ID:        eventID,
			Timestamp: raw.Timestamp,
			Action:    action,
			Summary:   raw.Summary,
			Metadata:  types.MergeBags(payload.Metadata, raw.Metadata),
		}
		if len(raw.Actors) > 0 {
			evt.Actor = e.resolver.ResolveParticipant(raw.Actors[0])
		}
		if len(raw.Targets) > 0 {
			evt.Target = e.resolver.ResolveParticipant(raw.Targets[0])
		}

		state.Timeline = append(state.Timeline, evt)
		applyEvent(state, evt)
		ingested = append(ingested, eventID)
	}

	// A pre-existing timeline may have been out of order relative to the
	// inserted events; the final stable sort restores the invariant.
	state.SortTimeline()

	if err := e.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("engine: failed to persist state: %w", err)
	}

	if e.onEventIngested != nil {
		for _, id := range ingested {
			e.onEventIngested(id)
		}
	}
	return state, nil
}

// randomSuffix returns 4 hex characters for event-id disambiguation.
func randomSuffix() string {
	u := uuid.New()
	return hex.EncodeToString(u[:2])
}
