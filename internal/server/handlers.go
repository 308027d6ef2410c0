// Package server exposes the ingestion pipeline over HTTP: payload submission,
// scene state queries, and a WebSocket stream of ingestion notifications.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/scrypster/sceneline/internal/engine"
	"github.com/scrypster/sceneline/pkg/types"
)

// maxPayloadBytes bounds a single ingest request body.
const maxPayloadBytes = 4 << 20

// Handlers contains the HTTP handlers for the scene API.
type Handlers struct {
	engine *engine.SceneEngine
}

// NewHandlers creates the API handlers over a scene engine.
func NewHandlers(eng *engine.SceneEngine) *Handlers {
	return &Handlers{engine: eng}
}

// IngestResponse summarizes the state after a successful ingestion.
type IngestResponse struct {
	TimelineEvents int `json:"timeline_events"` // Total events in the timeline
	KnownEntities  int `json:"known_entities"`  // Total entities in the world state
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Ingest handles POST /api/ingest: one raw payload document in, the updated
// state summary out. Malformed payloads get a 400 with a description of what
// was invalid; persistence failures get a 500 and leave no partial state.
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to read request body: %v", err))
		return
	}

	state, err := h.engine.IngestJSON(r.Context(), body)
	if err != nil {
		if engine.IsValidationError(err) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("server: ingest failed: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, IngestResponse{
		TimelineEvents: len(state.Timeline),
		KnownEntities:  len(state.WorldState),
	})
}

// GetState handles GET /api/state: the full persisted scene state.
func (h *Handlers) GetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.State(r.Context()))
}

// GetTimeline handles GET /api/timeline. Supports ?since=RFC3339 to skip
// older events and ?limit=N to cap the result.
func (h *Handlers) GetTimeline(w http.ResponseWriter, r *http.Request) {
	state := h.engine.State(r.Context())
	timeline := state.Timeline

	if since := r.URL.Query().Get("since"); since != "" {
		cutoff, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid since parameter: %v", err))
			return
		}
		filtered := make([]*types.Event, 0, len(timeline))
		for _, evt := range timeline {
			if !evt.Timestamp.Before(cutoff) {
				filtered = append(filtered, evt)
			}
		}
		timeline = filtered
	}

	if limit := parseInt(r.URL.Query().Get("limit"), 0); limit > 0 && limit < len(timeline) {
		// Most recent events are the interesting ones.
		timeline = timeline[len(timeline)-limit:]
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"timeline": timeline,
		"total":    len(state.Timeline),
	})
}

// GetEntity handles GET /api/entities/{id}: one world-state snapshot.
func (h *Handlers) GetEntity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state := h.engine.State(r.Context())

	entity, ok := state.WorldState[id]
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("unknown entity %q", id))
		return
	}
	respondJSON(w, http.StatusOK, entity)
}

// ListEntities handles GET /api/entities: the full world state.
func (h *Handlers) ListEntities(w http.ResponseWriter, r *http.Request) {
	state := h.engine.State(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"entities": state.WorldState,
		"total":    len(state.WorldState),
	})
}

// parseInt parses an integer, returning defaultValue if parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("server: failed to encode JSON response: %v", err)
	}
}

// respondError writes an error envelope with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	})
}
