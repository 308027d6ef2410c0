package types

import "time"

// RawEntity is an entity exactly as the upstream narration model described it,
// after field-name reconciliation but before identity resolution. Transient:
// it exists only while a payload is being ingested.
type RawEntity struct {
	ID         string         `json:"id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Type       string         `json:"type,omitempty"`
	Appearance map[string]any `json:"appearance,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"` // Unrecognized input keys, relocated
}

// RawEvent is one normalized-but-unresolved event from an upstream payload.
type RawEvent struct {
	ID        string         `json:"id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action,omitempty"`
	Summary   string         `json:"summary,omitempty"`
	Actors    []RawEntity    `json:"actors,omitempty"`
	Targets   []RawEntity    `json:"targets,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Payload is one batch of events submitted for ingestion, the single unit
// handed to the pipeline per call.
type Payload struct {
	Events   []RawEvent     `json:"events"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
