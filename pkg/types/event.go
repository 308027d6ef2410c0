package types

import "time"

// DefaultAction is recorded for events whose payload supplies no action or
// verb anywhere, not even in their metadata.
const DefaultAction = "observation"

// Event is a normalized, identity-resolved entry in the scene timeline.
// Once appended, its ID and Timestamp are immutable.
type Event struct {
	ID        string         `json:"id"`                 // Unique within the timeline
	Timestamp time.Time      `json:"timestamp"`          // Absolute point in time
	Action    string         `json:"action"`             // Never empty (falls back to DefaultAction)
	Summary   string         `json:"summary,omitempty"`  // Free-form description of what happened
	Actor     *Participant   `json:"actor,omitempty"`    // Resolved first actor, if any
	Target    *Participant   `json:"target,omitempty"`   // Resolved first target, if any
	Metadata  map[string]any `json:"metadata,omitempty"` // Payload metadata overlaid by event metadata
}

// Participants returns the non-nil participants on the event, actor first.
func (e *Event) Participants() []*Participant {
	out := make([]*Participant, 0, 2)
	if e.Actor != nil {
		out = append(out, e.Actor)
	}
	if e.Target != nil {
		out = append(out, e.Target)
	}
	return out
}
