package types

import "time"

// Canonical entity type buckets. Anything that does not resolve to person or
// object keeps its own raw type string and is looked up in the unknown bucket.
const (
	TypePerson  = "person"
	TypeObject  = "object"
	TypeUnknown = "unknown"
)

// Profile is a persisted identity record used to recognize the same entity
// across ingestions. Profiles are reference data: the ingestion pipeline reads
// them but never writes them back.
type Profile struct {
	ID         string         `json:"id"`                   // Unique identifier within its bucket
	Name       string         `json:"name,omitempty"`       // Display name, matched case-insensitively
	Type       string         `json:"type,omitempty"`       // Canonical type (person, object, or free-form)
	Appearance map[string]any `json:"appearance,omitempty"` // Open appearance axes (color, clothing, ...)
	Attributes map[string]any `json:"attributes,omitempty"` // Open free-form state attributes
}

// Clone returns a copy of the profile with its maps copied one level deep, so
// callers can overlay observed values without mutating the stored reference data.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	return &Profile{
		ID:         p.ID,
		Name:       p.Name,
		Type:       p.Type,
		Appearance: CloneBag(p.Appearance),
		Attributes: CloneBag(p.Attributes),
	}
}

// Participant is a resolved actor or target on a canonical event. Its
// appearance and attributes are the matched profile's values overlaid by the
// freshly observed values (observation wins on key conflicts).
type Participant struct {
	EntityID   string         `json:"entity_id"`            // Resolved stable identity, never empty
	Name       string         `json:"name,omitempty"`       // Best-known display name
	Type       string         `json:"type"`                 // Canonical type, defaults to "unknown"
	Appearance map[string]any `json:"appearance,omitempty"` // Profile overlaid by observation
	Attributes map[string]any `json:"attributes,omitempty"` // Profile overlaid by observation
}

// EntityState is the current best-known snapshot of one entity within the
// scene. Appearance and attributes only grow or get overwritten per key on new
// observation; a key absent from a new observation is never erased.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	Name        string         `json:"name,omitempty"`
	Type        string         `json:"type"`
	Appearance  map[string]any `json:"appearance,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastEventID string         `json:"last_event_id,omitempty"` // ID of the last event that touched this entity
	LastUpdated time.Time      `json:"last_updated"`            // Timestamp of that event
}

// CloneBag copies an open attribute bag one level deep.
// Returns an empty non-nil map for nil input so callers can overlay without nil checks.
func CloneBag(bag map[string]any) map[string]any {
	out := make(map[string]any, len(bag))
	for k, v := range bag {
		out[k] = v
	}
	return out
}

// MergeBags returns base overlaid by overlay: every overlay key overwrites the
// corresponding base key, keys only present in base are preserved.
func MergeBags(base, overlay map[string]any) map[string]any {
	out := CloneBag(base)
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
