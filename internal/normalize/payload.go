// Package normalize turns arbitrarily-shaped upstream scene descriptions into
// the canonical payload shape consumed by the ingestion engine.
//
// Upstream narration models are inconsistent about field names: the same
// concept arrives as "timestamp", "time" or "event_time" depending on the
// call. Reconciliation is alias-driven: each canonical field has a fixed
// priority list of synonyms, and any key outside the recognized set is
// relocated into a metadata bag instead of being dropped.
package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/scrypster/sceneline/pkg/types"
)

// Alias chains consulted in priority order for each canonical field.
var (
	eventIDAliases   = []string{"event_id", "id"}
	timestampAliases = []string{"timestamp", "time", "event_time"}
	actionAliases    = []string{"action", "verb"}
	summaryAliases   = []string{"summary", "description"}
	actorsAliases    = []string{"actors", "participants", "subjects"}
	eventsAliases    = []string{"events", "timeline", "entries"}
)

// Roles that mark an entry of a generic "entities" list as actor-like or
// target-like when the payload supplies no explicit actors/targets lists.
var (
	actorRoles  = map[string]bool{"actor": true, "subject": true, "person": true}
	targetRoles = map[string]bool{"object": true, "target": true}
)

// Recognized keys per object kind. Everything else is metadata.
var (
	knownPayloadKeys = keySet("events", "timeline", "entries", "metadata")
	knownEventKeys   = keySet("event_id", "id", "timestamp", "time", "event_time",
		"action", "verb", "summary", "description",
		"actors", "targets", "participants", "subjects", "entities", "metadata")
	knownEntityKeys = keySet("id", "name", "type", "appearance", "looks",
		"attributes", "state", "metadata")
)

func keySet(keys ...string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

// PayloadJSON decodes a JSON document and normalizes it into a payload.
func PayloadJSON(data []byte) (*types.Payload, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("normalize: payload is not valid JSON: %w", err)
	}
	return Payload(doc)
}

// Payload normalizes a decoded JSON-like document into a canonical payload.
// The whole payload fails if the document is not an object or if any event
// cannot be normalized; no partial payload is ever produced.
func Payload(doc any) (*types.Payload, error) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("normalize: payload must be a JSON object, got %T", doc)
	}

	rawEvents := firstList(obj, eventsAliases)

	payload := &types.Payload{
		Events:   make([]types.RawEvent, 0, len(rawEvents)),
		Metadata: collectMetadata(obj, knownPayloadKeys),
	}

	for i, entry := range rawEvents {
		evt, err := normalizeEvent(entry)
		if err != nil {
			return nil, fmt.Errorf("normalize: event %d: %w", i, err)
		}
		payload.Events = append(payload.Events, *evt)
	}
	return payload, nil
}

// normalizeEvent reconciles one event object into the canonical raw event.
func normalizeEvent(entry any) (*types.RawEvent, error) {
	obj, ok := entry.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("event must be an object, got %T", entry)
	}

	ts, err := coerceTimestamp(firstValue(obj, timestampAliases))
	if err != nil {
		return nil, err
	}

	evt := &types.RawEvent{
		ID:        firstString(obj, eventIDAliases),
		Timestamp: ts,
		Action:    firstString(obj, actionAliases),
		Summary:   firstString(obj, summaryAliases),
		Metadata:  collectMetadata(obj, knownEventKeys),
	}

	actors := firstList(obj, actorsAliases)
	targets := firstList(obj, []string{"targets"})

	// When no explicit actor/target lists exist, scavenge a generic
	// "entities" list by role.
	if len(actors) == 0 || len(targets) == 0 {
		actorLike, targetLike := splitByRole(firstList(obj, []string{"entities"}))
		if len(actors) == 0 {
			actors = actorLike
		}
		if len(targets) == 0 {
			targets = targetLike
		}
	}

	if evt.Actors, err = normalizeEntities(actors, "actor"); err != nil {
		return nil, err
	}
	if evt.Targets, err = normalizeEntities(targets, "target"); err != nil {
		return nil, err
	}
	return evt, nil
}

// splitByRole partitions a generic entities list into actor-like and
// target-like entries based on each entry's "role" key. Entries with no
// recognized role are ignored.
func splitByRole(entities []any) (actorLike, targetLike []any) {
	for _, entry := range entities {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		role, _ := obj["role"].(string)
		switch {
		case actorRoles[role]:
			actorLike = append(actorLike, entry)
		case targetRoles[role]:
			targetLike = append(targetLike, entry)
		}
	}
	return actorLike, targetLike
}

func normalizeEntities(entries []any, kind string) ([]types.RawEntity, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make([]types.RawEntity, 0, len(entries))
	for i, entry := range entries {
		ent, err := normalizeEntity(entry)
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", kind, i, err)
		}
		out = append(out, *ent)
	}
	return out, nil
}

// normalizeEntity reconciles one entity object. The "looks" and "state" keys
// are accepted as synonyms for appearance and attributes when the canonical
// key is absent.
func normalizeEntity(entry any) (*types.RawEntity, error) {
	obj, ok := entry.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("entity must be an object, got %T", entry)
	}

	appearance, err := firstBag(obj, []string{"appearance", "looks"})
	if err != nil {
		return nil, err
	}
	attributes, err := firstBag(obj, []string{"attributes", "state"})
	if err != nil {
		return nil, err
	}

	return &types.RawEntity{
		ID:         firstString(obj, []string{"id"}),
		Name:       firstString(obj, []string{"name"}),
		Type:       firstString(obj, []string{"type"}),
		Appearance: appearance,
		Attributes: attributes,
		Metadata:   collectMetadata(obj, knownEntityKeys),
	}, nil
}

// collectMetadata builds an object's metadata bag: the declared "metadata"
// map, if any, plus every key outside the recognized set. Declared metadata
// wins when a relocated key collides with an existing metadata key.
func collectMetadata(obj map[string]any, known map[string]bool) map[string]any {
	meta := map[string]any{}
	if declared, ok := obj["metadata"].(map[string]any); ok {
		for k, v := range declared {
			meta[k] = v
		}
	}
	for k, v := range obj {
		if known[k] {
			continue
		}
		if _, exists := meta[k]; !exists {
			meta[k] = v
		}
	}
	return meta
}

// firstValue returns the first present, non-nil, non-empty-string value among
// the aliases.
func firstValue(obj map[string]any, aliases []string) any {
	for _, key := range aliases {
		v, ok := obj[key]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		return v
	}
	return nil
}

// firstString resolves an alias chain to a string field. Numeric values are
// formatted rather than rejected, since upstream models occasionally emit
// numeric ids.
func firstString(obj map[string]any, aliases []string) string {
	switch v := firstValue(obj, aliases).(type) {
	case nil:
		return ""
	case string:
		return v
	case float64, int, int64, json.Number:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

// firstList resolves an alias chain to a non-empty list. A present value of
// any other shape is skipped the same way an absent key is, falling through
// to the next synonym.
func firstList(obj map[string]any, aliases []string) []any {
	for _, key := range aliases {
		list, ok := obj[key].([]any)
		if !ok || len(list) == 0 {
			continue
		}
		return list
	}
	return nil
}

// firstBag resolves an alias chain to a string-keyed map. A present value
// that is neither nil nor an object is a hard failure.
func firstBag(obj map[string]any, aliases []string) (map[string]any, error) {
	for _, key := range aliases {
		v, ok := obj[key]
		if !ok || v == nil {
			continue
		}
		bag, isBag := v.(map[string]any)
		if !isBag {
			return nil, fmt.Errorf("%q must be an object, got %T", key, v)
		}
		return bag, nil
	}
	return map[string]any{}, nil
}
