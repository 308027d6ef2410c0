package types

import "sort"

// SceneState is the sole unit of durable state: the chronological event
// timeline plus the world-state snapshot of every known entity. It is created
// empty when no prior state exists and is only ever appended to or merged into.
type SceneState struct {
	Timeline   []*Event                `json:"timeline"`
	WorldState map[string]*EntityState `json:"world_state"`
}

// NewSceneState returns an empty scene state ready for ingestion.
func NewSceneState() *SceneState {
	return &SceneState{
		Timeline:   []*Event{},
		WorldState: map[string]*EntityState{},
	}
}

// SortTimeline sorts the timeline ascending by timestamp. The sort is stable:
// events with equal timestamps keep their current relative order.
func (s *SceneState) SortTimeline() {
	sort.SliceStable(s.Timeline, func(i, j int) bool {
		return s.Timeline[i].Timestamp.Before(s.Timeline[j].Timestamp)
	})
}

// EventIDs returns the set of event ids already present in the timeline.
// Used to seed duplicate-id detection during ingestion.
func (s *SceneState) EventIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Timeline))
	for _, evt := range s.Timeline {
		ids[evt.ID] = struct{}{}
	}
	return ids
}
