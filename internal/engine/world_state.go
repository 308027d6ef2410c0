package engine

import "github.com/scrypster/sceneline/pkg/types"

// applyEvent folds an event's participants into the world state, actor first.
//
// For a previously unseen entity a snapshot is seeded from the participant.
// For a known entity, name and type are only overwritten by non-empty values,
// appearance and attributes merge key by key (new observations overwrite,
// absent keys are preserved), and the last-event markers always advance.
func applyEvent(state *types.SceneState, evt *types.Event) {
	for _, participant := range evt.Participants() {
		existing, ok := state.WorldState[participant.EntityID]
		if !ok {
			state.WorldState[participant.EntityID] = &types.EntityState{
				EntityID:    participant.EntityID,
				Name:        participant.Name,
				Type:        participant.Type,
				Appearance:  types.CloneBag(participant.Appearance),
				Attributes:  types.CloneBag(participant.Attributes),
				LastEventID: evt.ID,
				LastUpdated: evt.Timestamp,
			}
			continue
		}

		if participant.Name != "" {
			existing.Name = participant.Name
		}
		if participant.Type != "" {
			existing.Type = participant.Type
		}
		if len(participant.Appearance) > 0 {
			existing.Appearance = types.MergeBags(existing.Appearance, participant.Appearance)
		}
		if len(participant.Attributes) > 0 {
			existing.Attributes = types.MergeBags(existing.Attributes, participant.Attributes)
		}
		existing.LastEventID = evt.ID
		existing.LastUpdated = evt.Timestamp
	}
}
