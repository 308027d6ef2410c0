package types

import (
	"testing"
	"time"
)

func TestSortTimelineStable(t *testing.T) {
	base := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	state := NewSceneState()
	state.Timeline = []*Event{
		{ID: "late", Timestamp: base.Add(time.Hour)},
		{ID: "tie-a", Timestamp: base},
		{ID: "tie-b", Timestamp: base},
		{ID: "early", Timestamp: base.Add(-time.Hour)},
	}

	state.SortTimeline()

	want := []string{"early", "tie-a", "tie-b", "late"}
	for i, id := range want {
		if state.Timeline[i].ID != id {
			t.Fatalf("timeline[%d] = %q, want %q", i, state.Timeline[i].ID, id)
		}
	}
}

func TestEventIDs(t *testing.T) {
	state := NewSceneState()
	state.Timeline = []*Event{{ID: "e1"}, {ID: "e2"}}

	ids := state.EventIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
	if _, ok := ids["e1"]; !ok {
		t.Error("expected e1 in id set")
	}
	if _, ok := ids["missing"]; ok {
		t.Error("did not expect missing in id set")
	}
}

func TestCloneBag(t *testing.T) {
	if got := CloneBag(nil); got == nil {
		t.Fatal("CloneBag(nil) must return a non-nil map")
	}

	orig := map[string]any{"color": "red"}
	clone := CloneBag(orig)
	clone["color"] = "blue"
	if orig["color"] != "red" {
		t.Errorf("mutating the clone changed the original: %v", orig)
	}
}

func TestMergeBags(t *testing.T) {
	base := map[string]any{"color": "red", "size": "small"}
	overlay := map[string]any{"color": "blue", "mood": "calm"}

	merged := MergeBags(base, overlay)

	if merged["color"] != "blue" {
		t.Errorf("overlay key should win, got %v", merged["color"])
	}
	if merged["size"] != "small" {
		t.Errorf("base-only key should survive, got %v", merged["size"])
	}
	if merged["mood"] != "calm" {
		t.Errorf("overlay-only key should appear, got %v", merged["mood"])
	}
	if base["color"] != "red" {
		t.Errorf("merge mutated base: %v", base)
	}
}

func TestEventParticipants(t *testing.T) {
	actor := &Participant{EntityID: "p1"}
	target := &Participant{EntityID: "o1"}

	both := (&Event{Actor: actor, Target: target}).Participants()
	if len(both) != 2 || both[0] != actor || both[1] != target {
		t.Errorf("expected actor then target, got %v", both)
	}

	if got := (&Event{}).Participants(); len(got) != 0 {
		t.Errorf("expected empty slice for bare event, got %v", got)
	}
}

func TestProfileClone(t *testing.T) {
	var nilProfile *Profile
	if nilProfile.Clone() != nil {
		t.Error("cloning a nil profile must return nil")
	}

	p := &Profile{ID: "p1", Name: "Alice", Appearance: map[string]any{"hair": "red"}}
	c := p.Clone()
	c.Appearance["hair"] = "black"
	if p.Appearance["hair"] != "red" {
		t.Errorf("clone shares appearance map with original: %v", p.Appearance)
	}
}
