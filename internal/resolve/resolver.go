package resolve

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/scrypster/sceneline/pkg/types"
)

// Resolver resolves observed entities to stable identities against a
// process-lifetime profile set. It is a pure lookup: it never mutates the
// profile set, and newly synthesized identities live only in the returned
// value.
type Resolver struct {
	profiles *ProfileSet
}

// NewResolver creates a resolver over the given profile set. A nil set is
// treated as empty, so every entity synthesizes a fresh identity.
func NewResolver(profiles *ProfileSet) *Resolver {
	if profiles == nil {
		profiles = NewProfileSet()
	}
	return &Resolver{profiles: profiles}
}

// Resolve returns the stable identity for an observed entity: an id plus the
// matched (or synthesized) profile. Match strategies are tried in strict
// priority order, short-circuiting on the first hit:
//
//  1. exact id in the type-selected bucket
//  2. case-insensitive name match across buckets
//  3. best attribute-similarity score across buckets
//  4. synthesize a new identity
func (r *Resolver) Resolve(entity types.RawEntity) (string, *types.Profile) {
	preferred, canonicalType := r.profiles.selectBucket(entity.Type)

	if entity.ID != "" {
		if profile, ok := preferred.Get(entity.ID); ok {
			return entity.ID, withType(profile, canonicalType)
		}
	}

	if entity.Name != "" {
		lookup := strings.ToLower(entity.Name)
		for _, bucket := range r.profiles.scanOrder(preferred) {
			for _, profile := range bucket.Profiles() {
				if strings.ToLower(profile.Name) == lookup && profile.Name != "" {
					return profile.ID, withType(profile, canonicalType)
				}
			}
		}
	}

	if id, profile := r.bestSimilarity(entity, preferred); profile != nil {
		return id, withType(profile, canonicalType)
	}

	return r.synthesize(entity, canonicalType)
}

// ResolveParticipant resolves an entity and builds the event participant:
// the profile's appearance/attributes overlaid by the freshly observed
// values, with the observation winning on key conflicts.
func (r *Resolver) ResolveParticipant(entity types.RawEntity) *types.Participant {
	entityID, profile := r.Resolve(entity)

	name := profile.Name
	if name == "" {
		name = entity.Name
	}
	participantType := profile.Type
	if participantType == "" {
		participantType = entity.Type
	}
	if participantType == "" {
		participantType = types.TypeUnknown
	}

	return &types.Participant{
		EntityID:   entityID,
		Name:       name,
		Type:       participantType,
		Appearance: types.MergeBags(profile.Appearance, entity.Appearance),
		Attributes: types.MergeBags(profile.Attributes, entity.Attributes),
	}
}

// bestSimilarity scans every profile in bucket order and returns the first
// profile whose similarity score strictly exceeds both zero and every score
// seen before it. Ties deliberately keep the earliest-seen profile.
func (r *Resolver) bestSimilarity(entity types.RawEntity, preferred *Bucket) (string, *types.Profile) {
	var (
		bestID      string
		bestProfile *types.Profile
		bestScore   int
	)
	for _, bucket := range r.profiles.scanOrder(preferred) {
		for _, profile := range bucket.Profiles() {
			score := similarityScore(entity, profile)
			if score > 0 && score > bestScore {
				bestScore = score
				bestID = profile.ID
				bestProfile = profile
			}
		}
	}
	return bestID, bestProfile
}

// similarityScore measures how well an observed entity matches a stored
// profile. Appearance keys score by set intersection for list values,
// list-containment when exactly one side is a list, and case-insensitive
// equality for scalars. Attribute keys score one point per exactly-equal
// value. Keys absent from the profile contribute nothing.
func similarityScore(entity types.RawEntity, profile *types.Profile) int {
	score := 0
	for key, observed := range entity.Appearance {
		stored, ok := profile.Appearance[key]
		if !ok || stored == nil {
			continue
		}
		score += appearanceScore(observed, stored)
	}
	for key, observed := range entity.Attributes {
		stored, ok := profile.Attributes[key]
		if ok && equalValues(stored, observed) {
			score++
		}
	}
	return score
}

func appearanceScore(observed, stored any) int {
	observedList, observedIsList := observed.([]any)
	storedList, storedIsList := stored.([]any)
	switch {
	case observedIsList && storedIsList:
		return intersectionSize(observedList, storedList)
	case observedIsList:
		if stringSet(observedList)[fmt.Sprint(stored)] {
			return 1
		}
	case storedIsList:
		if stringSet(storedList)[fmt.Sprint(observed)] {
			return 1
		}
	default:
		if strings.EqualFold(fmt.Sprint(observed), fmt.Sprint(stored)) {
			return 1
		}
	}
	return 0
}

func intersectionSize(a, b []any) int {
	seen := stringSet(a)
	matched := map[string]bool{}
	for _, item := range b {
		s := fmt.Sprint(item)
		if seen[s] && !matched[s] {
			matched[s] = true
		}
	}
	return len(matched)
}

func stringSet(items []any) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[fmt.Sprint(item)] = true
	}
	return set
}

// equalValues compares attribute values for exact equality. JSON-decoded
// scalars compare directly; lists and objects compare element-wise via their
// string forms.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch a.(type) {
	case string, float64, bool, int, int64:
		return a == b
	default:
		return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
	}
}

// synthesize builds a fresh identity for an entity that matched nothing. An
// entity that already carries an id keeps it; otherwise the id is a slug of
// the name (else type, else canonical type, else "entity") plus a short
// random suffix against collisions.
func (r *Resolver) synthesize(entity types.RawEntity, canonicalType string) (string, *types.Profile) {
	id := entity.ID
	if id == "" {
		base := entity.Name
		if base == "" {
			base = entity.Type
		}
		if base == "" {
			base = canonicalType
		}
		base = strings.TrimSpace(base)
		if base == "" {
			base = "entity"
		}
		slug := strings.Join(strings.Fields(strings.ToLower(base)), "_")
		id = fmt.Sprintf("%s_%s", slug, randomSuffix(4))
	}

	profileType := canonicalType
	if profileType == "" {
		profileType = entity.Type
	}
	if profileType == "" {
		profileType = types.TypeUnknown
	}

	return id, &types.Profile{
		ID:         id,
		Name:       entity.Name,
		Type:       profileType,
		Appearance: types.CloneBag(entity.Appearance),
		Attributes: types.CloneBag(entity.Attributes),
	}
}

// withType copies a profile, defaulting its type to the canonical type when
// the stored record has none.
func withType(profile *types.Profile, canonicalType string) *types.Profile {
	out := profile.Clone()
	if out.Type == "" {
		out.Type = canonicalType
	}
	return out
}

// randomSuffix returns n random bytes as 2n lowercase hex characters.
func randomSuffix(n int) string {
	u := uuid.New()
	return hex.EncodeToString(u[:n])
}
