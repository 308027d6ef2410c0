// Package resolve matches observed scene entities against a store of known
// identity profiles, so that downstream consumers see one stable id per
// real-world entity no matter how inconsistently the upstream model names it.
package resolve

import (
	"strings"

	"github.com/scrypster/sceneline/pkg/types"
)

// bucketOrder is the fixed scan order for cross-bucket lookups. Together with
// bucket insertion order it is the observable tie-break policy for ambiguous
// matches, so it must stay deterministic.
var bucketOrder = []string{types.TypePerson, types.TypeObject, types.TypeUnknown}

// Bucket is an insertion-ordered collection of profiles. Iteration always
// yields profiles in the order they were first added, which mirrors the order
// they appear in the identity source file.
type Bucket struct {
	order []string
	byID  map[string]*types.Profile
}

// NewBucket returns an empty bucket.
func NewBucket() *Bucket {
	return &Bucket{byID: map[string]*types.Profile{}}
}

// Put adds or replaces a profile. A replaced profile keeps its original
// position in iteration order.
func (b *Bucket) Put(p *types.Profile) {
	if p == nil || p.ID == "" {
		return
	}
	if _, exists := b.byID[p.ID]; !exists {
		b.order = append(b.order, p.ID)
	}
	b.byID[p.ID] = p
}

// Get returns the profile with the given id, if present.
func (b *Bucket) Get(id string) (*types.Profile, bool) {
	p, ok := b.byID[id]
	return p, ok
}

// Len returns the number of profiles in the bucket.
func (b *Bucket) Len() int {
	return len(b.order)
}

// Profiles returns the bucket's profiles in insertion order.
func (b *Bucket) Profiles() []*types.Profile {
	out := make([]*types.Profile, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.byID[id])
	}
	return out
}

// ProfileSet is the full identity profile store, partitioned into the three
// canonical buckets. Loaded once per process lifetime and treated as
// immutable shared-read data from then on.
type ProfileSet struct {
	Person  *Bucket
	Object  *Bucket
	Unknown *Bucket
}

// NewProfileSet returns a profile set with three empty buckets.
func NewProfileSet() *ProfileSet {
	return &ProfileSet{
		Person:  NewBucket(),
		Object:  NewBucket(),
		Unknown: NewBucket(),
	}
}

// Bucket returns the bucket for a canonical bucket name, defaulting to the
// unknown bucket for anything unrecognized.
func (s *ProfileSet) Bucket(name string) *Bucket {
	switch name {
	case types.TypePerson:
		return s.Person
	case types.TypeObject:
		return s.Object
	default:
		return s.Unknown
	}
}

// Len returns the total number of profiles across all buckets.
func (s *ProfileSet) Len() int {
	return s.Person.Len() + s.Object.Len() + s.Unknown.Len()
}

// selectBucket picks the lookup bucket for an entity's declared type and
// computes the canonical type. Matching is a 3-letter prefix test, so
// "person" and "persons" land in the person bucket and "object", "objects"
// in the object bucket. A type that matches no bucket
// keeps its own lower-cased string as canonical type and is looked up in the
// unknown bucket.
func (s *ProfileSet) selectBucket(entityType string) (*Bucket, string) {
	et := strings.ToLower(strings.TrimSpace(entityType))
	if et == "" {
		et = types.TypeUnknown
	}
	for _, name := range bucketOrder {
		if strings.HasPrefix(et, name[:3]) {
			return s.Bucket(name), name
		}
	}
	return s.Unknown, et
}

// scanOrder returns buckets in lookup order for name and similarity matches:
// the preferred bucket first, then person, then object.
func (s *ProfileSet) scanOrder(preferred *Bucket) []*Bucket {
	return []*Bucket{preferred, s.Person, s.Object}
}
