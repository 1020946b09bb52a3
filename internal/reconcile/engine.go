package reconcile

import (
	"github.com/seanwevans/fhir-department/internal/fhir"
)

// Set holds at most one canonical resource per identity key, ordered by
// first sighting.
type Set struct {
	order     []fhir.Key
	canonical map[fhir.Key]fhir.Resource
}

// NewSet returns an empty resource set.
func NewSet() *Set {
	return &Set{canonical: make(map[fhir.Key]fhir.Resource)}
}

// Len returns the number of distinct identities in the set.
func (s *Set) Len() int {
	return len(s.order)
}

// Get returns the canonical resource for a key, if present.
func (s *Set) Get(key fhir.Key) (fhir.Resource, bool) {
	resource, ok := s.canonical[key]
	return resource, ok
}

// Add folds one resource into the set. A first sighting is deep-copied in as
// the canonical record for its key; a duplicate sighting merges into the
// existing record. Reports whether the resource introduced a new identity.
func (s *Set) Add(resource fhir.Resource) bool {
	key := resource.Identity()
	canonical, seen := s.canonical[key]
	if !seen {
		s.canonical[key] = resource.Clone()
		s.order = append(s.order, key)
		return true
	}
	merge(canonical, resource)
	return false
}

// Resources returns the canonical records in first-sighting order.
func (s *Set) Resources() []fhir.Resource {
	out := make([]fhir.Resource, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.canonical[key])
	}
	return out
}

// Reconcile folds a resource sequence into its canonical set with a single
// left-to-right pass. The result is deterministic for a fixed input order
// but not invariant to reordering: scalar fields keep their first-seen value
// (see merge), so which duplicate arrives first matters.
func Reconcile(resources []fhir.Resource) *Set {
	set := NewSet()
	for _, resource := range resources {
		set.Add(resource)
	}
	return set
}

// merge folds a duplicate sighting into the canonical record. Extensions
// union by structural equality with the canonical's own order first and
// additions in first-appearance order. Every other field keeps the
// canonical's first-seen value; later duplicates never overwrite scalars.
func merge(canonical, duplicate fhir.Resource) {
	incoming := duplicate.Extensions()
	if len(incoming) == 0 {
		return
	}
	merged := canonical.Extensions()
	for _, ext := range incoming {
		if containsExtension(merged, ext) {
			continue
		}
		merged = append(merged, cloneExtension(ext))
	}
	canonical.SetExtensions(merged)
}

func containsExtension(list []any, candidate any) bool {
	for _, ext := range list {
		if fhir.Equal(ext, candidate) {
			return true
		}
	}
	return false
}

func cloneExtension(ext any) any {
	if m, ok := ext.(map[string]any); ok {
		return map[string]any(fhir.Resource(m).Clone())
	}
	return ext
}
