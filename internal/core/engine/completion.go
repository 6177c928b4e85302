package engine

import (
	"sort"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
)

// IDSet is a set of venue ids.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	s.Union(ids...)
	return s
}

// Union adds ids to the set. Fetched results and optimistic merges both go
// through here, so no arrival order can drop an id.
func (s IDSet) Union(ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		s[id] = struct{}{}
	}
}

// Has reports membership.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ComputeCompletion reports whether the area is conquered: venues is
// non-empty and every venue id is in visited.
func ComputeCompletion(venues []domain.Venue, visited IDSet) bool {
	if len(venues) == 0 {
		return false
	}
	for _, v := range venues {
		if !visited.Has(v.ID) {
			return false
		}
	}
	return true
}
