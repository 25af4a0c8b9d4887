package correlate

import (
	"sort"

	"github.com/papercomputeco/splice/pkg/embedding"
)

// IdentifierSet is a set of join keys.
type IdentifierSet map[string]struct{}

// Add inserts id into the set.
func (s IdentifierSet) Add(id string) {
	s[id] = struct{}{}
}

// Has reports whether id is in the set.
func (s IdentifierSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the identifiers in ascending order.
func (s IdentifierSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Extract collects the join keys of validated records per entity type. A
// chunked document contributes its parent id once no matter how many chunks
// it has.
func Extract(records []embedding.Record) map[embedding.EntityType]IdentifierSet {
	out := make(map[embedding.EntityType]IdentifierSet)
	for _, r := range records {
		set, ok := out[r.EntityType]
		if !ok {
			set = make(IdentifierSet)
			out[r.EntityType] = set
		}
		set.Add(r.JoinKey())
	}
	return out
}
