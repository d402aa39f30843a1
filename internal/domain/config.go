package domain

import "slices"

// KeyPrefix namespaces every key intentgate writes to Valkey/Redis.
const KeyPrefix = "intentgate:"

// DomainSet is the configured, ordered set of routable domain ids.
type DomainSet struct {
	ids []string
}

// NewDomainSet creates a set from ids, dropping duplicates and empty ids. Order is sorted.
func NewDomainSet(ids ...string) DomainSet {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return DomainSet{ids: slices.Compact(out)}
}

// Contains reports whether id is configured.
func (s DomainSet) Contains(id string) bool {
	_, found := slices.BinarySearch(s.ids, id)
	return found
}

// IDs returns the sorted domain ids.
func (s DomainSet) IDs() []string { return slices.Clone(s.ids) }

// Len returns the number of domains.
func (s DomainSet) Len() int { return len(s.ids) }
