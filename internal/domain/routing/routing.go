package routing

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// MatchedVia records which stage produced a routing decision.
type MatchedVia string

const (
	// MatchedVector means the top centroid cleared the accept threshold.
	MatchedVector MatchedVia = "vector"
	// MatchedLexical means the keyword overlay disambiguated a mid-confidence vector result.
	MatchedLexical MatchedVia = "lexical"
	// MatchedNone means no domain was selected.
	MatchedNone MatchedVia = "none"
)

// DomainNone is the Domain value of a decision that selected nothing.
const DomainNone = ""

// Candidate is a domain with its cosine similarity to the query embedding.
type Candidate struct {
	Domain     string  `json:"domain"`
	Similarity float64 `json:"similarity"`
}

// Decision is the outcome of routing one turn. Not persisted.
type Decision struct {
	QueryID    string      `json:"query_id"`
	Domain     string      `json:"domain"`
	Confidence float64     `json:"confidence"`
	MatchedVia MatchedVia  `json:"matched_via"`
	Timestamp  time.Time   `json:"timestamp"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// IsNone reports whether no domain was selected.
func (d Decision) IsNone() bool { return d.Domain == DomainNone }

// SortCandidates orders by similarity descending, ties by domain id ascending.
func SortCandidates(cs []Candidate) {
	slices.SortFunc(cs, func(a, b Candidate) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return strings.Compare(a.Domain, b.Domain)
	})
}

// TopK sorts cs and truncates it to at most k entries.
func TopK(cs []Candidate, k int) []Candidate {
	SortCandidates(cs)
	if k >= 0 && len(cs) > k {
		cs = cs[:k]
	}
	return cs
}
