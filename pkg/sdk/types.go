package intentgate

import "time"

// MatchedVia records which stage produced a decision.
type MatchedVia string

// MatchedVia values.
const (
	MatchedVector  MatchedVia = "vector"
	MatchedLexical MatchedVia = "lexical"
	MatchedNone    MatchedVia = "none"
)

// SearchMode selects how the nearest centroids are found.
type SearchMode string

// Search modes.
const (
	// SearchExact scans every centroid in memory. Deterministic.
	SearchExact SearchMode = "exact"
	// SearchANN queries the HNSW centroid index.
	SearchANN SearchMode = "ann"
)

// Candidate is a domain with its cosine similarity to the query.
type Candidate struct {
	Domain     string
	Similarity float64
}

// Decision is the outcome of routing one turn.
type Decision struct {
	QueryID    string
	Domain     string // empty when nothing matched
	Confidence float64
	MatchedVia MatchedVia
	Timestamp  time.Time
	Candidates []Candidate
}

// IsNone reports whether no domain was selected.
func (d Decision) IsNone() bool { return d.Domain == "" }

// Term is one localized surface form and its canonical base term.
type Term struct {
	ID        string
	Base      string
	Localized string
	Language  string
}

// Centroid is the mean exemplar vector of one domain.
type Centroid struct {
	Domain        string
	Vector        []float32
	ExemplarCount int
	UpdatedAt     int64
}

// Generation is an immutable, fully computed set of centroids.
type Generation struct {
	Number     int64
	ComputedAt int64
	Centroids  []Centroid
}

// RecomputeSummary describes one centroid recompute.
type RecomputeSummary struct {
	Generation int64
	Counts     map[string]int
	Duration   time.Duration
}
