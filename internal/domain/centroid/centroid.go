package centroid

import (
	"slices"
	"strings"
)

// Centroid is the unit-length mean embedding of a domain's active exemplars.
type Centroid struct {
	domainID      string
	vector        []float32
	exemplarCount int
	updatedAt     int64
}

// New creates a Centroid.
func New(domainID string, vector []float32, exemplarCount int, updatedAt int64) Centroid {
	return Centroid{
		domainID:      domainID,
		vector:        vector,
		exemplarCount: exemplarCount,
		updatedAt:     updatedAt,
	}
}

// Domain returns the domain id.
func (c Centroid) Domain() string { return c.domainID }

// Vector returns the unit-length centroid vector.
func (c Centroid) Vector() []float32 { return c.vector }

// ExemplarCount returns how many exemplars contributed.
func (c Centroid) ExemplarCount() int { return c.exemplarCount }

// UpdatedAt returns the computation timestamp (unix millis).
func (c Centroid) UpdatedAt() int64 { return c.updatedAt }

// Generation is one complete, immutable set of centroids. Readers never see a partial set.
type Generation struct {
	number     int64
	centroids  []Centroid
	computedAt int64
}

// NewGeneration creates a Generation with centroids sorted by domain id.
func NewGeneration(number int64, centroids []Centroid, computedAt int64) *Generation {
	sorted := slices.Clone(centroids)
	slices.SortFunc(sorted, func(a, b Centroid) int {
		return strings.Compare(a.domainID, b.domainID)
	})
	return &Generation{number: number, centroids: sorted, computedAt: computedAt}
}

// Number returns the generation number.
func (g *Generation) Number() int64 { return g.number }

// Centroids returns the centroids in domain id order. Callers must not modify the slice.
func (g *Generation) Centroids() []Centroid { return g.centroids }

// ComputedAt returns the generation timestamp (unix millis).
func (g *Generation) ComputedAt() int64 { return g.computedAt }

// Len returns the number of centroids.
func (g *Generation) Len() int { return len(g.centroids) }
