package exemplar

import (
	"time"

	"github.com/kailas-cloud/intentgate/internal/domain"
)

// Exemplar is a labeled sample utterance with its embedding (immutable value object).
type Exemplar struct {
	id        string
	domainID  string
	text      string
	embedding []float32
	createdAt int64
	retired   bool
}

// New validates and creates an Exemplar. dim is the store-wide embedding dimension.
func New(id, domainID, text string, embedding []float32, dim int) (Exemplar, error) {
	if domainID == "" {
		return Exemplar{}, domain.NewValidationError("domain", "is required")
	}
	if text == "" {
		return Exemplar{}, domain.NewValidationError("text", "is required")
	}
	if len(embedding) != dim {
		return Exemplar{}, domain.ErrDimensionMismatch
	}
	return Exemplar{
		id:        id,
		domainID:  domainID,
		text:      text,
		embedding: embedding,
		createdAt: time.Now().UnixMilli(),
	}, nil
}

// Reconstruct creates an Exemplar without validation (storage hydration).
func Reconstruct(id, domainID, text string, embedding []float32, createdAt int64, retired bool) Exemplar {
	return Exemplar{
		id:        id,
		domainID:  domainID,
		text:      text,
		embedding: embedding,
		createdAt: createdAt,
		retired:   retired,
	}
}

// ID returns the exemplar id.
func (e Exemplar) ID() string { return e.id }

// Domain returns the labeled domain id.
func (e Exemplar) Domain() string { return e.domainID }

// Text returns the sample utterance.
func (e Exemplar) Text() string { return e.text }

// Embedding returns the vector.
func (e Exemplar) Embedding() []float32 { return e.embedding }

// CreatedAt returns the creation timestamp (unix millis).
func (e Exemplar) CreatedAt() int64 { return e.createdAt }

// Retired reports whether the exemplar is excluded from recompute.
func (e Exemplar) Retired() bool { return e.retired }

// Match is an exemplar returned by similarity search.
type Match struct {
	ID         string  `json:"id"`
	Domain     string  `json:"domain"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}
