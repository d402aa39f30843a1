package gateway

import (
	"context"
	"slices"
	"sync"

	"github.com/kailas-cloud/intentgate/internal/domain/routing"
)

// Request is what a domain handler receives for one routed turn.
type Request struct {
	Domain        string           `json:"domain"`
	Text          string           `json:"text"`
	Language      string           `json:"language,omitempty"`
	MessageID     string           `json:"message_id,omitempty"`
	UserID        string           `json:"user_id,omitempty"`
	ConnectionID  string           `json:"connection_id"`
	CorrelationID string           `json:"correlation_id"`
	Decision      routing.Decision `json:"decision"`
}

// Handler serves turns routed to one domain.
type Handler interface {
	Handle(ctx context.Context, req Request) ([]Frame, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) ([]Frame, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req Request) ([]Frame, error) { return f(ctx, req) }

// Registry maps domain ids to handlers. Adding a domain is a Register call.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds h to domainID, replacing any previous handler.
func (r *Registry) Register(domainID string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[domainID] = h
}

// Lookup returns the handler for domainID.
func (r *Registry) Lookup(domainID string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[domainID]
	return h, ok
}

// Domains returns the registered domain ids, sorted.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for d := range r.handlers {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}
