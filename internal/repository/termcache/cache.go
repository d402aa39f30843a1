package termcache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/intentgate/internal/domain"
	domterm "github.com/kailas-cloud/intentgate/internal/domain/term"
)

// repository is the decorated term repository.
type repository interface {
	Upsert(ctx context.Context, t domterm.Term) (domterm.Term, error)
	Get(ctx context.Context, key, language string) (domterm.Term, error)
	LookupAny(ctx context.Context, key string) (string, error)
}

type entry struct {
	base  string
	found bool
}

// Cached keeps term lookups in an in-process expirable LRU. Misses are cached too.
// Store errors are never cached.
type Cached struct {
	inner      repository
	lru        *expirable.LRU[string, entry]
	cacheTotal *prometheus.CounterVec
}

// New creates a caching decorator holding at most size entries for ttl.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"); may be nil.
func New(inner repository, size int, ttl time.Duration, cacheTotal *prometheus.CounterVec) *Cached {
	return &Cached{
		inner:      inner,
		lru:        expirable.NewLRU[string, entry](size, nil, ttl),
		cacheTotal: cacheTotal,
	}
}

// Upsert writes through and invalidates the affected lookups.
func (c *Cached) Upsert(ctx context.Context, t domterm.Term) (domterm.Term, error) {
	saved, err := c.inner.Upsert(ctx, t)
	if err != nil {
		return domterm.Term{}, err
	}
	c.lru.Remove(cacheKey(saved.Language(), saved.LookupKey()))
	c.lru.Remove(anyCacheKey(saved.LookupKey()))
	return saved, nil
}

// Get is not cached: it backs the admin API, which must see fresh data.
func (c *Cached) Get(ctx context.Context, key, language string) (domterm.Term, error) {
	return c.inner.Get(ctx, key, language)
}

// Lookup returns the base term for key in language, consulting the cache first.
func (c *Cached) Lookup(ctx context.Context, key, language string) (string, error) {
	ck := cacheKey(language, key)
	if e, ok := c.lru.Get(ck); ok {
		c.inc("hit")
		return e.result()
	}
	c.inc("miss")

	t, err := c.inner.Get(ctx, key, language)
	switch {
	case err == nil:
		c.lru.Add(ck, entry{base: t.BaseTerm(), found: true})
		return t.BaseTerm(), nil
	case errors.Is(err, domain.ErrNotFound):
		c.lru.Add(ck, entry{})
		return "", domain.ErrNotFound
	default:
		return "", err
	}
}

// LookupAny returns the base term for key under any language, consulting the cache first.
func (c *Cached) LookupAny(ctx context.Context, key string) (string, error) {
	ck := anyCacheKey(key)
	if e, ok := c.lru.Get(ck); ok {
		c.inc("hit")
		return e.result()
	}
	c.inc("miss")

	base, err := c.inner.LookupAny(ctx, key)
	switch {
	case err == nil:
		c.lru.Add(ck, entry{base: base, found: true})
		return base, nil
	case errors.Is(err, domain.ErrNotFound):
		c.lru.Add(ck, entry{})
		return "", domain.ErrNotFound
	default:
		return "", err
	}
}

// Purge drops every cached lookup.
func (c *Cached) Purge() {
	c.lru.Purge()
}

// Len returns the number of cached lookups.
func (c *Cached) Len() int {
	return c.lru.Len()
}

func (c *Cached) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (e entry) result() (string, error) {
	if !e.found {
		return "", domain.ErrNotFound
	}
	return e.base, nil
}

// Per-language and any-language entries live in separate namespaces.

func cacheKey(language, key string) string {
	return "l\x00" + language + "\x00" + key
}

func anyCacheKey(key string) string {
	return "a\x00" + key
}
