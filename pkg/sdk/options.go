package intentgate

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "valkey" or "redis"
	addrs    []string
	username string
	password string

	embedder Embedder

	domains    []string
	keywords   map[string][]string
	dimensions int
	searchMode SearchMode

	acceptThreshold  float64
	lexicalThreshold float64
	topK             int

	hnswM           int
	hnswEFConstruct int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		keywords:         make(map[string][]string),
		searchMode:       SearchExact,
		acceptThreshold:  0.8,
		lexicalThreshold: 0.5,
	}
}

// WithValkey configures the client to connect to a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithUsername sets the ACL user for the database connection.
func WithUsername(username string) Option {
	return optionFunc(func(c *clientConfig) {
		c.username = username
	})
}

// WithEmbedder sets the text embedding provider.
// Required for RouteText and AddText; vector input works without it.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithDomains sets the routable domain ids. At least one is required.
func WithDomains(ids ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.domains = append(c.domains, ids...)
	})
}

// WithKeywords sets the lexical overlay keywords of one domain.
func WithKeywords(domain string, keywords ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keywords[domain] = append(c.keywords[domain], keywords...)
	})
}

// WithDimensions sets the embedding length. Required.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithThresholds sets the accept and lexical fallback thresholds.
// Defaults: accept=0.8, lexical=0.5.
func WithThresholds(accept, lexical float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.acceptThreshold = accept
		c.lexicalThreshold = lexical
	})
}

// WithTopK sets how many centroid candidates are considered per query. Default: 3.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithSearchMode selects exact (default) or ANN centroid search.
func WithSearchMode(m SearchMode) Option {
	return optionFunc(func(c *clientConfig) {
		c.searchMode = m
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
