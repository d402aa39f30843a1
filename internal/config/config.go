package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the intentgate server configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Index     IndexConfig     `yaml:"index"`
	Routing   RoutingConfig   `yaml:"routing"`
	Session   SessionConfig   `yaml:"session"`
	Registry  RegistryConfig  `yaml:"registry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds admin API keys and connection token verification.
type AuthConfig struct {
	APIKeys             []string  `yaml:"api_keys"`
	JWT                 JWTConfig `yaml:"jwt"`
	RestrictedResources []string  `yaml:"restricted_resources"`
}

// JWTConfig holds connection token settings. Empty SigningMethod disables verification:
// every connection is anonymous.
type JWTConfig struct {
	SigningMethod string   `yaml:"signing_method"` // RS256 or HS256
	Secret        string   `yaml:"secret"`
	PublicKey     string   `yaml:"public_key"`      // PEM
	PublicKeyFile string   `yaml:"public_key_file"` // read when PublicKey is empty
	Issuer        string   `yaml:"issuer"`
	Audience      []string `yaml:"audience"`
	LeewaySec     int      `yaml:"leeway_sec"`
}

// Enabled reports whether token verification is configured.
func (j JWTConfig) Enabled() bool { return j.SigningMethod != "" }

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"` // 0 = unlimited
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds centroid search and HNSW settings.
type IndexConfig struct {
	SearchMode      string `yaml:"search_mode"` // exact, ann (default: exact)
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"`
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	QueryPrefix    string `yaml:"query_prefix"`
	ExemplarPrefix string `yaml:"exemplar_prefix"`
	CacheTTLSec    int    `yaml:"cache_ttl_sec"` // 0 = default, negative = cache disabled
}

// Enabled reports whether an embedding provider is configured.
// Without one, clients must send embeddings with every frame.
func (e EmbeddingConfig) Enabled() bool { return e.APIKey != "" || e.BaseURL != "" }

// DomainConfig describes one routable domain.
type DomainConfig struct {
	ID                string   `yaml:"id"`
	Keywords          []string `yaml:"keywords"`
	HandlerURL        string   `yaml:"handler_url"`
	HandlerTimeoutSec int      `yaml:"handler_timeout_sec"`
}

// RoutingConfig holds routing thresholds and the domain set.
type RoutingConfig struct {
	Domains                  []DomainConfig `yaml:"domains"`
	AcceptThreshold          float64        `yaml:"accept_threshold"`
	LexicalFallbackThreshold float64        `yaml:"lexical_fallback_threshold"`
	TieBreak                 string         `yaml:"tie_break"` // vector_top, none
	TopK                     int            `yaml:"top_k"`
	Clarification            string         `yaml:"clarification"`
}

// DomainIDs returns configured domain ids in config order.
func (r RoutingConfig) DomainIDs() []string {
	ids := make([]string, 0, len(r.Domains))
	for _, d := range r.Domains {
		ids = append(ids, d.ID)
	}
	return ids
}

// Keywords maps domain id to its keyword list.
func (r RoutingConfig) Keywords() map[string][]string {
	out := make(map[string][]string, len(r.Domains))
	for _, d := range r.Domains {
		if len(d.Keywords) > 0 {
			out[d.ID] = d.Keywords
		}
	}
	return out
}

// SessionConfig holds per-connection limits.
type SessionConfig struct {
	QueueDepth        int     `yaml:"queue_depth"`
	IdleTimeoutSec    int     `yaml:"idle_timeout_sec"`
	SweepIntervalSec  int     `yaml:"sweep_interval_sec"`
	InboundRatePerSec float64 `yaml:"inbound_rate_per_sec"` // 0 = unlimited
	InboundBurst      int     `yaml:"inbound_burst"`
	HandlerTimeoutSec int     `yaml:"handler_timeout_sec"`
	WriteTimeoutSec   int     `yaml:"write_timeout_sec"`
	PongTimeoutSec    int     `yaml:"pong_timeout_sec"`
}

// RegistryConfig holds the term lookup cache settings.
type RegistryConfig struct {
	CacheSize   int `yaml:"cache_size"`    // negative = cache disabled
	CacheTTLSec int `yaml:"cache_ttl_sec"` // 0 = default
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Auth.JWT.PublicKey == "" && cfg.Auth.JWT.PublicKeyFile != "" {
		pem, err := os.ReadFile(filepath.Clean(cfg.Auth.JWT.PublicKeyFile))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read jwt public key: %w", err)
		}
		cfg.Auth.JWT.PublicKey = string(pem)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.RateLimitPerSec > 0 && c.HTTP.RateLimitBurst <= 0 {
		c.HTTP.RateLimitBurst = int(c.HTTP.RateLimitPerSec) + 1
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.CacheTTLSec == 0 {
		c.Embedding.CacheTTLSec = 7 * 24 * 3600
	}
	if c.Index.SearchMode == "" {
		c.Index.SearchMode = "exact"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Routing.AcceptThreshold == 0 {
		c.Routing.AcceptThreshold = 0.8
	}
	if c.Routing.LexicalFallbackThreshold == 0 {
		c.Routing.LexicalFallbackThreshold = 0.5
	}
	if c.Routing.TieBreak == "" {
		c.Routing.TieBreak = "vector_top"
	}
	if c.Routing.TopK <= 0 {
		c.Routing.TopK = 3
	}
	if c.Session.QueueDepth <= 0 {
		c.Session.QueueDepth = 256
	}
	if c.Session.IdleTimeoutSec <= 0 {
		c.Session.IdleTimeoutSec = 300
	}
	if c.Session.SweepIntervalSec <= 0 {
		c.Session.SweepIntervalSec = 30
	}
	if c.Session.InboundRatePerSec > 0 && c.Session.InboundBurst <= 0 {
		c.Session.InboundBurst = int(c.Session.InboundRatePerSec) + 1
	}
	if c.Session.HandlerTimeoutSec <= 0 {
		c.Session.HandlerTimeoutSec = 10
	}
	if c.Session.WriteTimeoutSec <= 0 {
		c.Session.WriteTimeoutSec = 10
	}
	if c.Session.PongTimeoutSec <= 0 {
		c.Session.PongTimeoutSec = 60
	}
	if c.Registry.CacheSize == 0 {
		c.Registry.CacheSize = 10000
	}
	if c.Registry.CacheTTLSec <= 0 {
		c.Registry.CacheTTLSec = 300
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.Provider != "openai" {
		return fmt.Errorf("embedding.provider must be \"openai\", got %q", c.Embedding.Provider)
	}
	switch c.Index.SearchMode {
	case "exact", "ann":
	default:
		return fmt.Errorf("index.search_mode must be \"exact\" or \"ann\", got %q", c.Index.SearchMode)
	}
	if err := c.Routing.validate(); err != nil {
		return err
	}
	switch c.Auth.JWT.SigningMethod {
	case "":
	case "HS256":
		if c.Auth.JWT.Secret == "" {
			return fmt.Errorf("auth.jwt.secret is required for HS256")
		}
	case "RS256":
		if c.Auth.JWT.PublicKey == "" {
			return fmt.Errorf("auth.jwt.public_key is required for RS256")
		}
	default:
		return fmt.Errorf("auth.jwt.signing_method must be \"HS256\" or \"RS256\", got %q", c.Auth.JWT.SigningMethod)
	}
	return nil
}

func (r *RoutingConfig) validate() error {
	if r.AcceptThreshold < 0 || r.AcceptThreshold > 1 {
		return fmt.Errorf("routing.accept_threshold must be in [0,1], got %v", r.AcceptThreshold)
	}
	if r.LexicalFallbackThreshold < 0 || r.LexicalFallbackThreshold > 1 {
		return fmt.Errorf("routing.lexical_fallback_threshold must be in [0,1], got %v", r.LexicalFallbackThreshold)
	}
	if r.LexicalFallbackThreshold > r.AcceptThreshold {
		return fmt.Errorf(
			"routing.lexical_fallback_threshold (%v) must not exceed accept_threshold (%v)",
			r.LexicalFallbackThreshold, r.AcceptThreshold,
		)
	}
	switch r.TieBreak {
	case "vector_top", "none":
	default:
		return fmt.Errorf("routing.tie_break must be \"vector_top\" or \"none\", got %q", r.TieBreak)
	}
	if len(r.Domains) == 0 {
		return fmt.Errorf("routing.domains requires at least one domain")
	}
	seen := make(map[string]bool, len(r.Domains))
	for i, d := range r.Domains {
		if d.ID == "" {
			return fmt.Errorf("routing.domains[%d].id is required", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("routing.domains: duplicate id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
