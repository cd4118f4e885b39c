package nlweb

import (
	"log/slog"
	"time"

	"github.com/teslashibe/nlweb-voice/pkg/cache"
)

// Config holds client configuration.
type Config struct {
	// Connection
	BaseURL string

	// Request parameters
	Sites             []string
	TopK              int
	FallbackTopK      int
	EmbeddingProvider string
	EmbeddingModel    string
	DatabaseEndpoint  string
	LLMTimeoutSeconds int
	MaxTokens         int
	SearchLimit       int

	// Per-tier request timeouts
	PrimaryTimeout   time.Duration
	RetrievalTimeout time.Duration
	SearchTimeout    time.Duration

	// Answer cache (optional)
	Cache    cache.Cache
	CacheTTL time.Duration

	// Observability
	Logger  *slog.Logger
	Metrics *Metrics
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// DefaultConfig returns the settings the assistant was tuned with.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "http://localhost:8000",
		Sites:             []string{"Behind-the-Tech", "Decoder"},
		TopK:              3,
		FallbackTopK:      5,
		EmbeddingProvider: "ollama",
		EmbeddingModel:    "qwen3:0.6b",
		DatabaseEndpoint:  "qdrant_local",
		LLMTimeoutSeconds: 15,
		MaxTokens:         200,
		SearchLimit:       3,
		PrimaryTimeout:    45 * time.Second,
		RetrievalTimeout:  15 * time.Second,
		SearchTimeout:     10 * time.Second,
		CacheTTL:          10 * time.Minute,
		Logger:            slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithBaseURL sets the service base URL, e.g. "http://localhost:8000".
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithSites restricts queries to the given sites.
func WithSites(sites ...string) Option {
	return func(c *Config) { c.Sites = sites }
}

// WithTopK sets the result count for the primary and retrieval tiers.
func WithTopK(primary, fallback int) Option {
	return func(c *Config) {
		c.TopK = primary
		c.FallbackTopK = fallback
	}
}

// WithEmbedding sets the embedding provider and model.
func WithEmbedding(provider, model string) Option {
	return func(c *Config) {
		c.EmbeddingProvider = provider
		c.EmbeddingModel = model
	}
}

// WithDatabaseEndpoint sets the vector database endpoint name.
func WithDatabaseEndpoint(endpoint string) Option {
	return func(c *Config) { c.DatabaseEndpoint = endpoint }
}

// WithLLMTimeout sets the server-side LLM timeout in seconds.
func WithLLMTimeout(seconds int) Option {
	return func(c *Config) { c.LLMTimeoutSeconds = seconds }
}

// WithMaxTokens limits the generated answer length.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithSearchLimit sets the result limit of the search tier.
func WithSearchLimit(n int) Option {
	return func(c *Config) { c.SearchLimit = n }
}

// WithTierTimeouts sets the request timeout of each tier.
func WithTierTimeouts(primary, retrieval, search time.Duration) Option {
	return func(c *Config) {
		c.PrimaryTimeout = primary
		c.RetrievalTimeout = retrieval
		c.SearchTimeout = search
	}
}

// WithCache enables the answer cache.
func WithCache(store cache.Cache, ttl time.Duration) Option {
	return func(c *Config) {
		c.Cache = store
		c.CacheTTL = ttl
	}
}

// WithMetrics records request metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}
