// Package config loads nlweb-voice configuration from defaults, an optional
// YAML file, a .env file and NLVOICE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Defaults mirror what the assistant was tuned with against a local NLWeb instance.
const (
	DefaultBaseURL           = "http://localhost:8000"
	DefaultEmbeddingProvider = "ollama"
	DefaultEmbeddingModel    = "qwen3:0.6b"
	DefaultDatabaseEndpoint  = "qdrant_local"
	DefaultWakeWord          = "computer"
	DefaultWebPort           = "8090"
)

// DefaultSites are the NLWeb sites queried when none are configured.
var DefaultSites = []string{"Behind-the-Tech", "Decoder"}

// Config is the full application configuration.
type Config struct {
	LogLevel     string             `mapstructure:"log_level"`
	NLWeb        NLWebConfig        `mapstructure:"nlweb"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Web          WebConfig          `mapstructure:"web"`
}

// NLWebConfig configures the knowledge service client.
type NLWebConfig struct {
	BaseURL           string   `mapstructure:"base_url"`
	Sites             []string `mapstructure:"sites"`
	TopK              int      `mapstructure:"top_k"`
	FallbackTopK      int      `mapstructure:"fallback_top_k"`
	EmbeddingProvider string   `mapstructure:"embedding_provider"`
	EmbeddingModel    string   `mapstructure:"embedding_model"`
	DatabaseEndpoint  string   `mapstructure:"database_endpoint"`
	LLMTimeoutSeconds int      `mapstructure:"llm_timeout"`
	MaxTokens         int      `mapstructure:"max_tokens"`
	SearchLimit       int      `mapstructure:"search_limit"`

	PrimaryTimeout   time.Duration `mapstructure:"primary_timeout"`
	RetrievalTimeout time.Duration `mapstructure:"retrieval_timeout"`
	SearchTimeout    time.Duration `mapstructure:"search_timeout"`
}

// ConversationConfig configures the state machine and its loop.
type ConversationConfig struct {
	WakeWord        string        `mapstructure:"wake_word"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`
	FollowUpTimeout time.Duration `mapstructure:"follow_up_timeout"`
	ListenTimeout   time.Duration `mapstructure:"listen_timeout"`
	HistorySize     int           `mapstructure:"history_size"`
	QueueSize       int           `mapstructure:"queue_size"`
	SpeakCommand    string        `mapstructure:"speak_command"`
}

// CacheConfig selects the answer cache backend: "none", "memory" or "redis".
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
}

// WebConfig configures the dashboard.
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    string `mapstructure:"port"`
}

// Validate checks the configuration for values the pipeline cannot work with.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.NLWeb.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("nlweb.base_url %q is not an absolute URL", c.NLWeb.BaseURL))
	}
	if c.NLWeb.TopK <= 0 {
		errs = append(errs, errors.New("nlweb.top_k must be positive"))
	}
	if c.NLWeb.PrimaryTimeout <= 0 || c.NLWeb.RetrievalTimeout <= 0 || c.NLWeb.SearchTimeout <= 0 {
		errs = append(errs, errors.New("nlweb tier timeouts must be positive"))
	}
	if strings.TrimSpace(c.Conversation.WakeWord) == "" {
		errs = append(errs, errors.New("conversation.wake_word is required"))
	}
	if c.Conversation.ResponseTimeout <= 0 || c.Conversation.FollowUpTimeout <= 0 {
		errs = append(errs, errors.New("conversation timeouts must be positive"))
	}
	if c.Conversation.HistorySize < 0 || c.Conversation.HistorySize > 5 {
		errs = append(errs, errors.New("conversation.history_size must be between 0 and 5"))
	}
	switch c.Cache.Backend {
	case "", "none", "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache.backend %q", c.Cache.Backend))
	}

	return errors.Join(errs...)
}
