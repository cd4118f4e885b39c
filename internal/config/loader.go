package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NLVOICE_NLWEB_BASE_URL.
const EnvPrefix = "NLVOICE"

// Load builds the configuration. Sources, lowest priority first: built-in
// defaults, the YAML file at path (optional, skipped when empty or missing),
// a .env file in the working directory, then environment variables.
func Load(path string) (*Config, error) {
	loadEnvFile(".env")

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// NLWEB_URL is the short form the original scripts documented.
	if u := os.Getenv("NLWEB_URL"); u != "" && os.Getenv(EnvPrefix+"_NLWEB_BASE_URL") == "" {
		cfg.NLWeb.BaseURL = u
	}
	cfg.NLWeb.BaseURL = strings.TrimSuffix(cfg.NLWeb.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading any source.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("nlweb.base_url", DefaultBaseURL)
	v.SetDefault("nlweb.sites", DefaultSites)
	v.SetDefault("nlweb.top_k", 3)
	v.SetDefault("nlweb.fallback_top_k", 5)
	v.SetDefault("nlweb.embedding_provider", DefaultEmbeddingProvider)
	v.SetDefault("nlweb.embedding_model", DefaultEmbeddingModel)
	v.SetDefault("nlweb.database_endpoint", DefaultDatabaseEndpoint)
	v.SetDefault("nlweb.llm_timeout", 15)
	v.SetDefault("nlweb.max_tokens", 200)
	v.SetDefault("nlweb.search_limit", 3)
	v.SetDefault("nlweb.primary_timeout", 45*time.Second)
	v.SetDefault("nlweb.retrieval_timeout", 15*time.Second)
	v.SetDefault("nlweb.search_timeout", 10*time.Second)

	v.SetDefault("conversation.wake_word", DefaultWakeWord)
	v.SetDefault("conversation.response_timeout", 10*time.Second)
	v.SetDefault("conversation.follow_up_timeout", 15*time.Second)
	v.SetDefault("conversation.listen_timeout", 8*time.Second)
	v.SetDefault("conversation.history_size", 5)
	v.SetDefault("conversation.queue_size", 16)
	v.SetDefault("conversation.speak_command", "")

	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)

	v.SetDefault("web.enabled", false)
	v.SetDefault("web.port", DefaultWebPort)
}

// loadEnvFile loads a .env file if present. Existing variables win.
func loadEnvFile(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}
