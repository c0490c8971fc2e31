// Package config loads application configuration from file and environment and
// initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" mapstructure:"retrieval"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit" mapstructure:"ratelimit"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the vector index backend. DatabaseURL is the
// restricted read/RPC credential used by the ask server; AdminDatabaseURL is
// the full read-write credential used by ingestion and cache writes.
type StoreConfig struct {
	Driver           string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL      string `yaml:"database_url" mapstructure:"database_url"`
	AdminDatabaseURL string `yaml:"admin_database_url" mapstructure:"admin_database_url"`
}

// AdminURL returns the administrative connection string, defaulting to the
// read URL when no separate credential is configured.
func (c StoreConfig) AdminURL() string {
	if c.AdminDatabaseURL != "" {
		return c.AdminDatabaseURL
	}
	return c.DatabaseURL
}

// OpenAIConfig holds OpenAI API settings for embeddings and generation.
type OpenAIConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	EmbedModel string `yaml:"embed_model" mapstructure:"embed_model"`
}

// AnthropicConfig holds Anthropic API settings for the alternate generation
// provider.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GenerationConfig configures the tiered answer generation policy.
type GenerationConfig struct {
	Provider          string `yaml:"provider" mapstructure:"provider"`
	PrimaryModel      string `yaml:"primary_model" mapstructure:"primary_model"`
	PrimaryMaxTokens  int    `yaml:"primary_max_tokens" mapstructure:"primary_max_tokens"`
	FallbackModel     string `yaml:"fallback_model" mapstructure:"fallback_model"`
	FallbackMaxTokens int    `yaml:"fallback_max_tokens" mapstructure:"fallback_max_tokens"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// IngestConfig configures the ingestion batch job.
type IngestConfig struct {
	PDFDir        string `yaml:"pdf_dir" mapstructure:"pdf_dir"`
	MaxTokens     int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	Overlap       int    `yaml:"overlap" mapstructure:"overlap"`
	DocVersion    string `yaml:"doc_version" mapstructure:"doc_version"`
	EmbedWorkers  int    `yaml:"embed_workers" mapstructure:"embed_workers"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	PdfInfoPath   string `yaml:"pdfinfo_path" mapstructure:"pdfinfo_path"`
}

// CacheConfig configures semantic cache matching. The retrieval threshold
// casts a wide net for the approximate search; the admission threshold is
// enforced strictly by the cache itself.
type CacheConfig struct {
	RetrievalThreshold float64 `yaml:"retrieval_threshold" mapstructure:"retrieval_threshold"`
	AdmitThreshold     float64 `yaml:"admit_threshold" mapstructure:"admit_threshold"`
	Candidates         int     `yaml:"candidates" mapstructure:"candidates"`
}

// RetrievalConfig configures context retrieval.
type RetrievalConfig struct {
	MaxChunks      int    `yaml:"max_chunks" mapstructure:"max_chunks"`
	FallbackSource string `yaml:"fallback_source" mapstructure:"fallback_source"`
}

// RateLimitConfig configures the per-IP fixed-window rate limiter.
type RateLimitConfig struct {
	WindowSecs    int `yaml:"window_secs" mapstructure:"window_secs"`
	MaxProduction int `yaml:"max_production" mapstructure:"max_production"`
	MaxDefault    int `yaml:"max_default" mapstructure:"max_default"`
}

// MaxRequests returns the per-window request ceiling for the given
// environment.
func (c RateLimitConfig) MaxRequests(production bool) int {
	if production {
		return c.MaxProduction
	}
	return c.MaxDefault
}

// ServerConfig configures the ask API server.
type ServerConfig struct {
	Port        int    `yaml:"port" mapstructure:"port"`
	Environment string `yaml:"environment" mapstructure:"environment"`
}

// IsProduction reports whether the server runs with production hardening
// (stricter rate limits, suppressed error detail).
func (c ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HANDBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.embed_model", "text-embedding-3-small")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("generation.provider", "openai")
	v.SetDefault("generation.primary_model", "gpt-5-nano")
	v.SetDefault("generation.primary_max_tokens", 220)
	v.SetDefault("generation.fallback_model", "gpt-4o-mini")
	v.SetDefault("generation.fallback_max_tokens", 300)
	v.SetDefault("generation.timeout_secs", 20)
	v.SetDefault("ingest.pdf_dir", "data/pdfs")
	v.SetDefault("ingest.max_tokens", 800)
	v.SetDefault("ingest.overlap", 120)
	v.SetDefault("ingest.doc_version", "v2025")
	v.SetDefault("ingest.embed_workers", 4)
	v.SetDefault("ingest.pdftotext_path", "pdftotext")
	v.SetDefault("ingest.pdfinfo_path", "pdfinfo")
	v.SetDefault("cache.retrieval_threshold", 0.7)
	v.SetDefault("cache.admit_threshold", 0.9)
	v.SetDefault("cache.candidates", 5)
	v.SetDefault("retrieval.max_chunks", 6)
	v.SetDefault("retrieval.fallback_source", "Residence_and_Housing_Handbook2025.pdf")
	v.SetDefault("ratelimit.window_secs", 60)
	v.SetDefault("ratelimit.max_production", 20)
	v.SetDefault("ratelimit.max_default", 60)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
