// Package config loads and exposes application configuration (TOML with environment overrides).
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultJWTExpiresIn      = "24h"
	DefaultBotID             = "psychologist"
	DefaultEmbeddingBaseURL  = "https://api.openai.com"
	DefaultEmbeddingModel    = "text-embedding-3-small"
	DefaultDimensions        = 1536
	DefaultTruncateChars     = 4000
	DefaultRecentTauSeconds  = 6 * 3600
	DefaultRecencyBias       = 0.35
	DefaultTopK              = 8
	DefaultMaxChars          = 4000
	DefaultMinScore          = 0.3
	DefaultCompletionModel   = "gpt-4.1-mini"
	DefaultAnthropicModel    = "claude-3-5-haiku-latest"
	DefaultQdrantURL         = "http://127.0.0.1:6334"
	DefaultQdrantCollection  = "psychologist-memory"
	DefaultSQLitePath        = "data/sessions.db"
	DefaultSessionIdleTTL    = "720h"
	DefaultSessionSweep      = "@hourly"
	DefaultRecentCacheSize   = 5
	DefaultPGHost            = "127.0.0.1"
	DefaultPGPort            = 5432
	DefaultPGUser            = "postgres"
	DefaultPGDatabase        = "confidant"
	DefaultPGSSLMode         = "disable"
	DefaultRequestTimeoutSec = 30
)

// Config is the root application configuration.
type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Auth       AuthConfig       `toml:"auth"`
	Telegram   TelegramConfig   `toml:"telegram"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Memory     MemoryConfig     `toml:"memory"`
	Qdrant     QdrantConfig     `toml:"qdrant"`
	Completion CompletionConfig `toml:"completion"`
	Session    SessionConfig    `toml:"session"`
	Postgres   PostgresConfig   `toml:"postgres"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level" env:"LOG_LEVEL"`
	Format string `toml:"format" env:"LOG_FORMAT"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AuthConfig holds JWT secret and token expiry (e.g. 24h).
type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret" env:"JWT_SECRET"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// TelegramConfig holds the bot token and long-poll settings.
type TelegramConfig struct {
	Token              string `toml:"token" env:"TELEGRAM_TOKEN"`
	Debug              bool   `toml:"debug"`
	PollTimeoutSeconds int    `toml:"poll_timeout_seconds"`
}

// EmbeddingConfig configures the embedding provider and the gateway in front of it.
// Provider is "openai" (any OpenAI-compatible endpoint) or "dashscope".
type EmbeddingConfig struct {
	Provider       string  `toml:"provider" env:"EMBEDDING_PROVIDER"`
	BaseURL        string  `toml:"base_url" env:"EMBEDDING_BASE_URL"`
	APIKey         string  `toml:"api_key" env:"OPENAI_API_KEY"`
	Model          string  `toml:"model" env:"EMBEDDING_MODEL"`
	Dimensions     int     `toml:"dimensions" env:"DIMENSION"`
	TruncateChars  int     `toml:"truncate_chars" env:"EMBED_TRUNCATE_CHARS"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	CacheEntries   int64   `toml:"cache_entries"`
	RatePerSecond  float64 `toml:"rate_per_second"`
	Burst          int     `toml:"burst"`
}

// MemoryConfig holds the vector backend choice and retrieval tuning.
// Backend is "qdrant" or "chromem".
type MemoryConfig struct {
	Backend          string  `toml:"backend" env:"MEMORY_BACKEND"`
	BotID            string  `toml:"bot_id" env:"BOT_ID"`
	RecentTauSeconds float64 `toml:"recent_tau_seconds" env:"RECENT_TAU_SEC"`
	RecencyBias      float64 `toml:"recency_bias" env:"RECENCY_BIAS"`
	TopK             int     `toml:"top_k" env:"MEMORY_TOP_K"`
	MaxChars         int     `toml:"max_chars" env:"MEMORY_MAX_CHARS"`
	MinScore         float64 `toml:"min_score" env:"MEMORY_MIN_SCORE"`
	DataDir          string  `toml:"data_dir" env:"MEMORY_DATA_DIR"`
	Compress         bool    `toml:"compress"`
}

// QdrantConfig holds Qdrant base URL, API key, collection name, and timeout.
type QdrantConfig struct {
	BaseURL        string `toml:"base_url" env:"QDRANT_URL"`
	APIKey         string `toml:"api_key" env:"QDRANT_API_KEY"`
	Collection     string `toml:"collection" env:"QDRANT_COLLECTION"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// CompletionConfig configures the chat completion backend.
// Provider is "openai" or "anthropic".
type CompletionConfig struct {
	Provider         string  `toml:"provider" env:"COMPLETION_PROVIDER"`
	BaseURL          string  `toml:"base_url" env:"OPENAI_BASE_URL"`
	APIKey           string  `toml:"api_key" env:"OPENAI_API_KEY"`
	Model            string  `toml:"model" env:"OPENAI_MODEL"`
	AnthropicAPIKey  string  `toml:"anthropic_api_key" env:"ANTHROPIC_API_KEY"`
	AnthropicModel   string  `toml:"anthropic_model" env:"ANTHROPIC_MODEL"`
	Temperature      float64 `toml:"temperature"`
	MaxTokens        int     `toml:"max_tokens"`
	FrequencyPenalty float64 `toml:"frequency_penalty"`
	PresencePenalty  float64 `toml:"presence_penalty"`
	TimeoutSeconds   int     `toml:"timeout_seconds"`
}

// SessionConfig configures per-user and per-chat conversational state.
// Backend is "memory", "sqlite" or "postgres".
type SessionConfig struct {
	Backend         string `toml:"backend" env:"SESSION_BACKEND"`
	SQLitePath      string `toml:"sqlite_path" env:"SESSION_SQLITE_PATH"`
	IdleTTL         string `toml:"idle_ttl"`
	SweepSchedule   string `toml:"sweep_schedule"`
	RecentCacheSize int    `toml:"recent_cache_size"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host" env:"PGHOST"`
	Port     int    `toml:"port" env:"PGPORT"`
	User     string `toml:"user" env:"PGUSER"`
	Password string `toml:"password" env:"PGPASSWORD"`
	Database string `toml:"database" env:"PGDATABASE"`
	SSLMode  string `toml:"sslmode"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Telegram: TelegramConfig{
			PollTimeoutSeconds: 30,
		},
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			BaseURL:        DefaultEmbeddingBaseURL,
			Model:          DefaultEmbeddingModel,
			Dimensions:     DefaultDimensions,
			TruncateChars:  DefaultTruncateChars,
			TimeoutSeconds: DefaultRequestTimeoutSec,
			CacheEntries:   4096,
			RatePerSecond:  20,
			Burst:          5,
		},
		Memory: MemoryConfig{
			Backend:          "qdrant",
			BotID:            DefaultBotID,
			RecentTauSeconds: DefaultRecentTauSeconds,
			RecencyBias:      DefaultRecencyBias,
			TopK:             DefaultTopK,
			MaxChars:         DefaultMaxChars,
			MinScore:         DefaultMinScore,
		},
		Qdrant: QdrantConfig{
			BaseURL:        DefaultQdrantURL,
			Collection:     DefaultQdrantCollection,
			TimeoutSeconds: 10,
		},
		Completion: CompletionConfig{
			Provider:         "openai",
			BaseURL:          DefaultEmbeddingBaseURL,
			Model:            DefaultCompletionModel,
			AnthropicModel:   DefaultAnthropicModel,
			Temperature:      0.6,
			MaxTokens:        220,
			FrequencyPenalty: 0.6,
			PresencePenalty:  0.2,
			TimeoutSeconds:   DefaultRequestTimeoutSec,
		},
		Session: SessionConfig{
			Backend:         "memory",
			SQLitePath:      DefaultSQLitePath,
			IdleTTL:         DefaultSessionIdleTTL,
			SweepSchedule:   DefaultSessionSweep,
			RecentCacheSize: DefaultRecentCacheSize,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
	}
}

// Load reads the TOML file at path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
