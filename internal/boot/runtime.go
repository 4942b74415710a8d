// Package boot derives runtime settings from the loaded configuration.
package boot

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/memohai/confidant/internal/config"
	"github.com/memohai/confidant/internal/memory"
)

// RuntimeConfig holds parsed runtime settings.
// ServerAddr may be overridden by HTTP_ADDR.
type RuntimeConfig struct {
	JwtSecret        string
	JwtExpiresIn     time.Duration
	ServerAddr       string
	EmbedTimeout     time.Duration
	QdrantTimeout    time.Duration
	CompleteTimeout  time.Duration
	SessionIdleTTL   time.Duration
	Ranking          memory.Ranking
	RetrieveDefaults memory.RetrieveOptions
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies env overrides.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}

	jwtExpiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("invalid jwt expires in: %w", err)
	}
	idleTTL, err := time.ParseDuration(cfg.Session.IdleTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid session idle ttl: %w", err)
	}
	if cfg.Embedding.Dimensions <= 0 {
		return nil, errors.New("embedding dimensions must be positive")
	}

	ret := &RuntimeConfig{
		JwtSecret:       cfg.Auth.JWTSecret,
		JwtExpiresIn:    jwtExpiresIn,
		ServerAddr:      cfg.Server.Addr,
		EmbedTimeout:    seconds(cfg.Embedding.TimeoutSeconds),
		QdrantTimeout:   seconds(cfg.Qdrant.TimeoutSeconds),
		CompleteTimeout: seconds(cfg.Completion.TimeoutSeconds),
		SessionIdleTTL:  idleTTL,
		Ranking: memory.Ranking{
			Tau:         time.Duration(cfg.Memory.RecentTauSeconds * float64(time.Second)),
			RecencyBias: cfg.Memory.RecencyBias,
		},
		RetrieveDefaults: memory.RetrieveOptions{
			TopK:     cfg.Memory.TopK,
			MaxChars: cfg.Memory.MaxChars,
			MinScore: cfg.Memory.MinScore,
		},
	}

	if value := os.Getenv("HTTP_ADDR"); value != "" {
		ret.ServerAddr = value
	}
	return ret, nil
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return config.DefaultRequestTimeoutSec * time.Second
	}
	return time.Duration(n) * time.Second
}
