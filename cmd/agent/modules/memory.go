package modules

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/memohai/confidant/internal/boot"
	"github.com/memohai/confidant/internal/config"
	"github.com/memohai/confidant/internal/embeddings"
	"github.com/memohai/confidant/internal/memory"
	"github.com/memohai/confidant/internal/metrics"
	"go.uber.org/fx"
)

var MemoryModule = fx.Module(
	"memory",
	fx.Provide(
		provideEmbeddingProvider,
		provideEmbeddingGateway,
		provideMemoryStore,
		provideMemoryService,
	),
)

// ---------------------------------------------------------------------------
// memory providers
// ---------------------------------------------------------------------------

func provideEmbeddingProvider(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) (embeddings.Provider, error) {
	ec := cfg.Embedding
	switch strings.ToLower(strings.TrimSpace(ec.Provider)) {
	case "", "openai":
		return embeddings.NewOpenAIEmbedder(log, ec.APIKey, ec.BaseURL, ec.Model, ec.Dimensions, rc.EmbedTimeout)
	case "dashscope":
		return embeddings.NewDashScopeEmbedder(log, ec.APIKey, ec.BaseURL, ec.Model, ec.Dimensions, rc.EmbedTimeout)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", ec.Provider)
	}
}

func provideEmbeddingGateway(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, provider embeddings.Provider, m *metrics.Metrics) (*embeddings.Gateway, error) {
	gw, err := embeddings.NewGateway(log, provider, embeddings.GatewayConfig{
		TruncateChars: cfg.Embedding.TruncateChars,
		CacheEntries:  cfg.Embedding.CacheEntries,
		RatePerSecond: cfg.Embedding.RatePerSecond,
		Burst:         cfg.Embedding.Burst,
	}, m)
	if err != nil {
		return nil, err
	}
	closeOnStop(lc, func() error {
		gw.Close()
		return nil
	})
	return gw, nil
}

func provideMemoryStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) (memory.Store, error) {
	var (
		store memory.Store
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Memory.Backend)) {
	case "", "qdrant":
		store, err = memory.NewQdrantStore(log, cfg.Qdrant.BaseURL, cfg.Qdrant.APIKey, cfg.Qdrant.Collection, cfg.Embedding.Dimensions, rc.QdrantTimeout)
	case "chromem":
		store, err = memory.NewChromemStore(log, cfg.Memory.DataDir, cfg.Memory.Compress, cfg.Embedding.Dimensions)
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("memory store: %w", err)
	}
	closeOnStop(lc, store.Close)
	log.Info("memory store ready", slog.String("backend", cfg.Memory.Backend), slog.Int("dimensions", cfg.Embedding.Dimensions))
	return store, nil
}

func provideMemoryService(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig, store memory.Store, gw *embeddings.Gateway, m *metrics.Metrics) *memory.Service {
	return memory.NewService(log, store, gw, cfg.Memory.BotID, rc.Ranking, rc.RetrieveDefaults, m)
}
