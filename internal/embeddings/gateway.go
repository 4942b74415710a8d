package embeddings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/time/rate"

	"github.com/memohai/confidant/internal/metrics"
)

// TruncationMarker is appended to inputs cut at the character limit.
const TruncationMarker = " …"

// GatewayConfig tunes the gateway in front of a Provider.
type GatewayConfig struct {
	// TruncateChars caps the characters sent to the provider; 0 disables it.
	TruncateChars int
	// CacheEntries bounds the vector cache; 0 disables caching.
	CacheEntries int64
	// RatePerSecond limits provider calls; 0 means unlimited.
	RatePerSecond float64
	Burst         int
}

// Gateway is the single entry point for embeddings. It never returns an
// error: failures are logged and surface as (nil, false).
type Gateway struct {
	provider Provider
	truncate int
	cache    *ristretto.Cache
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewGateway(log *slog.Logger, provider Provider, cfg GatewayConfig, m *metrics.Metrics) (*Gateway, error) {
	g := &Gateway{
		provider: provider,
		truncate: cfg.TruncateChars,
		limiter:  rate.NewLimiter(rate.Inf, 0),
		metrics:  m,
		logger:   log.With(slog.String("service", "embeddings"), slog.String("model", provider.Model())),
	}
	if cfg.RatePerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(1, cfg.Burst))
	}
	if cfg.CacheEntries > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters:        cfg.CacheEntries * 10,
			MaxCost:            cfg.CacheEntries,
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding cache: %w", err)
		}
		g.cache = cache
	}
	return g, nil
}

// Dimensions is the vector size every successful Embed returns.
func (g *Gateway) Dimensions() int { return g.provider.Dimensions() }

// Embed returns the vector for text. Blank text is rejected locally.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, bool) {
	if strings.TrimSpace(text) == "" {
		g.metrics.EmbeddingObserved(metrics.ResultRejected)
		return nil, false
	}
	input := Truncate(text, g.truncate)
	key := g.provider.Model() + "\x00" + input

	if g.cache != nil {
		if v, ok := g.cache.Get(key); ok {
			g.metrics.EmbeddingObserved(metrics.ResultCached)
			return v.([]float32), true
		}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		g.logger.Error("embedding rate limit wait failed", slog.Any("error", err))
		g.metrics.EmbeddingObserved(metrics.ResultError)
		return nil, false
	}
	vector, err := g.provider.Embed(ctx, input)
	if err != nil {
		g.logger.Error("embedding failed", slog.Int("chars", len([]rune(input))), slog.Any("error", err))
		g.metrics.EmbeddingObserved(metrics.ResultError)
		return nil, false
	}
	if want := g.provider.Dimensions(); len(vector) != want {
		g.logger.Error("embedding dimension mismatch", slog.Int("got", len(vector)), slog.Int("want", want))
		g.metrics.EmbeddingObserved(metrics.ResultError)
		return nil, false
	}

	if g.cache != nil {
		g.cache.Set(key, vector, 1)
	}
	g.metrics.EmbeddingObserved(metrics.ResultOK)
	return vector, true
}

// Close releases the cache.
func (g *Gateway) Close() {
	if g.cache != nil {
		g.cache.Close()
	}
}

// Truncate cuts text to limit characters and marks the cut. A non-positive
// limit leaves text unchanged.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + TruncationMarker
}
