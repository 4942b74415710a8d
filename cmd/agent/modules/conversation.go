package modules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	dbembed "github.com/memohai/confidant/db"
	"github.com/memohai/confidant/internal/boot"
	"github.com/memohai/confidant/internal/completion"
	"github.com/memohai/confidant/internal/config"
	"github.com/memohai/confidant/internal/conversation"
	"github.com/memohai/confidant/internal/db"
	"github.com/memohai/confidant/internal/memory"
	"github.com/memohai/confidant/internal/metrics"
	"github.com/memohai/confidant/internal/session"
	"go.uber.org/fx"
)

var ConversationModule = fx.Module(
	"conversation",
	fx.Provide(
		provideCompleter,
		provideSessionStore,
		provideSessionJanitor,
		provideConversationService,
	),
	fx.Invoke(startSessionJanitor),
)

// ---------------------------------------------------------------------------
// conversation providers
// ---------------------------------------------------------------------------

func provideCompleter(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) (completion.Completer, error) {
	cc := cfg.Completion
	switch strings.ToLower(strings.TrimSpace(cc.Provider)) {
	case "", "openai":
		return completion.NewOpenAIClient(log, cc.BaseURL, cc.APIKey, cc.Model, rc.CompleteTimeout)
	case "anthropic":
		return completion.NewAnthropicClient(log, cc.AnthropicAPIKey, "", cc.AnthropicModel, rc.CompleteTimeout)
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cc.Provider)
	}
}

func provideSessionStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (session.Store, error) {
	sc := cfg.Session
	switch strings.ToLower(strings.TrimSpace(sc.Backend)) {
	case "", "memory":
		return session.NewMemoryStore(sc.RecentCacheSize), nil
	case "sqlite":
		store, err := session.NewSQLiteStore(sc.SQLitePath, sc.RecentCacheSize)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		closeOnStop(lc, store.Close)
		return store, nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.RunMigrate(log, cfg.Postgres, dbembed.Migrations(), "up", nil); err != nil {
			return nil, fmt.Errorf("session migrations: %w", err)
		}
		pool, err := db.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		closeOnStop(lc, func() error {
			pool.Close()
			return nil
		})
		return session.NewPostgresStore(pool, sc.RecentCacheSize), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", sc.Backend)
	}
}

func provideSessionJanitor(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig, store session.Store) (*session.Janitor, error) {
	return session.NewJanitor(log, store, cfg.Session.SweepSchedule, rc.SessionIdleTTL)
}

func provideConversationService(log *slog.Logger, cfg config.Config, mem *memory.Service, sessions session.Store, completer completion.Completer, m *metrics.Metrics) *conversation.Service {
	opts := conversation.DefaultOptions()
	opts.Params = completion.Params{
		Temperature:      cfg.Completion.Temperature,
		MaxTokens:        cfg.Completion.MaxTokens,
		FrequencyPenalty: cfg.Completion.FrequencyPenalty,
		PresencePenalty:  cfg.Completion.PresencePenalty,
	}
	return conversation.NewService(log, mem, sessions, completer, opts, m)
}

func startSessionJanitor(lc fx.Lifecycle, janitor *session.Janitor) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			janitor.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			janitor.Stop()
			return nil
		},
	})
}
