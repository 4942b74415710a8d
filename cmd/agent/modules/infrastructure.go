package modules

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/memohai/confidant/internal/boot"
	"github.com/memohai/confidant/internal/config"
	"github.com/memohai/confidant/internal/logger"
	"github.com/memohai/confidant/internal/metrics"
	"go.uber.org/fx"
)

var InfraModule = fx.Module(
	"infra",
	fx.Provide(
		provideConfig,
		provideLogger,
		provideMetrics,
		boot.ProvideRuntimeConfig,
	),
)

// ---------------------------------------------------------------------------
// infrastructure providers
// ---------------------------------------------------------------------------

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

// closeOnStop registers fn to run when the application stops.
func closeOnStop(lc fx.Lifecycle, fn func() error) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return fn()
		},
	})
}
