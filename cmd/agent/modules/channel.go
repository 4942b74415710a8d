package modules

import (
	"context"
	"log/slog"
	"strings"

	"github.com/memohai/confidant/internal/channel/adapters/telegram"
	"github.com/memohai/confidant/internal/config"
	"github.com/memohai/confidant/internal/conversation"
	"go.uber.org/fx"
)

var ChannelModule = fx.Module(
	"channel",
	fx.Provide(provideTelegramBot),
	fx.Invoke(startTelegramBot),
)

// ---------------------------------------------------------------------------
// channel providers
// ---------------------------------------------------------------------------

// provideTelegramBot returns nil when no token is configured; the HTTP API
// still runs in that case.
func provideTelegramBot(log *slog.Logger, cfg config.Config, conv *conversation.Service) (*telegram.Bot, error) {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		log.Warn("telegram token not configured; bot disabled")
		return nil, nil
	}
	return telegram.NewBot(log, cfg.Telegram.Token, cfg.Telegram.Debug, cfg.Telegram.PollTimeoutSeconds, conv)
}

func startTelegramBot(lc fx.Lifecycle, bot *telegram.Bot) {
	if bot == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return bot.Start(context.Background())
		},
		OnStop: func(ctx context.Context) error {
			return bot.Stop(ctx)
		},
	})
}
