package main

import (
	"log/slog"

	"github.com/memohai/confidant/cmd/agent/modules"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func main() {
	fx.New(
		modules.InfraModule,
		modules.MemoryModule,
		modules.ConversationModule,
		modules.ChannelModule,
		modules.ServerModule,
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}
