package telegram

import (
	"fmt"
	"log/slog"
	"strings"
)

// botLogger routes tgbotapi output into slog. The library uses Println for
// polling failures and Printf for request tracing when Debug is on.
type botLogger struct {
	log *slog.Logger
}

func newBotLogger(log *slog.Logger) *botLogger {
	return &botLogger{log: log.With(slog.String("adapter", "telegram"), slog.String("source", "tgbotapi"))}
}

func (l *botLogger) Println(v ...any) {
	msg := strings.TrimSpace(fmt.Sprintln(v...))
	if msg == "" {
		return
	}
	l.log.Warn(msg)
}

func (l *botLogger) Printf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
