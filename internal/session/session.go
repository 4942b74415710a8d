// Package session keeps per-user and per-chat conversational state: the
// preferred reply language and a short cache of recent user messages.
package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a user has no stored language preference.
var ErrNotFound = errors.New("session: not found")

// DefaultRecentCapacity is how many recent user messages a chat keeps.
const DefaultRecentCapacity = 5

// Store is the session state backend.
type Store interface {
	// Language returns the user's preferred language or ErrNotFound.
	Language(ctx context.Context, userID int64) (string, error)
	SetLanguage(ctx context.Context, userID int64, lang string) error
	// PushRecent records a user message in the chat cache, dropping the
	// oldest entries past capacity. It also marks the user as active.
	PushRecent(ctx context.Context, userID, chatID int64, text string) error
	// Recent returns up to limit cached messages, newest first.
	Recent(ctx context.Context, chatID int64, limit int) ([]string, error)
	ResetChat(ctx context.Context, chatID int64) error
	// EvictIdle removes users and chats untouched since before and reports
	// how many entries were dropped.
	EvictIdle(ctx context.Context, before time.Time) (int, error)
	Close() error
}

func normalizeCapacity(capacity int) int {
	if capacity <= 0 {
		return DefaultRecentCapacity
	}
	return capacity
}

func normalizeLanguage(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}
