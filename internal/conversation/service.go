// Package conversation turns inbound chat messages into replies: language
// handling, small talk, memory-backed completion and menu actions.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/memohai/confidant/agent/prompts"
	"github.com/memohai/confidant/internal/completion"
	"github.com/memohai/confidant/internal/memory"
	"github.com/memohai/confidant/internal/metrics"
	"github.com/memohai/confidant/internal/session"
)

// ErrUnsupportedLanguage is returned by SetLanguage for a language without a catalog.
var ErrUnsupportedLanguage = errors.New("conversation: unsupported language")

// Memory is the part of the memory subsystem the conversation needs.
type Memory interface {
	Save(ctx context.Context, userID, chatID, text string, role memory.Role) bool
	Relevant(ctx context.Context, chatID, query string, opts memory.RetrieveOptions) []memory.Message
	Recent(ctx context.Context, chatID string, limit int) []memory.Message
	RecentUser(ctx context.Context, chatID string, limit int) []memory.Message
	Clear(ctx context.Context, chatID string) memory.ClearResult
}

// ReplyKind classifies how a reply was produced.
type ReplyKind string

const (
	ReplyRejected   ReplyKind = "rejected"
	ReplySmalltalk  ReplyKind = "smalltalk"
	ReplyCompletion ReplyKind = "completion"
	ReplyFallback   ReplyKind = "fallback"
	ReplyMenu       ReplyKind = "menu"
)

// Inbound is one text message from a chat.
type Inbound struct {
	UserID int64
	ChatID int64
	Text   string
}

// Reply is the text to send back. Language is the user's interface
// language, used to localize the menu shown with the reply.
type Reply struct {
	Text     string
	Kind     ReplyKind
	Language string
}

// Options tunes message handling.
type Options struct {
	MinChars      int
	MaxChars      int
	Retrieve      memory.RetrieveOptions
	HistoryBudget int
	RecentLimit   int
	Params        completion.Params
}

// DefaultOptions returns the tuning used by the bot.
func DefaultOptions() Options {
	return Options{
		MinChars:      2,
		MaxChars:      1500,
		Retrieve:      memory.RetrieveOptions{TopK: 5, MaxChars: 4000, MinScore: 0.3},
		HistoryBudget: 3000,
		RecentLimit:   3,
		Params: completion.Params{
			Temperature:      0.6,
			MaxTokens:        220,
			FrequencyPenalty: 0.6,
			PresencePenalty:  0.2,
		},
	}
}

type Service struct {
	memory    Memory
	sessions  session.Store
	completer completion.Completer
	opts      Options
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewService(log *slog.Logger, mem Memory, sessions session.Store, completer completion.Completer, opts Options, m *metrics.Metrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		memory:    mem,
		sessions:  sessions,
		completer: completer,
		opts:      opts,
		metrics:   m,
		logger:    log.With(slog.String("service", "conversation")),
	}
}

// Language returns the user's interface language, DefaultLanguage if unset.
func (s *Service) Language(ctx context.Context, userID int64) string {
	lang, err := s.sessions.Language(ctx, userID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			s.logger.Warn("load language failed", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return DefaultLanguage
	}
	if !Supported(lang) {
		return DefaultLanguage
	}
	return lang
}

// SetLanguage stores the user's interface language and returns the greeting in it.
func (s *Service) SetLanguage(ctx context.Context, userID int64, lang string) (Reply, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if !Supported(lang) {
		return Reply{Text: TextUnsupportedLang, Kind: ReplyMenu, Language: s.Language(ctx, userID)}, ErrUnsupportedLanguage
	}
	if err := s.sessions.SetLanguage(ctx, userID, lang); err != nil {
		return Reply{}, fmt.Errorf("set language: %w", err)
	}
	return s.menu(lang, TextsFor(lang).Greet), nil
}

func (s *Service) Greeting(ctx context.Context, userID int64) Reply {
	lang := s.Language(ctx, userID)
	return s.menu(lang, TextsFor(lang).Greet)
}

func (s *Service) Help(ctx context.Context, userID int64) Reply {
	lang := s.Language(ctx, userID)
	return s.menu(lang, TextsFor(lang).Help)
}

func (s *Service) Abilities(ctx context.Context, userID int64) Reply {
	lang := s.Language(ctx, userID)
	return s.menu(lang, TextsFor(lang).Abilities)
}

// LanguageChoice returns the language picker prompt.
func (s *Service) LanguageChoice(ctx context.Context, userID int64) Reply {
	lang := s.Language(ctx, userID)
	return s.menu(lang, TextsFor(lang).ChooseLanguage)
}

// HandleText answers one user message and records both sides in memory.
func (s *Service) HandleText(ctx context.Context, in Inbound) Reply {
	lang := s.Language(ctx, in.UserID)
	if n := utf8.RuneCountInString(in.Text); n < s.opts.MinChars || n > s.opts.MaxChars {
		return s.reply(lang, TextLengthRejected, ReplyRejected)
	}

	userID := strconv.FormatInt(in.UserID, 10)
	chatID := strconv.FormatInt(in.ChatID, 10)
	msgLang := detectLanguage(in.Text)

	if isSmalltalk(in.Text, msgLang) {
		text := TextsFor(msgLang).Smalltalk
		s.memory.Save(ctx, userID, chatID, in.Text, memory.RoleUser)
		s.remember(ctx, in)
		s.memory.Save(ctx, userID, chatID, text, memory.RoleAssistant)
		return s.reply(lang, text, ReplySmalltalk)
	}

	s.memory.Save(ctx, userID, chatID, in.Text, memory.RoleUser)
	s.remember(ctx, in)

	history := s.memory.Relevant(ctx, chatID, in.Text, s.opts.Retrieve)
	messages := s.buildMessages(lang, msgLang, history, in.Text)

	text, kind := "", ReplyCompletion
	raw, err := s.completer.Complete(ctx, messages, s.opts.Params)
	if err != nil {
		s.logger.Error("completion failed", slog.String("chat_id", chatID), slog.Any("error", err))
		text, kind = TextsFor(lang).Error, ReplyFallback
	} else {
		text = shrinkReply(raw, ReplyMaxSentences, ReplyMaxWords)
	}
	s.memory.Save(ctx, userID, chatID, text, memory.RoleAssistant)
	return s.reply(lang, text, kind)
}

// buildMessages assembles the completion input: system prompt, style hint,
// as much history as fits the budget, then the user message.
func (s *Service) buildMessages(lang, msgLang string, history []memory.Message, userText string) []completion.Message {
	messages := []completion.Message{
		{Role: completion.RoleSystem, Content: prompts.SystemPrompt(lang)},
		{Role: completion.RoleSystem, Content: prompts.StyleHint(msgLang)},
	}
	current := strings.TrimSpace(userText)
	used := 0
	for _, h := range history {
		if h.Role == memory.RoleUser && h.Content == current {
			continue
		}
		n := utf8.RuneCountInString(h.Content)
		if used+n >= s.opts.HistoryBudget {
			continue
		}
		messages = append(messages, completion.Message{Role: string(h.Role), Content: h.Content})
		used += n
	}
	return append(messages, completion.Message{Role: completion.RoleUser, Content: userText})
}

// RecentActivity lists the user's latest messages: the session cache first,
// then stored user turns, then any stored turns.
func (s *Service) RecentActivity(ctx context.Context, userID, chatID int64) Reply {
	lang := s.Language(ctx, userID)
	texts := TextsFor(lang)
	limit := max(s.opts.RecentLimit, 1)

	items, err := s.sessions.Recent(ctx, chatID, limit)
	if err != nil {
		s.logger.Warn("load recent cache failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
	if len(items) == 0 {
		key := strconv.FormatInt(chatID, 10)
		msgs := s.memory.RecentUser(ctx, key, limit)
		if len(msgs) == 0 {
			msgs = s.memory.Recent(ctx, key, limit)
		}
		for _, m := range msgs {
			items = append(items, m.Content)
		}
	}
	if len(items) == 0 {
		return s.menu(lang, texts.RecentNone)
	}
	return s.menu(lang, texts.Recent+textMenuSeparator+strings.Join(items, textMenuSeparator))
}

// ClearMemory wipes the chat's long-term memory and its recent cache.
func (s *Service) ClearMemory(ctx context.Context, userID, chatID int64) Reply {
	lang := s.Language(ctx, userID)
	texts := TextsFor(lang)

	result := s.memory.Clear(ctx, strconv.FormatInt(chatID, 10))
	if err := s.sessions.ResetChat(ctx, chatID); err != nil {
		s.logger.Warn("reset recent cache failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
	switch {
	case !result.OK:
		return s.menu(lang, texts.ClearFailed)
	case result.Deleted > 0:
		return s.menu(lang, texts.Cleared)
	default:
		return s.menu(lang, texts.NothingClear)
	}
}

func (s *Service) remember(ctx context.Context, in Inbound) {
	if err := s.sessions.PushRecent(ctx, in.UserID, in.ChatID, in.Text); err != nil {
		s.logger.Warn("cache recent message failed", slog.Int64("chat_id", in.ChatID), slog.Any("error", err))
	}
}

func (s *Service) reply(lang, text string, kind ReplyKind) Reply {
	s.metrics.ReplyObserved(string(kind))
	return Reply{Text: text, Kind: kind, Language: lang}
}

func (s *Service) menu(lang, text string) Reply {
	return Reply{Text: text, Kind: ReplyMenu, Language: lang}
}
