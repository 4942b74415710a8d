package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/memohai/confidant/internal/metrics"
)

var (
	// ErrInvalidTurn is returned for text that is too short, an unknown role or a missing chat.
	ErrInvalidTurn = errors.New("memory: invalid turn")
	// ErrEmbeddingUnavailable is returned when the embedding gateway produced no vector.
	ErrEmbeddingUnavailable = errors.New("memory: embedding unavailable")
)

// MinTextChars is the shortest trimmed text that is worth remembering.
const MinTextChars = 2

// Embedder turns text into a vector. A false result means no vector is
// available and the caller degrades.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, bool)
}

// Service is the memory subsystem facade: write path, relevance retrieval,
// recency retrieval and reset, all scoped to one bot namespace.
type Service struct {
	store    Store
	embedder Embedder
	botID    string
	ranking  Ranking
	defaults RetrieveOptions
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   *slog.Logger
}

func NewService(log *slog.Logger, store Store, embedder Embedder, botID string, ranking Ranking, defaults RetrieveOptions, m *metrics.Metrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	if ranking.Tau <= 0 {
		ranking.Tau = DefaultRecencyTau
	}
	return &Service{
		store:    store,
		embedder: embedder,
		botID:    botID,
		ranking:  ranking,
		defaults: defaults,
		metrics:  m,
		now:      time.Now,
		logger:   log.With(slog.String("service", "memory"), slog.String("bot_id", botID)),
	}
}

func (s *Service) BotID() string { return s.botID }

// Defaults returns the retrieval options configured for this bot.
func (s *Service) Defaults() RetrieveOptions { return s.defaults }

func (s *Service) scope(chatID string) Filter {
	return Filter{BotID: s.botID, ChatID: chatID}
}

// Write validates, embeds and stores one turn.
func (s *Service) Write(ctx context.Context, userID, chatID, text string, role Role) (Turn, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinTextChars {
		return Turn{}, fmt.Errorf("%w: text shorter than %d characters", ErrInvalidTurn, MinTextChars)
	}
	if !role.Valid() {
		return Turn{}, fmt.Errorf("%w: role %q", ErrInvalidTurn, role)
	}
	if strings.TrimSpace(chatID) == "" {
		return Turn{}, fmt.Errorf("%w: chat id is required", ErrInvalidTurn)
	}

	vector, ok := s.embedder.Embed(ctx, text)
	if !ok {
		return Turn{}, ErrEmbeddingUnavailable
	}

	now := s.now()
	turn := Turn{
		ID:        NewTurnID(chatID, now),
		BotID:     s.botID,
		ChatID:    chatID,
		UserID:    userID,
		Role:      role,
		Text:      text,
		Timestamp: unixSeconds(now),
		Embedding: vector,
	}
	if err := s.store.Upsert(ctx, turn); err != nil {
		return Turn{}, fmt.Errorf("upsert turn: %w", err)
	}
	return turn, nil
}

// Save is Write with the error folded into a boolean.
func (s *Service) Save(ctx context.Context, userID, chatID, text string, role Role) bool {
	turn, err := s.Write(ctx, userID, chatID, text, role)
	if err != nil {
		if errors.Is(err, ErrInvalidTurn) {
			s.logger.Debug("turn rejected", slog.String("chat_id", chatID), slog.Any("error", err))
			s.metrics.SaveObserved(string(role), metrics.ResultRejected)
		} else {
			s.logger.Error("save turn failed", slog.String("chat_id", chatID), slog.Any("error", err))
			s.metrics.SaveObserved(string(role), metrics.ResultError)
		}
		return false
	}
	s.logger.Debug("turn saved", slog.String("chat_id", chatID), slog.String("turn_id", turn.ID), slog.String("role", string(role)))
	s.metrics.SaveObserved(string(role), metrics.ResultOK)
	return true
}

// Relevant returns up to opts.TopK past turns of the chat that are
// semantically close to query, ordered oldest first and packed into
// opts.MaxChars characters. Failures yield an empty result.
func (s *Service) Relevant(ctx context.Context, chatID, query string, opts RetrieveOptions) []Message {
	if opts.TopK <= 0 || opts.MaxChars <= 0 {
		return nil
	}
	vector, ok := s.embedder.Embed(ctx, query)
	if !ok {
		s.metrics.RetrievalObserved("relevant", metrics.ResultError)
		return nil
	}
	matches, err := s.store.Query(ctx, vector, s.scope(chatID), rawLimit(opts.TopK))
	if err != nil {
		s.logger.Error("relevant history query failed", slog.String("chat_id", chatID), slog.Any("error", err))
		s.metrics.RetrievalObserved("relevant", metrics.ResultError)
		return nil
	}
	ranked := s.ranking.Rank(matches, s.now(), opts.TopK, opts.MinScore)
	packed := Pack(ranked, opts.MaxChars)

	s.metrics.PackObserved(len(packed), MessageChars(packed))
	if len(packed) == 0 {
		s.metrics.RetrievalObserved("relevant", metrics.ResultEmpty)
	} else {
		s.metrics.RetrievalObserved("relevant", metrics.ResultOK)
	}
	s.logger.Debug("relevant history",
		slog.String("chat_id", chatID),
		slog.Int("neighbours", len(matches)),
		slog.Int("ranked", len(ranked)),
		slog.Int("packed", len(packed)),
	)
	return packed
}

// Recent returns the newest limit turns of the chat, newest first.
func (s *Service) Recent(ctx context.Context, chatID string, limit int) []Message {
	return s.recent(ctx, "recent", s.scope(chatID), limit, max(300, limit*20))
}

// RecentUser returns the newest limit user turns of the chat, newest first.
func (s *Service) RecentUser(ctx context.Context, chatID string, limit int) []Message {
	filter := s.scope(chatID)
	filter.Role = RoleUser
	return s.recent(ctx, "recent_user", filter, limit, max(1000, limit*50))
}

func (s *Service) recent(ctx context.Context, kind string, filter Filter, limit, fetch int) []Message {
	if limit <= 0 {
		return nil
	}
	records, err := s.store.Scan(ctx, filter, fetch)
	if err != nil {
		s.logger.Error("recent history scan failed", slog.String("chat_id", filter.ChatID), slog.Any("error", err))
		s.metrics.RetrievalObserved(kind, metrics.ResultError)
		return nil
	}
	valid := records[:0]
	for _, r := range records {
		if r.Valid() && (filter.Role == "" || r.Role == filter.Role) {
			valid = append(valid, r)
		}
	}
	sortNewestFirst(valid)
	if len(valid) > limit {
		valid = valid[:limit]
	}
	out := make([]Message, 0, len(valid))
	for _, r := range valid {
		out = append(out, r.Message())
	}
	if len(out) == 0 {
		s.metrics.RetrievalObserved(kind, metrics.ResultEmpty)
	} else {
		s.metrics.RetrievalObserved(kind, metrics.ResultOK)
	}
	return out
}

// Clear deletes every turn of the chat.
func (s *Service) Clear(ctx context.Context, chatID string) ClearResult {
	deleted, err := s.store.DeleteAll(ctx, s.scope(chatID))
	if err != nil {
		s.logger.Error("clear memory failed", slog.String("chat_id", chatID), slog.Any("error", err))
		s.metrics.ClearObserved(metrics.ResultError)
		return ClearResult{}
	}
	s.logger.Info("memory cleared", slog.String("chat_id", chatID), slog.Int("deleted", deleted))
	if deleted == 0 {
		s.metrics.ClearObserved(metrics.ResultEmpty)
	} else {
		s.metrics.ClearObserved(metrics.ResultOK)
	}
	return ClearResult{Deleted: deleted, OK: true}
}

func sortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
}
