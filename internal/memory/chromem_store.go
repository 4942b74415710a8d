package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemStore keeps turns in an embedded chromem-go database, one
// collection per bot and chat. With an empty dir everything lives in memory.
type ChromemStore struct {
	db          *chromem.DB
	dimension   int
	logger      *slog.Logger
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

var _ Store = (*ChromemStore)(nil)

func NewChromemStore(log *slog.Logger, dir string, compress bool, dimension int) (*ChromemStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("chromem store: invalid dimension %d", dimension)
	}
	db := chromem.NewDB()
	if dir != "" {
		var err error
		db, err = chromem.NewPersistentDB(dir, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}
	return &ChromemStore{
		db:          db,
		dimension:   dimension,
		logger:      log.With(slog.String("store", "chromem")),
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func collectionName(botID, chatID string) string {
	return botID + "/" + chatID
}

func (s *ChromemStore) collection(filter Filter, create bool) (*chromem.Collection, error) {
	name := collectionName(filter.BotID, filter.ChatID)
	s.mu.RLock()
	col, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[name]; ok {
		return col, nil
	}
	// A persistent db may already hold the collection from a previous run.
	if col := s.db.GetCollection(name, nil); col != nil {
		s.collections[name] = col
		return col, nil
	}
	if !create {
		return nil, nil
	}
	col, err := s.db.GetOrCreateCollection(name, map[string]string{
		payloadBotID:  filter.BotID,
		payloadChatID: filter.ChatID,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.collections[name] = col
	return col, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, turn Turn) error {
	if len(turn.Embedding) != s.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(turn.Embedding), s.dimension)
	}
	filter := Filter{BotID: turn.BotID, ChatID: turn.ChatID}
	if err := filter.validate(); err != nil {
		return err
	}
	col, err := s.collection(filter, true)
	if err != nil {
		return err
	}
	return col.AddDocument(ctx, chromem.Document{
		ID:        turn.ID,
		Content:   turn.Text,
		Embedding: turn.Embedding,
		Metadata: map[string]string{
			payloadTurnID:    turn.ID,
			payloadBotID:     turn.BotID,
			payloadChatID:    turn.ChatID,
			payloadUserID:    turn.UserID,
			payloadRole:      string(turn.Role),
			payloadTimestamp: strconv.FormatFloat(turn.Timestamp, 'f', -1, 64),
		},
	})
}

func (s *ChromemStore) Query(ctx context.Context, vector []float32, filter Filter, limit int) ([]Match, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), s.dimension)
	}
	col, err := s.collection(filter, false)
	if err != nil || col == nil {
		return nil, err
	}
	results, err := queryClamped(ctx, col, vector, limit, filter.fields())
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{Record: recordFromResult(r), Similarity: float64(r.Similarity)})
	}
	return matches, nil
}

// Scan has no ordered listing to lean on, so it reads every document of the
// chat through a similarity query and keeps the newest limit.
func (s *ChromemStore) Scan(ctx context.Context, filter Filter, limit int) ([]Record, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	records, err := s.scanAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(records)
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *ChromemStore) DeleteAll(ctx context.Context, filter Filter) (int, error) {
	if err := filter.validate(); err != nil {
		return 0, err
	}
	col, err := s.collection(filter, false)
	if err != nil || col == nil {
		return 0, err
	}
	matched, err := s.scanAll(ctx, filter)
	if err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		return 0, nil
	}
	if err := col.Delete(ctx, filter.fields(), nil); err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (s *ChromemStore) Close() error {
	return nil
}

func (s *ChromemStore) scanAll(ctx context.Context, filter Filter) ([]Record, error) {
	col, err := s.collection(filter, false)
	if err != nil || col == nil {
		return nil, err
	}
	probe := make([]float32, s.dimension)
	probe[0] = 1
	results, err := queryClamped(ctx, col, probe, col.Count(), filter.fields())
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(results))
	for _, r := range results {
		records = append(records, recordFromResult(r))
	}
	return records, nil
}

// queryClamped caps n at the collection size, which chromem requires, and
// retries when a concurrent delete shrinks the collection under it.
func queryClamped(ctx context.Context, col *chromem.Collection, vector []float32, n int, where map[string]string) ([]chromem.Result, error) {
	for attempt := 0; attempt < 3; attempt++ {
		limit := min(n, col.Count())
		if limit <= 0 {
			return nil, nil
		}
		results, err := col.QueryEmbedding(ctx, vector, limit, where, nil)
		if err == nil {
			return results, nil
		}
		if !strings.Contains(err.Error(), "nResults must be") {
			return nil, err
		}
	}
	return nil, nil
}

func recordFromResult(r chromem.Result) Record {
	payload := make(map[string]any, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		payload[k] = v
	}
	payload[payloadText] = r.Content
	if _, ok := payload[payloadTurnID]; !ok {
		payload[payloadTurnID] = r.ID
	}
	return recordFromPayload(payload)
}
