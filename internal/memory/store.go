package memory

import (
	"context"
	"errors"
)

var (
	// ErrUnscopedFilter is returned when a store call is not scoped to a bot and chat.
	ErrUnscopedFilter = errors.New("memory: filter requires bot_id and chat_id")
	// ErrDimensionMismatch is returned when a vector does not match the store dimension.
	ErrDimensionMismatch = errors.New("memory: vector dimension mismatch")
)

// Store is a vector index of turns with metadata filtering.
type Store interface {
	// Upsert inserts or replaces the turn with the same id.
	Upsert(ctx context.Context, turn Turn) error
	// Query returns up to limit nearest neighbours of vector within filter.
	Query(ctx context.Context, vector []float32, filter Filter, limit int) ([]Match, error)
	// Scan lists up to limit records within filter without a similarity
	// query. Implementations return the newest records when they can order
	// by timestamp; callers still sort.
	Scan(ctx context.Context, filter Filter, limit int) ([]Record, error)
	// DeleteAll removes every turn within filter and reports how many matched.
	DeleteAll(ctx context.Context, filter Filter) (int, error)
	Close() error
}
