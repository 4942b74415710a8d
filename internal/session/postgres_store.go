package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memohai/confidant/internal/db"
)

// PostgresStore keeps session state in PostgreSQL. The schema comes from
// the embedded migrations applied by db.RunMigrate.
type PostgresStore struct {
	pool     *pgxpool.Pool
	capacity int
}

func NewPostgresStore(pool *pgxpool.Pool, capacity int) *PostgresStore {
	return &PostgresStore{pool: pool, capacity: normalizeCapacity(capacity)}
}

func (s *PostgresStore) Language(ctx context.Context, userID int64) (string, error) {
	var lang pgtype.Text
	err := s.pool.QueryRow(ctx, `SELECT language FROM user_sessions WHERE user_id = $1`, userID).Scan(&lang)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load language: %w", err)
	}
	if value := db.TextToString(lang); value != "" {
		return value, nil
	}
	return "", ErrNotFound
}

func (s *PostgresStore) SetLanguage(ctx context.Context, userID int64, lang string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_sessions (user_id, language, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET language = EXCLUDED.language, updated_at = now()`,
		userID, normalizeLanguage(lang))
	if err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	return nil
}

func (s *PostgresStore) PushRecent(ctx context.Context, userID, chatID int64, text string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_sessions (user_id, updated_at) VALUES ($1, now())
			ON CONFLICT (user_id) DO UPDATE SET updated_at = now()`, userID); err != nil {
			return fmt.Errorf("touch user: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO chat_recent (chat_id, text) VALUES ($1, $2)`, chatID, text); err != nil {
			return fmt.Errorf("push recent: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM chat_recent WHERE chat_id = $1 AND id NOT IN (
				SELECT id FROM chat_recent WHERE chat_id = $1 ORDER BY id DESC LIMIT $2
			)`, chatID, s.capacity); err != nil {
			return fmt.Errorf("trim recent: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Recent(ctx context.Context, chatID int64, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT text FROM chat_recent WHERE chat_id = $1 ORDER BY id DESC LIMIT $2`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ResetChat(ctx context.Context, chatID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM chat_recent WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("reset chat: %w", err)
	}
	return nil
}

func (s *PostgresStore) EvictIdle(ctx context.Context, before time.Time) (int, error) {
	var evicted int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		users, err := tx.Exec(ctx, `DELETE FROM user_sessions WHERE updated_at < $1`, before)
		if err != nil {
			return fmt.Errorf("evict users: %w", err)
		}
		chats, err := tx.Exec(ctx, `
			DELETE FROM chat_recent WHERE chat_id IN (
				SELECT chat_id FROM chat_recent GROUP BY chat_id HAVING MAX(created_at) < $1
			)`, before)
		if err != nil {
			return fmt.Errorf("evict chats: %w", err)
		}
		evicted = users.RowsAffected() + chats.RowsAffected()
		return nil
	})
	return int(evicted), err
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }
