package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists session state in a local SQLite file.
type SQLiteStore struct {
	db       *sql.DB
	capacity int
	now      func() time.Time
}

// NewSQLiteStore creates or opens the session database at path.
func NewSQLiteStore(path string, capacity int) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One shared connection avoids writer lock contention between goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, capacity: normalizeCapacity(capacity), now: time.Now}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS user_sessions (
			user_id INTEGER PRIMARY KEY,
			language TEXT NOT NULL DEFAULT '',
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chat_recent (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL,
			text TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS chat_recent_chat_idx ON chat_recent(chat_id, id DESC);`,
		`CREATE INDEX IF NOT EXISTS user_sessions_updated_idx ON user_sessions(updated_at_ms);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init session schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Language(ctx context.Context, userID int64) (string, error) {
	var lang string
	err := s.db.QueryRowContext(ctx, `SELECT language FROM user_sessions WHERE user_id = ?`, userID).Scan(&lang)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && lang == "") {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load language: %w", err)
	}
	return lang, nil
}

func (s *SQLiteStore) SetLanguage(ctx context.Context, userID int64, lang string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_sessions (user_id, language, updated_at_ms) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET language = excluded.language, updated_at_ms = excluded.updated_at_ms`,
		userID, normalizeLanguage(lang), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PushRecent(ctx context.Context, userID, chatID int64, text string) error {
	nowMs := s.now().UnixMilli()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_sessions (user_id, updated_at_ms) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET updated_at_ms = excluded.updated_at_ms`,
		userID, nowMs); err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_recent (chat_id, text, created_at_ms) VALUES (?, ?, ?)`,
		chatID, text, nowMs); err != nil {
		return fmt.Errorf("push recent: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chat_recent WHERE chat_id = ? AND id NOT IN (
			SELECT id FROM chat_recent WHERE chat_id = ? ORDER BY id DESC LIMIT ?
		)`, chatID, chatID, s.capacity); err != nil {
		return fmt.Errorf("trim recent: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Recent(ctx context.Context, chatID int64, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT text FROM chat_recent WHERE chat_id = ? ORDER BY id DESC LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ResetChat(ctx context.Context, chatID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_recent WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("reset chat: %w", err)
	}
	return nil
}

func (s *SQLiteStore) EvictIdle(ctx context.Context, before time.Time) (int, error) {
	cutoff := before.UnixMilli()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	users, err := tx.ExecContext(ctx, `DELETE FROM user_sessions WHERE updated_at_ms < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("evict users: %w", err)
	}
	chats, err := tx.ExecContext(ctx, `
		DELETE FROM chat_recent WHERE chat_id IN (
			SELECT chat_id FROM chat_recent GROUP BY chat_id HAVING MAX(created_at_ms) < ?
		)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("evict chats: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	u, _ := users.RowsAffected()
	c, _ := chats.RowsAffected()
	return int(u + c), nil
}
