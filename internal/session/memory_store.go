package session

import (
	"context"
	"sync"
	"time"
)

type userState struct {
	language string
	seen     time.Time
}

type chatState struct {
	recent []string // newest first
	seen   time.Time
}

// MemoryStore keeps session state in process memory. State is lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[int64]*userState
	chats    map[int64]*chatState
	capacity int
	now      func() time.Time
}

func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]*userState),
		chats:    make(map[int64]*chatState),
		capacity: normalizeCapacity(capacity),
		now:      time.Now,
	}
}

func (s *MemoryStore) Language(_ context.Context, userID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.language == "" {
		return "", ErrNotFound
	}
	return u.language, nil
}

func (s *MemoryStore) SetLanguage(_ context.Context, userID int64, lang string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	u.language = normalizeLanguage(lang)
	return nil
}

func (s *MemoryStore) PushRecent(_ context.Context, userID, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user(userID)
	c, ok := s.chats[chatID]
	if !ok {
		c = &chatState{}
		s.chats[chatID] = c
	}
	c.seen = s.now()
	c.recent = append([]string{text}, c.recent...)
	if len(c.recent) > s.capacity {
		c.recent = c.recent[:s.capacity]
	}
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, chatID int64, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok || limit <= 0 {
		return nil, nil
	}
	n := min(limit, len(c.recent))
	out := make([]string, n)
	copy(out, c.recent[:n])
	return out, nil
}

func (s *MemoryStore) ResetChat(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, chatID)
	return nil
}

func (s *MemoryStore) EvictIdle(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, u := range s.users {
		if u.seen.Before(before) {
			delete(s.users, id)
			evicted++
		}
	}
	for id, c := range s.chats {
		if c.seen.Before(before) {
			delete(s.chats, id)
			evicted++
		}
	}
	return evicted, nil
}

func (s *MemoryStore) Close() error { return nil }

// user returns the state for userID, creating it on first contact. Caller holds mu.
func (s *MemoryStore) user(userID int64) *userState {
	u, ok := s.users[userID]
	if !ok {
		u = &userState{}
		s.users[userID] = u
	}
	u.seen = s.now()
	return u
}
