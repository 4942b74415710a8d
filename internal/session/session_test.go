package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T, capacity int, now func() time.Time) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, capacity int, now func() time.Time) Store {
			s := NewMemoryStore(capacity)
			s.now = now
			return s
		},
		"sqlite": func(t *testing.T, capacity int, now func() time.Time) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"), capacity)
			require.NoError(t, err)
			s.now = now
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestStoreLanguage(t *testing.T) {
	t.Parallel()
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			now, _ := fixedClock(time.Unix(1_700_000_000, 0))
			s := factory(t, 5, now)
			ctx := context.Background()

			_, err := s.Language(ctx, 7)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.SetLanguage(ctx, 7, " RU "))
			lang, err := s.Language(ctx, 7)
			require.NoError(t, err)
			assert.Equal(t, "ru", lang)

			// Activity without a preference does not invent one.
			require.NoError(t, s.PushRecent(ctx, 8, 8, "hello"))
			_, err = s.Language(ctx, 8)
			assert.ErrorIs(t, err, ErrNotFound)

			// Activity keeps an existing preference.
			require.NoError(t, s.PushRecent(ctx, 7, 7, "привет"))
			lang, err = s.Language(ctx, 7)
			require.NoError(t, err)
			assert.Equal(t, "ru", lang)
		})
	}
}

func TestStoreRecentCapacityAndOrder(t *testing.T) {
	t.Parallel()
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			now, _ := fixedClock(time.Unix(1_700_000_000, 0))
			s := factory(t, 3, now)
			ctx := context.Background()

			for _, text := range []string{"one", "two", "three", "four", "five"} {
				require.NoError(t, s.PushRecent(ctx, 1, 100, text))
			}
			require.NoError(t, s.PushRecent(ctx, 2, 200, "other chat"))

			got, err := s.Recent(ctx, 100, 10)
			require.NoError(t, err)
			assert.Equal(t, []string{"five", "four", "three"}, got)

			got, err = s.Recent(ctx, 100, 2)
			require.NoError(t, err)
			assert.Equal(t, []string{"five", "four"}, got)

			got, err = s.Recent(ctx, 100, 0)
			require.NoError(t, err)
			assert.Empty(t, got)

			require.NoError(t, s.ResetChat(ctx, 100))
			got, err = s.Recent(ctx, 100, 10)
			require.NoError(t, err)
			assert.Empty(t, got)

			got, err = s.Recent(ctx, 200, 10)
			require.NoError(t, err)
			assert.Equal(t, []string{"other chat"}, got)
		})
	}
}

func TestStoreEvictIdle(t *testing.T) {
	t.Parallel()
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			now, advance := fixedClock(time.Unix(1_700_000_000, 0))
			s := factory(t, 5, now)
			ctx := context.Background()

			require.NoError(t, s.SetLanguage(ctx, 1, "it"))
			require.NoError(t, s.PushRecent(ctx, 1, 10, "ciao"))
			advance(48 * time.Hour)
			require.NoError(t, s.PushRecent(ctx, 2, 20, "hi"))

			n, err := s.EvictIdle(ctx, now().Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Positive(t, n)

			_, err = s.Language(ctx, 1)
			assert.ErrorIs(t, err, ErrNotFound)
			got, err := s.Recent(ctx, 10, 5)
			require.NoError(t, err)
			assert.Empty(t, got)

			got, err = s.Recent(ctx, 20, 5)
			require.NoError(t, err)
			assert.Equal(t, []string{"hi"}, got)

			n, err = s.EvictIdle(ctx, now().Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path, 5)
	require.NoError(t, err)
	require.NoError(t, s.SetLanguage(ctx, 3, "en"))
	require.NoError(t, s.PushRecent(ctx, 3, 3, "remember me"))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path, 5)
	require.NoError(t, err)
	defer reopened.Close()
	lang, err := reopened.Language(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "en", lang)
	got, err := reopened.Recent(ctx, 3, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"remember me"}, got)
}
