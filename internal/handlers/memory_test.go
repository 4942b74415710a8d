package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/memohai/confidant/internal/logger"
	"github.com/memohai/confidant/internal/memory"
)

type fakeMemoryService struct {
	writeErr   error
	lastWrite  memory.Turn
	lastOpts   memory.RetrieveOptions
	lastLimit  int
	recentKind string
	clear      memory.ClearResult
}

func (f *fakeMemoryService) Write(_ context.Context, userID, chatID, text string, role memory.Role) (memory.Turn, error) {
	if f.writeErr != nil {
		return memory.Turn{}, f.writeErr
	}
	f.lastWrite = memory.Turn{ID: chatID + "-1-abcd", UserID: userID, ChatID: chatID, Text: text, Role: role, Timestamp: 42}
	return f.lastWrite, nil
}

func (f *fakeMemoryService) Relevant(_ context.Context, _, query string, opts memory.RetrieveOptions) []memory.Message {
	f.lastOpts = opts
	return []memory.Message{{Role: memory.RoleUser, Content: query}}
}

func (f *fakeMemoryService) Recent(_ context.Context, _ string, limit int) []memory.Message {
	f.lastLimit, f.recentKind = limit, "any"
	return nil
}

func (f *fakeMemoryService) RecentUser(_ context.Context, _ string, limit int) []memory.Message {
	f.lastLimit, f.recentKind = limit, "user"
	return []memory.Message{{Role: memory.RoleUser, Content: "hello"}}
}

func (f *fakeMemoryService) Clear(context.Context, string) memory.ClearResult { return f.clear }

func (f *fakeMemoryService) Defaults() memory.RetrieveOptions {
	return memory.DefaultRetrieveOptions()
}

func newMemoryTestEcho(svc MemoryService) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = NewErrorHandler(logger.Discard())
	NewMemoryHandler(logger.Discard(), svc).Register(e)
	return e
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMemorySave(t *testing.T) {
	t.Parallel()

	svc := &fakeMemoryService{}
	e := newMemoryTestEcho(svc)

	rec := doJSON(e, http.MethodPost, "/chats/c1/memory", `{"user_id":"u1","text":"hello there","role":"User"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp memorySaveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TurnID != "c1-1-abcd" || resp.Timestamp != 42 || svc.lastWrite.Role != memory.RoleUser {
		t.Fatalf("unexpected response %+v, write %+v", resp, svc.lastWrite)
	}

	rec = doJSON(e, http.MethodPost, "/chats/c1/memory", `{"text":"hello","role":"system"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad role, got %d", rec.Code)
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil || errResp.Message == "" {
		t.Fatalf("expected error body, got %q", rec.Body.String())
	}

	svc.writeErr = memory.ErrInvalidTurn
	if rec := doJSON(e, http.MethodPost, "/chats/c1/memory", `{"text":"x","role":"user"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid turn, got %d", rec.Code)
	}
	svc.writeErr = memory.ErrEmbeddingUnavailable
	if rec := doJSON(e, http.MethodPost, "/chats/c1/memory", `{"text":"xyz","role":"user"}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	svc.writeErr = errors.New("store down")
	if rec := doJSON(e, http.MethodPost, "/chats/c1/memory", `{"text":"xyz","role":"user"}`); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestMemorySearch(t *testing.T) {
	t.Parallel()

	svc := &fakeMemoryService{}
	e := newMemoryTestEcho(svc)

	rec := doJSON(e, http.MethodPost, "/chats/c1/memory/search", `{"query":"sleep","top_k":3,"min_score":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	want := memory.RetrieveOptions{TopK: 3, MaxChars: 4000, MinScore: 0}
	if svc.lastOpts != want {
		t.Fatalf("opts %+v, want %+v", svc.lastOpts, want)
	}
	var resp MemoryListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Chars != 5 {
		t.Fatalf("unexpected response %+v", resp)
	}

	if rec := doJSON(e, http.MethodPost, "/chats/c1/memory/search", `{"query":"  "}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty query, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/chats/c1/memory/search", `{"query":"sleep","top_k":9223372036854775807}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastOpts.TopK != maxSearchTopK {
		t.Fatalf("expected top_k clamped to %d, got %d", maxSearchTopK, svc.lastOpts.TopK)
	}
}

func TestMemoryRecent(t *testing.T) {
	t.Parallel()

	svc := &fakeMemoryService{}
	e := newMemoryTestEcho(svc)

	rec := doJSON(e, http.MethodGet, "/chats/c1/memory/recent", "")
	if rec.Code != http.StatusOK || svc.recentKind != "any" || svc.lastLimit != defaultRecentLimit {
		t.Fatalf("default listing: status %d kind %s limit %d", rec.Code, svc.recentKind, svc.lastLimit)
	}
	if !strings.Contains(rec.Body.String(), `"messages":[]`) {
		t.Fatalf("empty listing should be an empty array: %s", rec.Body.String())
	}

	rec = doJSON(e, http.MethodGet, "/chats/c1/memory/recent?limit=5000&role=user", "")
	if rec.Code != http.StatusOK || svc.recentKind != "user" || svc.lastLimit != maxRecentLimit {
		t.Fatalf("user listing: status %d kind %s limit %d", rec.Code, svc.recentKind, svc.lastLimit)
	}

	for _, q := range []string{"?limit=0", "?limit=abc", "?role=assistant"} {
		if rec := doJSON(e, http.MethodGet, "/chats/c1/memory/recent"+q, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestMemoryClear(t *testing.T) {
	t.Parallel()

	svc := &fakeMemoryService{clear: memory.ClearResult{Deleted: 3, OK: true}}
	e := newMemoryTestEcho(svc)

	rec := doJSON(e, http.MethodDelete, "/chats/c1/memory", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"deleted":3,"ok":true}` {
		t.Fatalf("unexpected clear response %d %s", rec.Code, rec.Body.String())
	}

	svc.clear = memory.ClearResult{}
	if rec := doJSON(e, http.MethodDelete, "/chats/c1/memory", ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on failed clear, got %d", rec.Code)
	}
}

func TestMemoryHandlerWithoutService(t *testing.T) {
	t.Parallel()

	e := newMemoryTestEcho(nil)
	if rec := doJSON(e, http.MethodDelete, "/chats/c1/memory", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
