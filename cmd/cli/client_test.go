package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/confidant/internal/memory"
)

func TestAPIClientRoutes(t *testing.T) {
	t.Parallel()

	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.RequestURI())
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/chats/42/memory/search":
			var req searchRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			_ = json.NewEncoder(w).Encode(listResponse{
				Messages: []memory.Message{{Role: memory.RoleUser, Content: req.Query}},
				Chars:    len(req.Query),
			})
		case r.Method == http.MethodGet && r.URL.Path == "/chats/42/memory/recent":
			_ = json.NewEncoder(w).Encode(listResponse{})
		case r.Method == http.MethodPost && r.URL.Path == "/chats/42/memory":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"turn_id":"42:1","timestamp":1}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/chats/42/memory":
			_, _ = w.Write([]byte(`{"deleted":3,"ok":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newAPIClient(server.URL+"/", "tok", time.Second)
	ctx := context.Background()

	list, err := client.Search(ctx, "42", searchRequest{Query: "sleep"})
	require.NoError(t, err)
	require.Len(t, list.Messages, 1)
	assert.Equal(t, "sleep", list.Messages[0].Content)

	_, err = client.Recent(ctx, "42", 5, true)
	require.NoError(t, err)

	saved, err := client.Save(ctx, "42", saveRequest{Text: "hello there", Role: "user"})
	require.NoError(t, err)
	assert.Equal(t, "42:1", saved.TurnID)

	cleared, err := client.Clear(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, memory.ClearResult{Deleted: 3, OK: true}, cleared)

	assert.Contains(t, seen, "GET /chats/42/memory/recent?limit=5&role=user")
}

func TestAPIClientReportsStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"memory: embedding unavailable"}`))
	}))
	defer server.Close()

	_, err := newAPIClient(server.URL, "tok", time.Second).Save(context.Background(), "1", saveRequest{Text: "hi", Role: "user"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "embedding unavailable")
}

func TestPrintList(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, printList(&out, listResponse{}, false))
	assert.Equal(t, "(no turns)\n", out.String())

	out.Reset()
	require.NoError(t, printList(&out, listResponse{
		Messages: []memory.Message{{Role: memory.RoleAssistant, Content: "I hear you."}},
		Chars:    11,
	}, false))
	assert.True(t, strings.HasPrefix(out.String(), "assistant: I hear you."))
	assert.Contains(t, out.String(), "1 turns, 11 chars")
}

func TestDefaultAPIBaseURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "http://127.0.0.1:8080", defaultAPIBaseURL(":8080"))
	assert.Equal(t, "http://host:9000", defaultAPIBaseURL("host:9000"))
	assert.Equal(t, "https://x.example", defaultAPIBaseURL("https://x.example/"))
	assert.Equal(t, "", defaultAPIBaseURL(" "))
}

func TestRootCommandRequiresChat(t *testing.T) {
	t.Parallel()

	root := buildRootCommand()
	root.SetArgs([]string{"recent", "--config", "/nonexistent/config.toml"})
	root.SetOut(&bytes.Buffer{})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--chat is required")
}
