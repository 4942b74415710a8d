package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/memohai/confidant/internal/memory"
)

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

type searchRequest struct {
	Query    string   `json:"query"`
	TopK     int      `json:"top_k,omitempty"`
	MaxChars int      `json:"max_chars,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"`
}

type saveRequest struct {
	UserID string `json:"user_id,omitempty"`
	Text   string `json:"text"`
	Role   string `json:"role"`
}

type saveResponse struct {
	TurnID    string  `json:"turn_id"`
	Timestamp float64 `json:"timestamp"`
}

type listResponse struct {
	Messages []memory.Message `json:"messages"`
	Chars    int              `json:"chars"`
}

func newAPIClient(baseURL, token string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: normalizeBaseURL(baseURL),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *apiClient) memoryPath(chatID, suffix string) string {
	return c.baseURL + "/chats/" + url.PathEscape(chatID) + "/memory" + suffix
}

func (c *apiClient) Search(ctx context.Context, chatID string, req searchRequest) (listResponse, error) {
	var out listResponse
	err := c.do(ctx, http.MethodPost, c.memoryPath(chatID, "/search"), req, &out)
	return out, err
}

func (c *apiClient) Recent(ctx context.Context, chatID string, limit int, userOnly bool) (listResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if userOnly {
		q.Set("role", string(memory.RoleUser))
	}
	target := c.memoryPath(chatID, "/recent")
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	var out listResponse
	err := c.do(ctx, http.MethodGet, target, nil, &out)
	return out, err
}

func (c *apiClient) Save(ctx context.Context, chatID string, req saveRequest) (saveResponse, error) {
	var out saveResponse
	err := c.do(ctx, http.MethodPost, c.memoryPath(chatID, ""), req, &out)
	return out, err
}

func (c *apiClient) Clear(ctx context.Context, chatID string) (memory.ClearResult, error) {
	var out memory.ClearResult
	err := c.do(ctx, http.MethodDelete, c.memoryPath(chatID, ""), nil, &out)
	return out, err
}

func (c *apiClient) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, target, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printList(w io.Writer, list listResponse, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	if len(list.Messages) == 0 {
		_, err := fmt.Fprintln(w, "(no turns)")
		return err
	}
	for _, m := range list.Messages {
		if _, err := fmt.Fprintf(w, "%-9s %s\n", m.Role+":", m.Content); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "-- %d turns, %d chars\n", len(list.Messages), list.Chars)
	return err
}
