package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Default DashScope API base URL and text embedding path.
const (
	DefaultDashScopeBaseURL = "https://dashscope.aliyuncs.com"
	DashScopeEmbeddingPath  = "/api/v1/services/embeddings/text-embedding/text-embedding"
)

// DashScopeEmbedder calls the Aliyun DashScope text embedding API.
type DashScopeEmbedder struct {
	apiKey  string
	baseURL string
	model   string
	dims    int
	logger  *slog.Logger
	http    *http.Client
}

type dashScopeRequest struct {
	Model      string              `json:"model"`
	Input      dashScopeInput      `json:"input"`
	Parameters dashScopeParameters `json:"parameters"`
}

type dashScopeInput struct {
	Texts []string `json:"texts"`
}

type dashScopeParameters struct {
	Dimension int    `json:"dimension,omitempty"`
	TextType  string `json:"text_type,omitempty"`
}

type dashScopeResponse struct {
	Output struct {
		Embeddings []struct {
			TextIndex int       `json:"text_index"`
			Embedding []float32 `json:"embedding"`
		} `json:"embeddings"`
	} `json:"output"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// NewDashScopeEmbedder builds a DashScope embedder; baseURL defaults to DefaultDashScopeBaseURL if empty.
func NewDashScopeEmbedder(log *slog.Logger, apiKey, baseURL, model string, dims int, timeout time.Duration) (*DashScopeEmbedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("dashscope embedder: api key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("dashscope embedder: model is required")
	}
	if dims <= 0 {
		return nil, errors.New("dashscope embedder: dimensions must be positive")
	}
	if baseURL == "" {
		baseURL = DefaultDashScopeBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DashScopeEmbedder{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		dims:    dims,
		logger:  log.With(slog.String("embedder", "dashscope")),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (e *DashScopeEmbedder) Model() string { return e.model }

func (e *DashScopeEmbedder) Dimensions() int { return e.dims }

func (e *DashScopeEmbedder) Embed(ctx context.Context, input string) ([]float32, error) {
	if strings.TrimSpace(input) == "" {
		return nil, errors.New("dashscope input is required")
	}
	payload, err := json.Marshal(dashScopeRequest{
		Model:      e.model,
		Input:      dashScopeInput{Texts: []string{input}},
		Parameters: dashScopeParameters{Dimension: e.dims, TextType: "document"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+DashScopeEmbeddingPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			e.logger.Warn("dashscope embeddings: close response body failed", slog.Any("error", err))
		}
	}()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("dashscope embeddings: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed dashScopeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	if parsed.Code != "" {
		return nil, fmt.Errorf("dashscope embeddings: %s: %s", parsed.Code, parsed.Message)
	}
	for _, item := range parsed.Output.Embeddings {
		if item.TextIndex == 0 && len(item.Embedding) > 0 {
			return item.Embedding, nil
		}
	}
	return nil, errors.New("dashscope embeddings: empty response")
}
