// Package embeddings turns text into vectors through a remote provider.
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

// Provider produces one embedding per call. Implementations return errors;
// the Gateway decides how to degrade.
type Provider interface {
	Embed(ctx context.Context, input string) ([]float32, error)
	Model() string
	Dimensions() int
}

// OpenAIEmbedder calls an OpenAI-compatible /v1/embeddings endpoint.
type OpenAIEmbedder struct {
	apiKey  string
	baseURL string
	model   string
	dims    int
	logger  *slog.Logger
	http    *http.Client
}

type openAIEmbeddingRequest struct {
	Input          string `json:"input"`
	Model          string `json:"model"`
	Dimensions     int    `json:"dimensions,omitempty"`
	EncodingFormat string `json:"encoding_format"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIEmbedder builds an OpenAIEmbedder; baseURL, apiKey, model required; dims must be positive.
func NewOpenAIEmbedder(log *slog.Logger, apiKey, baseURL, model string, dims int, timeout time.Duration) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("openai embedder: base url is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai embedder: api key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("openai embedder: model is required")
	}
	if dims <= 0 {
		return nil, errors.New("openai embedder: dimensions must be positive")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenAIEmbedder{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		dims:    dims,
		logger:  log.With(slog.String("embedder", "openai")),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (e *OpenAIEmbedder) Model() string { return e.model }

func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

// Embed returns the embedding vector for the given text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, input string) ([]float32, error) {
	req := openAIEmbeddingRequest{
		Input:          input,
		Model:          e.model,
		EncodingFormat: "float",
	}
	// Only the text-embedding-3 family accepts a requested size.
	if strings.HasPrefix(e.model, "text-embedding-3") {
		req.Dimensions = e.dims
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			e.logger.Warn("embeddings: close response body failed", slog.Any("error", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("openai embeddings: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed openAIEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("openai embeddings: decode: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("openai embeddings: %s", parsed.Error.Message)
	}
	if len(parsed.Data) == 0 {
		return nil, errors.New("openai embeddings: empty response")
	}
	return parsed.Data[0].Embedding, nil
}
