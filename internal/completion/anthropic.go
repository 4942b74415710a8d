package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// resumedMarker opens a conversation whose retrieved history starts with an
// assistant turn, since the Messages API wants a user turn first.
const resumedMarker = "(continuing our earlier conversation)"

// AnthropicClient completes through the Anthropic Messages API. Frequency
// and presence penalties have no equivalent there and are ignored.
type AnthropicClient struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

func NewAnthropicClient(log *slog.Logger, apiKey, baseURL, model string, timeout time.Duration) (*AnthropicClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("anthropic client: api key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("anthropic client: model is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  model,
		logger: log.With(slog.String("client", "anthropic"), slog.String("model", model)),
	}, nil
}

func (c *AnthropicClient) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	system, turns := splitForAnthropic(messages)
	if len(turns) == 0 {
		return "", fmt.Errorf("anthropic completion: no user message")
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(max(params.MaxTokens, 1)),
		Messages:  turns,
	}
	if len(system) > 0 {
		req.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if params.Temperature > 0 {
		req.Temperature = anthropic.Float(min(params.Temperature, 1))
	}

	resp, err := c.client.Messages.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}
	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// splitForAnthropic moves system prompts out of the turn list and merges
// consecutive turns of the same role.
func splitForAnthropic(messages []Message) ([]string, []anthropic.MessageParam) {
	var system []string
	type turn struct {
		role  string
		parts []string
	}
	var turns []turn
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case RoleSystem:
			system = append(system, content)
			continue
		case RoleUser, RoleAssistant:
		default:
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].role == m.Role {
			turns[n-1].parts = append(turns[n-1].parts, content)
			continue
		}
		turns = append(turns, turn{role: m.Role, parts: []string{content}})
	}
	if len(turns) > 0 && turns[0].role == RoleAssistant {
		turns = append([]turn{{role: RoleUser, parts: []string{resumedMarker}}}, turns...)
	}

	params := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.parts, "\n\n"))
		if t.role == RoleUser {
			params = append(params, anthropic.NewUserMessage(block))
		} else {
			params = append(params, anthropic.NewAssistantMessage(block))
		}
	}
	return system, params
}
