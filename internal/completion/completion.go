// Package completion talks to chat completion backends.
package completion

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyReply is returned when a backend answers without any text.
var ErrEmptyReply = errors.New("completion: empty reply")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are sampling settings. Backends ignore the ones they do not support.
type Params struct {
	Temperature      float64
	MaxTokens        int
	FrequencyPenalty float64
	PresencePenalty  float64
}

// Completer produces one assistant reply for a prompt.
type Completer interface {
	Complete(ctx context.Context, messages []Message, params Params) (string, error)
}
