package memory

import (
	"strconv"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ParseRole accepts the two stored roles, case-insensitively.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Turn is one persisted chat message together with its embedding.
type Turn struct {
	ID        string
	BotID     string
	ChatID    string
	UserID    string
	Role      Role
	Text      string
	Timestamp float64
	Embedding []float32
}

func (t Turn) Record() Record {
	return Record{
		TurnID:    t.ID,
		BotID:     t.BotID,
		ChatID:    t.ChatID,
		UserID:    t.UserID,
		Role:      t.Role,
		Text:      t.Text,
		Timestamp: t.Timestamp,
	}
}

// Record is the metadata of a stored turn as read back from a store.
type Record struct {
	TurnID    string  `json:"turn_id"`
	BotID     string  `json:"bot_id"`
	ChatID    string  `json:"chat_id"`
	UserID    string  `json:"user_id"`
	Role      Role    `json:"role"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
}

// Valid reports whether the record may be surfaced to a caller.
func (r Record) Valid() bool {
	return r.Role.Valid() && r.Text != ""
}

func (r Record) Message() Message {
	return Message{Role: r.Role, Content: r.Text}
}

// Match is a store hit for a vector query.
type Match struct {
	Record     Record
	Similarity float64
}

// Filter scopes store operations to one conversation. Role is optional.
type Filter struct {
	BotID  string
	ChatID string
	Role   Role
}

func (f Filter) fields() map[string]string {
	fields := map[string]string{
		payloadBotID:  f.BotID,
		payloadChatID: f.ChatID,
	}
	if f.Role != "" {
		fields[payloadRole] = string(f.Role)
	}
	return fields
}

func (f Filter) validate() error {
	if strings.TrimSpace(f.BotID) == "" || strings.TrimSpace(f.ChatID) == "" {
		return ErrUnscopedFilter
	}
	return nil
}

// Message is a packed history item handed to the completion layer.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Candidate is a ranked match. It is never persisted.
type Candidate struct {
	Record     Record
	Similarity float64
	Recency    float64
	Score      float64
}

// RetrieveOptions bounds a relevant-history retrieval.
type RetrieveOptions struct {
	TopK     int     `json:"top_k"`
	MaxChars int     `json:"max_chars"`
	MinScore float64 `json:"min_score"`
}

// DefaultRetrieveOptions are used when a caller does not tune retrieval.
func DefaultRetrieveOptions() RetrieveOptions {
	return RetrieveOptions{TopK: 8, MaxChars: 4000, MinScore: 0.3}
}

// ClearResult reports a memory reset. OK is false only when the store failed;
// OK with Deleted == 0 means there was nothing to clear.
type ClearResult struct {
	Deleted int  `json:"deleted"`
	OK      bool `json:"ok"`
}

const (
	payloadTurnID    = "turn_id"
	payloadBotID     = "bot_id"
	payloadChatID    = "chat_id"
	payloadUserID    = "user_id"
	payloadRole      = "role"
	payloadText      = "text"
	payloadTimestamp = "timestamp"
)

func (t Turn) payload() map[string]any {
	return map[string]any{
		payloadTurnID:    t.ID,
		payloadBotID:     t.BotID,
		payloadChatID:    t.ChatID,
		payloadUserID:    t.UserID,
		payloadRole:      string(t.Role),
		payloadText:      t.Text,
		payloadTimestamp: t.Timestamp,
	}
}

// recordFromPayload decodes store metadata. Missing or unparseable
// timestamps decode to 0.
func recordFromPayload(payload map[string]any) Record {
	role, _ := ParseRole(payloadString(payload, payloadRole))
	return Record{
		TurnID:    payloadString(payload, payloadTurnID),
		BotID:     payloadString(payload, payloadBotID),
		ChatID:    payloadString(payload, payloadChatID),
		UserID:    payloadString(payload, payloadUserID),
		Role:      role,
		Text:      payloadString(payload, payloadText),
		Timestamp: payloadTimestampValue(payload[payloadTimestamp]),
	}
}

func payloadString(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

func payloadTimestampValue(raw any) float64 {
	var ts float64
	switch v := raw.(type) {
	case float64:
		ts = v
	case float32:
		ts = float64(v)
	case int64:
		ts = float64(v)
	case int:
		ts = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		ts = parsed
	default:
		return 0
	}
	if ts != ts || ts < 0 {
		return 0
	}
	return ts
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
