package memory

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

func TestBuildQdrantFilter(t *testing.T) {
	t.Parallel()

	filter := buildQdrantFilter(Filter{BotID: "bot-1", ChatID: "c1"})
	if len(filter.GetMust()) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(filter.GetMust()))
	}
	keys := []string{}
	for _, c := range filter.GetMust() {
		field := c.GetField()
		if field == nil {
			t.Fatalf("expected field condition, got %+v", c)
		}
		keys = append(keys, field.GetKey())
	}
	if keys[0] != payloadBotID || keys[1] != payloadChatID {
		t.Fatalf("unexpected condition keys: %v", keys)
	}

	withRole := buildQdrantFilter(Filter{BotID: "bot-1", ChatID: "c1", Role: RoleUser})
	must := withRole.GetMust()
	if len(must) != 3 {
		t.Fatalf("expected role condition, got %d", len(must))
	}
	if got := must[2].GetField().GetMatch().GetKeyword(); got != "user" {
		t.Fatalf("expected role keyword user, got %q", got)
	}
}

func TestParseQdrantEndpoint(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		host string
		port int
		tls  bool
	}{
		{"", "127.0.0.1", 6334, false},
		{"qdrant:7000", "qdrant", 7000, false},
		{"https://cloud.example.com", "cloud.example.com", 6334, true},
		{"http://10.0.0.5:6334", "10.0.0.5", 6334, false},
	}
	for _, tc := range cases {
		host, port, tls, err := parseQdrantEndpoint(tc.in)
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if host != tc.host || port != tc.port || tls != tc.tls {
			t.Fatalf("%q: got %s:%d tls=%v", tc.in, host, port, tls)
		}
	}
	if _, _, _, err := parseQdrantEndpoint("http://host:notaport"); err == nil {
		t.Fatal("expected error for bad port")
	}
}

func TestRecordFromQdrantPayload(t *testing.T) {
	t.Parallel()
	turn := Turn{ID: "c1-1-abcdef01", BotID: "b", ChatID: "c1", UserID: "u", Role: RoleAssistant, Text: "hi there", Timestamp: 1234.5}
	values, err := qdrant.TryValueMap(turn.payload())
	if err != nil {
		t.Fatalf("value map: %v", err)
	}
	got := recordFromPayload(valueMapToInterface(values))
	if got != turn.Record() {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, turn.Record())
	}
}

func TestRecordFromPayloadDegrades(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		payload map[string]any
		ts      float64
		valid   bool
	}{
		{"string timestamp", map[string]any{"role": "user", "text": "a b", "timestamp": "99.5"}, 99.5, true},
		{"integer timestamp", map[string]any{"role": "user", "text": "a b", "timestamp": int64(7)}, 7, true},
		{"garbage timestamp", map[string]any{"role": "user", "text": "a b", "timestamp": "soon"}, 0, true},
		{"missing timestamp", map[string]any{"role": "USER", "text": "a b"}, 0, true},
		{"unknown role", map[string]any{"role": "system", "text": "a b", "timestamp": 1.0}, 1, false},
		{"empty text", map[string]any{"role": "user", "text": "", "timestamp": 1.0}, 1, false},
		{"text not a string", map[string]any{"role": "user", "text": 5, "timestamp": 1.0}, 1, false},
	}
	for _, tc := range cases {
		got := recordFromPayload(tc.payload)
		if got.Timestamp != tc.ts || got.Valid() != tc.valid {
			t.Fatalf("%s: got ts=%v valid=%v", tc.name, got.Timestamp, got.Valid())
		}
	}
}
