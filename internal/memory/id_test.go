package memory

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewTurnIDFormatAndUniqueness(t *testing.T) {
	t.Parallel()
	now := time.UnixMilli(1_700_000_000_123)
	pattern := regexp.MustCompile(`^chat-42-1700000000123-[0-9a-f]{8}$`)

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := NewTurnID("chat-42", now)
		if !pattern.MatchString(id) {
			t.Fatalf("unexpected id format: %s", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id within the same millisecond: %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestPointIDIsStableUUID(t *testing.T) {
	t.Parallel()
	a := pointID("c1-1000-deadbeef")
	if a != pointID("c1-1000-deadbeef") {
		t.Fatal("point id must be deterministic")
	}
	if a == pointID("c1-1000-deadbeee") {
		t.Fatal("different turns must map to different points")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Fatalf("point id is not a uuid: %v", err)
	}
}
