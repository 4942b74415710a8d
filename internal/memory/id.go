package memory

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var pointNamespace = uuid.MustParse("5b8f3f0e-2f4c-4f0e-9d8e-6a2c6f1b7c11")

// NewTurnID returns "<chat>-<unix millis>-<8 random hex>".
func NewTurnID(chatID string, now time.Time) string {
	u := uuid.New()
	return chatID + "-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + hex.EncodeToString(u[:4])
}

// pointID maps a turn id onto the UUID space required by vector stores that
// only accept UUID or integer keys. The mapping is stable, so re-upserting a
// turn overwrites the same point.
func pointID(turnID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(turnID)).String()
}
