package memory

import (
	"math"
	"time"
)

// DefaultRecencyTau is the recency decay constant.
const DefaultRecencyTau = 6 * time.Hour

// RecencyWeight maps a turn timestamp (unix seconds) to (0, 1]:
// exp(-age/tau) with age clamped at zero and tau at one second.
// Unknown timestamps (ts <= 0) weigh 0.
func RecencyWeight(ts float64, now time.Time, tau time.Duration) float64 {
	if ts <= 0 {
		return 0
	}
	age := unixSeconds(now) - ts
	if age < 0 {
		age = 0
	}
	return math.Exp(-age / math.Max(1, tau.Seconds()))
}
