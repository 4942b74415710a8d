package memory

import (
	"sort"
	"time"
)

// DefaultRecencyBias is the share of the fused score taken by recency.
const DefaultRecencyBias = 0.35

// Ranking fuses similarity and recency into one score.
type Ranking struct {
	Tau         time.Duration
	RecencyBias float64
}

func DefaultRanking() Ranking {
	return Ranking{Tau: DefaultRecencyTau, RecencyBias: DefaultRecencyBias}
}

func (r Ranking) bias() float64 {
	switch {
	case r.RecencyBias < 0:
		return 0
	case r.RecencyBias > 1:
		return 1
	default:
		return r.RecencyBias
	}
}

// Score returns (1-bias)*similarity + bias*recency.
func (r Ranking) Score(similarity, recency float64) float64 {
	b := r.bias()
	return (1-b)*similarity + b*recency
}

// rawLimit is how many neighbours to fetch for a final topK.
func rawLimit(topK int) int {
	return max(3*topK, 24)
}

// Rank drops matches below minScore or with unusable metadata, fuses the
// rest, keeps the topK best and returns them oldest first.
func (r Ranking) Rank(matches []Match, now time.Time, topK int, minScore float64) []Candidate {
	if topK <= 0 || len(matches) == 0 {
		return nil
	}
	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		if m.Similarity < minScore || !m.Record.Valid() {
			continue
		}
		recency := RecencyWeight(m.Record.Timestamp, now, r.Tau)
		candidates = append(candidates, Candidate{
			Record:     m.Record,
			Similarity: m.Similarity,
			Recency:    recency,
			Score:      r.Score(m.Similarity, recency),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Record.Timestamp < candidates[j].Record.Timestamp
	})
	return candidates
}
