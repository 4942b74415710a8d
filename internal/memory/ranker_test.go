package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func match(text string, role Role, ts, sim float64) Match {
	return Match{
		Record:     Record{TurnID: text, Role: role, Text: text, Timestamp: ts},
		Similarity: sim,
	}
}

func TestRankFiltersAndOrdersChronologically(t *testing.T) {
	t.Parallel()
	now := time.Unix(10_000, 0)
	r := Ranking{Tau: time.Hour, RecencyBias: 0.35}

	got := r.Rank([]Match{
		match("newest", RoleUser, 9_990, 0.80),
		match("oldest", RoleAssistant, 1_000, 0.95),
		match("weak", RoleUser, 9_999, 0.10),
		match("", RoleUser, 9_000, 0.90),
		match("bad role", Role("system"), 9_000, 0.90),
	}, now, 8, 0.3)

	require.Len(t, got, 2)
	assert.Equal(t, "oldest", got[0].Record.Text)
	assert.Equal(t, "newest", got[1].Record.Text)
	for _, c := range got {
		assert.GreaterOrEqual(t, c.Similarity, 0.3)
		assert.InDelta(t, 0.65*c.Similarity+0.35*c.Recency, c.Score, 1e-9)
	}
}

func TestRankKeepsTopKByFusedScore(t *testing.T) {
	t.Parallel()
	now := time.Unix(100_000, 0)
	r := Ranking{Tau: time.Hour, RecencyBias: 0.5}

	got := r.Rank([]Match{
		match("a", RoleUser, 100_000, 0.5), // 0.75
		match("b", RoleUser, 10, 0.9),      // ~0.45
		match("c", RoleUser, 99_000, 0.6),  // ~0.68
		match("d", RoleUser, 50_000, 0.95), // ~0.475
	}, now, 2, 0)

	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Record.Text)
	assert.Equal(t, "a", got[1].Record.Text)
}

func TestRankBiasExtremes(t *testing.T) {
	t.Parallel()
	now := time.Unix(100_000, 0)
	matches := []Match{
		match("similar-old", RoleUser, 1, 0.99),
		match("fresh-weak", RoleUser, 100_000, 0.40),
	}

	onlySim := Ranking{Tau: time.Hour, RecencyBias: -1}.Rank(matches, now, 1, 0)
	require.Len(t, onlySim, 1)
	assert.Equal(t, "similar-old", onlySim[0].Record.Text)

	onlyRecency := Ranking{Tau: time.Hour, RecencyBias: 7}.Rank(matches, now, 1, 0)
	require.Len(t, onlyRecency, 1)
	assert.Equal(t, "fresh-weak", onlyRecency[0].Record.Text)
}

func TestRankEmptyInputs(t *testing.T) {
	t.Parallel()
	r := DefaultRanking()
	assert.Empty(t, r.Rank(nil, time.Now(), 8, 0.3))
	assert.Empty(t, r.Rank([]Match{match("x", RoleUser, 1, 1)}, time.Now(), 0, 0))
}

func TestRawLimit(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 24, rawLimit(1))
	assert.Equal(t, 24, rawLimit(8))
	assert.Equal(t, 30, rawLimit(10))
}

func TestScoreMonotonicInEachInput(t *testing.T) {
	t.Parallel()

	steps := []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1}
	for _, bias := range []float64{0, DefaultRecencyBias, 0.5, 1} {
		r := Ranking{RecencyBias: bias}
		for _, fixed := range steps {
			for i := 1; i < len(steps); i++ {
				lo, hi := steps[i-1], steps[i]
				assert.LessOrEqual(t, r.Score(lo, fixed), r.Score(hi, fixed), "similarity, bias %v recency %v", bias, fixed)
				assert.LessOrEqual(t, r.Score(fixed, lo), r.Score(fixed, hi), "recency, bias %v similarity %v", bias, fixed)
			}
		}
	}

	r := DefaultRanking()
	assert.Less(t, r.Score(0.4, 0.5), r.Score(0.6, 0.5))
	assert.Less(t, r.Score(0.5, 0.4), r.Score(0.5, 0.6))
}
