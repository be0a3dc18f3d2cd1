package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/memories/internal/model"
)

func makeMemories(n int) []model.Memory {
	out := make([]model.Memory, n)
	for i := range out {
		out[i] = model.Memory{
			ID:          fmt.Sprintf("m%02d", i),
			DisplayName: fmt.Sprintf("Memory %d", i),
			Month:       i%12 + 1,
			Day:         i%28 + 1,
		}
	}
	return out
}

func ids(ms []model.Memory) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func TestPickDailyChallengeSkipsConsumed(t *testing.T) {
	all := makeMemories(6)
	consumed := map[string]bool{"m00": true, "m02": true, "m05": true}
	rng := NewRand(1)

	for range 1000 {
		m, ok := PickDailyChallenge(all, consumed, rng)
		require.True(t, ok)
		assert.False(t, consumed[m.ID], "picked consumed memory %s", m.ID)
	}
}

func TestPickDailyChallengeAllConsumed(t *testing.T) {
	all := makeMemories(3)
	consumed := map[string]bool{"m00": true, "m01": true, "m02": true}

	_, ok := PickDailyChallenge(all, consumed, NewRand(1))
	assert.False(t, ok)
}

func TestPickDailyChallengeEmpty(t *testing.T) {
	_, ok := PickDailyChallenge(nil, nil, NewRand(1))
	assert.False(t, ok)
}

func TestPickDailyChallengeUniform(t *testing.T) {
	all := makeMemories(5)
	consumed := map[string]bool{"m04": true}
	rng := NewRand(20240229)

	const trials = 30000
	counts := map[string]int{}
	for range trials {
		m, ok := PickDailyChallenge(all, consumed, rng)
		require.True(t, ok)
		counts[m.ID]++
	}

	require.Len(t, counts, 4)
	expected := float64(trials) / 4
	var chi2 float64
	for _, c := range counts {
		d := float64(c) - expected
		chi2 += d * d / expected
	}
	// 3 degrees of freedom; 16.27 is the 0.001 critical value
	assert.Less(t, chi2, 16.27, "counts %v not uniform", counts)
}

func TestPickDailyChallengeDeterministicForSeed(t *testing.T) {
	all := makeMemories(10)
	a, b := NewRand(7), NewRand(7)
	for range 50 {
		x, _ := PickDailyChallenge(all, nil, a)
		y, _ := PickDailyChallenge(all, nil, b)
		require.Equal(t, x.ID, y.ID)
	}
}

func TestBuildPracticeDeckSmallCollectionIsPermutation(t *testing.T) {
	all := makeMemories(7)
	deck := BuildPracticeDeck(all, 10, NewRand(3))

	require.Len(t, deck, 7)
	assert.ElementsMatch(t, ids(all), ids(deck))
}

func TestBuildPracticeDeckLargeCollectionIsCapped(t *testing.T) {
	all := makeMemories(15)
	deck := BuildPracticeDeck(all, 10, NewRand(3))

	require.Len(t, deck, 10)
	seen := map[string]bool{}
	for _, m := range deck {
		assert.False(t, seen[m.ID], "duplicate %s", m.ID)
		seen[m.ID] = true
	}
}

func TestBuildPracticeDeckEmpty(t *testing.T) {
	deck := BuildPracticeDeck(nil, 10, NewRand(1))
	assert.NotNil(t, deck)
	assert.Empty(t, deck)

	assert.Empty(t, BuildPracticeDeck(makeMemories(3), 0, NewRand(1)))
}

func TestBuildPracticeDeckDoesNotMutateInput(t *testing.T) {
	all := makeMemories(12)
	before := ids(all)
	BuildPracticeDeck(all, 10, NewRand(9))
	assert.Equal(t, before, ids(all))
}

func TestBuildPracticeDeckCoversCollection(t *testing.T) {
	all := makeMemories(15)
	rng := NewRand(11)
	seen := map[string]int{}
	for range 200 {
		for _, m := range BuildPracticeDeck(all, 10, rng) {
			seen[m.ID]++
		}
	}
	assert.Len(t, seen, 15)
}
