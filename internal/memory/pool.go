package memory

import (
	"slices"

	"github.com/dukerupert/memories/internal/model"
)

// PickDailyChallenge returns a memory chosen uniformly at random from all,
// skipping any whose ID is in consumed. The second return value is false
// when every memory has been consumed (or all is empty); callers tell the
// two cases apart by len(all).
func PickDailyChallenge(all []model.Memory, consumed map[string]bool, rng Rand) (model.Memory, bool) {
	candidates := make([]model.Memory, 0, len(all))
	for _, m := range all {
		if !consumed[m.ID] {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return model.Memory{}, false
	}
	return candidates[rng.IntN(len(candidates))], true
}

// BuildPracticeDeck draws min(maxSize, len(all)) memories without
// replacement in random order. When all fits in the deck the result is a
// full permutation of it. The input slice is not modified.
func BuildPracticeDeck(all []model.Memory, maxSize int, rng Rand) []model.Memory {
	if len(all) == 0 || maxSize <= 0 {
		return []model.Memory{}
	}

	deck := slices.Clone(all)
	n := min(maxSize, len(deck))
	// partial Fisher-Yates: positions [0,n) end up a uniform sample
	for i := range n {
		j := i + rng.IntN(len(deck)-i)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck[:n]
}
