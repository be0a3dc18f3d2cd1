package memory

import (
	"time"

	"github.com/dukerupert/memories/internal/model"
)

// RecordOutcome applies one daily challenge result to state and returns the
// new state. A correct answer extends the streak by one; an incorrect one
// resets it to zero. Skipped days do not affect the streak.
func RecordOutcome(state model.StreakState, correct bool, today time.Time) model.StreakState {
	next := state
	if correct {
		next.CurrentStreak = state.CurrentStreak + 1
		next.AllTimeHigh = max(state.AllTimeHigh, next.CurrentStreak)
	} else {
		next.CurrentStreak = 0
	}
	day := StartOfDay(today)
	next.LastChallengeDate = &day
	return next
}
