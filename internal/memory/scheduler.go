// Package memory schedules recurring memories: next-occurrence math,
// daily challenge and practice deck selection, and streak tracking.
package memory

import (
	"cmp"
	"slices"
	"time"

	"github.com/dukerupert/memories/internal/model"
)

const (
	DefaultUpcomingLimit = 5
	DefaultDeckSize      = 10
)

// Upcoming pairs a memory with the number of days until it next occurs.
type Upcoming struct {
	Memory    model.Memory `json:"memory"`
	DaysUntil int          `json:"days_until"`
	Date      time.Time    `json:"date"`
}

// Scheduler answers "what should the user be asked now" and "what is coming
// up" from an already loaded set of memories. It performs no I/O and holds
// no mutable state beyond its random source.
type Scheduler struct {
	clock         Clock
	rng           Rand
	deckSize      int
	upcomingLimit int
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithRand(r Rand) Option {
	return func(s *Scheduler) { s.rng = r }
}

func WithDeckSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.deckSize = n
		}
	}
}

func WithUpcomingLimit(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.upcomingLimit = n
		}
	}
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:         SystemClock{},
		rng:           DefaultRand(),
		deckSize:      DefaultDeckSize,
		upcomingLimit: DefaultUpcomingLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the scheduler clock's current time.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Today returns midnight of the current day in the clock's location.
func (s *Scheduler) Today() time.Time {
	return StartOfDay(s.clock.Now())
}

// Upcoming returns the next occurrences of all relative to ref, nearest
// first. Ties keep ID order, which for ULIDs is creation order. A limit of
// zero or less uses the scheduler default.
func (s *Scheduler) Upcoming(all []model.Memory, ref time.Time, limit int) []Upcoming {
	if limit <= 0 {
		limit = s.upcomingLimit
	}

	out := make([]Upcoming, 0, len(all))
	for _, m := range all {
		out = append(out, Upcoming{
			Memory:    m,
			DaysUntil: DaysUntilNext(m, ref),
			Date:      NextOccurrence(m, ref),
		})
	}
	slices.SortStableFunc(out, func(a, b Upcoming) int {
		if c := cmp.Compare(a.DaysUntil, b.DaysUntil); c != 0 {
			return c
		}
		return cmp.Compare(a.Memory.ID, b.Memory.ID)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DailyChallenge picks today's challenge, excluding memories that already
// have a daily challenge record in todaysRecords.
func (s *Scheduler) DailyChallenge(all []model.Memory, todaysRecords []model.PracticeRecord) (model.Memory, bool) {
	return PickDailyChallenge(all, ConsumedToday(todaysRecords), s.rng)
}

// PracticeDeck returns a shuffled flashcard deck of at most the configured size.
func (s *Scheduler) PracticeDeck(all []model.Memory) []model.Memory {
	return BuildPracticeDeck(all, s.deckSize, s.rng)
}

// RecordChallenge applies a daily challenge result dated by the scheduler clock.
func (s *Scheduler) RecordChallenge(state model.StreakState, correct bool) model.StreakState {
	return RecordOutcome(state, correct, s.clock.Now())
}

// ConsumedToday returns the IDs of memories with a daily challenge record
// in records. Flashcard practice does not consume a memory.
func ConsumedToday(records []model.PracticeRecord) map[string]bool {
	consumed := make(map[string]bool, len(records))
	for _, r := range records {
		if r.SessionType == model.SessionDailyChallenge {
			consumed[r.MemoryID] = true
		}
	}
	return consumed
}
