package memory

import (
	"time"

	"github.com/dukerupert/memories/internal/model"
)

// NextOccurrence returns the first calendar date on or after ref on which m
// falls, at midnight in ref's location. A Feb 29 memory lands on Mar 1 in
// non-leap years.
func NextOccurrence(m model.Memory, ref time.Time) time.Time {
	next := nextCivil(m, civilDate(ref))
	y, mo, d := next.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, ref.Location())
}

// DaysUntilNext returns the number of calendar days from ref to the next
// occurrence of m. It is 0 when m falls on ref's date and never exceeds 366.
// m must carry a valid month and day.
func DaysUntilNext(m model.Memory, ref time.Time) int {
	today := civilDate(ref)
	return int(nextCivil(m, today).Sub(today) / (24 * time.Hour))
}

func nextCivil(m model.Memory, today time.Time) time.Time {
	year := today.Year()
	next := time.Date(year, time.Month(m.Month), m.Day, 0, 0, 0, 0, time.UTC)
	if next.Before(today) {
		next = time.Date(year+1, time.Month(m.Month), m.Day, 0, 0, 0, 0, time.UTC)
	}
	return next
}
