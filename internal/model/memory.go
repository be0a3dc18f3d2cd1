package model

import "time"

type Category string

const (
	CategoryBirthday    Category = "Birthday"
	CategoryAnniversary Category = "Anniversary"
	CategorySpecialDate Category = "Special Date"
	CategoryHoliday     Category = "Holiday"
)

// Categories lists the known categories in display order.
var Categories = []Category{
	CategoryBirthday,
	CategoryAnniversary,
	CategorySpecialDate,
	CategoryHoliday,
}

// Memory is a recurring date of personal significance. It has no year;
// Month and Day describe an occurrence that repeats annually.
type Memory struct {
	ID          string    `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	DisplayName string    `json:"display_name"`
	Category    Category  `json:"category"`
	Month       int       `json:"month"`
	Day         int       `json:"day"`
	CreatedAt   time.Time `json:"created_at"`
}

type SessionType string

const (
	SessionDailyChallenge    SessionType = "daily_challenge"
	SessionFlashcardPractice SessionType = "flashcard_practice"
)

// PracticeRecord is one evaluated attempt against a memory. Records are
// immutable and only removed together with their memory.
type PracticeRecord struct {
	ID          string      `json:"id"`
	OwnerID     int64       `json:"owner_id"`
	MemoryID    string      `json:"memory_id"`
	Correct     bool        `json:"correct"`
	SessionType SessionType `json:"session_type"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// StreakState tracks a user's daily challenge streak.
// AllTimeHigh is never below CurrentStreak.
type StreakState struct {
	OwnerID           int64      `json:"owner_id"`
	CurrentStreak     int        `json:"current_streak"`
	AllTimeHigh       int        `json:"all_time_high"`
	LastChallengeDate *time.Time `json:"last_challenge_date,omitempty"`
}
