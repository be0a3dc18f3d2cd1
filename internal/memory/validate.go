package memory

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dukerupert/memories/internal/model"
)

const MaxNameLength = 100

var (
	ErrEmptyName       = errors.New("name is required")
	ErrNameTooLong     = fmt.Errorf("name must be at most %d characters", MaxNameLength)
	ErrInvalidMonthDay = errors.New("invalid month/day")
	ErrEmptyCategory   = errors.New("category is required")
)

// daysIn uses a leap year so Feb 29 is accepted; memories carry no year.
func daysIn(month int) int {
	return time.Date(2000, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ValidateMonthDay reports whether day is a valid day of month in some year.
func ValidateMonthDay(month, day int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidMonthDay, month)
	}
	if day < 1 || day > daysIn(month) {
		return fmt.Errorf("%w: day %d out of range for month %d", ErrInvalidMonthDay, day, month)
	}
	return nil
}

// ParseCategory maps free-form input such as "birthday", "special-date" or
// "HOLIDAY" onto a known category. Unknown values fall back to Special Date.
func ParseCategory(s string) model.Category {
	s = strings.NewReplacer("-", " ", "_", " ").Replace(strings.TrimSpace(s))
	label := cases.Title(language.English).String(strings.Join(strings.Fields(s), " "))
	for _, c := range model.Categories {
		if string(c) == label {
			return c
		}
	}
	return model.CategorySpecialDate
}

// NewMemory validates the user supplied fields and returns a memory ready to
// be stored. ID and CreatedAt are assigned by storage.
func NewMemory(ownerID int64, name, category string, month, day int) (model.Memory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Memory{}, ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return model.Memory{}, ErrNameTooLong
	}
	if strings.TrimSpace(category) == "" {
		return model.Memory{}, ErrEmptyCategory
	}
	if err := ValidateMonthDay(month, day); err != nil {
		return model.Memory{}, err
	}
	return model.Memory{
		OwnerID:     ownerID,
		DisplayName: name,
		Category:    ParseCategory(category),
		Month:       month,
		Day:         day,
	}, nil
}
