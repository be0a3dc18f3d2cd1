package memory

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/dukerupert/memories/internal/model"
)

var ErrInvalidAnswer = errors.New("answer must be a date in MM/DD format")

var answerPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/(0[1-9]|[12]\d|3[01])$`)

// ParseAnswer parses a zero padded "MM/DD" answer.
func ParseAnswer(s string) (month, day int, err error) {
	parts := answerPattern.FindStringSubmatch(s)
	if parts == nil {
		return 0, 0, ErrInvalidAnswer
	}
	month, _ = strconv.Atoi(parts[1])
	day, _ = strconv.Atoi(parts[2])
	return month, day, nil
}

// FormatAnswer renders m's date the way answers are expected.
func FormatAnswer(m model.Memory) string {
	return fmt.Sprintf("%02d/%02d", m.Month, m.Day)
}

// CheckAnswer reports whether answer names m's month and day.
func CheckAnswer(m model.Memory, answer string) (bool, error) {
	month, day, err := ParseAnswer(answer)
	if err != nil {
		return false, err
	}
	return month == m.Month && day == m.Day, nil
}
