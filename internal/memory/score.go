package memory

import "math"

// Score summarises a practice session.
type Score struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// ScoreOutcomes counts correct outcomes and rounds the percentage to the
// nearest whole number. An empty session scores 0%.
func ScoreOutcomes(outcomes []bool) Score {
	s := Score{Total: len(outcomes)}
	for _, ok := range outcomes {
		if ok {
			s.Correct++
		}
	}
	if s.Total > 0 {
		s.Percentage = int(math.Round(float64(s.Correct) * 100 / float64(s.Total)))
	}
	return s
}
