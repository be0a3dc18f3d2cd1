package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/memories/internal/model"
)

var (
	// ErrAlreadyAnswered means the memory already has a daily challenge
	// record for the requested day.
	ErrAlreadyAnswered = errors.New("memory already answered today")
	// ErrStreakConflict means the streak row changed between read and write.
	ErrStreakConflict = errors.New("streak changed concurrently")
)

type StreakStore struct {
	db *sql.DB
}

func NewStreakStore(db *sql.DB) *StreakStore {
	return &StreakStore{db: db}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Get returns the owner's streak. Owners who never played get a zero state.
func (s *StreakStore) Get(ctx context.Context, ownerID int64) (model.StreakState, error) {
	st, _, err := getStreak(ctx, s.db, ownerID)
	if err != nil {
		return model.StreakState{}, fmt.Errorf("get streak: %w", err)
	}
	return st, nil
}

func getStreak(ctx context.Context, q queryer, ownerID int64) (model.StreakState, bool, error) {
	st := model.StreakState{OwnerID: ownerID}
	var last sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT current_streak, all_time_high, last_challenge_date FROM streaks WHERE owner_id = ?`, ownerID,
	).Scan(&st.CurrentStreak, &st.AllTimeHigh, &last)
	if err == sql.ErrNoRows {
		return st, false, nil
	}
	if err != nil {
		return st, false, err
	}
	if last.Valid {
		d, err := time.Parse(time.DateOnly, last.String)
		if err != nil {
			return st, false, fmt.Errorf("parse last challenge date: %w", err)
		}
		st.LastChallengeDate = &d
	}
	return st, true, nil
}

func formatDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.DateOnly), Valid: true}
}

// Upsert writes st unconditionally.
func (s *StreakStore) Upsert(ctx context.Context, st model.StreakState) error {
	err := withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO streaks (owner_id, current_streak, all_time_high, last_challenge_date, updated_at)
			 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(owner_id) DO UPDATE SET
			   current_streak = excluded.current_streak,
			   all_time_high = excluded.all_time_high,
			   last_challenge_date = excluded.last_challenge_date,
			   updated_at = CURRENT_TIMESTAMP`,
			st.OwnerID, st.CurrentStreak, st.AllTimeHigh, formatDate(st.LastChallengeDate),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert streak: %w", err)
	}
	return nil
}

// RecordChallenge stores a daily challenge record and the streak derived
// from it in one transaction. apply receives the stored streak and returns
// the new one. dayStart bounds the day used to reject a second answer for
// the same memory. If the streak row changes underneath, the whole
// transaction is retried once from fresh state before ErrStreakConflict is
// returned.
func (s *StreakStore) RecordChallenge(ctx context.Context, rec model.PracticeRecord, dayStart time.Time, apply func(model.StreakState) model.StreakState) (model.StreakState, *model.PracticeRecord, error) {
	rec.SessionType = model.SessionDailyChallenge

	var (
		state    model.StreakState
		prepared model.PracticeRecord
		err      error
	)
	for attempt := 0; attempt < 2; attempt++ {
		prepared = prepareRecord(rec)
		err = withRetry(ctx, func(ctx context.Context) error {
			var txErr error
			state, txErr = s.recordChallengeTx(ctx, prepared, dayStart, apply)
			return txErr
		})
		if !errors.Is(err, ErrStreakConflict) {
			break
		}
	}
	if errors.Is(err, ErrAlreadyAnswered) || errors.Is(err, ErrStreakConflict) {
		return model.StreakState{}, nil, err
	}
	if err != nil {
		return model.StreakState{}, nil, fmt.Errorf("record challenge: %w", err)
	}
	return state, &prepared, nil
}

func (s *StreakStore) recordChallengeTx(ctx context.Context, rec model.PracticeRecord, dayStart time.Time, apply func(model.StreakState) model.StreakState) (model.StreakState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.StreakState{}, err
	}
	defer tx.Rollback()

	var answered int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM practice_records
		 WHERE owner_id = ? AND memory_id = ? AND session_type = ? AND occurred_at >= ? AND occurred_at < ?`,
		rec.OwnerID, rec.MemoryID, model.SessionDailyChallenge, dayStart.UTC(), dayStart.AddDate(0, 0, 1).UTC(),
	).Scan(&answered)
	if err != nil {
		return model.StreakState{}, err
	}
	if answered > 0 {
		return model.StreakState{}, ErrAlreadyAnswered
	}

	prev, exists, err := getStreak(ctx, tx, rec.OwnerID)
	if err != nil {
		return model.StreakState{}, err
	}
	next := apply(prev)
	next.OwnerID = rec.OwnerID

	if err := insertRecord(ctx, tx, rec); err != nil {
		return model.StreakState{}, err
	}

	var result sql.Result
	if exists {
		result, err = tx.ExecContext(ctx,
			`UPDATE streaks SET current_streak = ?, all_time_high = ?, last_challenge_date = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE owner_id = ? AND current_streak = ? AND all_time_high = ? AND last_challenge_date IS ?`,
			next.CurrentStreak, next.AllTimeHigh, formatDate(next.LastChallengeDate),
			rec.OwnerID, prev.CurrentStreak, prev.AllTimeHigh, formatDate(prev.LastChallengeDate),
		)
	} else {
		result, err = tx.ExecContext(ctx,
			`INSERT INTO streaks (owner_id, current_streak, all_time_high, last_challenge_date)
			 VALUES (?, ?, ?, ?) ON CONFLICT(owner_id) DO NOTHING`,
			rec.OwnerID, next.CurrentStreak, next.AllTimeHigh, formatDate(next.LastChallengeDate),
		)
	}
	if err != nil {
		return model.StreakState{}, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return model.StreakState{}, err
	}
	if n == 0 {
		return model.StreakState{}, ErrStreakConflict
	}

	if err := tx.Commit(); err != nil {
		return model.StreakState{}, err
	}
	return next, nil
}
