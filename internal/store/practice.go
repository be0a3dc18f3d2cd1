package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/memories/internal/model"
)

type PracticeStore struct {
	db *sql.DB
}

func NewPracticeStore(db *sql.DB) *PracticeStore {
	return &PracticeStore{db: db}
}

func scanPracticeRecord(scanner interface{ Scan(...any) error }) (*model.PracticeRecord, error) {
	var r model.PracticeRecord
	err := scanner.Scan(&r.ID, &r.OwnerID, &r.MemoryID, &r.Correct, &r.SessionType, &r.OccurredAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const practiceCols = `id, owner_id, memory_id, correct, session_type, occurred_at`

// Insert stores r, assigning its ID. A zero OccurredAt is set to now.
func (s *PracticeStore) Insert(ctx context.Context, r model.PracticeRecord) (*model.PracticeRecord, error) {
	prepared := prepareRecord(r)
	err := withRetry(ctx, func(ctx context.Context) error {
		return insertRecord(ctx, s.db, prepared)
	})
	if err != nil {
		return nil, fmt.Errorf("insert practice record: %w", err)
	}
	return &prepared, nil
}

func prepareRecord(r model.PracticeRecord) model.PracticeRecord {
	r.ID = newID()
	if r.OccurredAt.IsZero() {
		r.OccurredAt = time.Now()
	}
	r.OccurredAt = r.OccurredAt.UTC()
	return r
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRecord(ctx context.Context, db execer, r model.PracticeRecord) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO practice_records (`+practiceCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.OwnerID, r.MemoryID, r.Correct, r.SessionType, r.OccurredAt,
	)
	return err
}

// ListBetween returns the owner's records with from <= occurred_at < to,
// oldest first.
func (s *PracticeStore) ListBetween(ctx context.Context, ownerID int64, from, to time.Time) ([]model.PracticeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+practiceCols+` FROM practice_records
		 WHERE owner_id = ? AND occurred_at >= ? AND occurred_at < ?
		 ORDER BY occurred_at, id`,
		ownerID, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list practice records: %w", err)
	}
	defer rows.Close()

	records := []model.PracticeRecord{}
	for rows.Next() {
		r, err := scanPracticeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan practice record: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// ListForDay returns the owner's records on the calendar day starting at
// dayStart, in dayStart's location.
func (s *PracticeStore) ListForDay(ctx context.Context, ownerID int64, dayStart time.Time) ([]model.PracticeRecord, error) {
	return s.ListBetween(ctx, ownerID, dayStart, dayStart.AddDate(0, 0, 1))
}

// Stats summarises a user's practice history.
type Stats struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// StatsByType returns totals for one session type.
func (s *PracticeStore) StatsByType(ctx context.Context, ownerID int64, sessionType model.SessionType) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(correct), 0) FROM practice_records WHERE owner_id = ? AND session_type = ?`,
		ownerID, sessionType,
	).Scan(&st.Total, &st.Correct)
	if err != nil {
		return Stats{}, fmt.Errorf("practice stats: %w", err)
	}
	return st, nil
}
