package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dukerupert/memories/internal/model"
)

// ErrLimitReached is returned by CreateWithinLimit when the owner already
// holds the maximum number of memories.
var ErrLimitReached = errors.New("memory limit reached")

type MemoryStore struct {
	db *sql.DB
}

func NewMemoryStore(db *sql.DB) *MemoryStore {
	return &MemoryStore{db: db}
}

func scanMemory(scanner interface{ Scan(...any) error }) (*model.Memory, error) {
	var m model.Memory
	err := scanner.Scan(&m.ID, &m.OwnerID, &m.DisplayName, &m.Category, &m.Month, &m.Day, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const memoryCols = `id, owner_id, display_name, category, month, day, created_at`

// newID returns a ULID string. ULIDs sort lexically in creation order.
func newID() string {
	return ulid.Make().String()
}

// Create stores m, assigning its ID and creation time.
func (s *MemoryStore) Create(ctx context.Context, m model.Memory) (*model.Memory, error) {
	return s.CreateWithinLimit(ctx, m, 0)
}

// CreateWithinLimit stores m only if its owner has fewer than limit memories.
// A limit of zero or less means unlimited. The count check and the insert
// run as one statement.
func (s *MemoryStore) CreateWithinLimit(ctx context.Context, m model.Memory, limit int) (*model.Memory, error) {
	m.ID = newID()
	m.CreatedAt = time.Now().UTC()

	err := withRetry(ctx, func(ctx context.Context) error {
		var (
			result sql.Result
			err    error
		)
		if limit > 0 {
			result, err = s.db.ExecContext(ctx,
				`INSERT INTO memories (`+memoryCols+`)
				 SELECT ?, ?, ?, ?, ?, ?, ?
				 WHERE (SELECT COUNT(*) FROM memories WHERE owner_id = ?) < ?`,
				m.ID, m.OwnerID, m.DisplayName, m.Category, m.Month, m.Day, m.CreatedAt, m.OwnerID, limit,
			)
		} else {
			result, err = s.db.ExecContext(ctx,
				`INSERT INTO memories (`+memoryCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				m.ID, m.OwnerID, m.DisplayName, m.Category, m.Month, m.Day, m.CreatedAt,
			)
		}
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrLimitReached
		}
		return nil
	})
	if errors.Is(err, ErrLimitReached) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}
	return &m, nil
}

// GetByID returns the owner's memory with the given ID, or nil if not found.
func (s *MemoryStore) GetByID(ctx context.Context, ownerID int64, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memoryCols+` FROM memories WHERE id = ? AND owner_id = ?`, id, ownerID)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return m, nil
}

// ListByOwner returns all of the owner's memories in calendar order.
func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID int64) ([]model.Memory, error) {
	return s.list(ctx, "list memories",
		`SELECT `+memoryCols+` FROM memories WHERE owner_id = ? ORDER BY month, day, id`, ownerID)
}

// ListByMonth returns the owner's memories in month, ordered by day.
func (s *MemoryStore) ListByMonth(ctx context.Context, ownerID int64, month int) ([]model.Memory, error) {
	return s.list(ctx, "list memories by month",
		`SELECT `+memoryCols+` FROM memories WHERE owner_id = ? AND month = ? ORDER BY day, id`, ownerID, month)
}

func (s *MemoryStore) list(ctx context.Context, op, query string, args ...any) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	memories := []model.Memory{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}

func (s *MemoryStore) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE owner_id = ?`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}

// Delete removes the owner's memory and its practice records. It reports
// whether a memory was deleted.
func (s *MemoryStore) Delete(ctx context.Context, ownerID int64, id string) (bool, error) {
	var deleted bool
	err := withRetry(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM practice_records WHERE memory_id = ? AND owner_id = ?`, id, ownerID,
		); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ? AND owner_id = ?`, id, ownerID)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return tx.Commit()
	})
	if err != nil {
		return false, fmt.Errorf("delete memory: %w", err)
	}
	return deleted, nil
}
