package store

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/dukerupert/memories/internal/database"
	"github.com/dukerupert/memories/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *sql.DB, email string) *model.User {
	t.Helper()
	u, err := NewUserStore(db).Create(email, "Test", "hash")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func createTestMemory(t *testing.T, db *sql.DB, ownerID int64, name string, month, day int) *model.Memory {
	t.Helper()
	m, err := NewMemoryStore(db).Create(t.Context(), model.Memory{
		OwnerID:     ownerID,
		DisplayName: name,
		Category:    model.CategoryBirthday,
		Month:       month,
		Day:         day,
	})
	if err != nil {
		t.Fatalf("create memory %s: %v", name, err)
	}
	return m
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
