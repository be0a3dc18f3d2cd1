package store

import (
	"testing"
)

func TestResetCodeCreate(t *testing.T) {
	rs := NewResetCodeStore(setupTestDB(t))

	rc, err := rs.Create("alice@example.com")
	if err != nil {
		t.Fatalf("create reset code: %v", err)
	}
	if len(rc.Code) != 6 {
		t.Errorf("code = %q, want 6 digits", rc.Code)
	}
	for _, c := range rc.Code {
		if c < '0' || c > '9' {
			t.Fatalf("code = %q, want digits only", rc.Code)
		}
	}
	if rc.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", rc.Attempts)
	}
}

func TestResetCodeNewCodeInvalidatesOld(t *testing.T) {
	rs := NewResetCodeStore(setupTestDB(t))

	first, _ := rs.Create("alice@example.com")
	second, _ := rs.Create("alice@example.com")

	latest, err := rs.GetLatestByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest == nil || latest.ID != second.ID {
		t.Fatalf("latest = %v, want code %d", latest, second.ID)
	}
	if latest.ID == first.ID {
		t.Error("first code should have been invalidated")
	}
}

func TestResetCodeAttemptsAndUse(t *testing.T) {
	rs := NewResetCodeStore(setupTestDB(t))

	rc, _ := rs.Create("alice@example.com")
	for want := 1; want <= 3; want++ {
		got, err := rs.IncrementAttempts(rc.ID)
		if err != nil {
			t.Fatalf("increment attempts: %v", err)
		}
		if got != want {
			t.Errorf("attempts = %d, want %d", got, want)
		}
	}

	if err := rs.MarkUsed(rc.ID); err != nil {
		t.Fatalf("mark used: %v", err)
	}
	latest, err := rs.GetLatestByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest != nil {
		t.Error("used code should not be returned")
	}
}
