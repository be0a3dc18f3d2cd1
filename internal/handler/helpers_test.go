package handler

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/memories/internal/auth"
	"github.com/dukerupert/memories/internal/database"
	"github.com/dukerupert/memories/internal/memory"
	"github.com/dukerupert/memories/internal/model"
	"github.com/dukerupert/memories/internal/store"
	"github.com/dukerupert/memories/internal/websocket"
)

var testNow = time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

type recordingHub struct {
	mu   sync.Mutex
	msgs map[int64][]websocket.Message
}

func (h *recordingHub) Publish(userID int64, msg websocket.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.msgs == nil {
		h.msgs = make(map[int64][]websocket.Message)
	}
	h.msgs[userID] = append(h.msgs[userID], msg)
}

func (h *recordingHub) types(userID int64) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, m := range h.msgs[userID] {
		out = append(out, m.Type)
	}
	return out
}

type testEnv struct {
	db         *sql.DB
	users      *store.UserStore
	sessions   *store.SessionStore
	resetCodes *store.ResetCodeStore
	memories   *store.MemoryStore
	practice   *store.PracticeStore
	streaks    *store.StreakStore
	pushes     *store.PushStore
	sched      *memory.Scheduler
	hub        *recordingHub
	logger     *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &testEnv{
		db:         db,
		users:      store.NewUserStore(db),
		sessions:   store.NewSessionStore(db),
		resetCodes: store.NewResetCodeStore(db),
		memories:   store.NewMemoryStore(db),
		practice:   store.NewPracticeStore(db),
		streaks:    store.NewStreakStore(db),
		pushes:     store.NewPushStore(db),
		sched: memory.NewScheduler(
			memory.WithClock(memory.FixedClock(testNow)),
			memory.WithRand(memory.NewRand(1)),
		),
		hub:    &recordingHub{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (e *testEnv) createUser(t *testing.T, email string) *model.User {
	t.Helper()
	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u, err := e.users.Create(email, "Test", hash)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func (e *testEnv) createMemory(t *testing.T, owner *model.User, name string, month, day int) *model.Memory {
	t.Helper()
	m, err := e.memories.Create(t.Context(), model.Memory{
		OwnerID:     owner.ID,
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

// newRequest builds a request authenticated as u (nil for anonymous).
// pathValues are name/value pairs for the route wildcards.
func newRequest(method, target, body string, u *model.User, pathValues ...string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(pathValues); i += 2 {
		r.SetPathValue(pathValues[i], pathValues[i+1])
	}
	if u != nil {
		r = r.WithContext(auth.WithAuth(r.Context(), auth.AuthContext{UserID: u.ID, IsPremium: u.IsPremium}))
	}
	return r
}

func serve(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, r)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}
