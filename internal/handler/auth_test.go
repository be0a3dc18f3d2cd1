package handler

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/dukerupert/memories/internal/auth"
	"github.com/dukerupert/memories/internal/email"
	"github.com/dukerupert/memories/internal/middleware"
)

type fakeMailer struct {
	mu       sync.Mutex
	codes    map[string]string
	welcomed []string
	err      error
}

func (f *fakeMailer) SendResetCode(_ context.Context, to, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.codes == nil {
		f.codes = make(map[string]string)
	}
	f.codes[to] = code
	return f.err
}

func (f *fakeMailer) SendWelcome(_ context.Context, to, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.welcomed = append(f.welcomed, to)
	return f.err
}

func newAuthHandler(e *testEnv, m Mailer) *AuthHandler {
	return NewAuthHandler(e.users, e.sessions, e.resetCodes, m, e.logger)
}

func TestRegister(t *testing.T) {
	e := newTestEnv(t)
	mailer := &fakeMailer{}
	h := newAuthHandler(e, mailer)

	rec := serve(h.Register, newRequest(http.MethodPost, "/api/auth/register",
		`{"email":" Alice@Example.com ","password":"long enough","display_name":"Alice"}`, nil))
	expectStatus(t, rec, http.StatusCreated)

	resp := decodeBody[authResponse](t, rec)
	if resp.Token == "" {
		t.Fatal("expected a session token")
	}
	if resp.User.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalised address", resp.User.Email)
	}
	if resp.User.IsPremium {
		t.Error("new accounts should not be premium")
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != resp.Token || !cookie.HttpOnly {
		t.Errorf("session cookie = %+v", cookie)
	}
	if len(mailer.welcomed) != 1 {
		t.Errorf("welcome emails = %d, want 1", len(mailer.welcomed))
	}

	sess, err := e.sessions.GetByToken(resp.Token)
	if err != nil || sess == nil || sess.UserID != resp.User.ID {
		t.Fatalf("session lookup = %+v, %v", sess, err)
	}
}

func TestRegisterValidation(t *testing.T) {
	e := newTestEnv(t)
	h := newAuthHandler(e, &fakeMailer{})
	e.createUser(t, "taken@example.com")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"missing email", `{"password":"long enough"}`, http.StatusBadRequest},
		{"malformed email", `{"email":"not-an-email","password":"long enough"}`, http.StatusBadRequest},
		{"short password", `{"email":"bob@example.com","password":"short"}`, http.StatusBadRequest},
		{"duplicate", `{"email":"TAKEN@example.com","password":"long enough"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h.Register, newRequest(http.MethodPost, "/api/auth/register", tt.body, nil))
			expectStatus(t, rec, tt.want)
		})
	}
}

func TestRegisterWithoutEmailConfigured(t *testing.T) {
	e := newTestEnv(t)
	h := newAuthHandler(e, &fakeMailer{err: email.ErrNotConfigured})

	rec := serve(h.Register, newRequest(http.MethodPost, "/api/auth/register",
		`{"email":"carol@example.com","password":"long enough"}`, nil))
	expectStatus(t, rec, http.StatusCreated)
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)
	h := newAuthHandler(e, &fakeMailer{})
	u := e.createUser(t, "alice@example.com")

	rec := serve(h.Login, newRequest(http.MethodPost, "/api/auth/login",
		`{"email":"alice@example.com","password":"correct horse"}`, nil))
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[authResponse](t, rec); got.User.ID != u.ID || got.Token == "" {
		t.Errorf("login response = %+v", got)
	}

	for _, body := range []string{
		`{"email":"alice@example.com","password":"wrong horse"}`,
		`{"email":"nobody@example.com","password":"correct horse"}`,
	} {
		rec := serve(h.Login, newRequest(http.MethodPost, "/api/auth/login", body, nil))
		expectStatus(t, rec, http.StatusUnauthorized)
	}
}

func TestLogout(t *testing.T) {
	e := newTestEnv(t)
	h := newAuthHandler(e, &fakeMailer{})
	u := e.createUser(t, "alice@example.com")

	sess, err := e.sessions.Create(u.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	r := newRequest(http.MethodPost, "/api/auth/logout", "", nil)
	r = r.WithContext(auth.WithAuth(r.Context(), auth.AuthContext{UserID: u.ID, SessionID: sess.ID}))
	rec := serve(h.Logout, r)
	expectStatus(t, rec, http.StatusNoContent)

	got, err := e.sessions.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got != nil {
		t.Error("session should be deleted after logout")
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	e := newTestEnv(t)
	mailer := &fakeMailer{}
	h := newAuthHandler(e, mailer)
	u := e.createUser(t, "alice@example.com")
	oldSession, err := e.sessions.Create(u.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	rec := serve(h.ForgotPassword, newRequest(http.MethodPost, "/api/auth/forgot", `{"email":"alice@example.com"}`, nil))
	expectStatus(t, rec, http.StatusOK)
	code := mailer.codes["alice@example.com"]
	if len(code) != 6 {
		t.Fatalf("mailed code = %q, want 6 digits", code)
	}

	rec = serve(h.ResetPassword, newRequest(http.MethodPost, "/api/auth/reset",
		`{"email":"alice@example.com","code":"`+code+`","password":"brand new pass"}`, nil))
	expectStatus(t, rec, http.StatusOK)

	rec = serve(h.Login, newRequest(http.MethodPost, "/api/auth/login",
		`{"email":"alice@example.com","password":"brand new pass"}`, nil))
	expectStatus(t, rec, http.StatusOK)

	if s, _ := e.sessions.GetByToken(oldSession.Token); s != nil {
		t.Error("existing sessions should be revoked by a reset")
	}

	rec = serve(h.ResetPassword, newRequest(http.MethodPost, "/api/auth/reset",
		`{"email":"alice@example.com","code":"`+code+`","password":"another pass"}`, nil))
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestForgotUnknownEmail(t *testing.T) {
	e := newTestEnv(t)
	mailer := &fakeMailer{}
	h := newAuthHandler(e, mailer)

	rec := serve(h.ForgotPassword, newRequest(http.MethodPost, "/api/auth/forgot", `{"email":"ghost@example.com"}`, nil))
	expectStatus(t, rec, http.StatusOK)
	if len(mailer.codes) != 0 {
		t.Errorf("no code should be sent for unknown accounts, got %v", mailer.codes)
	}
}

func TestResetPasswordAttemptLimit(t *testing.T) {
	e := newTestEnv(t)
	mailer := &fakeMailer{}
	h := newAuthHandler(e, mailer)
	e.createUser(t, "alice@example.com")

	serve(h.ForgotPassword, newRequest(http.MethodPost, "/api/auth/forgot", `{"email":"alice@example.com"}`, nil))
	code := mailer.codes["alice@example.com"]
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < 5; i++ {
		rec := serve(h.ResetPassword, newRequest(http.MethodPost, "/api/auth/reset",
			`{"email":"alice@example.com","code":"`+wrong+`","password":"brand new pass"}`, nil))
		expectStatus(t, rec, http.StatusBadRequest)
	}

	rec := serve(h.ResetPassword, newRequest(http.MethodPost, "/api/auth/reset",
		`{"email":"alice@example.com","code":"`+code+`","password":"brand new pass"}`, nil))
	expectStatus(t, rec, http.StatusBadRequest)
}
