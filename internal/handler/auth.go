package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukerupert/memories/internal/auth"
	"github.com/dukerupert/memories/internal/email"
	"github.com/dukerupert/memories/internal/middleware"
	"github.com/dukerupert/memories/internal/model"
	"github.com/dukerupert/memories/internal/store"
)

const sessionMaxAge = 90 * 24 * time.Hour

// Mailer sends account emails. *email.Client satisfies it.
type Mailer interface {
	SendResetCode(ctx context.Context, toEmail, code string) error
	SendWelcome(ctx context.Context, toEmail, displayName string) error
}

type AuthHandler struct {
	userStore      *store.UserStore
	sessionStore   *store.SessionStore
	resetCodeStore *store.ResetCodeStore
	mailer         Mailer
	logger         *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, rcs *store.ResetCodeStore, mailer Mailer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userStore:      us,
		sessionStore:   ss,
		resetCodeStore: rcs,
		mailer:         mailer,
		logger:         logger,
	}
}

type authResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func normalizeEmail(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", false
	}
	return s, true
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	emailAddr, ok := normalizeEmail(req.Email)
	if !ok {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if utf8.RuneCountInString(displayName) > maxDisplayNameLength {
		writeError(w, http.StatusBadRequest, "display name is too long")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	existing, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	user, err := h.userStore.Create(emailAddr, displayName, hash)
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.mailer.SendWelcome(r.Context(), user.Email, user.DisplayName); err != nil && !errors.Is(err, email.ErrNotConfigured) {
		h.logger.Warn("send welcome email", "error", err)
	}

	h.startSession(w, r, user, http.StatusCreated)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	emailAddr, _ := normalizeEmail(req.Email)
	user, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	h.startSession(w, r, user, http.StatusOK)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User, status int) {
	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	writeJSON(w, status, authResponse{User: user, Token: sess.Token})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if ok {
		if err := h.sessionStore.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	w.WriteHeader(http.StatusNoContent)
}

type forgotRequest struct {
	Email string `json:"email"`
}

// ForgotPassword handles POST /api/auth/forgot. The response is the same
// whether or not the account exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	defer writeJSON(w, http.StatusOK, map[string]string{"status": "if the account exists, a code has been sent"})

	emailAddr, ok := normalizeEmail(req.Email)
	if !ok {
		return
	}
	user, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("forgot lookup", "error", err)
		return
	}
	if user == nil {
		return
	}

	rc, err := h.resetCodeStore.Create(emailAddr)
	if err != nil {
		h.logger.Error("create reset code", "error", err)
		return
	}

	err = h.mailer.SendResetCode(r.Context(), emailAddr, rc.Code)
	if errors.Is(err, email.ErrNotConfigured) {
		h.logger.Info("email not configured, reset code not mailed", "email", emailAddr, "code", rc.Code)
		return
	}
	if err != nil {
		h.logger.Error("send reset code", "error", err)
	}
}

type resetRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

// ResetPassword handles POST /api/auth/reset
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	emailAddr, ok := normalizeEmail(req.Email)
	code := strings.TrimSpace(req.Code)
	if !ok || code == "" {
		writeError(w, http.StatusBadRequest, "email and code are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	latest, err := h.resetCodeStore.GetLatestByEmail(emailAddr)
	if err != nil {
		h.logger.Error("reset code lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if latest == nil {
		writeError(w, http.StatusBadRequest, "code has expired or already been used")
		return
	}

	if latest.Code != code {
		attempts, err := h.resetCodeStore.IncrementAttempts(latest.ID)
		if err != nil {
			h.logger.Error("increment attempts", "error", err)
		}
		if attempts >= store.MaxResetAttempts {
			h.resetCodeStore.MarkUsed(latest.ID)
			writeError(w, http.StatusBadRequest, "too many incorrect attempts, request a new code")
			return
		}
		writeError(w, http.StatusBadRequest, "incorrect code")
		return
	}

	if err := h.resetCodeStore.MarkUsed(latest.ID); err != nil {
		h.logger.Error("mark reset code used", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := h.userStore.GetByEmail(emailAddr)
	if err != nil || user == nil {
		h.logger.Error("reset user lookup", "error", err)
		writeError(w, http.StatusBadRequest, "code has expired or already been used")
		return
	}
	if err := h.userStore.UpdatePassword(user.ID, hash); err != nil {
		h.logger.Error("update password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.sessionStore.DeleteByUser(user.ID); err != nil {
		h.logger.Error("revoke sessions", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}
