package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/dukerupert/memories/internal/auth"
	"github.com/dukerupert/memories/internal/middleware"
	"github.com/dukerupert/memories/internal/store"
)

const maxDisplayNameLength = 50

type ProfileHandler struct {
	userStore *store.UserStore
	baseURL   string
	logger    *slog.Logger
}

func NewProfileHandler(us *store.UserStore, baseURL string, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{userStore: us, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// Get handles GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type profileRequest struct {
	DisplayName string `json:"display_name"`
}

// Update handles PUT /api/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		writeError(w, http.StatusBadRequest, "display name is required")
		return
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		writeError(w, http.StatusBadRequest, "display name is too long")
		return
	}

	user, err := h.userStore.UpdateDisplayName(auth.UserID(r.Context()), name)
	if err != nil {
		h.logger.Error("update profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// RotateFeedToken handles POST /api/profile/feed-token
func (h *ProfileHandler) RotateFeedToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.userStore.RotateFeedToken(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("rotate feed token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to rotate feed token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"feed_token": token,
		"feed_url":   h.baseURL + "/feeds/" + token,
	})
}

// Delete handles DELETE /api/profile. Memories, practice history, streak,
// sessions and push subscriptions go with the account.
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.userStore.Delete(auth.UserID(r.Context())); err != nil {
		h.logger.Error("delete account", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete account")
		return
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
