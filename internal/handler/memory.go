package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/memories/internal/auth"
	"github.com/dukerupert/memories/internal/memory"
	"github.com/dukerupert/memories/internal/model"
	"github.com/dukerupert/memories/internal/store"
	"github.com/dukerupert/memories/internal/websocket"
)

// Publisher fans sync messages out to a user's open sessions.
type Publisher interface {
	Publish(userID int64, msg websocket.Message)
}

type MemoryHandler struct {
	memoryStore *store.MemoryStore
	hub         Publisher
	freeLimit   int
	logger      *slog.Logger
}

func NewMemoryHandler(ms *store.MemoryStore, hub Publisher, freeLimit int, logger *slog.Logger) *MemoryHandler {
	return &MemoryHandler{memoryStore: ms, hub: hub, freeLimit: freeLimit, logger: logger}
}

func (h *MemoryHandler) publish(userID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Publish(userID, msg)
	}
}

// List handles GET /api/memories
func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	memories, err := h.memoryStore.ListByOwner(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list memories", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list memories")
		return
	}
	writeJSON(w, http.StatusOK, memories)
}

type memoryRequest struct {
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
	Month       int    `json:"month"`
	Day         int    `json:"day"`
}

// Create handles POST /api/memories. Free accounts are capped at freeLimit.
func (h *MemoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req memoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := memory.NewMemory(ac.UserID, req.DisplayName, req.Category, req.Month, req.Day)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := h.freeLimit
	if ac.IsPremium {
		limit = 0
	}
	created, err := h.memoryStore.CreateWithinLimit(r.Context(), m, limit)
	if errors.Is(err, store.ErrLimitReached) {
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error": "free trial limit reached",
			"limit": h.freeLimit,
		})
		return
	}
	if err != nil {
		h.logger.Error("create memory", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create memory")
		return
	}

	h.publish(ac.UserID, websocket.NewMessage("memory", "created", created.ID, nil))

	writeJSON(w, http.StatusCreated, created)
}

// Delete handles DELETE /api/memories/{id}
func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	deleted, err := h.memoryStore.Delete(r.Context(), userID, id)
	if err != nil {
		h.logger.Error("delete memory", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete memory")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}

	h.publish(userID, websocket.NewMessage("memory", "deleted", id, nil))

	w.WriteHeader(http.StatusNoContent)
}

// Suggester produces a greeting idea for a memory.
type Suggester interface {
	Enabled() bool
	Suggest(ctx context.Context, m model.Memory, daysUntil int) (string, error)
}

type SuggestionHandler struct {
	memoryStore *store.MemoryStore
	sched       *memory.Scheduler
	suggester   Suggester
	logger      *slog.Logger
}

func NewSuggestionHandler(ms *store.MemoryStore, sched *memory.Scheduler, s Suggester, logger *slog.Logger) *SuggestionHandler {
	return &SuggestionHandler{memoryStore: ms, sched: sched, suggester: s, logger: logger}
}

// Suggest handles POST /api/memories/{id}/suggestion
func (h *SuggestionHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	if h.suggester == nil || !h.suggester.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "suggestions are not available")
		return
	}

	m, err := h.memoryStore.GetByID(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.logger.Error("get memory", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get memory")
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}

	days := memory.DaysUntilNext(*m, h.sched.Now())
	text, err := h.suggester.Suggest(r.Context(), *m, days)
	if err != nil {
		h.logger.Error("suggest", "memory_id", m.ID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to get a suggestion")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"memory_id":  m.ID,
		"days_until": days,
		"suggestion": text,
	})
}
