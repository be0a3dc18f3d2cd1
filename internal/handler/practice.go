package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/memories/internal/auth"
	"github.com/dukerupert/memories/internal/memory"
	"github.com/dukerupert/memories/internal/model"
	"github.com/dukerupert/memories/internal/store"
)

type PracticeHandler struct {
	memoryStore   *store.MemoryStore
	practiceStore *store.PracticeStore
	sched         *memory.Scheduler
	logger        *slog.Logger
}

func NewPracticeHandler(ms *store.MemoryStore, ps *store.PracticeStore, sched *memory.Scheduler, logger *slog.Logger) *PracticeHandler {
	return &PracticeHandler{memoryStore: ms, practiceStore: ps, sched: sched, logger: logger}
}

type deckResponse struct {
	State string         `json:"state"`
	Cards []model.Memory `json:"cards"`
}

// Deck handles GET /api/practice
func (h *PracticeHandler) Deck(w http.ResponseWriter, r *http.Request) {
	all, err := h.memoryStore.ListByOwner(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("practice memories", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build deck")
		return
	}
	if len(all) == 0 {
		writeJSON(w, http.StatusOK, deckResponse{State: StateNoMemories, Cards: []model.Memory{}})
		return
	}
	writeJSON(w, http.StatusOK, deckResponse{State: StateReady, Cards: h.sched.PracticeDeck(all)})
}

type resultRequest struct {
	MemoryID string `json:"memory_id"`
	Correct  bool   `json:"correct"`
}

// RecordResult handles POST /api/practice/results. Flashcards are self-graded.
func (h *PracticeHandler) RecordResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)

	var req resultRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MemoryID == "" {
		writeError(w, http.StatusBadRequest, "memory_id is required")
		return
	}

	m, err := h.memoryStore.GetByID(ctx, userID, req.MemoryID)
	if err != nil {
		h.logger.Error("practice memory", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record result")
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}

	rec, err := h.practiceStore.Insert(ctx, model.PracticeRecord{
		OwnerID:     userID,
		MemoryID:    m.ID,
		Correct:     req.Correct,
		SessionType: model.SessionFlashcardPractice,
		OccurredAt:  h.sched.Now(),
	})
	if err != nil {
		h.logger.Error("insert practice record", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record result")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

type scoreRequest struct {
	Outcomes []bool `json:"outcomes"`
}

// Score handles POST /api/practice/score
func (h *PracticeHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, memory.ScoreOutcomes(req.Outcomes))
}
