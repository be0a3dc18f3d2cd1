package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/memories/internal/auth"
	"github.com/dukerupert/memories/internal/memory"
	"github.com/dukerupert/memories/internal/model"
	"github.com/dukerupert/memories/internal/store"
	"github.com/dukerupert/memories/internal/websocket"
)

// Selection states returned when there is nothing to ask.
const (
	StateReady        = "ready"
	StateNoMemories   = "no_memories"
	StateAllPracticed = "all_practiced_today"
)

type ChallengeHandler struct {
	memoryStore   *store.MemoryStore
	practiceStore *store.PracticeStore
	streakStore   *store.StreakStore
	sched         *memory.Scheduler
	hub           Publisher
	logger        *slog.Logger
}

func NewChallengeHandler(ms *store.MemoryStore, ps *store.PracticeStore, ss *store.StreakStore, sched *memory.Scheduler, hub Publisher, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{
		memoryStore:   ms,
		practiceStore: ps,
		streakStore:   ss,
		sched:         sched,
		hub:           hub,
		logger:        logger,
	}
}

// challengePrompt is the question side of a memory; the date stays hidden.
type challengePrompt struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Category    model.Category `json:"category"`
}

type challengeResponse struct {
	State  string            `json:"state"`
	Memory *challengePrompt  `json:"memory,omitempty"`
	Streak model.StreakState `json:"streak"`
}

// Get handles GET /api/challenge
func (h *ChallengeHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)

	streak, err := h.streakStore.Get(ctx, userID)
	if err != nil {
		h.logger.Error("challenge streak", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load challenge")
		return
	}

	all, err := h.memoryStore.ListByOwner(ctx, userID)
	if err != nil {
		h.logger.Error("challenge memories", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load challenge")
		return
	}
	if len(all) == 0 {
		writeJSON(w, http.StatusOK, challengeResponse{State: StateNoMemories, Streak: streak})
		return
	}

	today, err := h.practiceStore.ListForDay(ctx, userID, h.sched.Today())
	if err != nil {
		h.logger.Error("challenge records", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load challenge")
		return
	}

	m, ok := h.sched.DailyChallenge(all, today)
	if !ok {
		writeJSON(w, http.StatusOK, challengeResponse{State: StateAllPracticed, Streak: streak})
		return
	}

	writeJSON(w, http.StatusOK, challengeResponse{
		State:  StateReady,
		Memory: &challengePrompt{ID: m.ID, DisplayName: m.DisplayName, Category: m.Category},
		Streak: streak,
	})
}

type answerRequest struct {
	MemoryID string `json:"memory_id"`
	Answer   string `json:"answer"`
}

type answerResponse struct {
	Correct       bool              `json:"correct"`
	CorrectAnswer string            `json:"correct_answer"`
	Streak        model.StreakState `json:"streak"`
}

// Answer handles POST /api/challenge/answer
func (h *ChallengeHandler) Answer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)

	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MemoryID == "" {
		writeError(w, http.StatusBadRequest, "memory_id is required")
		return
	}

	m, err := h.memoryStore.GetByID(ctx, userID, req.MemoryID)
	if err != nil {
		h.logger.Error("answer memory", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record answer")
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}

	correct, err := memory.CheckAnswer(*m, req.Answer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec := model.PracticeRecord{
		OwnerID:    userID,
		MemoryID:   m.ID,
		Correct:    correct,
		OccurredAt: h.sched.Now(),
	}
	streak, _, err := h.streakStore.RecordChallenge(ctx, rec, h.sched.Today(), func(st model.StreakState) model.StreakState {
		return h.sched.RecordChallenge(st, correct)
	})
	switch {
	case errors.Is(err, store.ErrAlreadyAnswered):
		writeError(w, http.StatusConflict, "this memory was already answered today")
		return
	case errors.Is(err, store.ErrStreakConflict):
		writeError(w, http.StatusConflict, "streak changed while answering, please retry")
		return
	case err != nil:
		h.logger.Error("record challenge", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record answer")
		return
	}

	if h.hub != nil {
		h.hub.Publish(userID, websocket.NewMessage("streak", "updated", m.ID, map[string]any{
			"current_streak": streak.CurrentStreak,
			"all_time_high":  streak.AllTimeHigh,
		}))
	}

	writeJSON(w, http.StatusOK, answerResponse{
		Correct:       correct,
		CorrectAnswer: memory.FormatAnswer(*m),
		Streak:        streak,
	})
}
