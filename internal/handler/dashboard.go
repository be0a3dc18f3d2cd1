package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/memories/internal/auth"
	"github.com/dukerupert/memories/internal/memory"
	"github.com/dukerupert/memories/internal/model"
	"github.com/dukerupert/memories/internal/store"
)

type DashboardHandler struct {
	memoryStore   *store.MemoryStore
	practiceStore *store.PracticeStore
	streakStore   *store.StreakStore
	sched         *memory.Scheduler
	freeLimit     int
	logger        *slog.Logger
}

func NewDashboardHandler(ms *store.MemoryStore, ps *store.PracticeStore, ss *store.StreakStore, sched *memory.Scheduler, freeLimit int, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		memoryStore:   ms,
		practiceStore: ps,
		streakStore:   ss,
		sched:         sched,
		freeLimit:     freeLimit,
		logger:        logger,
	}
}

// TrialStatus describes where a user stands against the free tier cap.
type TrialStatus struct {
	Status    string `json:"status"`
	Limit     int    `json:"limit,omitempty"`
	Remaining int    `json:"remaining"`
}

func trialStatus(premium bool, count, limit int) TrialStatus {
	if premium {
		return TrialStatus{Status: "premium"}
	}
	remaining := max(limit-count, 0)
	if remaining == 0 {
		return TrialStatus{Status: "limit_reached", Limit: limit}
	}
	return TrialStatus{Status: "trial", Limit: limit, Remaining: remaining}
}

type dashboardResponse struct {
	TotalMemories int               `json:"total_memories"`
	CurrentStreak int               `json:"current_streak"`
	BestStreak    int               `json:"best_streak"`
	Upcoming      []memory.Upcoming `json:"upcoming"`
	Trial         TrialStatus       `json:"trial"`
	Challenge     store.Stats       `json:"challenge_stats"`
	Practice      store.Stats       `json:"practice_stats"`
}

// Get handles GET /api/dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac, _ := auth.FromContext(ctx)

	memories, err := h.memoryStore.ListByOwner(ctx, ac.UserID)
	if err != nil {
		h.logger.Error("dashboard memories", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}
	streak, err := h.streakStore.Get(ctx, ac.UserID)
	if err != nil {
		h.logger.Error("dashboard streak", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}
	challengeStats, err := h.practiceStore.StatsByType(ctx, ac.UserID, model.SessionDailyChallenge)
	if err != nil {
		h.logger.Error("dashboard stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}
	practiceStats, err := h.practiceStore.StatsByType(ctx, ac.UserID, model.SessionFlashcardPractice)
	if err != nil {
		h.logger.Error("dashboard stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		TotalMemories: len(memories),
		CurrentStreak: streak.CurrentStreak,
		BestStreak:    streak.AllTimeHigh,
		Upcoming:      h.sched.Upcoming(memories, h.sched.Now(), 0),
		Trial:         trialStatus(ac.IsPremium, len(memories), h.freeLimit),
		Challenge:     challengeStats,
		Practice:      practiceStats,
	})
}
