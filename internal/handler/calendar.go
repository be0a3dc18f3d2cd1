package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/memories/internal/auth"
	"github.com/dukerupert/memories/internal/memory"
	"github.com/dukerupert/memories/internal/model"
	"github.com/dukerupert/memories/internal/store"
)

type CalendarHandler struct {
	memoryStore *store.MemoryStore
	sched       *memory.Scheduler
	logger      *slog.Logger
}

func NewCalendarHandler(ms *store.MemoryStore, sched *memory.Scheduler, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{memoryStore: ms, sched: sched, logger: logger}
}

type calendarDay struct {
	Day      int            `json:"day"`
	Memories []model.Memory `json:"memories"`
}

type calendarResponse struct {
	Month int           `json:"month"`
	Days  []calendarDay `json:"days"`
}

// Month handles GET /api/calendar?month=M. Without month, the current month
// is used.
func (h *CalendarHandler) Month(w http.ResponseWriter, r *http.Request) {
	month := int(h.sched.Today().Month())
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			writeError(w, http.StatusBadRequest, "month must be 1-12")
			return
		}
		month = m
	}

	memories, err := h.memoryStore.ListByMonth(r.Context(), auth.UserID(r.Context()), month)
	if err != nil {
		h.logger.Error("calendar memories", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load calendar")
		return
	}

	writeJSON(w, http.StatusOK, calendarResponse{Month: month, Days: groupByDay(memories)})
}

// groupByDay expects memories sorted by day.
func groupByDay(memories []model.Memory) []calendarDay {
	days := []calendarDay{}
	for _, m := range memories {
		if n := len(days); n > 0 && days[n-1].Day == m.Day {
			days[n-1].Memories = append(days[n-1].Memories, m)
			continue
		}
		days = append(days, calendarDay{Day: m.Day, Memories: []model.Memory{m}})
	}
	return days
}
