package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/dukerupert/memories/internal/memory"
	"github.com/dukerupert/memories/internal/store"
)

const feedItems = 20

type FeedHandler struct {
	userStore   *store.UserStore
	memoryStore *store.MemoryStore
	sched       *memory.Scheduler
	baseURL     string
	logger      *slog.Logger
}

func NewFeedHandler(us *store.UserStore, ms *store.MemoryStore, sched *memory.Scheduler, baseURL string, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		userStore:   us,
		memoryStore: ms,
		sched:       sched,
		baseURL:     strings.TrimRight(baseURL, "/"),
		logger:      logger,
	}
}

// Atom handles GET /feeds/{token}, an Atom feed of the owner's next
// occurrences. The token is the only credential.
func (h *FeedHandler) Atom(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		http.NotFound(w, r)
		return
	}

	user, err := h.userStore.GetByFeedToken(token)
	if err != nil {
		h.logger.Error("feed user lookup", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.NotFound(w, r)
		return
	}

	all, err := h.memoryStore.ListByOwner(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("feed memories", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	now := h.sched.Now()
	upcoming := h.sched.Upcoming(all, now, feedItems)
	atom, err := buildFeed(h.baseURL, user.DisplayName, upcoming, now).ToAtom()
	if err != nil {
		h.logger.Error("render feed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	w.Write([]byte(atom))
}

func buildFeed(baseURL, owner string, upcoming []memory.Upcoming, now time.Time) *feeds.Feed {
	title := "Upcoming memories"
	if owner != "" {
		title = owner + "'s upcoming memories"
	}
	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: baseURL + "/"},
		Description: "The next dates worth remembering.",
		Id:          baseURL + "/feeds",
		Created:     now,
		Updated:     now,
	}
	for _, u := range upcoming {
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       fmt.Sprintf("%s (%s)", u.Memory.DisplayName, u.Memory.Category),
			Link:        &feeds.Link{Href: baseURL + "/calendar?month=" + fmt.Sprint(u.Memory.Month)},
			Description: fmt.Sprintf("%s, %s", u.Date.Format("Monday, January 2"), daysPhrase(u.DaysUntil)),
			Id:          fmt.Sprintf("%s/memories/%s/%s", baseURL, u.Memory.ID, u.Date.Format("2006-01-02")),
			Created:     u.Date,
		})
	}
	return feed
}

func daysPhrase(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	}
	return fmt.Sprintf("in %d days", days)
}
