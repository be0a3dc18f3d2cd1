package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/memories/internal/memory"
	"github.com/dukerupert/memories/internal/model"
)

// Sender delivers a payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// SubscriptionStore is the slice of store.PushStore the scheduler needs.
type SubscriptionStore interface {
	ListUserIDs() ([]int64, error)
	ListByUser(userID int64) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
	WasSent(userID int64, notifType, refID string) (bool, error)
	RecordSent(userID int64, notifType, refID string) error
}

// MemoryLister loads a user's memories.
type MemoryLister interface {
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Memory, error)
}

// Scheduler sends each subscribed user one reminder a day listing the
// memories that occur within the reminder window.
type Scheduler struct {
	mu       sync.RWMutex
	sender   Sender
	push     SubscriptionStore
	memories MemoryLister
	sched    *memory.Scheduler
	logger   *slog.Logger
	days     int
	hour     int
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a reminder scheduler. Reminders go out on the first
// tick at or after hour o'clock and cover memories at most days away.
func NewScheduler(sender Sender, pushStore SubscriptionStore, memories MemoryLister, sched *memory.Scheduler, logger *slog.Logger, days, hour int) *Scheduler {
	return &Scheduler{
		sender:   sender,
		push:     pushStore,
		memories: memories,
		sched:    sched,
		logger:   logger,
		days:     days,
		hour:     hour,
		interval: 60 * time.Second,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Tick runs one reminder pass.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.sched.Now()
	if now.Hour() < s.hour {
		return
	}
	refID := "reminder-" + now.Format(time.DateOnly)

	userIDs, err := s.push.ListUserIDs()
	if err != nil {
		s.logger.Error("push scheduler: list users", "error", err)
		return
	}

	for _, uid := range userIDs {
		if ctx.Err() != nil {
			return
		}
		s.remindUser(ctx, uid, refID)
	}
}

func (s *Scheduler) remindUser(ctx context.Context, userID int64, refID string) {
	sent, err := s.push.WasSent(userID, model.NotifTypeMemoryReminder, refID)
	if err != nil {
		s.logger.Error("push scheduler: check sent", "user_id", userID, "error", err)
		return
	}
	if sent {
		return
	}

	all, err := s.memories.ListByOwner(ctx, userID)
	if err != nil {
		s.logger.Error("push scheduler: list memories", "user_id", userID, "error", err)
		return
	}

	due := Due(s.sched, all, s.days)
	if len(due) > 0 {
		payload := ReminderPayload(due)
		subs, err := s.push.ListByUser(userID)
		if err != nil {
			s.logger.Error("push scheduler: list subs", "user_id", userID, "error", err)
			return
		}
		for _, sub := range subs {
			if err := s.sender.Send(ctx, &sub, payload); err != nil {
				if errors.Is(err, ErrExpired) {
					s.push.DeleteByEndpoint(sub.Endpoint)
				} else {
					s.logger.Warn("push scheduler: send reminder", "user_id", userID, "error", err)
				}
			}
		}
	}

	if err := s.push.RecordSent(userID, model.NotifTypeMemoryReminder, refID); err != nil {
		s.logger.Error("push scheduler: record sent", "user_id", userID, "error", err)
	}
}

// Due returns the memories occurring within days of today, nearest first.
func Due(sched *memory.Scheduler, all []model.Memory, days int) []memory.Upcoming {
	upcoming := sched.Upcoming(all, sched.Today(), len(all))
	n := 0
	for n < len(upcoming) && upcoming[n].DaysUntil <= days {
		n++
	}
	return upcoming[:n]
}

// ReminderPayload summarises due memories in one notification.
func ReminderPayload(due []memory.Upcoming) Payload {
	p := Payload{
		Title: "Coming up",
		URL:   "/",
		Tag:   "memory-reminder",
	}
	if len(due) == 1 {
		p.Body = fmt.Sprintf("%s is %s", due[0].Memory.DisplayName, whenPhrase(due[0].DaysUntil))
		return p
	}

	names := make([]string, 0, 3)
	for i, u := range due {
		if i == 3 {
			break
		}
		names = append(names, u.Memory.DisplayName)
	}
	body := fmt.Sprintf("%d memories coming up: %s", len(due), strings.Join(names, ", "))
	if len(due) > 3 {
		body += fmt.Sprintf(" and %d more", len(due)-3)
	}
	p.Body = body
	return p
}

func whenPhrase(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", days)
	}
}
