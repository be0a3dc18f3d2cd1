package push

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/memories/internal/memory"
	"github.com/dukerupert/memories/internal/model"
)

type sentPush struct {
	endpoint string
	payload  Payload
}

type fakeSender struct {
	sent    []sentPush
	expired map[string]bool
}

func (f *fakeSender) Send(_ context.Context, sub *model.PushSubscription, payload Payload) error {
	if f.expired[sub.Endpoint] {
		return ErrExpired
	}
	f.sent = append(f.sent, sentPush{endpoint: sub.Endpoint, payload: payload})
	return nil
}

type fakeSubStore struct {
	subs    map[int64][]model.PushSubscription
	sent    map[string]bool
	deleted []string
}

func (f *fakeSubStore) ListUserIDs() ([]int64, error) {
	var ids []int64
	for id := range f.subs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeSubStore) ListByUser(userID int64) ([]model.PushSubscription, error) {
	return f.subs[userID], nil
}

func (f *fakeSubStore) DeleteByEndpoint(endpoint string) error {
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func key(userID int64, notifType, refID string) string {
	return notifType + "/" + refID + "/" + string(rune('0'+userID))
}

func (f *fakeSubStore) WasSent(userID int64, notifType, refID string) (bool, error) {
	return f.sent[key(userID, notifType, refID)], nil
}

func (f *fakeSubStore) RecordSent(userID int64, notifType, refID string) error {
	f.sent[key(userID, notifType, refID)] = true
	return nil
}

type fakeLister map[int64][]model.Memory

func (f fakeLister) ListByOwner(_ context.Context, ownerID int64) ([]model.Memory, error) {
	return f[ownerID], nil
}

func newTestScheduler(now time.Time, sender Sender, subs SubscriptionStore, memories MemoryLister) *Scheduler {
	sched := memory.NewScheduler(memory.WithClock(memory.FixedClock(now)))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScheduler(sender, subs, memories, sched, logger, 7, 9)
}

func TestSchedulerSendsOncePerDay(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)
	sender := &fakeSender{}
	subs := &fakeSubStore{
		subs: map[int64][]model.PushSubscription{
			1: {{UserID: 1, Endpoint: "https://push.test/a"}},
		},
		sent: map[string]bool{},
	}
	memories := fakeLister{1: {
		{ID: "a", OwnerID: 1, DisplayName: "Mom's birthday", Month: 6, Day: 12},
		{ID: "b", OwnerID: 1, DisplayName: "Christmas", Month: 12, Day: 25},
	}}

	s := newTestScheduler(now, sender, subs, memories)
	s.Tick(context.Background())
	s.Tick(context.Background())

	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sender.sent))
	}
	if got := sender.sent[0].payload.Body; got != "Mom's birthday is in 2 days" {
		t.Errorf("body = %q", got)
	}
}

func TestSchedulerWaitsForHour(t *testing.T) {
	now := time.Date(2025, 6, 10, 8, 59, 0, 0, time.UTC)
	sender := &fakeSender{}
	subs := &fakeSubStore{
		subs: map[int64][]model.PushSubscription{1: {{UserID: 1, Endpoint: "https://push.test/a"}}},
		sent: map[string]bool{},
	}
	memories := fakeLister{1: {{ID: "a", OwnerID: 1, DisplayName: "Today", Month: 6, Day: 10}}}

	newTestScheduler(now, sender, subs, memories).Tick(context.Background())

	if len(sender.sent) != 0 {
		t.Errorf("sent = %d before reminder hour, want 0", len(sender.sent))
	}
}

func TestSchedulerNothingDue(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	sender := &fakeSender{}
	subs := &fakeSubStore{
		subs: map[int64][]model.PushSubscription{1: {{UserID: 1, Endpoint: "https://push.test/a"}}},
		sent: map[string]bool{},
	}
	memories := fakeLister{1: {{ID: "a", OwnerID: 1, DisplayName: "Far", Month: 9, Day: 1}}}

	newTestScheduler(now, sender, subs, memories).Tick(context.Background())

	if len(sender.sent) != 0 {
		t.Errorf("sent = %d, want 0", len(sender.sent))
	}
	if !subs.sent[key(1, model.NotifTypeMemoryReminder, "reminder-2025-06-10")] {
		t.Error("expected the day to be marked as handled")
	}
}

func TestSchedulerRemovesExpired(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	sender := &fakeSender{expired: map[string]bool{"https://push.test/gone": true}}
	subs := &fakeSubStore{
		subs: map[int64][]model.PushSubscription{1: {
			{UserID: 1, Endpoint: "https://push.test/gone"},
			{UserID: 1, Endpoint: "https://push.test/ok"},
		}},
		sent: map[string]bool{},
	}
	memories := fakeLister{1: {{ID: "a", OwnerID: 1, DisplayName: "Today", Month: 6, Day: 10}}}

	newTestScheduler(now, sender, subs, memories).Tick(context.Background())

	if len(subs.deleted) != 1 || subs.deleted[0] != "https://push.test/gone" {
		t.Errorf("deleted = %v, want the expired endpoint", subs.deleted)
	}
	if len(sender.sent) != 1 || sender.sent[0].endpoint != "https://push.test/ok" {
		t.Errorf("sent = %v, want only the live endpoint", sender.sent)
	}
}

func TestReminderPayload(t *testing.T) {
	mk := func(name string, days int) memory.Upcoming {
		return memory.Upcoming{Memory: model.Memory{DisplayName: name}, DaysUntil: days}
	}

	tests := []struct {
		name string
		due  []memory.Upcoming
		want string
	}{
		{"today", []memory.Upcoming{mk("Mom", 0)}, "Mom is today"},
		{"tomorrow", []memory.Upcoming{mk("Dad", 1)}, "Dad is tomorrow"},
		{"several", []memory.Upcoming{mk("A", 0), mk("B", 2)}, "2 memories coming up: A, B"},
		{"overflow", []memory.Upcoming{mk("A", 0), mk("B", 1), mk("C", 2), mk("D", 3), mk("E", 4)}, "5 memories coming up: A, B, C and 2 more"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReminderPayload(tt.due).Body; got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}
}
