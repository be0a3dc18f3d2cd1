package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/dukerupert/memories/internal/billing"
)

type fakeBilling struct {
	configured bool
	url        string
	session    *billing.Session
	verifyErr  error
	event      *billing.Event
	eventErr   error

	checkoutUser     int64
	checkoutCustomer string
}

func (f *fakeBilling) Configured() bool { return f.configured }

func (f *fakeBilling) CreateCheckoutSession(_ context.Context, userID int64, _, customerID string) (string, error) {
	f.checkoutUser = userID
	f.checkoutCustomer = customerID
	return f.url, nil
}

func (f *fakeBilling) VerifySession(_ context.Context, _ string, _ int64) (*billing.Session, error) {
	return f.session, f.verifyErr
}

func (f *fakeBilling) ParseWebhook(_ []byte, _ string) (*billing.Event, error) {
	return f.event, f.eventErr
}

func TestBillingNotConfigured(t *testing.T) {
	e := newTestEnv(t)
	h := NewBillingHandler(&fakeBilling{}, e.users, e.logger)
	u := e.createUser(t, "alice@example.com")

	expectStatus(t, serve(h.Checkout, newRequest(http.MethodPost, "/", "", u)), http.StatusServiceUnavailable)
	expectStatus(t, serve(h.Verify, newRequest(http.MethodPost, "/", `{"session_id":"cs_1"}`, u)), http.StatusServiceUnavailable)

	nilHandler := NewBillingHandler(nil, e.users, e.logger)
	expectStatus(t, serve(nilHandler.Webhook, newRequest(http.MethodPost, "/", `{}`, nil)), http.StatusServiceUnavailable)
}

func TestBillingCheckout(t *testing.T) {
	e := newTestEnv(t)
	fb := &fakeBilling{configured: true, url: "https://checkout.stripe.test/c/abc"}
	h := NewBillingHandler(fb, e.users, e.logger)
	u := e.createUser(t, "alice@example.com")
	if err := e.users.SetStripeCustomerID(u.ID, "cus_existing"); err != nil {
		t.Fatalf("set customer: %v", err)
	}

	rec := serve(h.Checkout, newRequest(http.MethodPost, "/api/billing/checkout", "", u))
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[map[string]string](t, rec); got["url"] != fb.url {
		t.Errorf("url = %q", got["url"])
	}
	if fb.checkoutUser != u.ID || fb.checkoutCustomer != "cus_existing" {
		t.Errorf("checkout called with user=%d customer=%q", fb.checkoutUser, fb.checkoutCustomer)
	}

	u.IsPremium = true
	expectStatus(t, serve(h.Checkout, newRequest(http.MethodPost, "/", "", u)), http.StatusConflict)
}

func TestBillingVerify(t *testing.T) {
	e := newTestEnv(t)
	u := e.createUser(t, "alice@example.com")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad format", billing.ErrInvalidSession, http.StatusBadRequest},
		{"incomplete", billing.ErrSessionIncomplete, http.StatusPaymentRequired},
		{"wrong owner", billing.ErrSessionOwner, http.StatusForbidden},
		{"stripe down", errors.New("network"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBillingHandler(&fakeBilling{configured: true, verifyErr: tt.err}, e.users, e.logger)
			expectStatus(t, serve(h.Verify, newRequest(http.MethodPost, "/", `{"session_id":"cs_test"}`, u)), tt.want)
		})
	}

	h := NewBillingHandler(&fakeBilling{configured: true}, e.users, e.logger)
	expectStatus(t, serve(h.Verify, newRequest(http.MethodPost, "/", `{}`, u)), http.StatusBadRequest)

	fb := &fakeBilling{configured: true, session: &billing.Session{ID: "cs_test", Status: "complete", UserID: u.ID, CustomerID: "cus_1"}}
	h = NewBillingHandler(fb, e.users, e.logger)
	expectStatus(t, serve(h.Verify, newRequest(http.MethodPost, "/", `{"session_id":"cs_test"}`, u)), http.StatusOK)

	got, err := e.users.GetByID(u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !got.IsPremium || got.StripeCustomerID != "cus_1" {
		t.Errorf("user after verify = %+v", got)
	}
}

func TestBillingWebhook(t *testing.T) {
	e := newTestEnv(t)
	u := e.createUser(t, "alice@example.com")

	completed := &fakeBilling{event: &billing.Event{
		ID:         "evt_1",
		Type:       billing.EventCheckoutCompleted,
		Session:    &billing.Session{ID: "cs_1", Status: "complete", UserID: u.ID, CustomerID: "cus_9"},
		CustomerID: "cus_9",
	}}
	h := NewBillingHandler(completed, e.users, e.logger)
	expectStatus(t, serve(h.Webhook, newRequest(http.MethodPost, "/stripe/webhook", `{}`, nil)), http.StatusOK)

	got, _ := e.users.GetByID(u.ID)
	if !got.IsPremium || got.StripeCustomerID != "cus_9" {
		t.Fatalf("after checkout webhook = %+v", got)
	}

	deleted := &fakeBilling{event: &billing.Event{ID: "evt_2", Type: billing.EventSubscriptionDeleted, CustomerID: "cus_9"}}
	h = NewBillingHandler(deleted, e.users, e.logger)
	expectStatus(t, serve(h.Webhook, newRequest(http.MethodPost, "/stripe/webhook", `{}`, nil)), http.StatusOK)

	got, _ = e.users.GetByID(u.ID)
	if got.IsPremium {
		t.Error("subscription deletion should clear premium")
	}

	other := &fakeBilling{event: &billing.Event{ID: "evt_3", Type: "invoice.paid"}}
	h = NewBillingHandler(other, e.users, e.logger)
	expectStatus(t, serve(h.Webhook, newRequest(http.MethodPost, "/stripe/webhook", `{}`, nil)), http.StatusOK)

	bad := &fakeBilling{eventErr: errors.New("bad signature")}
	h = NewBillingHandler(bad, e.users, e.logger)
	expectStatus(t, serve(h.Webhook, newRequest(http.MethodPost, "/stripe/webhook", `{}`, nil)), http.StatusBadRequest)
}
