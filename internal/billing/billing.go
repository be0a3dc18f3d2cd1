// Package billing wraps the Stripe calls used to sell the premium tier.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrNotConfigured     = errors.New("billing not configured")
	ErrInvalidSession    = errors.New("invalid checkout session id")
	ErrSessionIncomplete = errors.New("checkout session not complete")
	ErrSessionOwner      = errors.New("checkout session belongs to another user")
)

// Event types the webhook acts on.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	SuccessURL    string
	CancelURL     string
}

// Session is the part of a Stripe checkout session the app cares about.
type Session struct {
	ID            string
	Status        string
	PaymentStatus string
	UserID        int64
	CustomerID    string
	Email         string
}

// Event is a verified webhook event. Session is set for checkout events;
// CustomerID is set for every handled type.
type Event struct {
	ID         string
	Type       string
	Session    *Session
	CustomerID string
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

// Configured reports whether checkout can be used.
func (c *Client) Configured() bool {
	return c.cfg.SecretKey != "" && c.cfg.PriceID != ""
}

// CreateCheckoutSession starts a subscription checkout for userID and
// returns the hosted checkout URL. An existing Stripe customer is reused,
// otherwise Stripe creates one from email.
func (c *Client) CreateCheckoutSession(ctx context.Context, userID int64, email, customerID string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(strconv.FormatInt(userID, 10)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(c.cfg.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(c.cfg.SuccessURL),
		CancelURL:           stripe.String(c.cfg.CancelURL),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	} else {
		params.CustomerEmail = stripe.String(email)
	}
	params.Context = ctx

	sess, err := checksession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// VerifySession fetches a checkout session and checks that it is complete
// and was started by userID.
func (c *Client) VerifySession(ctx context.Context, sessionID string, userID int64) (*Session, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if !strings.HasPrefix(sessionID, "cs_") {
		return nil, ErrInvalidSession
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	cs, err := checksession.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	return checkSession(fromStripe(cs), userID)
}

func checkSession(s *Session, userID int64) (*Session, error) {
	if s.Status != string(stripe.CheckoutSessionStatusComplete) {
		return nil, ErrSessionIncomplete
	}
	if s.UserID != userID {
		return nil, ErrSessionOwner
	}
	return s, nil
}

func fromStripe(cs *stripe.CheckoutSession) *Session {
	s := &Session{
		ID:            cs.ID,
		Status:        string(cs.Status),
		PaymentStatus: string(cs.PaymentStatus),
	}
	s.UserID, _ = strconv.ParseInt(cs.ClientReferenceID, 10, 64)
	if cs.Customer != nil {
		s.CustomerID = cs.Customer.ID
	}
	if cs.CustomerDetails != nil {
		s.Email = cs.CustomerDetails.Email
	}
	return s
}

// ParseWebhook verifies the Stripe signature and decodes the events the
// app handles. Other event types come back with only ID and Type set.
func (c *Client) ParseWebhook(payload []byte, sigHeader string) (*Event, error) {
	if c.cfg.WebhookSecret == "" {
		return nil, ErrNotConfigured
	}
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("verify webhook: %w", err)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	switch out.Type {
	case EventCheckoutCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Session = fromStripe(&cs)
		out.CustomerID = out.Session.CustomerID
	case EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
	}
	return out, nil
}
