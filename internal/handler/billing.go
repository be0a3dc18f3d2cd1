package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/memories/internal/auth"
	"github.com/dukerupert/memories/internal/billing"
	"github.com/dukerupert/memories/internal/store"
)

const maxWebhookBytes = 65536

// Billing is the Stripe surface the handlers use. *billing.Client satisfies it.
type Billing interface {
	Configured() bool
	CreateCheckoutSession(ctx context.Context, userID int64, email, customerID string) (string, error)
	VerifySession(ctx context.Context, sessionID string, userID int64) (*billing.Session, error)
	ParseWebhook(payload []byte, sigHeader string) (*billing.Event, error)
}

type BillingHandler struct {
	billing   Billing
	userStore *store.UserStore
	logger    *slog.Logger
}

func NewBillingHandler(b Billing, us *store.UserStore, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{billing: b, userStore: us, logger: logger}
}

func (h *BillingHandler) unavailable(w http.ResponseWriter) bool {
	if h.billing == nil || !h.billing.Configured() {
		writeError(w, http.StatusServiceUnavailable, "billing is not configured")
		return true
	}
	return false
}

// Checkout handles POST /api/billing/checkout
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}
	ac, _ := auth.FromContext(r.Context())
	if ac.IsPremium {
		writeError(w, http.StatusConflict, "already premium")
		return
	}

	user, err := h.userStore.GetByID(ac.UserID)
	if err != nil || user == nil {
		h.logger.Error("checkout user lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start checkout")
		return
	}

	url, err := h.billing.CreateCheckoutSession(r.Context(), user.ID, user.Email, user.StripeCustomerID)
	if err != nil {
		h.logger.Error("create checkout session", "error", err)
		writeError(w, http.StatusBadGateway, "failed to start checkout")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

type verifyRequest struct {
	SessionID string `json:"session_id"`
}

// Verify handles POST /api/billing/verify, called from the checkout success page.
func (h *BillingHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}
	userID := auth.UserID(r.Context())

	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	sess, err := h.billing.VerifySession(r.Context(), sessionID, userID)
	switch {
	case errors.Is(err, billing.ErrInvalidSession):
		writeError(w, http.StatusBadRequest, "invalid session ID format")
		return
	case errors.Is(err, billing.ErrSessionIncomplete):
		writeError(w, http.StatusPaymentRequired, "payment not completed")
		return
	case errors.Is(err, billing.ErrSessionOwner):
		writeError(w, http.StatusForbidden, "session does not belong to this account")
		return
	case err != nil:
		h.logger.Error("verify checkout session", "error", err)
		writeError(w, http.StatusBadGateway, "failed to verify payment")
		return
	}

	if err := h.activate(userID, sess.CustomerID); err != nil {
		h.logger.Error("activate premium", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to activate premium")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"premium": true, "session_id": sess.ID})
}

func (h *BillingHandler) activate(userID int64, customerID string) error {
	if customerID != "" {
		if err := h.userStore.SetStripeCustomerID(userID, customerID); err != nil {
			return err
		}
	}
	return h.userStore.SetPremium(userID, true)
}

// Webhook handles POST /stripe/webhook
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		writeError(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	ev, err := h.billing.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, billing.ErrNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}
	if err != nil {
		h.logger.Warn("webhook rejected", "error", err)
		writeError(w, http.StatusBadRequest, "invalid webhook")
		return
	}

	switch ev.Type {
	case billing.EventCheckoutCompleted:
		if ev.Session == nil || ev.Session.UserID == 0 {
			h.logger.Warn("checkout completed without client reference", "event_id", ev.ID)
			break
		}
		if err := h.activate(ev.Session.UserID, ev.CustomerID); err != nil {
			h.logger.Error("webhook activate premium", "event_id", ev.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to process event")
			return
		}
		h.logger.Info("premium activated", "user_id", ev.Session.UserID)

	case billing.EventSubscriptionDeleted:
		n, err := h.userStore.SetPremiumByCustomer(ev.CustomerID, false)
		if err != nil {
			h.logger.Error("webhook cancel premium", "event_id", ev.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to process event")
			return
		}
		h.logger.Info("premium cancelled", "customer_id", ev.CustomerID, "users", n)

	default:
		h.logger.Debug("ignored webhook event", "type", ev.Type)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
