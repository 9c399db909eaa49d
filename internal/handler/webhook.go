// Package handler contains the JSON HTTP handlers of the reelscout API.
//
// This file implements the Stripe webhook handler for processing billing events.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it directly.
// Authentication is via the Stripe webhook signature verification.
package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v79"

	"github.com/DukeRupert/reelscout/internal/billing"
	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/service"
)

// maxWebhookBody bounds the webhook payload (64KB).
const maxWebhookBody = 65536

// WebhookHandler handles incoming webhook events from Stripe.
//
// Subscription state is never stored locally; it is read from Stripe and
// cached. Events only drop the cached status of the affected user so the next
// request sees the change.
type WebhookHandler struct {
	billing       billing.Service
	subscriptions service.SubscriptionService
	logger        *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, subscriptions service.SubscriptionService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:       billingService,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are PUBLIC and carry no auth middleware.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.billing.VerifyWebhookSignature(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	customerID, ok := eventCustomer(event)
	if !ok {
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		w.WriteHeader(http.StatusOK)
		return
	}
	if customerID == "" {
		h.logger.Warn("webhook event missing customer", "type", event.Type, "id", event.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.subscriptions.InvalidateCustomer(r.Context(), customerID); err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			h.logger.Info("no user for webhook customer", "customer_id", customerID, "type", event.Type)
			w.WriteHeader(http.StatusOK)
			return
		}
		// Stripe retries non-2xx deliveries.
		h.logger.Error("failed to process webhook", "error", err, "customer_id", customerID, "type", event.Type)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.logger.Info("subscription cache invalidated", "customer_id", customerID, "type", event.Type)
	w.WriteHeader(http.StatusOK)
}

// eventCustomer returns the customer an event concerns. ok is false for
// event types that cannot change a subscription.
func eventCustomer(event stripe.Event) (customerID string, ok bool) {
	var obj struct {
		Customer *stripe.Customer `json:"customer"`
	}

	switch event.Type {
	case "checkout.session.completed",
		"customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted",
		"invoice.payment_succeeded",
		"invoice.payment_failed":
	default:
		return "", false
	}

	if event.Data == nil {
		return "", true
	}
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil || obj.Customer == nil {
		return "", true
	}
	return obj.Customer.ID, true
}
