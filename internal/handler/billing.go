// Package handler contains the JSON HTTP handlers of the reelscout API.
//
// This file implements billing/subscription management handlers backed by Stripe.
//
// Routes handled:
//   - POST /api/billing/checkout   -> CreateCheckout
//   - POST /api/billing/portal     -> OpenPortal
//   - POST /api/billing/cancel     -> CancelSubscription
//   - POST /api/billing/reactivate -> ReactivateSubscription
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/reelscout/internal/auth"
	"github.com/DukeRupert/reelscout/internal/billing"
	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/service"
)

// CheckoutRequest is the body of POST /api/billing/checkout.
type CheckoutRequest struct {
	PriceID string `json:"priceId"`
}

// RedirectResponse carries a Stripe-hosted page the client should open.
type RedirectResponse struct {
	URL string `json:"url"`
}

// BillingHandler handles billing and subscription management HTTP requests.
type BillingHandler struct {
	billing       billing.Service
	users         service.UserService
	subscriptions service.SubscriptionService
	appURL        string
	logger        *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
// billingService may be nil when Stripe is not configured (development mode).
func NewBillingHandler(billingService billing.Service, users service.UserService, subscriptions service.SubscriptionService, appURL string, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing:       billingService,
		users:         users,
		subscriptions: subscriptions,
		appURL:        strings.TrimRight(appURL, "/"),
		logger:        logger,
	}
}

// RegisterRoutes registers billing routes on the provided mux.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/billing/checkout", requireUser(http.HandlerFunc(h.CreateCheckout)))
	mux.Handle("POST /api/billing/portal", requireUser(http.HandlerFunc(h.OpenPortal)))
	mux.Handle("POST /api/billing/cancel", requireUser(http.HandlerFunc(h.CancelSubscription)))
	mux.Handle("POST /api/billing/reactivate", requireUser(http.HandlerFunc(h.ReactivateSubscription)))
}

func notConfigured(op string) error {
	return domain.Errorf(domain.ENOTIMPL, op, "Billing is not configured.")
}

// CreateCheckout creates a Stripe Checkout session for one of the paid plans.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	const op = "handler.billing.checkout"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, notConfigured(op))
		return
	}

	var req CheckoutRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.PriceID == "" || !h.subscriptions.Tiers().KnowsPrice(req.PriceID) {
		ValidationErrorResponse(w, r, h.logger, domain.NewValidationError(op, "priceId", "Choose one of the available plans."))
		return
	}

	// Ensure user has a Stripe customer
	customerID := user.StripeCustomerID
	if customerID == "" {
		var err error
		customerID, err = h.billing.FindOrCreateCustomer(r.Context(), user.Email, user.Name)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Unavailable(err, op, "Failed to initialize billing."))
			return
		}
		if err := h.users.UpdateStripeCustomer(r.Context(), user.ID, customerID); err != nil {
			h.logger.Error("failed to save stripe customer ID", "error", err, "user_id", user.ID)
		}
	}

	successURL := h.appURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"
	cancelURL := h.appURL + "/billing"

	checkoutURL, err := h.billing.CreateCheckoutSession(r.Context(), customerID, req.PriceID, successURL, cancelURL)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Unavailable(err, op, "Failed to create checkout session."))
		return
	}

	h.logger.Info("checkout session created", "user_id", user.ID, "price_id", req.PriceID)
	writeJSON(w, http.StatusOK, RedirectResponse{URL: checkoutURL})
}

// OpenPortal creates a Stripe Customer Portal session.
func (h *BillingHandler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	const op = "handler.billing.portal"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, notConfigured(op))
		return
	}
	if user.StripeCustomerID == "" {
		ErrorResponse(w, r, h.logger, domain.NotFound(op, "billing account", user.ID.String()))
		return
	}

	portalURL, err := h.billing.CreatePortalSession(r.Context(), user.StripeCustomerID, h.appURL+"/billing")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Unavailable(err, op, "Failed to open billing portal."))
		return
	}
	writeJSON(w, http.StatusOK, RedirectResponse{URL: portalURL})
}

// CancelSubscription sets the subscription to cancel at period end.
func (h *BillingHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	h.updateSubscription(w, r, "handler.billing.cancel", h.billingCancel)
}

// ReactivateSubscription removes the cancel-at-period-end flag.
func (h *BillingHandler) ReactivateSubscription(w http.ResponseWriter, r *http.Request) {
	h.updateSubscription(w, r, "handler.billing.reactivate", h.billingReactivate)
}

func (h *BillingHandler) billingCancel(ctx context.Context, id string) error {
	return h.billing.CancelSubscription(ctx, id)
}

func (h *BillingHandler) billingReactivate(ctx context.Context, id string) error {
	return h.billing.ReactivateSubscription(ctx, id)
}

// updateSubscription applies change to the user's active subscription, drops
// the cached status and returns the fresh one.
func (h *BillingHandler) updateSubscription(w http.ResponseWriter, r *http.Request, op string, change func(context.Context, string) error) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, notConfigured(op))
		return
	}
	if user.StripeCustomerID == "" {
		ErrorResponse(w, r, h.logger, domain.NotFound(op, "subscription", user.ID.String()))
		return
	}

	sub, err := h.billing.ActiveSubscription(r.Context(), user.StripeCustomerID)
	if errors.Is(err, billing.ErrNoSubscription) {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.ENOTFOUND, op, "No active subscription."))
		return
	}
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Unavailable(err, op, "Failed to load subscription."))
		return
	}

	if err := change(r.Context(), sub.ID); err != nil {
		ErrorResponse(w, r, h.logger, domain.Unavailable(err, op, "Failed to update subscription. Please try again."))
		return
	}
	h.subscriptions.Invalidate(r.Context(), user.ID)
	h.logger.Info("subscription updated", "user_id", user.ID, "subscription_id", sub.ID, "op", op)

	res := h.subscriptions.Resolve(r.Context(), user)
	writeJSON(w, http.StatusOK, SubscriptionResponse{
		Status:   res.Status,
		Tier:     NewTierResponse(res.Tier),
		Degraded: res.Degraded,
	})
}
