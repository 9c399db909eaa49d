// Package handler contains the JSON HTTP handlers of the reelscout API.
//
// This file implements the subscription and usage endpoints.
//
// Routes handled:
//   - GET  /api/subscription -> Subscription
//   - GET  /api/usage        -> Usage
//   - POST /api/clicks       -> ConsumeClick
package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/reelscout/internal/auth"
	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/service"
)

// TierResponse is the client view of a subscription tier.
type TierResponse struct {
	ID           domain.TierID  `json:"id"`
	Label        string         `json:"label"`
	Quotas       map[string]int `json:"quotas"`
	MaxFetchSize int            `json:"maxFetchSize"`
	Features     []string       `json:"features"`
}

// NewTierResponse converts a tier for the client.
func NewTierResponse(t domain.SubscriptionTier) TierResponse {
	resp := TierResponse{
		ID:           t.ID,
		Label:        t.Label,
		Quotas:       make(map[string]int, len(t.Quotas)),
		MaxFetchSize: t.MaxFetchSize,
		Features:     []string{},
	}
	for d, q := range t.Quotas {
		resp.Quotas[string(d)] = q
	}
	for _, f := range t.Features.List() {
		resp.Features = append(resp.Features, string(f))
	}
	return resp
}

// SubscriptionResponse is returned by GET /api/subscription.
type SubscriptionResponse struct {
	Status   domain.SubscriptionStatus `json:"status"`
	Tier     TierResponse              `json:"tier"`
	Degraded bool                      `json:"degraded"`
}

// UsageResponse is returned by GET /api/usage.
type UsageResponse struct {
	Tier     TierResponse `json:"tier"`
	Searches domain.Usage `json:"searches"`
	Clicks   domain.Usage `json:"clicks"`
	Degraded bool         `json:"degraded"`
}

// AccountHandler serves the user's subscription and usage.
type AccountHandler struct {
	subscriptions service.SubscriptionService
	usage         service.UsageService
	logger        *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(subscriptions service.SubscriptionService, usage service.UsageService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		subscriptions: subscriptions,
		usage:         usage,
		logger:        logger,
	}
}

// RegisterRoutes registers account routes on the provided mux.
func (h *AccountHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/subscription", requireUser(http.HandlerFunc(h.Subscription)))
	mux.Handle("GET /api/usage", requireUser(http.HandlerFunc(h.Usage)))
	mux.Handle("POST /api/clicks", requireUser(http.HandlerFunc(h.ConsumeClick)))
}

// Subscription reports the billing status and the tier it resolves to.
// A failed lookup is not an error: the Free tier is reported with degraded set.
func (h *AccountHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	res := h.subscriptions.Resolve(r.Context(), user)
	writeJSON(w, http.StatusOK, SubscriptionResponse{
		Status:   res.Status,
		Tier:     NewTierResponse(res.Tier),
		Degraded: res.Degraded,
	})
}

// Usage reports today's searches and clicks against the tier quota.
func (h *AccountHandler) Usage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	summary, err := h.usage.Summary(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, UsageResponse{
		Tier:     NewTierResponse(summary.Tier),
		Searches: summary.Searches,
		Clicks:   summary.Clicks,
		Degraded: summary.Degraded,
	})
}

// ConsumeClick records one click and returns the updated click usage.
func (h *AccountHandler) ConsumeClick(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	usage, err := h.usage.ConsumeClick(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}
