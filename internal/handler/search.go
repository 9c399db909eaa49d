// Package handler contains the JSON HTTP handlers of the reelscout API.
//
// This file implements the search endpoint and the search lockout status.
//
// Routes handled:
//   - POST /api/search                  -> Search
//   - GET  /api/ratelimit/search        -> LockStatus
//   - GET  /api/ratelimit/search/stream -> LockStream (server-sent events)
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/reelscout/internal/auth"
	"github.com/DukeRupert/reelscout/internal/ratelimit"
	"github.com/DukeRupert/reelscout/internal/service"
)

// SearchResponse is returned by POST /api/search.
type SearchResponse struct {
	*service.SearchResult
	Tier TierResponse `json:"tier"`
}

// SearchHandler runs searches and reports the search lockout.
type SearchHandler struct {
	search  service.SearchService
	limiter *ratelimit.Limiter
	tick    time.Duration
	logger  *slog.Logger
}

// NewSearchHandler creates a new SearchHandler. tick is the countdown
// interval of the lockout stream; non-positive uses ratelimit.DefaultTick.
func NewSearchHandler(search service.SearchService, limiter *ratelimit.Limiter, tick time.Duration, logger *slog.Logger) *SearchHandler {
	if tick <= 0 {
		tick = ratelimit.DefaultTick
	}
	return &SearchHandler{
		search:  search,
		limiter: limiter,
		tick:    tick,
		logger:  logger,
	}
}

// RegisterRoutes registers search routes on the provided mux.
func (h *SearchHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/search", requireUser(http.HandlerFunc(h.Search)))
	mux.Handle("GET /api/ratelimit/search", requireUser(http.HandlerFunc(h.LockStatus)))
	mux.Handle("GET /api/ratelimit/search/stream", requireUser(http.HandlerFunc(h.LockStream)))
}

// Search fetches an account's posts and returns the first page of results.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	const op = "handler.search"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req service.SearchRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	res, err := h.search.Search(r.Context(), user, req)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{SearchResult: res, Tier: NewTierResponse(res.Tier)})
}

// LockStatus reports the user's search lockout.
func (h *SearchHandler) LockStatus(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	status, err := h.search.LockStatus(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// LockStream sends a "status" event every tick until the lockout is over.
// The stream ends after the first unlocked status or when the client leaves.
func (h *SearchHandler) LockStream(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		InternalErrorResponse(w, r, h.logger, fmt.Errorf("streaming unsupported: %w", err))
		return
	}

	countdown := ratelimit.NewCountdown(h.limiter, h.search.LockKey(user.ID), h.tick)
	defer countdown.Stop()

	for status := range countdown.Start(r.Context()) {
		data, err := json.Marshal(status)
		if err != nil {
			h.logger.Error("failed to encode lock status", "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", data); err != nil {
			return
		}
		_ = rc.Flush()
	}
}
