// Package handler contains the JSON HTTP handlers of the reelscout API.
//
// This file implements the search history endpoints.
//
// Routes handled:
//   - GET    /api/history              -> List
//   - DELETE /api/history              -> DeleteAll
//   - DELETE /api/history/{id}         -> Delete
//   - GET    /api/history/{id}/results -> Results
//   - POST   /api/history/{id}/export  -> Export
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/reelscout/internal/auth"
	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/service"
)

// maxHistoryLimit caps the ?limit= parameter of the history list.
const maxHistoryLimit = 100

// HistoryListResponse is returned by GET /api/history.
type HistoryListResponse struct {
	Searches []domain.SearchHistory `json:"searches"`
}

// ResultsResponse is returned by GET /api/history/{id}/results.
type ResultsResponse struct {
	History *domain.SearchHistory `json:"history"`
	View    service.ResultsView   `json:"view"`
}

// HistoryHandler serves saved searches and their results.
type HistoryHandler struct {
	history  service.HistoryService
	exports  service.ExportService
	location *time.Location
	logger   *slog.Logger
}

// NewHistoryHandler creates a new HistoryHandler. loc interprets dates typed
// into the results filter.
func NewHistoryHandler(history service.HistoryService, exports service.ExportService, loc *time.Location, logger *slog.Logger) *HistoryHandler {
	if loc == nil {
		loc = time.Local
	}
	return &HistoryHandler{
		history:  history,
		exports:  exports,
		location: loc,
		logger:   logger,
	}
}

// RegisterRoutes registers history routes on the provided mux.
func (h *HistoryHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/history", requireUser(http.HandlerFunc(h.List)))
	mux.Handle("DELETE /api/history", requireUser(http.HandlerFunc(h.DeleteAll)))
	mux.Handle("DELETE /api/history/{id}", requireUser(http.HandlerFunc(h.Delete)))
	mux.Handle("GET /api/history/{id}/results", requireUser(http.HandlerFunc(h.Results)))
	mux.Handle("POST /api/history/{id}/export", requireUser(http.HandlerFunc(h.Export)))
}

// List returns the user's recent searches, newest first.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	limit := min(queryInt(r.URL.Query(), "limit", domain.DefaultHistoryLimit), maxHistoryLimit)
	searches, err := h.history.List(r.Context(), user.ID, limit)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryListResponse{Searches: searches})
}

// Delete removes one saved search.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handler.history.delete"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := pathID(r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.history.Delete(r.Context(), user.ID, id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAll clears the user's search history.
func (h *HistoryHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	n, err := h.history.DeleteAll(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// Results returns one filtered, sorted page of a saved search.
func (h *HistoryHandler) Results(w http.ResponseWriter, r *http.Request) {
	const op = "handler.history.results"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := pathID(r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	hist, results, err := h.history.Results(r.Context(), user.ID, id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	view := service.BuildView(results.Posts, resultsQueryFromURL(r.URL.Query()), h.location)
	writeJSON(w, http.StatusOK, ResultsResponse{History: hist, View: view})
}

// Export writes every matching post of a saved search to CSV and returns a
// download link. The body carries the filters and sort the client shows.
func (h *HistoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	const op = "handler.history.export"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := pathID(r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var q service.ResultsQuery
	if err := decodeJSON(w, r, op, &q); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	res, err := h.exports.Export(r.Context(), user, id, q)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
