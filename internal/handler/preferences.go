// Package handler contains the JSON HTTP handlers of the reelscout API.
//
// This file implements small per-user UI preferences such as the recent
// searches list and whether it is collapsed.
//
// Routes handled:
//   - GET /api/preferences/{name} -> Get
//   - PUT /api/preferences/{name} -> Put
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/reelscout/internal/auth"
	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/service"
)

// PreferencesHandler stores opaque JSON values per user.
type PreferencesHandler struct {
	preferences service.PreferencesService
	logger      *slog.Logger
}

// NewPreferencesHandler creates a new PreferencesHandler.
func NewPreferencesHandler(preferences service.PreferencesService, logger *slog.Logger) *PreferencesHandler {
	return &PreferencesHandler{
		preferences: preferences,
		logger:      logger,
	}
}

// RegisterRoutes registers preference routes on the provided mux.
func (h *PreferencesHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/preferences/{name}", requireUser(http.HandlerFunc(h.Get)))
	mux.Handle("PUT /api/preferences/{name}", requireUser(http.HandlerFunc(h.Put)))
}

// Get returns the stored value as-is.
func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	value, err := h.preferences.Get(r.Context(), user.ID, r.PathValue("name"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(value)
}

// Put replaces the stored value with the request body, which must be JSON.
func (h *PreferencesHandler) Put(w http.ResponseWriter, r *http.Request) {
	const op = "handler.preferences.put"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, op, "Request body is too large."))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Could not read request body."))
		return
	}
	if !json.Valid(body) {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Preference values must be JSON."))
		return
	}

	if err := h.preferences.Put(r.Context(), user.ID, r.PathValue("name"), body); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
