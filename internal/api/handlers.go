/**
 * @description
 * This file contains the HTTP handlers for the pool-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as
 * the bridge between the web layer and the rotation engine.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ajopool/pool-service/internal/app"
	"github.com/ajopool/pool-service/internal/domain"
)

// PoolHandlers holds the application service that handlers will use.
type PoolHandlers struct {
	service *app.Service
}

// NewPoolHandlers creates a new instance of PoolHandlers.
func NewPoolHandlers(service *app.Service) *PoolHandlers {
	return &PoolHandlers{service: service}
}

func (h *PoolHandlers) poolIDFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	poolID, err := uuid.Parse(chi.URLParam(r, "poolID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid pool ID")
		return uuid.Nil, false
	}
	return poolID, true
}

// CreatePoolHandler handles requests to create a new savings pool.
func (h *PoolHandlers) CreatePoolHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	pool, err := h.service.CreatePool(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, pool)
}

// GetPoolHandler returns the full pool aggregate.
func (h *PoolHandlers) GetPoolHandler(w http.ResponseWriter, r *http.Request) {
	poolID, ok := h.poolIDFromURL(w, r)
	if !ok {
		return
	}
	pool, err := h.service.GetPool(r.Context(), poolID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pool)
}

// JoinPoolHandler adds a member to the pool's roster.
func (h *PoolHandlers) JoinPoolHandler(w http.ResponseWriter, r *http.Request) {
	poolID, ok := h.poolIDFromURL(w, r)
	if !ok {
		return
	}
	var req domain.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	member, err := h.service.JoinPool(r.Context(), poolID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, member)
}

// ReorderMembersHandler replaces the payout order with a new permutation.
func (h *PoolHandlers) ReorderMembersHandler(w http.ResponseWriter, r *http.Request) {
	poolID, ok := h.poolIDFromURL(w, r)
	if !ok {
		return
	}
	var req domain.ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	pool, err := h.service.ReorderMembers(r.Context(), poolID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pool)
}

// CancelPoolHandler stops an active pool.
func (h *PoolHandlers) CancelPoolHandler(w http.ResponseWriter, r *http.Request) {
	poolID, ok := h.poolIDFromURL(w, r)
	if !ok {
		return
	}
	if err := h.service.CancelPool(r.Context(), poolID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// GetContributionStatusHandler returns the current round's contribution picture.
func (h *PoolHandlers) GetContributionStatusHandler(w http.ResponseWriter, r *http.Request) {
	poolID, ok := h.poolIDFromURL(w, r)
	if !ok {
		return
	}
	status, err := h.service.GetContributionStatus(r.Context(), poolID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// ConfirmContributionHandler records a member's contribution attestation for
// the current round.
func (h *PoolHandlers) ConfirmContributionHandler(w http.ResponseWriter, r *http.Request) {
	poolID, ok := h.poolIDFromURL(w, r)
	if !ok {
		return
	}
	var req domain.ConfirmContributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	contribution, err := h.service.ConfirmContribution(r.Context(), poolID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, contribution)
}

// UndoContributionHandler reverts a confirmed attestation back to pending.
func (h *PoolHandlers) UndoContributionHandler(w http.ResponseWriter, r *http.Request) {
	poolID, ok := h.poolIDFromURL(w, r)
	if !ok {
		return
	}
	memberID, err := uuid.Parse(chi.URLParam(r, "memberID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}

	if err := h.service.UndoContribution(r.Context(), poolID, memberID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "pending"})
}

// EarlyPayoutStatusHandler reports whether the current round can pay out early.
func (h *PoolHandlers) EarlyPayoutStatusHandler(w http.ResponseWriter, r *http.Request) {
	poolID, ok := h.poolIDFromURL(w, r)
	if !ok {
		return
	}
	status, err := h.service.CheckEarlyPayoutStatus(r.Context(), poolID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// InitiateEarlyPayoutHandler triggers the current round's payout ahead of the
// natural schedule.
func (h *PoolHandlers) InitiateEarlyPayoutHandler(w http.ResponseWriter, r *http.Request) {
	poolID, ok := h.poolIDFromURL(w, r)
	if !ok {
		return
	}
	var req domain.InitiateEarlyPayoutRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	result, err := h.service.InitiateEarlyPayout(r.Context(), poolID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// ListPayoutsHandler returns the pool's issued payout history.
func (h *PoolHandlers) ListPayoutsHandler(w http.ResponseWriter, r *http.Request) {
	poolID, ok := h.poolIDFromURL(w, r)
	if !ok {
		return
	}
	payouts, err := h.service.ListPayouts(r.Context(), poolID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"payouts": payouts})
}

// writeServiceError maps engine errors onto HTTP statuses using the error
// taxonomy. Unclassified errors are logged and hidden behind a 500.
func (h *PoolHandlers) writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, app.ErrRateLimited) {
		h.writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	switch app.Kind(err) {
	case app.ErrValidation:
		h.writeError(w, http.StatusBadRequest, err.Error())
	case app.ErrNotFound:
		h.writeError(w, http.StatusNotFound, err.Error())
	case app.ErrDuplicateAction, app.ErrConflict:
		h.writeError(w, http.StatusConflict, err.Error())
	case app.ErrState:
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("level=error component=api msg=\"unhandled service error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "An internal error occurred")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *PoolHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}

// writeError is a helper for writing a JSON error response.
func (h *PoolHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
