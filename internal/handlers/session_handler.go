package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradewatch/backend/internal/models"
	"github.com/tradewatch/backend/internal/services"
)

// SessionEngine is the slice of the session service the HTTP layer uses.
type SessionEngine interface {
	StartSession(ctx context.Context, sess models.UserSession) error
	StopSession(ctx context.Context, identifier string) error
	Summarize(ctx context.Context, identifier string) (*models.SessionSummary, error)
	History(ctx context.Context, identifier string) ([]models.LedgerEntry, error)
	ClearHistory(ctx context.Context, identifier string) error
}

type SessionHandler struct {
	engine    SessionEngine
	validator *services.ValidationHelper
}

func NewSessionHandler(engine SessionEngine) *SessionHandler {
	return &SessionHandler{
		engine:    engine,
		validator: services.NewValidationHelper(),
	}
}

// StartSession starts (or fully reconfigures) a tracking session
// @Summary Start a tracking session
// @Description Create or replace session configuration and begin reminders
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body object{identifier=string,startBalance=int64,targetWin=int64,stopLoss=int64,intervalMinutes=int} true "Session configuration"
// @Success 200 {object} object{success=bool}
// @Failure 400 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /sessions/start [post]
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier      string `json:"identifier" validate:"required"`
		StartBalance    int64  `json:"startBalance" validate:"gte=0"`
		TargetWin       int64  `json:"targetWin" validate:"gte=0"`
		StopLoss        int64  `json:"stopLoss" validate:"gte=0"`
		IntervalMinutes int    `json:"intervalMinutes" validate:"required,gt=0"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		log.Printf("[SESSION] StartSession - Validation error: %v", err)
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	sess := models.UserSession{
		Identifier:      req.Identifier,
		StartBalance:    req.StartBalance,
		TargetWin:       req.TargetWin,
		StopLoss:        req.StopLoss,
		IntervalMinutes: req.IntervalMinutes,
	}
	if err := h.engine.StartSession(r.Context(), sess); err != nil {
		log.Printf("[SESSION] StartSession - Engine error: %v", err)
		services.SendErrorResponse(w, "Failed to start session", http.StatusInternalServerError, nil)
		return
	}

	services.RespondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// StopSession stops a tracking session
// @Summary Stop a tracking session
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body object{identifier=string} true "Session identifier"
// @Success 200 {object} object{success=bool}
// @Failure 400 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /sessions/stop [post]
func (h *SessionHandler) StopSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier" validate:"required"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if err := h.engine.StopSession(r.Context(), req.Identifier); err != nil {
		log.Printf("[SESSION] StopSession - Engine error: %v", err)
		services.SendErrorResponse(w, "Failed to stop session", http.StatusInternalServerError, nil)
		return
	}

	services.RespondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GetSummary returns the session's current position
// @Summary Session summary
// @Tags sessions
// @Produce json
// @Param id path string true "Session identifier"
// @Success 200 {object} models.SessionSummary
// @Failure 404 {object} services.ErrorResponse
// @Router /sessions/{id}/summary [get]
func (h *SessionHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "id")

	summary, err := h.engine.Summarize(r.Context(), identifier)
	if err != nil {
		log.Printf("[SESSION] GetSummary - Engine error: %v", err)
		services.SendErrorResponse(w, "Failed to summarize session", http.StatusInternalServerError, nil)
		return
	}
	if summary == nil {
		services.SendErrorResponse(w, "Session not found", http.StatusNotFound, nil)
		return
	}

	services.RespondJSON(w, http.StatusOK, summary)
}

// GetEntries returns the session's ledger, most recent first
// @Summary Session ledger entries
// @Tags sessions
// @Produce json
// @Param id path string true "Session identifier"
// @Success 200 {array} models.LedgerEntry
// @Router /sessions/{id}/entries [get]
func (h *SessionHandler) GetEntries(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "id")

	entries, err := h.engine.History(r.Context(), identifier)
	if err != nil {
		log.Printf("[SESSION] GetEntries - Engine error: %v", err)
		services.SendErrorResponse(w, "Failed to fetch entries", http.StatusInternalServerError, nil)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}

	services.RespondJSON(w, http.StatusOK, entries)
}

// ClearEntries deletes all of the session's ledger entries
// @Summary Clear session ledger
// @Tags sessions
// @Produce json
// @Param id path string true "Session identifier"
// @Success 200 {object} object{success=bool}
// @Router /sessions/{id}/entries [delete]
func (h *SessionHandler) ClearEntries(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "id")

	if err := h.engine.ClearHistory(r.Context(), identifier); err != nil {
		log.Printf("[SESSION] ClearEntries - Engine error: %v", err)
		services.SendErrorResponse(w, "Failed to clear entries", http.StatusInternalServerError, nil)
		return
	}

	services.RespondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// decodeJSON applies the shared request-body discipline: bounded size, no
// unknown fields, exactly one JSON object. Writes the error response itself
// and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}
