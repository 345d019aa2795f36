package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"keyledger.app/cloud/internal/logger"
	"keyledger.app/cloud/ledger"
	"keyledger.app/cloud/models"
)

// Activate handles one activation request end to end: decode, run the
// engine, respond, and hand the outcome to the result sink when configured.
// Business rejections are a 200 with success=false; only transport and
// ledger failures use error status codes.
func (s *Server) Activate(w http.ResponseWriter, r *http.Request) {
	s.requestsServed.Inc()

	if !s.Limiter.Allow(r.RemoteAddr) {
		writeErrorResponse(w, http.StatusTooManyRequests, "Too many requests")
		return
	}

	var req models.ActivationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	result, err := s.Engine.Activate(&req)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrBusy):
			logger.Warn("Ledger busy", map[string]interface{}{
				"request_id": req.RequestID,
			})
			writeErrorResponse(w, http.StatusServiceUnavailable, "Ledger busy, retry shortly")
		case errors.Is(err, ledger.ErrCorrupt):
			logger.Error("Ledger corrupt, refusing to serve activations", map[string]interface{}{
				"request_id": req.RequestID,
				"error":      err.Error(),
			})
			writeErrorResponse(w, http.StatusInternalServerError, "Ledger unavailable, contact support")
		default:
			logger.Error("Activation failed", map[string]interface{}{
				"request_id": req.RequestID,
				"error":      err.Error(),
			})
			writeErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	if result.Success {
		s.activationsGranted.Inc()
	}

	if s.Sink != nil {
		if err := s.Sink.Write(result); err != nil {
			// The HTTP response still carries the outcome; a sink failure
			// must not fail the activation.
			logger.Error("Failed to write result to sink", map[string]interface{}{
				"request_id": result.RequestID,
				"error":      err.Error(),
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.Error("Failed to encode activation result", map[string]interface{}{
			"request_id": result.RequestID,
			"error":      err.Error(),
		})
	}
}
