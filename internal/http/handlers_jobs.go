// Package httpx provides HTTP handlers and utilities for the face search API.
package httpx

import (
	"errors"
	"net/http"

	"github.com/nexus-vision/facesearch-go/internal/domain/model"
	apperrors "github.com/nexus-vision/facesearch-go/internal/errors"
	"github.com/nexus-vision/facesearch-go/internal/service"
)

// JobHandlers provides HTTP handlers for search job operations.
type JobHandlers struct {
	Svc *service.JobService
}

// Submit handles HTTP requests to submit a new search job.
// The response is an acknowledgement carrying the correlation id; the search
// itself runs asynchronously.
func (h *JobHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Svc.Submit(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, "submit_failed")
		return
	}

	WriteJSON(w, http.StatusAccepted, res)
}

// Callback handles the worker's result callback. Repeat callbacks for a
// terminal job are acknowledged without changing state.
func (h *JobHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	var req model.CompleteJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	applied, err := h.Svc.Complete(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, "callback_failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

// GetJob handles polling requests for a job's current state.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	correlationID := r.PathValue("correlation_id")
	if correlationID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("correlation id is required")},
		)
		return
	}

	view, err := h.Svc.GetView(r.Context(), correlationID)
	if err != nil {
		writeServiceError(w, err, "get_failed")
		return
	}

	WriteJSON(w, http.StatusOK, view)
}

// Stats handles HTTP requests for aggregate job counts.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err, "stats_failed")
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// writeServiceError maps service-layer errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error, code string) {
	switch {
	case apperrors.IsValidation(err):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: code, Err: err})
	case apperrors.IsNotFound(err):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: err})
	case apperrors.IsConflict(err):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: code, Err: err})
	case apperrors.IsUnauthorized(err):
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: code, Err: err})
	default:
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: code, Err: err})
	}
}
