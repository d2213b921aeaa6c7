package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/skintrack/server/internal/catalog"
	"github.com/skintrack/server/internal/checkin"
	"github.com/skintrack/server/internal/middleware"
	"github.com/skintrack/server/internal/models"
	"github.com/skintrack/server/internal/observability"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// errorStatus maps domain errors onto HTTP status codes
func errorStatus(err error) int {
	var modelErr models.ModelError
	switch {
	case errors.Is(err, checkin.ErrSessionNotFound),
		errors.Is(err, checkin.ErrUnknownQuestion),
		errors.Is(err, catalog.ErrTemplateNotFound),
		errors.Is(err, models.ErrPhotoNotFound),
		errors.Is(err, models.ErrTestCheckinNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkin.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, checkin.ErrInvalidTransition),
		errors.Is(err, checkin.ErrOperationInFlight):
		return http.StatusConflict
	case errors.Is(err, checkin.ErrSessionCancelled):
		return http.StatusGone
	case errors.Is(err, checkin.ErrCaptureFailed),
		errors.Is(err, checkin.ErrAnswerTypeMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, checkin.ErrUploadFailed),
		errors.Is(err, checkin.ErrSubmissionFailed):
		return http.StatusBadGateway
	case errors.As(err, &modelErr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondDomainError writes err with its mapped status. Server errors are
// logged and their detail hidden from the client.
func respondDomainError(w http.ResponseWriter, r *http.Request, logger *observability.Logger, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).WithError(err).Errorf("%s %s failed", r.Method, r.URL.Path)
		if status == http.StatusInternalServerError {
			respondError(w, status, "Internal server error.")
			return
		}
	}
	respondError(w, status, err.Error())
}

// ownerOf returns the authenticated owner or writes a 401
func ownerOf(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		respondError(w, http.StatusUnauthorized, "Unauthorized.")
		return "", false
	}
	return ownerID, true
}

// queryInt parses an integer query parameter clamped to [min, max]
func queryInt(r *http.Request, name string, def, min, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
