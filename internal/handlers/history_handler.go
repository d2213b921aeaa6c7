package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skintrack/server/internal/models"
	"github.com/skintrack/server/internal/observability"
)

// HistoryStore reads past check-ins
type HistoryStore interface {
	ListRecentCheckIns(ctx context.Context, ownerID string, limit int) ([]*models.CheckIn, error)
	GetTestCheckin(ctx context.Context, id string) (*models.TestCheckin, error)
}

// HistoryHandler serves past check-ins and their test answers
type HistoryHandler struct {
	store  HistoryStore
	logger *observability.Logger
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(store HistoryStore, logger *observability.Logger) *HistoryHandler {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &HistoryHandler{store: store, logger: logger.WithField("handler", "history")}
}

// ListCheckIns returns the caller's most recent check-ins
func (h *HistoryHandler) ListCheckIns(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerOf(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 20, 1, 200)
	checkIns, err := h.store.ListRecentCheckIns(r.Context(), ownerID, limit)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, models.CheckInListResponse{CheckIns: checkIns})
}

// GetTestCheckin returns one test check-in with its answers and summary.
// The summary is absent until generation has finished.
func (h *HistoryHandler) GetTestCheckin(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerOf(w, r)
	if !ok {
		return
	}

	tc, err := h.store.GetTestCheckin(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	if tc == nil || tc.OwnerID != ownerID {
		respondError(w, http.StatusNotFound, models.ErrTestCheckinNotFound.Error())
		return
	}

	respondJSON(w, http.StatusOK, tc)
}
