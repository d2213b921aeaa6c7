package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/skintrack/server/internal/models"
	"github.com/skintrack/server/internal/observability"
	"github.com/skintrack/server/internal/repository"
)

// ProfileHandler reads and updates the caller's profile
type ProfileHandler struct {
	repo   repository.ProfileRepo
	logger *observability.Logger
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(repo repository.ProfileRepo, logger *observability.Logger) *ProfileHandler {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &ProfileHandler{repo: repo, logger: logger.WithField("handler", "profile")}
}

// Get returns the profile, or an empty one if none was saved yet
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerOf(w, r)
	if !ok {
		return
	}

	profile, err := h.repo.GetProfile(r.Context(), ownerID)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	if profile == nil {
		profile = &models.UserProfile{OwnerID: ownerID}
	}

	respondJSON(w, http.StatusOK, profile)
}

// Put replaces the profile
func (h *ProfileHandler) Put(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerOf(w, r)
	if !ok {
		return
	}

	var req models.ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	profile, err := models.NewUserProfile(ownerID, req)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	if err := h.repo.UpsertProfile(r.Context(), profile); err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}
