package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skintrack/server/internal/models"
	"github.com/skintrack/server/internal/observability"
	"github.com/skintrack/server/internal/repository"
)

// FileRemover deletes a stored frame by its storage reference
type FileRemover interface {
	Delete(storageRef string) bool
}

// PhotoHandler handles an owner's stored reference photos
type PhotoHandler struct {
	repo    repository.PhotoRepo
	storage FileRemover
	logger  *observability.Logger
}

// NewPhotoHandler creates a new PhotoHandler
func NewPhotoHandler(repo repository.PhotoRepo, storage FileRemover, logger *observability.Logger) *PhotoHandler {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &PhotoHandler{
		repo:    repo,
		storage: storage,
		logger:  logger.WithField("handler", "photos"),
	}
}

// List returns a page of the caller's photos, newest first
func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerOf(w, r)
	if !ok {
		return
	}

	skip := queryInt(r, "skip", 0, 0, 1<<30)
	take := queryInt(r, "take", 50, 1, 500)

	photos, err := h.repo.ListPhotos(r.Context(), ownerID, skip, take)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}

	total, err := h.repo.CountPhotos(r.Context(), ownerID)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, models.PhotoListResponse{
		Photos:     photos,
		TotalCount: total,
		Skip:       skip,
		Take:       take,
	})
}

// Delete removes one of the caller's photos and its stored file
func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerOf(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	photo, err := h.repo.GetPhoto(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	if photo == nil || photo.OwnerID != ownerID {
		respondError(w, http.StatusNotFound, models.ErrPhotoNotFound.Error())
		return
	}

	deleted, err := h.repo.DeletePhoto(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, models.ErrPhotoNotFound.Error())
		return
	}

	// Identical frames share one file; keep it while anything points at it
	remaining, err := h.repo.CountPhotosByStorageRef(r.Context(), photo.StorageRef)
	if err != nil {
		h.logger.WithError(err).Warnf("could not check references to %s, keeping file", photo.StorageRef)
	} else if remaining == 0 && !h.storage.Delete(photo.StorageRef) {
		h.logger.WithField("photo_id", id).Warnf("stored file %s was not removed", photo.StorageRef)
	}

	h.logger.WithField("photo_id", id).Info("Photo deleted")
	w.WriteHeader(http.StatusNoContent)
}
