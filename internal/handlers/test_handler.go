package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/skintrack/server/internal/catalog"
	"github.com/skintrack/server/internal/models"
	"github.com/skintrack/server/internal/observability"
)

// TestStore persists the tests a user follows
type TestStore interface {
	CreateTest(ctx context.Context, test *models.Test) error
	GetActiveTest(ctx context.Context, ownerID string) (*models.Test, error)
}

// TestHandler serves the template catalog and the caller's active test
type TestHandler struct {
	catalog *catalog.Catalog
	store   TestStore
	now     func() time.Time
	logger  *observability.Logger
}

// NewTestHandler creates a new TestHandler
func NewTestHandler(c *catalog.Catalog, store TestStore, logger *observability.Logger) *TestHandler {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &TestHandler{
		catalog: c,
		store:   store,
		now:     time.Now,
		logger:  logger.WithField("handler", "tests"),
	}
}

// Catalog lists the available test templates
func (h *TestHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.catalog.List())
}

// Start begins following a template. Any previously active test is
// deactivated.
func (h *TestHandler) Start(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerOf(w, r)
	if !ok {
		return
	}

	var req models.StartTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TemplateID == "" {
		respondError(w, http.StatusBadRequest, "templateId is required.")
		return
	}

	tmpl, err := h.catalog.Get(req.TemplateID)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}

	test, err := tmpl.NewTest(ownerID, h.now().UTC())
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	if err := h.store.CreateTest(r.Context(), test); err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"test_id":     test.ID,
		"template_id": tmpl.ID,
	}).Info("Test started")
	respondJSON(w, http.StatusCreated, test)
}

// Active returns the caller's active test, or 404 when there is none
func (h *TestHandler) Active(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerOf(w, r)
	if !ok {
		return
	}

	test, err := h.store.GetActiveTest(r.Context(), ownerID)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	if test == nil {
		respondError(w, http.StatusNotFound, "No active test.")
		return
	}

	respondJSON(w, http.StatusOK, test)
}
