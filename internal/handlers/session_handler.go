package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skintrack/server/internal/checkin"
	"github.com/skintrack/server/internal/models"
	"github.com/skintrack/server/internal/observability"
)

// SessionHandler exposes the check-in session actions
type SessionHandler struct {
	manager       *checkin.Manager
	maxFrameBytes int64
	logger        *observability.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(manager *checkin.Manager, maxFrameBytes int64, logger *observability.Logger) *SessionHandler {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &SessionHandler{
		manager:       manager,
		maxFrameBytes: maxFrameBytes,
		logger:        logger.WithField("handler", "sessions"),
	}
}

// NextResponse is returned by the next action
type NextResponse struct {
	Advanced     bool             `json:"advanced"`
	FlowComplete bool             `json:"flowComplete"`
	Session      checkin.Snapshot `json:"session"`
}

// ConfirmResponse is returned by the confirm action
type ConfirmResponse struct {
	PhotoID string           `json:"photoId"`
	Session checkin.Snapshot `json:"session"`
}

// Start opens a new check-in session for the caller
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerOf(w, r)
	if !ok {
		return
	}

	session, err := h.manager.Start(r.Context(), ownerID)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, session.Snapshot())
}

// Get returns the session snapshot
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *checkin.Session) error { return nil })
}

// Capture takes the uploaded frame for the current angle
func (h *SessionHandler) Capture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFrameBytes+1<<20)
	h.withSession(w, r, func(s *checkin.Session) error {
		return s.Capture(r.Context(), frameFromRequest(r, h.maxFrameBytes))
	})
}

// Retake drops the frame under review
func (h *SessionHandler) Retake(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *checkin.Session) error { return s.Retake() })
}

// Confirm uploads the frame under review
func (h *SessionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	photoID, err := session.Confirm(r.Context())
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, ConfirmResponse{PhotoID: photoID, Session: session.Snapshot()})
}

// SubmitPhotosOnly saves a check-in without a questionnaire
func (h *SessionHandler) SubmitPhotosOnly(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *checkin.Session) error { return s.SubmitPhotosOnly(r.Context()) })
}

// RestartPhotos discards the confirmed photos and starts over
func (h *SessionHandler) RestartPhotos(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *checkin.Session) error { return s.RestartPhotos() })
}

// Answer records the value for one question
func (h *SessionHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req models.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	questionID := chi.URLParam(r, "qid")
	h.withSession(w, r, func(s *checkin.Session) error { return s.Answer(questionID, req.Value) })
}

// Next advances the questionnaire, submitting after the last question
func (h *SessionHandler) Next(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	adv, err := session.Next(r.Context())
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, NextResponse{
		Advanced:     adv != checkin.Blocked,
		FlowComplete: adv == checkin.FlowComplete,
		Session:      session.Snapshot(),
	})
}

// Previous moves back one question
func (h *SessionHandler) Previous(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	moved, err := session.Previous()
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, NextResponse{Advanced: moved, Session: session.Snapshot()})
}

// Submit retries a failed submission
func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *checkin.Session) error { return s.Submit(r.Context()) })
}

// Finish leaves the summary screen
func (h *SessionHandler) Finish(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *checkin.Session) error { return s.Finish() })
}

// Cancel abandons the session
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *checkin.Session) error { return s.Cancel() })
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*checkin.Session, bool) {
	ownerID, ok := ownerOf(w, r)
	if !ok {
		return nil, false
	}

	session, err := h.manager.Get(chi.URLParam(r, "id"), ownerID)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return nil, false
	}
	return session, true
}

// withSession runs action and answers with the resulting snapshot
func (h *SessionHandler) withSession(w http.ResponseWriter, r *http.Request, action func(s *checkin.Session) error) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := action(session); err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, session.Snapshot())
}
