package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skintrack/server/internal/models"
	"github.com/skintrack/server/internal/observability"
)

type operation int

const (
	opNone operation = iota
	opCapture
	opConfirm
	opSubmit
)

// SessionConfig wires a session to its collaborators. ActiveTest and
// Profile are snapshotted when the session starts.
type SessionConfig struct {
	OwnerID    string
	ActiveTest *models.Test
	Profile    models.UserProfile
	Store      SessionStore
	Uploader   ImageUploader
	Summaries  *SummaryAdapter
	OnSummary  func(ownerID string, result SummaryResult)
	Clock      func() time.Time
	Logger     *observability.Logger
	Metrics    *observability.CheckinMetrics
}

// Session orchestrates one check-in attempt:
// photos → noTest | questions → completing → completed, or cancelled.
//
// Every I/O step runs outside the session lock while the session is
// marked busy. Cancel bumps the epoch so results that arrive afterwards
// are discarded.
type Session struct {
	id        string
	ownerID   string
	test      *models.Test
	profile   models.UserProfile
	store     SessionStore
	uploader  ImageUploader
	summaries *SummaryAdapter
	onSummary func(ownerID string, result SummaryResult)
	clock     func() time.Time
	logger    *observability.Logger
	metrics   *observability.CheckinMetrics

	mu          sync.Mutex
	state       State
	busy        operation
	epoch       uint64
	lastActive  time.Time
	summaryDone <-chan SummaryResult
}

// NewSession creates a session in the photos step
func NewSession(cfg SessionConfig) (*Session, error) {
	if strings.TrimSpace(cfg.OwnerID) == "" {
		return nil, models.ErrEmptyOwner
	}
	if cfg.Store == nil || cfg.Uploader == nil {
		return nil, errors.New("session needs a store and an uploader")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}

	id := uuid.New().String()
	s := &Session{
		id:        id,
		ownerID:   cfg.OwnerID,
		test:      cfg.ActiveTest,
		profile:   cfg.Profile,
		store:     cfg.Store,
		uploader:  cfg.Uploader,
		summaries: cfg.Summaries,
		onSummary: cfg.OnSummary,
		clock:     cfg.Clock,
		logger:    cfg.Logger.WithField("session_id", id),
		metrics:   cfg.Metrics,
	}
	s.state = s.newPhotosState()
	s.lastActive = s.clock()
	return s, nil
}

func (s *Session) newPhotosState() *photosState {
	captureID := uuid.New().String()
	return &photosState{
		captureID: captureID,
		capture:   NewCaptureController(s.ownerID, captureID, s.uploader, s.store),
	}
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// OwnerID returns the owner the session belongs to
func (s *Session) OwnerID() string {
	return s.ownerID
}

// Step returns the current step
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Step()
}

// LastActive returns when the session last accepted an action
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Snapshot returns the client view of the session
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshotOf(s.state)
	snap.ID = s.id
	snap.Busy = s.busy != opNone
	if s.test != nil {
		snap.TestID = s.test.ID
	}
	return snap
}

// SummaryDone yields the summary result once generation finishes. It is
// nil when no summary was launched.
func (s *Session) SummaryDone() <-chan SummaryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryDone
}

// begin marks the session busy. Callers hold s.mu.
func (s *Session) begin(op operation) (uint64, error) {
	if s.busy != opNone {
		return 0, ErrOperationInFlight
	}
	s.busy = op
	s.lastActive = s.clock()
	return s.epoch, nil
}

// end clears the busy mark and reports whether the session survived the
// operation. Callers hold s.mu.
func (s *Session) end(epoch uint64) bool {
	if epoch != s.epoch {
		return false
	}
	s.busy = opNone
	s.lastActive = s.clock()
	return true
}

// Capture takes a frame for the current angle
func (s *Session) Capture(ctx context.Context, cam Camera) error {
	s.mu.Lock()
	st, ok := s.state.(*photosState)
	if !ok {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	epoch, err := s.begin(opCapture)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	err = st.capture.Capture(ctx, cam)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.end(epoch) {
		return ErrSessionCancelled
	}
	if err != nil {
		s.recordCaptureFailure(ctx, err)
		return err
	}
	return nil
}

// Retake drops the frame under review
func (s *Session) Retake() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state.(*photosState)
	if !ok {
		return ErrInvalidTransition
	}
	if s.busy != opNone {
		return ErrOperationInFlight
	}
	s.lastActive = s.clock()
	return st.capture.Retake()
}

// Confirm uploads the frame under review. After the third angle the
// session moves to questions when a test is active, else to noTest.
func (s *Session) Confirm(ctx context.Context) (string, error) {
	s.mu.Lock()
	st, ok := s.state.(*photosState)
	if !ok {
		s.mu.Unlock()
		return "", ErrInvalidTransition
	}
	epoch, err := s.begin(opConfirm)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	angle, photoID, err := st.capture.Confirm(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.end(epoch) {
		return "", ErrSessionCancelled
	}
	if err != nil {
		s.recordCaptureFailure(ctx, err)
		return "", err
	}

	s.metrics.RecordPhotoConfirmed(ctx, string(angle))
	s.logger.WithField("photo_angle", angle).Debugf("photo %s confirmed", photoID)

	if st.capture.Done() {
		photos := st.capture.Photos()
		if s.test != nil {
			s.state = &questionsState{
				photos: photos,
				form:   NewQuestionnaire(s.test.FormStructure, s.clock),
			}
		} else {
			s.state = &noTestState{photos: photos}
		}
	}
	return photoID, nil
}

func (s *Session) recordCaptureFailure(ctx context.Context, err error) {
	kind := "other"
	switch {
	case errors.Is(err, ErrPermissionDenied):
		kind = "permission"
	case errors.Is(err, ErrCaptureFailed):
		kind = "capture"
	case errors.Is(err, ErrUploadFailed):
		kind = "upload"
	}
	s.metrics.RecordCaptureFailure(ctx, kind)
	s.logger.WithContext(ctx).WithError(err).Warnf("capture step failed (%s)", kind)
}

// RestartPhotos discards the confirmed photos and starts a new capture
// run. Only valid in noTest. The discarded photo rows are left in place.
func (s *Session) RestartPhotos() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.(*noTestState); !ok {
		return ErrInvalidTransition
	}
	if s.busy != opNone {
		return ErrOperationInFlight
	}
	s.state = s.newPhotosState()
	s.lastActive = s.clock()
	return nil
}

// Answer records a value for a question
func (s *Session) Answer(questionID string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state.(*questionsState)
	if !ok {
		return ErrInvalidTransition
	}
	if s.busy != opNone {
		return ErrOperationInFlight
	}
	s.lastActive = s.clock()
	return st.form.Answer(questionID, value)
}

// Previous moves back one question
func (s *Session) Previous() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state.(*questionsState)
	if !ok {
		return false, ErrInvalidTransition
	}
	if s.busy != opNone {
		return false, ErrOperationInFlight
	}
	s.lastActive = s.clock()
	st.submitPending = false
	return st.form.Previous(), nil
}

// Next advances the questionnaire. A required question without an answer
// reports Blocked. Past the last question the answers are submitted.
func (s *Session) Next(ctx context.Context) (Advance, error) {
	s.mu.Lock()
	st, ok := s.state.(*questionsState)
	if !ok {
		s.mu.Unlock()
		return Blocked, ErrInvalidTransition
	}
	if s.busy != opNone {
		s.mu.Unlock()
		return Blocked, ErrOperationInFlight
	}
	s.lastActive = s.clock()

	adv := st.form.Next()
	if adv != FlowComplete {
		s.mu.Unlock()
		return adv, nil
	}
	st.submitPending = true
	req, epoch, err := s.beginSubmit()
	s.mu.Unlock()
	if err != nil {
		return adv, err
	}

	return adv, s.submit(ctx, req, epoch)
}

// SubmitPhotosOnly creates a check-in without answers. Only valid in noTest.
func (s *Session) SubmitPhotosOnly(ctx context.Context) error {
	s.mu.Lock()
	if _, ok := s.state.(*noTestState); !ok {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	req, epoch, err := s.beginSubmit()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return s.submit(ctx, req, epoch)
}

// Submit retries a failed submission. Valid in noTest, and in questions
// once the questionnaire has been completed.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	switch st := s.state.(type) {
	case *noTestState:
	case *questionsState:
		if !st.submitPending {
			s.mu.Unlock()
			return ErrInvalidTransition
		}
	default:
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	req, epoch, err := s.beginSubmit()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return s.submit(ctx, req, epoch)
}

type submitRequest struct {
	photos  models.PhotoSet
	test    *models.Test
	answers []models.Answer
}

// beginSubmit captures what will be written. Callers hold s.mu.
func (s *Session) beginSubmit() (submitRequest, uint64, error) {
	var req submitRequest
	switch st := s.state.(type) {
	case *noTestState:
		req.photos = st.photos
	case *questionsState:
		req.photos = st.photos
		req.test = s.test
		req.answers = st.form.Answers()
	default:
		return req, 0, ErrInvalidTransition
	}

	epoch, err := s.begin(opSubmit)
	return req, epoch, err
}

func (s *Session) submit(ctx context.Context, req submitRequest, epoch uint64) error {
	ctx, span := observability.StartServiceSpan(ctx, "Session", "Submit")
	defer span.End()
	span.SetAttributes(observability.SessionID(s.id), observability.UserID(s.ownerID))

	var sub Submission
	var err error
	if req.test != nil {
		result, werr := s.store.CreateCheckInWithAnswers(ctx, s.ownerID, req.test.ID, req.photos, req.answers)
		sub, err = Submission{CheckInID: result.CheckInID, TestCheckinID: result.TestCheckinID}, werr
	} else {
		var id string
		id, err = s.store.CreateCheckIn(ctx, s.ownerID, nil, req.photos)
		sub = Submission{CheckInID: id}
	}
	s.metrics.RecordSubmission(ctx, req.test != nil, err == nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.end(epoch) {
		return ErrSessionCancelled
	}

	if err != nil {
		observability.RecordError(span, err)
		s.logger.WithContext(ctx).WithError(err).Error("check-in submission failed")
		return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	observability.SetSuccess(span)
	s.logger.WithContext(ctx).Infof("check-in %s submitted", sub.CheckInID)

	if sub.TestCheckinID == "" || len(req.answers) == 0 {
		s.state = &completedState{submission: sub}
		return nil
	}

	completing := &completingState{
		submission: sub,
		summary:    SummaryResult{TestCheckinID: sub.TestCheckinID, Status: SummaryPending},
	}
	s.state = completing

	if s.summaries == nil {
		completing.summary.Status = SummaryUnavailable
		return nil
	}
	sc := models.NewSummaryContext(req.test, s.profile, req.answers, s.clock())
	s.summaryDone = s.summaries.Launch(ctx, sub.TestCheckinID, sc, s.applySummary)
	return nil
}

// applySummary stores a finished summary on whichever of completing or
// completed the session is in. It never changes the step.
func (s *Session) applySummary(result SummaryResult) {
	s.mu.Lock()
	switch st := s.state.(type) {
	case *completingState:
		if st.submission.TestCheckinID == result.TestCheckinID {
			st.summary = result
		}
	case *completedState:
		if st.submission.TestCheckinID == result.TestCheckinID {
			st.summary = result
		}
	}
	notify := s.onSummary
	s.mu.Unlock()

	if notify != nil {
		notify(s.ownerID, result)
	}
}

// Finish ends a completing session. It is the only way out of completing.
func (s *Session) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state.(*completingState)
	if !ok {
		return ErrInvalidTransition
	}
	s.state = &completedState{submission: st.submission, summary: st.summary}
	s.lastActive = s.clock()
	return nil
}

// Cancel abandons the session from photos, noTest or questions. Nothing is
// written; photos already confirmed stay stored. A capture or confirm in
// flight is discarded when it returns. A submission in flight cannot be
// cancelled.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state.(type) {
	case *photosState, *noTestState, *questionsState:
	default:
		return ErrInvalidTransition
	}
	if s.busy == opSubmit {
		return ErrOperationInFlight
	}

	s.cancelLocked()
	return nil
}

func (s *Session) cancelLocked() {
	s.state = &cancelledState{}
	s.busy = opNone
	s.epoch++
	s.lastActive = s.clock()
}

// expire cancels an idle session if it can still be cancelled
func (s *Session) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state.(type) {
	case *photosState, *noTestState, *questionsState:
		if s.busy != opSubmit {
			s.cancelLocked()
		}
	}
}
