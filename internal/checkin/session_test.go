package checkin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skintrack/server/internal/models"
)

type sessionHarness struct {
	store     *fakeStore
	uploader  *fakeUploader
	camera    *fakeCamera
	generator *fakeGenerator
	adapter   *SummaryAdapter
	clock     *fakeClock

	mu       sync.Mutex
	notified []SummaryResult
}

func newHarness() *sessionHarness {
	store := newFakeStore()
	gen := &fakeGenerator{text: "Redness is easing compared to last week."}
	return &sessionHarness{
		store:     store,
		uploader:  &fakeUploader{},
		camera:    &fakeCamera{},
		generator: gen,
		adapter:   NewSummaryAdapter(gen, store, time.Second, nil, nil),
		clock:     newFakeClock(),
	}
}

func (h *sessionHarness) session(t *testing.T, test *models.Test) *Session {
	t.Helper()
	s, err := NewSession(SessionConfig{
		OwnerID:    "user-1",
		ActiveTest: test,
		Profile:    models.UserProfile{OwnerID: "user-1", SkinType: "dry"},
		Store:      h.store,
		Uploader:   h.uploader,
		Summaries:  h.adapter,
		OnSummary: func(ownerID string, r SummaryResult) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.notified = append(h.notified, r)
		},
		Clock: h.clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(h.adapter.Wait)
	return s
}

func (h *sessionHarness) capturePhotos(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Capture(ctx, h.camera))
		_, err := s.Confirm(ctx)
		require.NoError(t, err)
	}
}

func TestSession_PhotosOnly(t *testing.T) {
	ctx := context.Background()

	t.Run("goes through noTest to completed without a summary", func(t *testing.T) {
		h := newHarness()
		s := h.session(t, nil)

		h.capturePhotos(t, s)
		require.Equal(t, StepNoTest, s.Step())

		require.NoError(t, s.SubmitPhotosOnly(ctx))
		assert.Equal(t, StepCompleted, s.Step())
		assert.Nil(t, s.SummaryDone())
		assert.Zero(t, h.generator.callCount())

		stored := h.store.lastCheckIn()
		assert.Nil(t, stored.testID)
		assert.True(t, stored.photos.Complete())

		snap := s.Snapshot()
		require.NotNil(t, snap.Submission)
		assert.NotEmpty(t, snap.Submission.CheckInID)
		assert.Empty(t, snap.Submission.TestCheckinID)
		assert.Nil(t, snap.Summary)
	})

	t.Run("every photo on the check-in shares one capture session", func(t *testing.T) {
		h := newHarness()
		s := h.session(t, nil)
		h.capturePhotos(t, s)
		require.NoError(t, s.SubmitPhotosOnly(ctx))

		photos := h.store.lastCheckIn().photos
		sessionID := h.store.photo(photos.Left).sessionID
		assert.NotEmpty(t, sessionID)
		assert.Equal(t, sessionID, h.store.photo(photos.Center).sessionID)
		assert.Equal(t, sessionID, h.store.photo(photos.Right).sessionID)
	})

	t.Run("a failed submission stays in noTest and can be retried", func(t *testing.T) {
		h := newHarness()
		h.store.failSubmit = 1
		s := h.session(t, nil)
		h.capturePhotos(t, s)
		before := s.Snapshot().Photos

		err := s.SubmitPhotosOnly(ctx)
		assert.ErrorIs(t, err, ErrSubmissionFailed)
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, StepNoTest, s.Step())
		assert.Equal(t, before, s.Snapshot().Photos)

		require.NoError(t, s.Submit(ctx))
		assert.Equal(t, StepCompleted, s.Step())
		assert.Equal(t, 1, h.store.checkInCount())
	})

	t.Run("restart photos begins a new capture run", func(t *testing.T) {
		h := newHarness()
		s := h.session(t, nil)
		h.capturePhotos(t, s)
		first := h.store.photo(s.Snapshot().Photos.Left).sessionID

		require.NoError(t, s.RestartPhotos())
		snap := s.Snapshot()
		assert.Equal(t, StepPhotos, snap.Step)
		assert.Equal(t, models.PhotoSet{}, snap.Photos)
		assert.Equal(t, models.AngleLeft, snap.CurrentAngle)
		assert.NotEqual(t, first, snap.CaptureSessionID)

		h.capturePhotos(t, s)
		require.NoError(t, s.SubmitPhotosOnly(ctx))
		assert.Equal(t, snap.CaptureSessionID, h.store.photo(h.store.lastCheckIn().photos.Left).sessionID)
	})
}

func TestSession_WithTest(t *testing.T) {
	ctx := context.Background()

	t.Run("submits answers and launches exactly one summary", func(t *testing.T) {
		h := newHarness()
		s := h.session(t, rednessTest())

		h.capturePhotos(t, s)
		require.Equal(t, StepQuestions, s.Step())

		require.NoError(t, s.Answer("itch", float64(3)))
		adv, err := s.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, Moved, adv)
		adv, err = s.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, Moved, adv)
		require.NoError(t, s.Answer("notes", "tight after washing"))

		adv, err = s.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, FlowComplete, adv)
		assert.Equal(t, StepCompleting, s.Step())

		result := <-s.SummaryDone()
		assert.Equal(t, SummaryReady, result.Status)
		assert.Equal(t, 1, h.generator.callCount())
		assert.Equal(t, 1, h.store.patchCount())

		stored := h.store.lastCheckIn()
		require.NotNil(t, stored.testID)
		assert.Equal(t, "test-1", *stored.testID)
		want := []models.Answer{
			{QuestionID: "itch", Answer: float64(3), QuestionType: models.QuestionScale},
			{QuestionID: "notes", Answer: "tight after washing", QuestionType: models.QuestionText},
		}
		if diff := cmp.Diff(want, stored.answers, cmpopts.IgnoreFields(models.Answer{}, "AnsweredAt")); diff != "" {
			t.Errorf("stored answers mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("completing waits for an explicit finish", func(t *testing.T) {
		h := newHarness()
		s := h.session(t, rednessTest())
		h.capturePhotos(t, s)
		require.NoError(t, s.Answer("itch", float64(3)))
		for {
			adv, err := s.Next(ctx)
			require.NoError(t, err)
			if adv == FlowComplete {
				break
			}
		}

		<-s.SummaryDone()
		snap := s.Snapshot()
		assert.Equal(t, StepCompleting, snap.Step)
		require.NotNil(t, snap.Summary)
		assert.Equal(t, SummaryReady, snap.Summary.Status)
		assert.Equal(t, "Redness is easing compared to last week.", snap.Summary.Summary)

		require.NoError(t, s.Finish())
		snap = s.Snapshot()
		assert.Equal(t, StepCompleted, snap.Step)
		require.NotNil(t, snap.Summary)
		assert.Equal(t, SummaryReady, snap.Summary.Status)
		assert.ErrorIs(t, s.Finish(), ErrInvalidTransition)
	})

	t.Run("the summary is not awaited before completing", func(t *testing.T) {
		h := newHarness()
		h.generator.gate = make(chan struct{})
		s := h.session(t, rednessTest())
		h.capturePhotos(t, s)
		require.NoError(t, s.Answer("itch", float64(5)))
		for {
			adv, err := s.Next(ctx)
			require.NoError(t, err)
			if adv == FlowComplete {
				break
			}
		}

		snap := s.Snapshot()
		assert.Equal(t, StepCompleting, snap.Step)
		assert.Equal(t, SummaryPending, snap.Summary.Status)

		// finishing early is allowed; the summary still lands afterwards
		require.NoError(t, s.Finish())
		close(h.generator.gate)
		<-s.SummaryDone()

		snap = s.Snapshot()
		assert.Equal(t, StepCompleted, snap.Step)
		require.NotNil(t, snap.Summary)
		assert.Equal(t, SummaryReady, snap.Summary.Status)
	})

	t.Run("a summary failure never blocks finishing", func(t *testing.T) {
		h := newHarness()
		h.generator.err = errBoom
		s := h.session(t, rednessTest())
		h.capturePhotos(t, s)
		require.NoError(t, s.Answer("itch", float64(1)))
		for {
			adv, err := s.Next(ctx)
			require.NoError(t, err)
			if adv == FlowComplete {
				break
			}
		}

		result := <-s.SummaryDone()
		assert.Equal(t, SummaryUnavailable, result.Status)
		assert.Equal(t, StepCompleting, s.Step())
		require.NoError(t, s.Finish())
		assert.Zero(t, h.store.patchCount())
	})

	t.Run("the owner is notified when the summary resolves", func(t *testing.T) {
		h := newHarness()
		s := h.session(t, rednessTest())
		h.capturePhotos(t, s)
		require.NoError(t, s.Answer("itch", float64(2)))
		for {
			adv, err := s.Next(ctx)
			require.NoError(t, err)
			if adv == FlowComplete {
				break
			}
		}
		<-s.SummaryDone()

		h.mu.Lock()
		defer h.mu.Unlock()
		require.Len(t, h.notified, 1)
		assert.Equal(t, s.Snapshot().Submission.TestCheckinID, h.notified[0].TestCheckinID)
	})

	t.Run("the summary sees the profile and question text", func(t *testing.T) {
		h := newHarness()
		s := h.session(t, rednessTest())
		h.capturePhotos(t, s)
		require.NoError(t, s.Answer("itch", float64(2)))
		for {
			adv, err := s.Next(ctx)
			require.NoError(t, err)
			if adv == FlowComplete {
				break
			}
		}
		<-s.SummaryDone()

		h.generator.mu.Lock()
		defer h.generator.mu.Unlock()
		require.Len(t, h.generator.contexts, 1)
		sc := h.generator.contexts[0]
		assert.Equal(t, "Redness tracker", sc.TestName)
		assert.Equal(t, "dry", sc.Profile.SkinType)
		assert.Equal(t, "2024-03-15", sc.CheckInDate)
		require.Len(t, sc.Answers, 1)
		assert.Equal(t, "How itchy is your skin?", sc.Answers[0].Question)
	})

	t.Run("a required question blocks next without an error", func(t *testing.T) {
		h := newHarness()
		s := h.session(t, rednessTest())
		h.capturePhotos(t, s)

		adv, err := s.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, Blocked, adv)
		assert.False(t, s.Snapshot().CanAdvance)
		assert.Equal(t, StepQuestions, s.Step())
	})

	t.Run("no answers means no summary", func(t *testing.T) {
		h := newHarness()
		test := rednessTest()
		test.FormStructure.Questions[0].Required = false
		s := h.session(t, test)
		h.capturePhotos(t, s)

		for {
			adv, err := s.Next(ctx)
			require.NoError(t, err)
			if adv == FlowComplete {
				break
			}
		}

		assert.Equal(t, StepCompleted, s.Step())
		assert.Nil(t, s.SummaryDone())
		assert.Zero(t, h.generator.callCount())
		assert.NotEmpty(t, s.Snapshot().Submission.TestCheckinID)
	})

	t.Run("a failed submission keeps photos and answers for a retry", func(t *testing.T) {
		h := newHarness()
		h.store.failSubmit = 1
		s := h.session(t, rednessTest())
		h.capturePhotos(t, s)
		require.NoError(t, s.Answer("itch", float64(4)))
		require.NoError(t, s.Answer("flaking", true))

		var err error
		for {
			var adv Advance
			adv, err = s.Next(ctx)
			if adv == FlowComplete {
				break
			}
			require.NoError(t, err)
		}
		assert.ErrorIs(t, err, ErrSubmissionFailed)

		snap := s.Snapshot()
		assert.Equal(t, StepQuestions, snap.Step)
		assert.True(t, snap.SubmitPending)
		assert.True(t, snap.Photos.Complete())
		assert.Equal(t, float64(4), snap.Answers["itch"])
		assert.Zero(t, h.store.checkInCount())

		require.NoError(t, s.Submit(ctx))
		assert.Equal(t, StepCompleting, s.Step())
		<-s.SummaryDone()
		assert.Equal(t, 1, h.generator.callCount())
		assert.Equal(t, 1, h.store.checkInCount())
	})

	t.Run("submit before the questionnaire is finished is rejected", func(t *testing.T) {
		h := newHarness()
		s := h.session(t, rednessTest())
		h.capturePhotos(t, s)

		assert.ErrorIs(t, s.Submit(ctx), ErrInvalidTransition)
		assert.ErrorIs(t, s.SubmitPhotosOnly(ctx), ErrInvalidTransition)
	})
}

func TestSession_Cancel(t *testing.T) {
	ctx := context.Background()

	toQuestions := func(t *testing.T, h *sessionHarness) *Session {
		s := h.session(t, rednessTest())
		h.capturePhotos(t, s)
		require.NoError(t, s.Answer("itch", float64(2)))
		return s
	}
	toNoTest := func(t *testing.T, h *sessionHarness) *Session {
		s := h.session(t, nil)
		h.capturePhotos(t, s)
		return s
	}
	inPhotos := func(t *testing.T, h *sessionHarness) *Session {
		s := h.session(t, nil)
		require.NoError(t, s.Capture(ctx, h.camera))
		_, err := s.Confirm(ctx)
		require.NoError(t, err)
		return s
	}

	for name, setup := range map[string]func(*testing.T, *sessionHarness) *Session{
		"photos":    inPhotos,
		"noTest":    toNoTest,
		"questions": toQuestions,
	} {
		t.Run("cancelling from "+name+" writes nothing", func(t *testing.T) {
			h := newHarness()
			s := setup(t, h)

			require.NoError(t, s.Cancel())
			assert.Equal(t, StepCancelled, s.Step())
			assert.Zero(t, h.store.checkInCount())
			assert.Zero(t, h.generator.callCount())

			assert.ErrorIs(t, s.Cancel(), ErrInvalidTransition)
			assert.ErrorIs(t, s.Capture(ctx, h.camera), ErrInvalidTransition)
			assert.ErrorIs(t, s.Submit(ctx), ErrInvalidTransition)
		})
	}

	t.Run("cancel is not allowed once completing", func(t *testing.T) {
		h := newHarness()
		s := toQuestions(t, h)
		for {
			adv, err := s.Next(ctx)
			require.NoError(t, err)
			if adv == FlowComplete {
				break
			}
		}
		<-s.SummaryDone()

		assert.ErrorIs(t, s.Cancel(), ErrInvalidTransition)
		assert.Equal(t, StepCompleting, s.Step())
	})

	t.Run("a confirm that returns after cancel is discarded", func(t *testing.T) {
		h := newHarness()
		h.uploader.gate = make(chan struct{})
		h.uploader.entered = make(chan struct{})
		s := h.session(t, nil)
		require.NoError(t, s.Capture(ctx, h.camera))

		done := make(chan error, 1)
		go func() {
			_, err := s.Confirm(ctx)
			done <- err
		}()
		<-h.uploader.entered

		assert.ErrorIs(t, s.Retake(), ErrOperationInFlight)
		require.NoError(t, s.Cancel())
		close(h.uploader.gate)

		assert.ErrorIs(t, <-done, ErrSessionCancelled)
		snap := s.Snapshot()
		assert.Equal(t, StepCancelled, snap.Step)
		assert.Equal(t, models.PhotoSet{}, snap.Photos)
		assert.False(t, snap.Busy)
	})

	t.Run("a submission in flight cannot be cancelled", func(t *testing.T) {
		h := newHarness()
		h.store.submitGate = make(chan struct{})
		h.store.submitEnter = make(chan struct{})
		s := toNoTest(t, h)

		done := make(chan error, 1)
		go func() { done <- s.SubmitPhotosOnly(ctx) }()
		<-h.store.submitEnter

		assert.ErrorIs(t, s.Cancel(), ErrOperationInFlight)
		assert.ErrorIs(t, s.SubmitPhotosOnly(ctx), ErrOperationInFlight)
		close(h.store.submitGate)

		require.NoError(t, <-done)
		assert.Equal(t, StepCompleted, s.Step())
	})
}

func TestNewSession(t *testing.T) {
	t.Run("requires an owner", func(t *testing.T) {
		_, err := NewSession(SessionConfig{Store: newFakeStore(), Uploader: &fakeUploader{}})
		assert.ErrorIs(t, err, models.ErrEmptyOwner)
	})

	t.Run("starts in photos at the left angle", func(t *testing.T) {
		h := newHarness()
		snap := h.session(t, rednessTest()).Snapshot()

		assert.Equal(t, StepPhotos, snap.Step)
		assert.Equal(t, models.AngleLeft, snap.CurrentAngle)
		assert.Equal(t, "test-1", snap.TestID)
		assert.NotEmpty(t, snap.ID)
		assert.Nil(t, snap.Summary)
	})
}
