package checkin

import (
	"github.com/skintrack/server/internal/models"
)

// Step names a session state on the wire
type Step string

const (
	StepPhotos     Step = "photos"
	StepNoTest     Step = "noTest"
	StepQuestions  Step = "questions"
	StepCompleting Step = "completing"
	StepCompleted  Step = "completed"
	StepCancelled  Step = "cancelled"
)

// Terminal reports whether no further action is accepted in the step
func (s Step) Terminal() bool {
	return s == StepCompleted || s == StepCancelled
}

// State is one step of a session. Each implementation carries only the
// data that is valid in its step.
type State interface {
	Step() Step
	sealed()
}

// Submission holds the ids written by a successful submit
type Submission struct {
	CheckInID     string `json:"checkInId"`
	TestCheckinID string `json:"testCheckinId,omitempty"`
}

type photosState struct {
	captureID string
	capture   *CaptureController
}

type noTestState struct {
	photos models.PhotoSet
}

type questionsState struct {
	photos        models.PhotoSet
	form          *Questionnaire
	submitPending bool
}

type completingState struct {
	submission Submission
	summary    SummaryResult
}

type completedState struct {
	submission Submission
	summary    SummaryResult
}

type cancelledState struct{}

func (*photosState) Step() Step     { return StepPhotos }
func (*noTestState) Step() Step     { return StepNoTest }
func (*questionsState) Step() Step  { return StepQuestions }
func (*completingState) Step() Step { return StepCompleting }
func (*completedState) Step() Step  { return StepCompleted }
func (*cancelledState) Step() Step  { return StepCancelled }

func (*photosState) sealed()     {}
func (*noTestState) sealed()     {}
func (*questionsState) sealed()  {}
func (*completingState) sealed() {}
func (*completedState) sealed()  {}
func (*cancelledState) sealed()  {}

// Snapshot is a read-only view of a session for clients
type Snapshot struct {
	ID               string           `json:"id"`
	Step             Step             `json:"step"`
	Busy             bool             `json:"busy"`
	TestID           string           `json:"testId,omitempty"`
	CaptureSessionID string           `json:"captureSessionId,omitempty"`
	CurrentAngle     models.Angle     `json:"currentAngle,omitempty"`
	Reviewing        bool             `json:"reviewing,omitempty"`
	Photos           models.PhotoSet  `json:"photos"`
	Question         *models.Question `json:"question,omitempty"`
	QuestionIndex    int              `json:"questionIndex,omitempty"`
	QuestionCount    int              `json:"questionCount,omitempty"`
	CanAdvance       bool             `json:"canAdvance,omitempty"`
	Answers          map[string]any   `json:"answers,omitempty"`
	SubmitPending    bool             `json:"submitPending,omitempty"`
	Submission       *Submission      `json:"submission,omitempty"`
	Summary          *SummaryResult   `json:"summary,omitempty"`
}

func snapshotOf(state State) Snapshot {
	snap := Snapshot{Step: state.Step()}

	switch st := state.(type) {
	case *photosState:
		snap.CaptureSessionID = st.captureID
		snap.CurrentAngle = st.capture.Angle()
		snap.Reviewing = st.capture.Reviewing()
		snap.Photos = st.capture.Photos()
	case *noTestState:
		snap.Photos = st.photos
	case *questionsState:
		snap.Photos = st.photos
		if q, ok := st.form.Current(); ok {
			snap.Question = &q
		}
		snap.QuestionIndex = st.form.Index()
		snap.QuestionCount = st.form.Len()
		snap.CanAdvance = st.form.CanAdvance()
		snap.Answers = st.form.Values()
		snap.SubmitPending = st.submitPending
	case *completingState:
		sub := st.submission
		summary := st.summary
		snap.Submission = &sub
		snap.Summary = &summary
	case *completedState:
		sub := st.submission
		snap.Submission = &sub
		if st.summary.Status != "" {
			summary := st.summary
			snap.Summary = &summary
		}
	}

	return snap
}
