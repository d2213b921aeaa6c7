package checkin

import "errors"

// Capture failures. The step stays on the same angle and can be retried.
var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrCaptureFailed    = errors.New("photo capture failed")
	ErrUploadFailed     = errors.New("photo upload failed")
)

// Session flow failures.
var (
	ErrSubmissionFailed        = errors.New("check-in submission failed")
	ErrSummaryGenerationFailed = errors.New("summary generation failed")
	ErrInvalidTransition       = errors.New("action not valid in the current step")
	ErrOperationInFlight       = errors.New("another action is still in progress")
	ErrSessionCancelled        = errors.New("session was cancelled")
	ErrSessionNotFound         = errors.New("session not found")
)

// Questionnaire input errors.
var (
	ErrUnknownQuestion    = errors.New("unknown question")
	ErrAnswerTypeMismatch = errors.New("answer does not match the question type")
)
