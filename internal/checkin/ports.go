package checkin

import (
	"context"

	"github.com/skintrack/server/internal/models"
	"github.com/skintrack/server/internal/repository"
)

// ImageHandle is a captured frame held in memory until it is confirmed
type ImageHandle struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Camera is the device capture surface
type Camera interface {
	RequestPermission(ctx context.Context) (bool, error)
	CapturePhoto(ctx context.Context) (ImageHandle, error)
}

// ImageUploader stores a confirmed frame and returns its storage reference
type ImageUploader interface {
	UploadImage(ctx context.Context, img ImageHandle) (string, error)
}

// SummaryGenerator turns a check-in context into a short natural-language summary
type SummaryGenerator interface {
	GenerateSummary(ctx context.Context, sc models.SummaryContext) (string, error)
}

// PhotoRecorder saves photo metadata after upload
type PhotoRecorder interface {
	CreatePhoto(ctx context.Context, ownerID, storageRef string, angle models.Angle, sessionID string) (string, error)
}

// CheckInWriter performs the submission writes
type CheckInWriter interface {
	CreateCheckIn(ctx context.Context, ownerID string, testID *string, photos models.PhotoSet) (string, error)
	CreateCheckInWithAnswers(ctx context.Context, ownerID, testID string, photos models.PhotoSet, answers []models.Answer) (repository.CheckInResult, error)
}

// SummaryPatcher writes a generated summary onto a test check-in
type SummaryPatcher interface {
	PatchTestCheckinSummary(ctx context.Context, testCheckinID, summary string) error
}

// SessionStore is everything a live session writes
type SessionStore interface {
	PhotoRecorder
	CheckInWriter
}
