package repository

import (
	"context"
	"database/sql"

	"github.com/skintrack/server/internal/models"
)

// CheckInResult is returned by CreateCheckInWithAnswers
type CheckInResult struct {
	CheckInID     string
	TestCheckinID string
}

// RecordStore is the persistence surface the check-in session writes through
type RecordStore interface {
	CreatePhoto(ctx context.Context, ownerID, storageRef string, angle models.Angle, sessionID string) (string, error)
	CreateCheckIn(ctx context.Context, ownerID string, testID *string, photos models.PhotoSet) (string, error)
	CreateCheckInWithAnswers(ctx context.Context, ownerID, testID string, photos models.PhotoSet, answers []models.Answer) (CheckInResult, error)
	PatchTestCheckinSummary(ctx context.Context, testCheckinID, summary string) error
	ListRecentCheckIns(ctx context.Context, ownerID string, limit int) ([]*models.CheckIn, error)
	GetActiveTest(ctx context.Context, ownerID string) (*models.Test, error)
}

// PhotoRepo defines owner-scoped photo reads and deletion
type PhotoRepo interface {
	GetPhoto(ctx context.Context, id string) (*models.Photo, error)
	ListPhotos(ctx context.Context, ownerID string, skip, take int) ([]*models.Photo, error)
	CountPhotos(ctx context.Context, ownerID string) (int, error)
	CountPhotosByStorageRef(ctx context.Context, storageRef string) (int, error)
	DeletePhoto(ctx context.Context, id string) (bool, error)
}

// TestRepo defines test and test check-in persistence
type TestRepo interface {
	CreateTest(ctx context.Context, test *models.Test) error
	GetTest(ctx context.Context, id string) (*models.Test, error)
	GetTestCheckin(ctx context.Context, id string) (*models.TestCheckin, error)
}

// ProfileRepo defines user profile persistence
type ProfileRepo interface {
	GetProfile(ctx context.Context, ownerID string) (*models.UserProfile, error)
	UpsertProfile(ctx context.Context, profile *models.UserProfile) error
}

// DBTX is the subset of *sql.DB the store needs; observability.TraceDB
// satisfies it as well.
type DBTX interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
