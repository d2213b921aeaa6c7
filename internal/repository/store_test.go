package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skintrack/server/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "skintrack-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewSQLiteStore(db)
}

func createPhotoSet(t *testing.T, s *Store, ownerID, sessionID string) models.PhotoSet {
	t.Helper()
	ctx := context.Background()

	var set models.PhotoSet
	for _, angle := range models.CaptureOrder {
		id, err := s.CreatePhoto(ctx, ownerID, "2024/03/"+string(angle)+".jpg", angle, sessionID)
		require.NoError(t, err)
		set = set.With(angle, id)
	}
	return set
}

func createTestDefinition(t *testing.T, s *Store, ownerID string, questions ...models.Question) *models.Test {
	t.Helper()

	duration := 14
	test, err := models.NewTest(ownerID, "Barrier repair", nil,
		models.FormStructure{Questions: questions},
		time.Now().UTC().Add(-48*time.Hour), &duration, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateTest(context.Background(), test))
	return test
}

func TestStore_Rebind(t *testing.T) {
	t.Run("leaves sqlite placeholders alone", func(t *testing.T) {
		s := &Store{dialect: dialectSQLite}
		assert.Equal(t, "a = ? AND b = ?", s.rebind("a = ? AND b = ?"))
	})

	t.Run("numbers postgres placeholders", func(t *testing.T) {
		s := &Store{dialect: dialectPostgres}
		assert.Equal(t, "a = $1 AND b IN ($2,$3)", s.rebind("a = ? AND b IN ("+placeholders(2)+")"))
	})
}

func TestStore_Photos(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and reads back a photo", func(t *testing.T) {
		s := setupTestStore(t)

		id, err := s.CreatePhoto(ctx, "user-1", "2024/03/left.jpg", models.AngleLeft, "session-1")
		require.NoError(t, err)

		photo, err := s.GetPhoto(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, photo)
		assert.Equal(t, "user-1", photo.OwnerID)
		assert.Equal(t, models.AngleLeft, photo.Angle)
		assert.Equal(t, "session-1", photo.SessionID)
	})

	t.Run("returns nil for unknown photo", func(t *testing.T) {
		s := setupTestStore(t)

		photo, err := s.GetPhoto(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, photo)
	})

	t.Run("lists and counts only the owner's photos", func(t *testing.T) {
		s := setupTestStore(t)
		createPhotoSet(t, s, "user-1", "session-1")
		createPhotoSet(t, s, "user-2", "session-2")

		photos, err := s.ListPhotos(ctx, "user-1", 0, 50)
		require.NoError(t, err)
		assert.Len(t, photos, 3)

		count, err := s.CountPhotos(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("counts photos sharing a stored file", func(t *testing.T) {
		s := setupTestStore(t)
		set := createPhotoSet(t, s, "user-1", "session-1")
		createPhotoSet(t, s, "user-2", "session-2")

		count, err := s.CountPhotosByStorageRef(ctx, "2024/03/left.jpg")
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		_, err = s.DeletePhoto(ctx, set.Left)
		require.NoError(t, err)
		count, err = s.CountPhotosByStorageRef(ctx, "2024/03/left.jpg")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("deleting a photo keeps the check-in", func(t *testing.T) {
		s := setupTestStore(t)
		set := createPhotoSet(t, s, "user-1", "session-1")
		_, err := s.CreateCheckIn(ctx, "user-1", nil, set)
		require.NoError(t, err)

		deleted, err := s.DeletePhoto(ctx, set.Left)
		require.NoError(t, err)
		assert.True(t, deleted)

		checkIns, err := s.ListRecentCheckIns(ctx, "user-1", 10)
		require.NoError(t, err)
		require.Len(t, checkIns, 1)
		assert.Nil(t, checkIns[0].LeftPhotoID)
		require.NotNil(t, checkIns[0].CenterPhotoID)
	})
}

func TestStore_CreateCheckIn(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a completed photos-only check-in", func(t *testing.T) {
		s := setupTestStore(t)
		set := createPhotoSet(t, s, "user-1", "session-1")

		id, err := s.CreateCheckIn(ctx, "user-1", nil, set)
		require.NoError(t, err)

		checkIns, err := s.ListRecentCheckIns(ctx, "user-1", 10)
		require.NoError(t, err)
		require.Len(t, checkIns, 1)
		assert.Equal(t, id, checkIns[0].ID)
		assert.True(t, checkIns[0].Completed)
		assert.Nil(t, checkIns[0].TestID)
		assert.Equal(t, set, checkIns[0].Photos())
	})

	t.Run("rejects photos from different capture sessions", func(t *testing.T) {
		s := setupTestStore(t)
		first := createPhotoSet(t, s, "user-1", "session-1")
		second := createPhotoSet(t, s, "user-1", "session-2")

		mixed := first.With(models.AngleRight, second.Right)
		_, err := s.CreateCheckIn(ctx, "user-1", nil, mixed)
		assert.ErrorIs(t, err, models.ErrPhotoSessionMismatch)

		checkIns, err := s.ListRecentCheckIns(ctx, "user-1", 10)
		require.NoError(t, err)
		assert.Empty(t, checkIns)
	})

	t.Run("rejects another owner's photos", func(t *testing.T) {
		s := setupTestStore(t)
		set := createPhotoSet(t, s, "user-2", "session-1")

		_, err := s.CreateCheckIn(ctx, "user-1", nil, set)
		assert.ErrorIs(t, err, models.ErrPhotoNotFound)
	})

	t.Run("lists newest first with limit", func(t *testing.T) {
		s := setupTestStore(t)
		var ids []string
		for i := 0; i < 3; i++ {
			id, err := s.CreateCheckIn(ctx, "user-1", nil, models.PhotoSet{})
			require.NoError(t, err)
			ids = append(ids, id)
			time.Sleep(5 * time.Millisecond)
		}

		checkIns, err := s.ListRecentCheckIns(ctx, "user-1", 2)
		require.NoError(t, err)
		require.Len(t, checkIns, 2)
		assert.Equal(t, ids[2], checkIns[0].ID)
		assert.Equal(t, ids[1], checkIns[1].ID)
	})
}

func TestStore_CreateCheckInWithAnswers(t *testing.T) {
	ctx := context.Background()
	questions := []models.Question{
		{ID: "itch", Type: models.QuestionScale, Question: "How itchy?", Required: true},
		{ID: "notes", Type: models.QuestionText, Question: "Anything else?"},
	}

	t.Run("derives completed from the stored form", func(t *testing.T) {
		s := setupTestStore(t)
		test := createTestDefinition(t, s, "user-1", questions...)
		set := createPhotoSet(t, s, "user-1", "session-1")

		answers := []models.Answer{{QuestionID: "itch", Answer: float64(3), QuestionType: models.QuestionScale, AnsweredAt: time.Now().UTC()}}
		result, err := s.CreateCheckInWithAnswers(ctx, "user-1", test.ID, set, answers)
		require.NoError(t, err)
		assert.NotEmpty(t, result.CheckInID)
		assert.NotEmpty(t, result.TestCheckinID)

		tc, err := s.GetTestCheckin(ctx, result.TestCheckinID)
		require.NoError(t, err)
		require.NotNil(t, tc)
		assert.True(t, tc.Completed)
		assert.Equal(t, result.CheckInID, *tc.CheckInID)
		require.Len(t, tc.Answers, 1)
		assert.Equal(t, float64(3), tc.Answers[0].Answer)
		assert.Nil(t, tc.Summary)
	})

	t.Run("marks incomplete when a required answer is missing", func(t *testing.T) {
		s := setupTestStore(t)
		test := createTestDefinition(t, s, "user-1", questions...)

		answers := []models.Answer{{QuestionID: "notes", Answer: "dry", QuestionType: models.QuestionText}}
		result, err := s.CreateCheckInWithAnswers(ctx, "user-1", test.ID, models.PhotoSet{}, answers)
		require.NoError(t, err)

		tc, err := s.GetTestCheckin(ctx, result.TestCheckinID)
		require.NoError(t, err)
		assert.False(t, tc.Completed)
	})

	t.Run("fails for an unknown test and writes nothing", func(t *testing.T) {
		s := setupTestStore(t)

		_, err := s.CreateCheckInWithAnswers(ctx, "user-1", "missing", models.PhotoSet{}, nil)
		assert.ErrorIs(t, err, models.ErrTestNotFound)

		checkIns, err := s.ListRecentCheckIns(ctx, "user-1", 10)
		require.NoError(t, err)
		assert.Empty(t, checkIns)
	})
}

func TestStore_PatchTestCheckinSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("applying the same summary twice is idempotent", func(t *testing.T) {
		s := setupTestStore(t)
		test := createTestDefinition(t, s, "user-1")
		result, err := s.CreateCheckInWithAnswers(ctx, "user-1", test.ID, models.PhotoSet{}, nil)
		require.NoError(t, err)

		require.NoError(t, s.PatchTestCheckinSummary(ctx, result.TestCheckinID, "Skin looks calmer."))
		once, err := s.GetTestCheckin(ctx, result.TestCheckinID)
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		require.NoError(t, s.PatchTestCheckinSummary(ctx, result.TestCheckinID, "Skin looks calmer."))
		twice, err := s.GetTestCheckin(ctx, result.TestCheckinID)
		require.NoError(t, err)

		require.NotNil(t, twice.Summary)
		assert.Equal(t, "Skin looks calmer.", *twice.Summary)
		assert.Equal(t, once.UpdatedAt, twice.UpdatedAt)
	})

	t.Run("reports unknown test check-in", func(t *testing.T) {
		s := setupTestStore(t)

		err := s.PatchTestCheckinSummary(ctx, "missing", "text")
		assert.ErrorIs(t, err, models.ErrTestCheckinNotFound)
	})
}

func TestStore_Tests(t *testing.T) {
	ctx := context.Background()

	t.Run("returns nil when no test is active", func(t *testing.T) {
		s := setupTestStore(t)

		test, err := s.GetActiveTest(ctx, "user-1")
		require.NoError(t, err)
		assert.Nil(t, test)
	})

	t.Run("a new test replaces the active one", func(t *testing.T) {
		s := setupTestStore(t)
		first := createTestDefinition(t, s, "user-1")
		second := createTestDefinition(t, s, "user-1",
			models.Question{ID: "q1", Type: models.QuestionBoolean, Question: "Flaking?", Required: true})

		active, err := s.GetActiveTest(ctx, "user-1")
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, second.ID, active.ID)
		require.Len(t, active.FormStructure.Questions, 1)
		assert.True(t, active.FormStructure.Questions[0].Required)
		require.NotNil(t, active.Duration)
		assert.Equal(t, 14, *active.Duration)

		old, err := s.GetTest(ctx, first.ID)
		require.NoError(t, err)
		assert.False(t, old.IsActive)
	})
}

func TestStore_Profiles(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts a profile", func(t *testing.T) {
		s := setupTestStore(t)

		p, err := models.NewUserProfile("user-1", models.ProfileRequest{SkinType: "dry", Concerns: []string{"redness"}})
		require.NoError(t, err)
		require.NoError(t, s.UpsertProfile(ctx, p))

		p.SkinType = "combination"
		require.NoError(t, s.UpsertProfile(ctx, p))

		got, err := s.GetProfile(ctx, "user-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "combination", got.SkinType)
		assert.Equal(t, []string{"redness"}, got.Concerns)
	})

	t.Run("returns nil for unknown owner", func(t *testing.T) {
		s := setupTestStore(t)

		got, err := s.GetProfile(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
