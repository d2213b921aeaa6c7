package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/skintrack/server/internal/models"
)

const checkInColumns = `id, owner_id, test_id, created_at, completed, left_photo_id, center_photo_id, right_photo_id`

// CreateCheckIn saves a photos-only check-in and returns its id
func (s *Store) CreateCheckIn(ctx context.Context, ownerID string, testID *string, photos models.PhotoSet) (string, error) {
	checkIn, err := models.NewCheckIn(ownerID, testID, photos)
	if err != nil {
		return "", err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.checkPhotoSet(ctx, tx, ownerID, photos); err != nil {
			return err
		}
		return s.insertCheckIn(ctx, tx, checkIn)
	})
	if err != nil {
		return "", err
	}

	return checkIn.ID, nil
}

// CreateCheckInWithAnswers saves a check-in and its test check-in in one
// transaction. The completed flag is derived from the stored test form.
func (s *Store) CreateCheckInWithAnswers(ctx context.Context, ownerID, testID string, photos models.PhotoSet, answers []models.Answer) (CheckInResult, error) {
	if testID == "" {
		return CheckInResult{}, models.ErrEmptyTestID
	}

	checkIn, err := models.NewCheckIn(ownerID, &testID, photos)
	if err != nil {
		return CheckInResult{}, err
	}

	var result CheckInResult
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		test, err := s.getTest(ctx, tx, testID)
		if err != nil {
			return err
		}
		if test == nil || test.OwnerID != ownerID {
			return models.ErrTestNotFound
		}

		if err := s.checkPhotoSet(ctx, tx, ownerID, photos); err != nil {
			return err
		}
		if err := s.insertCheckIn(ctx, tx, checkIn); err != nil {
			return err
		}

		tc, err := models.NewTestCheckin(ownerID, test, checkIn.ID, answers)
		if err != nil {
			return err
		}
		answersJSON, err := json.Marshal(tc.Answers)
		if err != nil {
			return fmt.Errorf("encode answers: %w", err)
		}

		query := `
			INSERT INTO test_checkins (id, check_in_id, test_id, owner_id, answers, completed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, s.rebind(query),
			tc.ID,
			nullString(tc.CheckInID),
			tc.TestID,
			tc.OwnerID,
			string(answersJSON),
			tc.Completed,
			tc.CreatedAt,
			tc.UpdatedAt,
		); err != nil {
			return err
		}

		result = CheckInResult{CheckInID: checkIn.ID, TestCheckinID: tc.ID}
		return nil
	})
	if err != nil {
		return CheckInResult{}, err
	}

	return result, nil
}

// PatchTestCheckinSummary sets the generated summary. Writing the same text
// again matches no row, so updated_at is left alone and the patch is
// idempotent.
func (s *Store) PatchTestCheckinSummary(ctx context.Context, testCheckinID, summary string) error {
	query := `
		UPDATE test_checkins
		SET summary = ?, updated_at = ?
		WHERE id = ? AND (summary IS NULL OR summary <> ?)
	`

	result, err := s.db.ExecContext(ctx, s.rebind(query), summary, time.Now().UTC(), testCheckinID, summary)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, s.rebind("SELECT 1 FROM test_checkins WHERE id = ?"), testCheckinID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrTestCheckinNotFound
	}
	return err
}

// ListRecentCheckIns returns an owner's most recent check-ins, newest first
func (s *Store) ListRecentCheckIns(ctx context.Context, ownerID string, limit int) ([]*models.CheckIn, error) {
	query := `
		SELECT ` + checkInColumns + `
		FROM check_ins
		WHERE owner_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checkIns := []*models.CheckIn{}
	for rows.Next() {
		var c models.CheckIn
		var testID, left, center, right sql.NullString
		if err := rows.Scan(
			&c.ID,
			&c.OwnerID,
			&testID,
			&c.CreatedAt,
			&c.Completed,
			&left,
			&center,
			&right,
		); err != nil {
			return nil, err
		}
		c.TestID = stringPtr(testID)
		c.LeftPhotoID = stringPtr(left)
		c.CenterPhotoID = stringPtr(center)
		c.RightPhotoID = stringPtr(right)
		checkIns = append(checkIns, &c)
	}

	return checkIns, rows.Err()
}

// GetTestCheckin retrieves a test check-in with its answers and summary
func (s *Store) GetTestCheckin(ctx context.Context, id string) (*models.TestCheckin, error) {
	query := `
		SELECT id, check_in_id, test_id, owner_id, answers, completed, created_at, updated_at, summary
		FROM test_checkins WHERE id = ?
	`

	var tc models.TestCheckin
	var checkInID, summary sql.NullString
	var answersJSON []byte
	err := s.db.QueryRowContext(ctx, s.rebind(query), id).Scan(
		&tc.ID,
		&checkInID,
		&tc.TestID,
		&tc.OwnerID,
		&answersJSON,
		&tc.Completed,
		&tc.CreatedAt,
		&tc.UpdatedAt,
		&summary,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(answersJSON, &tc.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	tc.CheckInID = stringPtr(checkInID)
	tc.Summary = stringPtr(summary)

	return &tc, nil
}

func (s *Store) insertCheckIn(ctx context.Context, tx *sql.Tx, c *models.CheckIn) error {
	query := `
		INSERT INTO check_ins (` + checkInColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(ctx, s.rebind(query),
		c.ID,
		c.OwnerID,
		nullString(c.TestID),
		c.CreatedAt,
		c.Completed,
		nullString(c.LeftPhotoID),
		nullString(c.CenterPhotoID),
		nullString(c.RightPhotoID),
	)
	return err
}

// checkPhotoSet verifies every referenced photo exists, belongs to the
// owner and was captured in the same session.
func (s *Store) checkPhotoSet(ctx context.Context, tx *sql.Tx, ownerID string, photos models.PhotoSet) error {
	ids := photos.IDs()
	if len(ids) == 0 {
		return nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := `SELECT owner_id, session_id FROM photos WHERE id IN (` + placeholders(len(ids)) + `)`
	rows, err := tx.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	found := 0
	sessionID := ""
	for rows.Next() {
		var owner, session string
		if err := rows.Scan(&owner, &session); err != nil {
			return err
		}
		if owner != ownerID {
			return models.ErrPhotoNotFound
		}
		if sessionID == "" {
			sessionID = session
		} else if session != sessionID {
			return models.ErrPhotoSessionMismatch
		}
		found++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if found != len(ids) {
		return models.ErrPhotoNotFound
	}

	return nil
}
