package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/skintrack/server/internal/models"
)

const photoColumns = `id, owner_id, storage_ref, angle, session_id, created_at`

// CreatePhoto saves the metadata of a confirmed capture and returns its id
func (s *Store) CreatePhoto(ctx context.Context, ownerID, storageRef string, angle models.Angle, sessionID string) (string, error) {
	photo, err := models.NewPhoto(ownerID, storageRef, angle, sessionID)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO photos (` + photoColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		photo.ID,
		photo.OwnerID,
		photo.StorageRef,
		string(photo.Angle),
		photo.SessionID,
		photo.CreatedAt,
	)
	if err != nil {
		return "", err
	}

	return photo.ID, nil
}

// GetPhoto retrieves a photo by its ID
func (s *Store) GetPhoto(ctx context.Context, id string) (*models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE id = ?`

	photo, err := scanPhoto(s.db.QueryRowContext(ctx, s.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return photo, nil
}

// ListPhotos retrieves an owner's photos, newest first
func (s *Store) ListPhotos(ctx context.Context, ownerID string, skip, take int) ([]*models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE owner_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), ownerID, take, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []*models.Photo{}
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}

	return photos, rows.Err()
}

// CountPhotos returns the number of photos an owner has
func (s *Store) CountPhotos(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM photos WHERE owner_id = ?"), ownerID).Scan(&count)
	return count, err
}

// CountPhotosByStorageRef returns how many photos point at a stored file.
// Identical frames share one file.
func (s *Store) CountPhotosByStorageRef(ctx context.Context, storageRef string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM photos WHERE storage_ref = ?"), storageRef).Scan(&count)
	return count, err
}

// DeletePhoto removes a photo by ID. Check-ins that referenced it keep
// their row with the photo reference cleared.
func (s *Store) DeletePhoto(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM photos WHERE id = ?"), id)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPhoto(row rowScanner) (*models.Photo, error) {
	var photo models.Photo
	var angle string
	if err := row.Scan(
		&photo.ID,
		&photo.OwnerID,
		&photo.StorageRef,
		&angle,
		&photo.SessionID,
		&photo.CreatedAt,
	); err != nil {
		return nil, err
	}
	photo.Angle = models.Angle(angle)
	return &photo, nil
}
