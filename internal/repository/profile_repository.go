package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skintrack/server/internal/models"
)

// GetProfile retrieves an owner's profile, or nil if they never set one
func (s *Store) GetProfile(ctx context.Context, ownerID string) (*models.UserProfile, error) {
	query := `SELECT owner_id, skin_type, age_range, concerns, updated_at FROM profiles WHERE owner_id = ?`

	var p models.UserProfile
	var concerns []byte
	err := s.db.QueryRowContext(ctx, s.rebind(query), ownerID).Scan(
		&p.OwnerID,
		&p.SkinType,
		&p.AgeRange,
		&concerns,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(concerns, &p.Concerns); err != nil {
		return nil, fmt.Errorf("decode concerns: %w", err)
	}

	return &p, nil
}

// UpsertProfile creates or replaces an owner's profile
func (s *Store) UpsertProfile(ctx context.Context, profile *models.UserProfile) error {
	concerns := profile.Concerns
	if concerns == nil {
		concerns = []string{}
	}
	data, err := json.Marshal(concerns)
	if err != nil {
		return fmt.Errorf("encode concerns: %w", err)
	}

	query := `
		INSERT INTO profiles (owner_id, skin_type, age_range, concerns, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET
			skin_type = excluded.skin_type,
			age_range = excluded.age_range,
			concerns = excluded.concerns,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		profile.OwnerID,
		profile.SkinType,
		profile.AgeRange,
		string(data),
		profile.UpdatedAt,
	)
	return err
}
