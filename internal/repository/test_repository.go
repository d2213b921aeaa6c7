package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skintrack/server/internal/models"
)

const testColumns = `id, owner_id, name, description, form_structure, start_date, end_date, duration, is_active`

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// CreateTest saves a new active test and deactivates any test the owner
// was following before.
func (s *Store) CreateTest(ctx context.Context, test *models.Test) error {
	form, err := json.Marshal(test.FormStructure)
	if err != nil {
		return fmt.Errorf("encode form structure: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if test.IsActive {
			if _, err := tx.ExecContext(ctx,
				s.rebind("UPDATE tests SET is_active = ? WHERE owner_id = ? AND is_active = ?"),
				false, test.OwnerID, true,
			); err != nil {
				return err
			}
		}

		var endDate sql.NullTime
		if test.EndDate != nil {
			endDate = sql.NullTime{Time: *test.EndDate, Valid: true}
		}
		var duration sql.NullInt64
		if test.Duration != nil {
			duration = sql.NullInt64{Int64: int64(*test.Duration), Valid: true}
		}

		query := `
			INSERT INTO tests (` + testColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, s.rebind(query),
			test.ID,
			test.OwnerID,
			test.Name,
			nullString(test.Description),
			string(form),
			test.StartDate,
			endDate,
			duration,
			test.IsActive,
		)
		return err
	})
}

// GetTest retrieves a test by its ID
func (s *Store) GetTest(ctx context.Context, id string) (*models.Test, error) {
	return s.getTest(ctx, s.db, id)
}

// GetActiveTest returns the owner's active test, or nil when there is none.
// If more than one is flagged active the most recently started wins.
func (s *Store) GetActiveTest(ctx context.Context, ownerID string) (*models.Test, error) {
	query := `
		SELECT ` + testColumns + `
		FROM tests
		WHERE owner_id = ? AND is_active = ?
		ORDER BY start_date DESC
		LIMIT 1
	`

	test, err := scanTest(s.db.QueryRowContext(ctx, s.rebind(query), ownerID, true))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return test, nil
}

func (s *Store) getTest(ctx context.Context, q rowQuerier, id string) (*models.Test, error) {
	query := `SELECT ` + testColumns + ` FROM tests WHERE id = ?`

	test, err := scanTest(q.QueryRowContext(ctx, s.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return test, nil
}

func scanTest(row rowScanner) (*models.Test, error) {
	var t models.Test
	var description sql.NullString
	var form []byte
	var endDate sql.NullTime
	var duration sql.NullInt64

	if err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.Name,
		&description,
		&form,
		&t.StartDate,
		&endDate,
		&duration,
		&t.IsActive,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(form, &t.FormStructure); err != nil {
		return nil, fmt.Errorf("decode form structure: %w", err)
	}
	t.Description = stringPtr(description)
	if endDate.Valid {
		end := endDate.Time
		t.EndDate = &end
	}
	if duration.Valid {
		d := int(duration.Int64)
		t.Duration = &d
	}

	return &t, nil
}
