package repository

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// NewPostgresDB creates and initializes a PostgreSQL database connection
func NewPostgresDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		storage_ref TEXT NOT NULL,
		angle TEXT NOT NULL CHECK (angle IN ('left', 'center', 'right')),
		session_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_photos_owner ON photos(owner_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_photos_session ON photos(session_id);
	CREATE INDEX IF NOT EXISTS idx_photos_storage_ref ON photos(storage_ref);

	CREATE TABLE IF NOT EXISTS tests (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		form_structure JSONB NOT NULL,
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ,
		duration INTEGER,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_tests_owner_active ON tests(owner_id, is_active);

	CREATE TABLE IF NOT EXISTS check_ins (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		test_id TEXT REFERENCES tests(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT TRUE,
		left_photo_id TEXT REFERENCES photos(id) ON DELETE SET NULL,
		center_photo_id TEXT REFERENCES photos(id) ON DELETE SET NULL,
		right_photo_id TEXT REFERENCES photos(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_check_ins_owner_date ON check_ins(owner_id, created_at);

	CREATE TABLE IF NOT EXISTS test_checkins (
		id TEXT PRIMARY KEY,
		check_in_id TEXT REFERENCES check_ins(id) ON DELETE CASCADE,
		test_id TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
		owner_id TEXT NOT NULL,
		answers JSONB NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_test_checkins_owner ON test_checkins(owner_id);
	CREATE INDEX IF NOT EXISTS idx_test_checkins_check_in ON test_checkins(check_in_id);

	CREATE TABLE IF NOT EXISTS profiles (
		owner_id TEXT PRIMARY KEY,
		skin_type TEXT NOT NULL DEFAULT '',
		age_range TEXT NOT NULL DEFAULT '',
		concerns JSONB NOT NULL DEFAULT '[]',
		updated_at TIMESTAMPTZ NOT NULL
	);
	`

	_, err := db.Exec(schema)
	return err
}
