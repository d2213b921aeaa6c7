package repository

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates and initializes a SQLite database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	// Foreign keys are a per-connection setting, so they go in the DSN
	// rather than a one-off PRAGMA on whichever connection the pool hands out.
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dbPath+sep+"_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- Photos (one row per confirmed angle)
	CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		storage_ref TEXT NOT NULL,
		angle TEXT NOT NULL CHECK (angle IN ('left', 'center', 'right')),
		session_id TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_photos_owner ON photos(owner_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_photos_session ON photos(session_id);
	CREATE INDEX IF NOT EXISTS idx_photos_storage_ref ON photos(storage_ref);

	-- Tests (questionnaire definitions a user follows)
	CREATE TABLE IF NOT EXISTS tests (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		form_structure TEXT NOT NULL,
		start_date DATETIME NOT NULL,
		end_date DATETIME,
		duration INTEGER,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_tests_owner_active ON tests(owner_id, is_active);

	-- Check-ins
	CREATE TABLE IF NOT EXISTS check_ins (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		test_id TEXT REFERENCES tests(id) ON DELETE SET NULL,
		created_at DATETIME NOT NULL,
		completed INTEGER NOT NULL DEFAULT 1,
		left_photo_id TEXT REFERENCES photos(id) ON DELETE SET NULL,
		center_photo_id TEXT REFERENCES photos(id) ON DELETE SET NULL,
		right_photo_id TEXT REFERENCES photos(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_check_ins_owner_date ON check_ins(owner_id, created_at);

	-- Test check-ins (answers + generated summary)
	CREATE TABLE IF NOT EXISTS test_checkins (
		id TEXT PRIMARY KEY,
		check_in_id TEXT REFERENCES check_ins(id) ON DELETE CASCADE,
		test_id TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
		owner_id TEXT NOT NULL,
		answers TEXT NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_test_checkins_owner ON test_checkins(owner_id);
	CREATE INDEX IF NOT EXISTS idx_test_checkins_check_in ON test_checkins(check_in_id);

	-- Profiles (coarse onboarding attributes)
	CREATE TABLE IF NOT EXISTS profiles (
		owner_id TEXT PRIMARY KEY,
		skin_type TEXT NOT NULL DEFAULT '',
		age_range TEXT NOT NULL DEFAULT '',
		concerns TEXT NOT NULL DEFAULT '[]',
		updated_at DATETIME NOT NULL
	);
	`

	_, err := db.Exec(schema)
	return err
}
