package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Store persists photos, check-ins, tests and profiles. One implementation
// serves both backends; queries are written with ? placeholders and
// rebound to $n for PostgreSQL.
type Store struct {
	db      DBTX
	dialect dialect
}

var (
	_ RecordStore = (*Store)(nil)
	_ PhotoRepo   = (*Store)(nil)
	_ TestRepo    = (*Store)(nil)
	_ ProfileRepo = (*Store)(nil)
)

// NewSQLiteStore creates a Store over a SQLite connection
func NewSQLiteStore(db DBTX) *Store {
	return &Store{db: db, dialect: dialectSQLite}
}

// NewPostgresStore creates a Store over a PostgreSQL connection
func NewPostgresStore(db DBTX) *Store {
	return &Store{db: db, dialect: dialectPostgres}
}

// rebind converts ? placeholders to the backend's form
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for _, r := range query {
		if r == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
