package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // driver: sqlite
)

// SQLiteDSN builds a modernc DSN for a database file with the pragmas the
// grading store relies on: foreign keys for answer cascades and a busy
// timeout so concurrent writers wait instead of failing.
func SQLiteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}

// NewSQLite opens and validates an embedded SQLite database.
func NewSQLite(ctx context.Context, path string, log zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", SQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite allows one writer; a single connection serializes transactions.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	log.Info().
		Str("path", path).
		Msg("SQLite opened")

	return db, nil
}
