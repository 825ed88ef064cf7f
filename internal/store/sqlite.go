package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS repage_overrides (
	path       TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteOverrides keeps the set in a single table.
type SQLiteOverrides struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteOverrides, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection so ":memory:" databases keep their table.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteOverrides{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteOverrides) Path() string { return s.path }

func (s *SQLiteOverrides) Load(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM repage_overrides ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteOverrides) Set(ctx context.Context, path string, on bool) error {
	var err error
	if on {
		_, err = s.db.ExecContext(ctx, `INSERT OR IGNORE INTO repage_overrides (path) VALUES (?)`, path)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM repage_overrides WHERE path = ?`, path)
	}
	if err != nil {
		return fmt.Errorf("failed to store override for %s: %w", path, err)
	}
	return nil
}

func (s *SQLiteOverrides) Close() error { return s.db.Close() }
