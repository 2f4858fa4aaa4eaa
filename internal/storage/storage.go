package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const MemoryPath = ":memory:"

// Connect opens the database file at path, creating its directory when
// needed. The schema is left as is.
func Connect(path string) (*sql.DB, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite has a single writer, and every :memory: connection is its own
	// database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}

// NewSQLite connects to path and brings the schema up to date.
func NewSQLite(path string) (*sql.DB, error) {
	db, err := Connect(path)
	if err != nil {
		return nil, err
	}
	if _, err := Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Open prepares the database at path, seeds the demo account unless disabled,
// and returns a Store over it.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := NewSQLite(path)
	if err != nil {
		return nil, err
	}

	s, err := New(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}

	if s.seedDemo {
		seeded, err := SeedDemo(ctx, db, s.cost)
		if err != nil {
			db.Close()
			return nil, err
		}
		if seeded {
			s.log.Info().Str("email", DemoEmail).Msg("demo account created")
		}
	}
	return s, nil
}
