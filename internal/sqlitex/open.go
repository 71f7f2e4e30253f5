package sqlitex

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// maxConns bounds each store's connection pool.
const maxConns = 5

// Open opens an SQLite database via the named database/sql driver, creating
// the parent directory if needed. Every pooled connection gets WAL
// journaling, a 5s busy timeout, foreign keys, and immediate transaction
// locking; the two supported drivers spell those options differently.
func Open(driver, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	var dsn string
	switch driver {
	case "sqlite3": // mattn/go-sqlite3
		dsn = "file:" + path +
			"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	case "sqlite": // modernc.org/sqlite
		dsn = "file:" + path + "?_txlock=immediate" +
			"&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	default:
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}
