package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"ccg-hq/gateway/internal/sqlitex"
)

// Store is the configuration store backed by ccg_gateway.db. All methods are
// safe for concurrent use; SQLite serializes the writes.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the configuration database at path,
// reconciles the schema against the declared one, and seeds the default
// settings rows after a fresh create or a migration.
func Open(path string) (*Store, error) {
	db, err := sqlitex.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}

	migrated, err := sqlitex.EnsureSchema(db, configSchema())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure config schema: %w", err)
	}

	s := &Store{
		db:     db,
		logger: slog.Default().With("component", "store"),
	}

	if migrated {
		if err := s.seedDefaults(); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed default settings: %w", err)
		}
	}

	s.logger.Info("configuration store ready",
		"path", path,
		"schema_version", configSchemaVersion,
	)
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// seedDefaults inserts the settings singletons and the per-CLI rows when
// they are missing. Existing rows are left untouched.
func (s *Store) seedDefaults() error {
	stmts := []string{
		`INSERT OR IGNORE INTO gateway_settings (id, debug_log, updated_at) VALUES (1, 0, strftime('%s', 'now'))`,
		`INSERT OR IGNORE INTO timeout_settings (id, stream_first_byte_timeout, stream_idle_timeout, non_stream_timeout, updated_at) VALUES (1, 30, 60, 120, strftime('%s', 'now'))`,
		`INSERT OR IGNORE INTO cli_settings (cli_type, updated_at) VALUES ('claude_code', strftime('%s', 'now'))`,
		`INSERT OR IGNORE INTO cli_settings (cli_type, updated_at) VALUES ('codex', strftime('%s', 'now'))`,
		`INSERT OR IGNORE INTO cli_settings (cli_type, updated_at) VALUES ('gemini', strftime('%s', 'now'))`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}
