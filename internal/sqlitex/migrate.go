package sqlitex

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// versionTableSQL declares the version bookkeeping table. It lives outside
// the managed schema: its leading underscore keeps it out of table diffs.
const versionTableSQL = `CREATE TABLE IF NOT EXISTS _schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`

type changeKind int

const (
	dropTable changeKind = iota
	createTable
	rebuildTable
)

type schemaChange struct {
	kind  changeKind
	table string
}

// EnsureSchema brings db in line with the declared schema.
//
// A fresh database gets every table created and the version recorded. A
// database at or beyond the declared version is left untouched. An older
// database is migrated: tables missing from the declaration are dropped,
// missing tables are created, and tables whose live definition diverges are
// rebuilt by copy-through-rename, preserving the intersection of old and new
// columns. Returns true when anything was created or migrated, so callers
// know to (re)seed defaults.
func EnsureSchema(db *sql.DB, schema Schema) (bool, error) {
	logger := slog.Default().With("component", "sqlitex")

	empty, err := isEmptyDatabase(db)
	if err != nil {
		return false, fmt.Errorf("inspect database: %w", err)
	}
	if empty {
		if err := createFresh(db, schema); err != nil {
			return false, err
		}
		logger.Info("created fresh database schema", "version", schema.Version)
		return true, nil
	}

	current, err := schemaVersion(db)
	if err != nil {
		return false, fmt.Errorf("read schema version: %w", err)
	}
	if current >= schema.Version {
		return false, nil
	}

	logger.Info("migrating database schema", "from", current, "to", schema.Version)

	changes, err := diffSchema(db, schema)
	if err != nil {
		return false, fmt.Errorf("diff schema: %w", err)
	}
	if len(changes) > 0 {
		logger.Info("applying schema changes", "count", len(changes))
		if err := applyChanges(db, schema, changes); err != nil {
			return false, fmt.Errorf("apply schema changes: %w", err)
		}
	}

	if err := writeVersion(db, schema.Version); err != nil {
		return false, fmt.Errorf("write schema version: %w", err)
	}
	return true, nil
}

func createFresh(db *sql.DB, schema Schema) error {
	for _, t := range schema.Tables {
		if _, err := db.Exec(t.CreateSQL()); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return writeVersion(db, schema.Version)
}

// diffSchema compares the declared tables against the live database and
// returns the ordered change list: drops of undeclared tables first, then
// creates and rebuilds in declaration order.
func diffSchema(db *sql.DB, schema Schema) ([]schemaChange, error) {
	actual, err := userTables(db)
	if err != nil {
		return nil, err
	}

	var changes []schemaChange
	for name := range actual {
		if _, ok := schema.Table(name); !ok {
			changes = append(changes, schemaChange{kind: dropTable, table: name})
		}
	}

	for _, t := range schema.Tables {
		if _, ok := actual[t.Name]; !ok {
			changes = append(changes, schemaChange{kind: createTable, table: t.Name})
			continue
		}
		liveSQL, err := createTableSQL(db, t.Name)
		if err != nil {
			return nil, err
		}
		if liveSQL != "" && !sqlEquivalent(t.CreateSQL(), liveSQL) {
			changes = append(changes, schemaChange{kind: rebuildTable, table: t.Name})
		}
	}
	return changes, nil
}

func applyChanges(db *sql.DB, schema Schema, changes []schemaChange) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, ch := range changes {
		switch ch.kind {
		case dropTable:
			if _, err := tx.Exec("DROP TABLE IF EXISTS " + ch.table); err != nil {
				return fmt.Errorf("drop table %s: %w", ch.table, err)
			}
		case createTable:
			t, _ := schema.Table(ch.table)
			if _, err := tx.Exec(t.CreateSQL()); err != nil {
				return fmt.Errorf("create table %s: %w", ch.table, err)
			}
		case rebuildTable:
			if err := rebuild(tx, schema, ch.table); err != nil {
				return fmt.Errorf("rebuild table %s: %w", ch.table, err)
			}
		}
	}
	return tx.Commit()
}

// rebuild renames the live table aside, creates it from the declaration, and
// copies over every column both versions share. Renamed columns lose their
// data; that is the accepted cost of declarative migration.
func rebuild(tx *sql.Tx, schema Schema, name string) error {
	expected, ok := schema.Table(name)
	if !ok {
		return fmt.Errorf("table %s not declared", name)
	}

	liveColumns, err := tableColumnNames(tx, name)
	if err != nil {
		return err
	}

	declared := make(map[string]struct{}, len(expected.Columns))
	for _, c := range expected.Columns {
		declared[c.Name] = struct{}{}
	}
	var keep []string
	for _, c := range liveColumns {
		if _, ok := declared[c]; ok {
			keep = append(keep, c)
		}
	}
	if len(keep) == 0 {
		return fmt.Errorf("no shared columns to migrate")
	}

	if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s RENAME TO %s_old", name, name)); err != nil {
		return err
	}
	if _, err := tx.Exec(expected.CreateSQL()); err != nil {
		return err
	}
	cols := strings.Join(keep, ", ")
	copySQL := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s_old", name, cols, cols, name)
	if _, err := tx.Exec(copySQL); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("DROP TABLE %s_old", name)); err != nil {
		return err
	}
	return nil
}

// isEmptyDatabase reports whether the database holds neither the version
// table nor any user table.
func isEmptyDatabase(db *sql.DB) (bool, error) {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='_schema_version'",
	).Scan(&name)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, err
	}

	tables, err := userTables(db)
	if err != nil {
		return false, err
	}
	return len(tables) == 0, nil
}

// schemaVersion returns the highest recorded version, or 0 when the version
// table is missing or empty.
func schemaVersion(db *sql.DB) (int64, error) {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='_schema_version'",
	).Scan(&name)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int64
	err = db.QueryRow("SELECT version FROM _schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func writeVersion(db *sql.DB, version int64) error {
	if _, err := db.Exec(versionTableSQL); err != nil {
		return err
	}
	_, err := db.Exec(
		"INSERT OR REPLACE INTO _schema_version (version, applied_at) VALUES (?, ?)",
		version, time.Now().Unix(),
	)
	return err
}

// userTables lists live tables, excluding sqlite internals and anything
// prefixed with underscore (the version table).
func userTables(db *sql.DB) (map[string]struct{}, error) {
	rows, err := db.Query(
		`SELECT name FROM sqlite_master
         WHERE type='table'
         AND name NOT LIKE 'sqlite_%'
         AND name NOT GLOB '_*'`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables[name] = struct{}{}
	}
	return tables, rows.Err()
}

func tableColumnNames(tx *sql.Tx, table string) ([]string, error) {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func createTableSQL(db *sql.DB, table string) (string, error) {
	var ddl sql.NullString
	err := db.QueryRow(
		"SELECT sql FROM sqlite_master WHERE type='table' AND name=?", table,
	).Scan(&ddl)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return ddl.String, nil
}

// sqlEquivalent compares two CREATE TABLE statements ignoring quoting,
// IF NOT EXISTS, whitespace, and case.
func sqlEquivalent(a, b string) bool {
	return strings.EqualFold(normalizeSQL(a), normalizeSQL(b))
}

func normalizeSQL(s string) string {
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.ReplaceAll(s, "IF NOT EXISTS", "")
	return strings.Join(strings.Fields(s), " ")
}
