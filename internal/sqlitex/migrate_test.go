package sqlitex

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSchemaV1() Schema {
	return Schema{
		Version: 1,
		Tables: []Table{
			{
				Name: "widgets",
				Columns: []Column{
					{Name: "id", Type: "INTEGER"},
					{Name: "name", Type: "TEXT"},
					{Name: "legacy_flag", Type: "INTEGER", Nullable: true},
				},
				PrimaryKey: []string{"id"},
			},
			{
				Name: "doomed",
				Columns: []Column{
					{Name: "id", Type: "INTEGER"},
				},
				PrimaryKey: []string{"id"},
			},
		},
	}
}

func testSchemaV2() Schema {
	return Schema{
		Version: 2,
		Tables: []Table{
			{
				// widgets gains a column and loses legacy_flag.
				Name: "widgets",
				Columns: []Column{
					{Name: "id", Type: "INTEGER"},
					{Name: "name", Type: "TEXT"},
					{Name: "color", Type: "TEXT", Nullable: true},
				},
				PrimaryKey: []string{"id"},
			},
			{
				Name: "gadgets",
				Columns: []Column{
					{Name: "id", Type: "INTEGER"},
					{Name: "widget_id", Type: "INTEGER"},
				},
				PrimaryKey: []string{"id"},
			},
		},
	}
}

func TestEnsureSchema_FreshCreate(t *testing.T) {
	db := openTestDB(t)

	migrated, err := EnsureSchema(db, testSchemaV1())
	if err != nil {
		t.Fatalf("EnsureSchema() failed: %v", err)
	}
	if !migrated {
		t.Error("fresh create should report migrated = true")
	}

	if _, err := db.Exec("INSERT INTO widgets (id, name, legacy_flag) VALUES (1, 'a', 1)"); err != nil {
		t.Fatalf("insert into created table failed: %v", err)
	}

	// Same schema again is a no-op.
	migrated, err = EnsureSchema(db, testSchemaV1())
	if err != nil {
		t.Fatalf("EnsureSchema() failed: %v", err)
	}
	if migrated {
		t.Error("unchanged schema should report migrated = false")
	}
}

func TestEnsureSchema_MigratesAndPreservesSharedColumns(t *testing.T) {
	db := openTestDB(t)

	if _, err := EnsureSchema(db, testSchemaV1()); err != nil {
		t.Fatalf("EnsureSchema(v1) failed: %v", err)
	}
	if _, err := db.Exec("INSERT INTO widgets (id, name, legacy_flag) VALUES (1, 'kept', 1)"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("INSERT INTO doomed (id) VALUES (1)"); err != nil {
		t.Fatal(err)
	}

	migrated, err := EnsureSchema(db, testSchemaV2())
	if err != nil {
		t.Fatalf("EnsureSchema(v2) failed: %v", err)
	}
	if !migrated {
		t.Fatal("version bump should report migrated = true")
	}

	// Shared columns survive the rebuild.
	var name string
	if err := db.QueryRow("SELECT name FROM widgets WHERE id = 1").Scan(&name); err != nil {
		t.Fatalf("row lost in rebuild: %v", err)
	}
	if name != "kept" {
		t.Errorf("name = %q, want kept", name)
	}

	// The new column exists, the removed one is gone.
	if _, err := db.Exec("UPDATE widgets SET color = 'red' WHERE id = 1"); err != nil {
		t.Errorf("new column missing: %v", err)
	}
	if _, err := db.Exec("SELECT legacy_flag FROM widgets"); err == nil {
		t.Error("legacy_flag should be dropped")
	}

	// Undeclared tables are dropped, new ones created.
	if _, err := db.Exec("SELECT id FROM doomed"); err == nil {
		t.Error("doomed table should be dropped")
	}
	if _, err := db.Exec("INSERT INTO gadgets (id, widget_id) VALUES (1, 1)"); err != nil {
		t.Errorf("gadgets table missing: %v", err)
	}

	version, err := schemaVersion(db)
	if err != nil {
		t.Fatalf("schemaVersion() failed: %v", err)
	}
	if version != 2 {
		t.Errorf("version = %d, want 2", version)
	}
}

func TestEnsureSchema_NeverDowngrades(t *testing.T) {
	db := openTestDB(t)

	if _, err := EnsureSchema(db, testSchemaV2()); err != nil {
		t.Fatalf("EnsureSchema(v2) failed: %v", err)
	}

	// An older declaration is ignored; the live schema stays at v2.
	migrated, err := EnsureSchema(db, testSchemaV1())
	if err != nil {
		t.Fatalf("EnsureSchema(v1) failed: %v", err)
	}
	if migrated {
		t.Error("older schema version must not trigger a migration")
	}
	if _, err := db.Exec("INSERT INTO gadgets (id, widget_id) VALUES (1, 1)"); err != nil {
		t.Errorf("v2 table lost: %v", err)
	}
}

func TestTable_CreateSQL(t *testing.T) {
	table := Table{
		Name: "t",
		Columns: []Column{
			{Name: "id", Type: "INTEGER"},
			{Name: "note", Type: "TEXT", Nullable: true, Default: "''"},
		},
		PrimaryKey: []string{"id"},
		Uniques:    [][]string{{"id", "note"}},
	}
	ddl := table.CreateSQL()
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS t",
		"id INTEGER NOT NULL",
		"note TEXT DEFAULT ''",
		"PRIMARY KEY (id)",
		"UNIQUE(id, note)",
	} {
		if !strings.Contains(ddl, want) {
			t.Errorf("CreateSQL() missing %q:\n%s", want, ddl)
		}
	}
}
