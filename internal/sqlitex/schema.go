package sqlitex

import "strings"

// Column declares one column of a managed table.
type Column struct {
	Name     string
	Type     string // INTEGER or TEXT
	Nullable bool
	Default  string // SQL literal, empty means no default
}

// Table declares a managed table. Column order is significant: it is the
// order used in generated CREATE TABLE statements.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
	Uniques    [][]string
}

// CreateSQL renders the CREATE TABLE statement for the table. The rendered
// form is also what migrations compare against sqlite_master, so the layout
// must stay stable.
func (t Table) CreateSQL() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(t.Name)
	b.WriteString(" (\n")

	defs := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		parts := []string{col.Name, col.Type}
		if !col.Nullable {
			parts = append(parts, "NOT NULL")
		}
		if col.Default != "" {
			parts = append(parts, "DEFAULT "+col.Default)
		}
		defs = append(defs, "    "+strings.Join(parts, " "))
	}
	b.WriteString(strings.Join(defs, ",\n"))

	if len(t.PrimaryKey) > 0 {
		b.WriteString(",\n    PRIMARY KEY (")
		b.WriteString(strings.Join(t.PrimaryKey, ", "))
		b.WriteString(")")
	}
	for _, unique := range t.Uniques {
		b.WriteString(",\n    UNIQUE(")
		b.WriteString(strings.Join(unique, ", "))
		b.WriteString(")")
	}

	b.WriteString("\n)")
	return b.String()
}

// ColumnNames returns the declared column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Schema is the declarative description of one database: a version number
// and the full set of tables expected at that version.
type Schema struct {
	Version int64
	Tables  []Table
}

// Table looks up a declared table by name.
func (s Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
