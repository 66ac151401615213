// Package ddl builds SQLite DDL statements for tables and indexes.
package ddl

import (
	"fmt"
	"strings"

	"sqlite-provider/internal/domain"
)

// ColumnDef describes a column for CREATE TABLE.
type ColumnDef struct {
	Name       string
	Type       string
	PrimaryKey bool
	NotNull    bool
	Default    *string
}

// Constraints is the effective constraint set of a column.
type Constraints struct {
	PrimaryKey bool
	NotNull    bool
	Default    *string
}

// Constraints returns the effective constraints. A primary key always
// implies not-null.
func (c ColumnDef) Constraints() Constraints {
	return Constraints{
		PrimaryKey: c.PrimaryKey,
		NotNull:    c.NotNull || c.PrimaryKey,
		Default:    c.Default,
	}
}

// TableDef describes a table for CREATE TABLE.
type TableDef struct {
	Name    string
	Columns []ColumnDef
}

// IndexDef describes an index for CREATE INDEX.
type IndexDef struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

// Validate checks the table name, that at least one column is given, that
// column names are valid and unique, that every column declares a valid
// type, and that at most one column is the primary key.
func (t TableDef) Validate() error {
	if err := ValidateIdentifier(t.Name); err != nil {
		return fmt.Errorf("invalid table name: %w", err)
	}
	if len(t.Columns) == 0 {
		return domain.ErrValidationAt("columns", "at least one column is required")
	}

	seen := make(map[string]bool, len(t.Columns))
	pk := ""
	for i, c := range t.Columns {
		path := fmt.Sprintf("columns[%d]", i)
		if err := ValidateIdentifier(c.Name); err != nil {
			return domain.ErrValidationAt(path+".name", "%s", err.Error())
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			return domain.ErrValidationAt(path+".name", "duplicate column %q", c.Name)
		}
		seen[key] = true
		if err := ValidateColumnType(c.Type); err != nil {
			return domain.ErrValidationAt(path+".type", "%s", err.Error())
		}
		if c.PrimaryKey {
			if pk != "" {
				return domain.ErrValidationAt(path+".constraints.primary_key",
					"only one primary key column is supported (already set on %q)", pk)
			}
			pk = c.Name
		}
	}
	return nil
}

// Validate checks the index name, target table and column list.
func (x IndexDef) Validate() error {
	if err := ValidateIdentifier(x.Name); err != nil {
		return fmt.Errorf("invalid index name: %w", err)
	}
	if err := ValidateIdentifier(x.Table); err != nil {
		return fmt.Errorf("invalid table name: %w", err)
	}
	if len(x.Columns) == 0 {
		return domain.ErrValidationAt("columns", "at least one column is required")
	}
	seen := make(map[string]bool, len(x.Columns))
	for i, c := range x.Columns {
		path := fmt.Sprintf("columns[%d]", i)
		if err := ValidateIdentifier(c); err != nil {
			return domain.ErrValidationAt(path, "%s", err.Error())
		}
		key := strings.ToLower(c)
		if seen[key] {
			return domain.ErrValidationAt(path, "duplicate column %q", c)
		}
		seen[key] = true
	}
	return nil
}

// columnClause renders a single column: name, type, then PRIMARY KEY,
// NOT NULL and DEFAULT in that order. An INTEGER primary key aliases the
// rowid and can never be NULL, so it gets PRIMARY KEY alone; SQLite lets
// any other primary key hold NULLs unless NOT NULL is spelled out.
func columnClause(c ColumnDef) string {
	typ := strings.ToUpper(strings.TrimSpace(c.Type))
	parts := []string{Identifier(c.Name), typ}
	cons := c.Constraints()
	switch {
	case cons.PrimaryKey && typ == "INTEGER":
		parts = append(parts, "PRIMARY KEY")
	case cons.PrimaryKey:
		parts = append(parts, "PRIMARY KEY", "NOT NULL")
	case cons.NotNull:
		parts = append(parts, "NOT NULL")
	}
	if cons.Default != nil {
		parts = append(parts, "DEFAULT "+DefaultLiteral(*cons.Default))
	}
	return strings.Join(parts, " ")
}

// CreateTable returns a SQLite DDL statement:
// CREATE TABLE <table> (<col1> TYPE1 [constraints], <col2> TYPE2 [constraints], ...);
func CreateTable(t TableDef) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	colDefs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		colDefs[i] = columnClause(c)
	}

	return fmt.Sprintf("CREATE TABLE %s (%s);",
		Identifier(t.Name),
		strings.Join(colDefs, ", "),
	), nil
}

// DropTable returns a SQLite DDL statement: DROP TABLE <table>;
func DropTable(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	return fmt.Sprintf("DROP TABLE %s;", Identifier(name)), nil
}

// CreateIndex returns a SQLite DDL statement:
// CREATE [UNIQUE] INDEX <index> ON <table>(<col1>, <col2>, ...);
func CreateIndex(x IndexDef) (string, error) {
	if err := x.Validate(); err != nil {
		return "", err
	}

	cols := make([]string, len(x.Columns))
	for i, c := range x.Columns {
		cols[i] = Identifier(c)
	}

	verb := "CREATE INDEX"
	if x.Unique {
		verb = "CREATE UNIQUE INDEX"
	}
	return fmt.Sprintf("%s %s ON %s(%s);",
		verb,
		Identifier(x.Name),
		Identifier(x.Table),
		strings.Join(cols, ", "),
	), nil
}

// DropIndex returns a SQLite DDL statement: DROP INDEX <index>;
func DropIndex(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid index name: %w", err)
	}
	return fmt.Sprintf("DROP INDEX %s;", Identifier(name)), nil
}
