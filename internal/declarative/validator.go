package declarative

import (
	"fmt"
	"strings"

	"sqlite-provider/internal/ddl"
	"sqlite-provider/internal/resource"
)

// ValidationError represents a single validation problem.
type ValidationError struct {
	Path    string // e.g. "table[users].columns[1]" or "index[idx_name]"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Validate checks the DesiredState for structural correctness and referential integrity.
// It returns a list of all validation errors (does not stop at first error).
func Validate(state *DesiredState) []ValidationError {
	var errs []ValidationError

	// Column sets per table, keyed by lower-cased names since SQLite
	// identifiers are case-insensitive.
	tableColumns := make(map[string]map[string]bool, len(state.Tables))
	for _, t := range state.Tables {
		key := strings.ToLower(t.Name)
		if _, dup := tableColumns[key]; dup {
			addErr(&errs, tablePath(t.Name), "duplicate table name in %s", t.SourceFile)
			continue
		}
		cols := make(map[string]bool, len(t.Spec.Columns))
		for _, c := range t.Spec.Columns {
			cols[strings.ToLower(c.Name)] = true
		}
		tableColumns[key] = cols
		validateTable(t, &errs)
	}

	indexNames := make(map[string]bool, len(state.Indexes))
	for _, x := range state.Indexes {
		key := strings.ToLower(x.Name)
		if indexNames[key] {
			addErr(&errs, indexPath(x.Name), "duplicate index name in %s", x.SourceFile)
			continue
		}
		indexNames[key] = true
		if _, clash := tableColumns[key]; clash {
			addErr(&errs, indexPath(x.Name), "name is already used by a table")
		}
		validateIndex(x, tableColumns, &errs)
	}

	return errs
}

// addErr appends a formatted validation error.
func addErr(errs *[]ValidationError, path, msg string, args ...any) {
	*errs = append(*errs, ValidationError{
		Path:    path,
		Message: fmt.Sprintf(msg, args...),
	})
}

func tablePath(name string) string { return fmt.Sprintf("table[%s]", name) }
func indexPath(name string) string { return fmt.Sprintf("index[%s]", name) }

func validateTable(t TableResource, errs *[]ValidationError) {
	path := tablePath(t.Name)
	if t.Name == "" {
		addErr(errs, t.SourceFile, "table metadata.name is required")
		return
	}

	// Reuse the controller's decoder so the host rejects exactly what the
	// provider would.
	def, err := resource.DecodeTable(t.Attributes())
	if err != nil {
		addErr(errs, path, "%v", err)
		return
	}
	if err := def.Validate(); err != nil {
		addErr(errs, path, "%v", err)
	}
}

func validateIndex(x IndexResource, tableColumns map[string]map[string]bool, errs *[]ValidationError) {
	path := indexPath(x.Name)
	if x.Name == "" {
		addErr(errs, x.SourceFile, "index metadata.name is required")
		return
	}

	def := ddl.IndexDef{Name: x.Name, Table: x.Spec.Table, Columns: x.Spec.Columns, Unique: x.Spec.Unique}
	if err := def.Validate(); err != nil {
		addErr(errs, path, "%v", err)
		return
	}

	cols, ok := tableColumns[strings.ToLower(x.Spec.Table)]
	if !ok {
		addErr(errs, path, "table %q is not declared", x.Spec.Table)
		return
	}
	for i, c := range x.Spec.Columns {
		if !cols[strings.ToLower(c)] {
			addErr(errs, fmt.Sprintf("%s.columns[%d]", path, i), "column %q does not exist in table %q", c, x.Spec.Table)
		}
	}
}
