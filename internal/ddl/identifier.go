package ddl

import (
	"regexp"
	"strings"

	"sqlite-provider/internal/domain"
)

// bareIdentifierRe matches identifiers that can be emitted without quoting.
var bareIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// columnTypeRe matches SQLite declared type names, optionally with size parameters.
// Accepted forms:
//
//	WORD [WORD...]             → INTEGER, TEXT, UNSIGNED BIG INT
//	WORD(digits)               → VARCHAR(255)
//	WORD(digits, digits)       → DECIMAL(10,2)
//
// Case-insensitive.
var columnTypeRe = regexp.MustCompile(`(?i)^[A-Z][A-Z0-9_]*(?: [A-Z][A-Z0-9_]*)*(?:\(\s*\d+\s*(?:,\s*\d+\s*)?\))?$`)

// numericLiteralRe matches literals SQLite accepts unquoted in a DEFAULT clause.
var numericLiteralRe = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?$`)

// maxIdentifierLen is the maximum length allowed for a SQL identifier.
const maxIdentifierLen = 128

// maxColumnTypeLen is the maximum length allowed for a column type string.
const maxColumnTypeLen = 64

// keywords are SQLite keywords that must be quoted when used as identifiers.
var keywords = map[string]bool{}

func init() {
	for _, k := range strings.Fields(`ABORT ACTION ADD AFTER ALL ALTER ALWAYS ANALYZE AND AS ASC ATTACH
AUTOINCREMENT BEFORE BEGIN BETWEEN BY CASCADE CASE CAST CHECK COLLATE COLUMN COMMIT CONFLICT
CONSTRAINT CREATE CROSS CURRENT CURRENT_DATE CURRENT_TIME CURRENT_TIMESTAMP DATABASE DEFAULT
DEFERRABLE DEFERRED DELETE DESC DETACH DISTINCT DO DROP EACH ELSE END ESCAPE EXCEPT EXCLUDE
EXCLUSIVE EXISTS EXPLAIN FAIL FILTER FIRST FOLLOWING FOR FOREIGN FROM FULL GENERATED GLOB GROUP
GROUPS HAVING IF IGNORE IMMEDIATE IN INDEX INDEXED INITIALLY INNER INSERT INSTEAD INTERSECT INTO
IS ISNULL JOIN KEY LAST LEFT LIKE LIMIT MATCH MATERIALIZED NATURAL NO NOT NOTHING NOTNULL NULL
NULLS OF OFFSET ON OR ORDER OTHERS OUTER OVER PARTITION PLAN PRAGMA PRECEDING PRIMARY QUERY
RAISE RANGE RECURSIVE REFERENCES REGEXP REINDEX RELEASE RENAME REPLACE RESTRICT RETURNING RIGHT
ROLLBACK ROW ROWS SAVEPOINT SELECT SET TABLE TEMP TEMPORARY THEN TIES TO TRANSACTION TRIGGER
UNBOUNDED UNION UNIQUE UPDATE USING VACUUM VALUES VIEW VIRTUAL WHEN WHERE WINDOW WITH WITHOUT`) {
		keywords[k] = true
	}
}

// ValidateIdentifier checks that name is usable as a SQLite object or column name:
//   - Non-empty
//   - At most 128 characters
//   - No NUL bytes
//   - Not in the reserved sqlite_ namespace
func ValidateIdentifier(name string) error {
	if name == "" {
		return domain.ErrValidation("name is required")
	}
	if len(name) > maxIdentifierLen {
		return domain.ErrValidation("name must be at most %d characters", maxIdentifierLen)
	}
	if strings.ContainsRune(name, 0) {
		return domain.ErrValidation("name must not contain NUL characters")
	}
	if strings.HasPrefix(strings.ToLower(name), "sqlite_") {
		return domain.ErrValidation("name %q uses the reserved sqlite_ prefix", name)
	}
	return nil
}

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double-quote characters by doubling them (standard SQL).
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Identifier renders name bare when it is a plain non-keyword identifier
// and quoted otherwise.
func Identifier(name string) string {
	if bareIdentifierRe.MatchString(name) && !keywords[strings.ToUpper(name)] {
		return name
	}
	return QuoteIdentifier(name)
}

// QuoteLiteral wraps a string value in single quotes, escaping any
// embedded single-quote characters by doubling them (standard SQL).
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// ValidateColumnType checks that typeName is a safe SQLite declared type:
//   - Non-empty
//   - At most 64 characters
//   - Matches the allowed type pattern
func ValidateColumnType(typeName string) error {
	if typeName == "" {
		return domain.ErrValidation("column type is required")
	}
	if len(typeName) > maxColumnTypeLen {
		return domain.ErrValidation("column type must be at most %d characters", maxColumnTypeLen)
	}
	if strings.ContainsAny(typeName, ";-'\"\\") {
		return domain.ErrValidation("column type contains invalid characters")
	}
	if !columnTypeRe.MatchString(typeName) {
		return domain.ErrValidation("column type %q is not a recognized type pattern", typeName)
	}
	return nil
}

// DefaultLiteral renders a DEFAULT value. Numbers and the SQLite constant
// keywords are emitted as-is; everything else becomes a string literal.
func DefaultLiteral(value string) string {
	switch strings.ToUpper(value) {
	case "NULL", "TRUE", "FALSE", "CURRENT_TIME", "CURRENT_DATE", "CURRENT_TIMESTAMP":
		return strings.ToUpper(value)
	}
	if numericLiteralRe.MatchString(value) {
		return value
	}
	return QuoteLiteral(value)
}
