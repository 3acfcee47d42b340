package sql

import (
	"regexp"
	"strings"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name)
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// isValidIdentifier checks if the string is a valid SQL identifier.
func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// escapeStringValue escapes a string value for safe use in SQL.
// It escapes both single quotes (by doubling) and backslashes (for MySQL compatibility).
func escapeStringValue(s string) string {
	// Fast path: if no escaping needed, return as-is
	if !strings.ContainsAny(s, `'\`) {
		return s
	}
	// Escape backslashes first, then single quotes
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", "''")
	return s
}

// Identifier is a case-preserving SQL name. Statement aliases keep the case
// they were given both as lookup keys and in rendered text.
type Identifier string

// Name returns the identifier in its original case.
func (i Identifier) Name() string { return string(i) }

// Valid reports whether the identifier is usable in SQL text unquoted.
func (i Identifier) Valid() bool { return isValidIdentifier(string(i)) }

// String returns the identifier in its original case.
func (i Identifier) String() string { return string(i) }
