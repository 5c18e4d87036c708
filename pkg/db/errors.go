package db

import "strings"

// IsUniqueViolation reports whether the provided error is a unique constraint
// failure from Postgres or SQLite. When constraintName is provided, the helper
// also requires the constraint text in the error message; SQLite never names
// the index, so the name check only applies to Postgres messages.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return true
	case strings.Contains(msg, "duplicate key value"), strings.Contains(msg, "SQLSTATE 23505"):
		return constraintName == "" || strings.Contains(msg, constraintName)
	default:
		return false
	}
}
