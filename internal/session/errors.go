package session

import "fmt"

// ValidationError reports a malformed or insufficient SessionContext.
// Callers should treat it as "not enough context to recommend", not as a
// failed recommendation run.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid session context: %s", e.Reason)
	}
	return fmt.Sprintf("invalid session context: %s: %s", e.Field, e.Reason)
}
