package fleet

import "strings"

// ValidationError reports a request that is missing required fields
// after resolution. It maps to HTTP 400 and is never retried.
type ValidationError struct {
	// Fields lists the missing field names.
	Fields []string

	// Message is the client-facing description.
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Client-facing validation messages.
const (
	msgAssignMissing = "Missing serial, user_id, or email"
	msgSerialUnknown = "Could not determine device serial number"
)
