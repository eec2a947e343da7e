package resolver

import "fmt"

// Result is the outcome of one strategy.
type Result struct {
	value  string
	reason string
	found  bool
}

// Found returns a successful Result. An empty value counts as a miss.
func Found(value string) Result {
	if value == "" {
		return NotFound("empty value")
	}
	return Result{value: value, found: true}
}

// NotFound returns a miss with the reason it was skipped.
func NotFound(reason string) Result {
	return Result{reason: reason}
}

// NotFoundf is NotFound with fmt.Sprintf formatting.
func NotFoundf(format string, args ...any) Result {
	return NotFound(fmt.Sprintf(format, args...))
}

// OK reports whether the strategy produced a value.
func (r Result) OK() bool { return r.found }

// Value returns the resolved value, or "" for a miss.
func (r Result) Value() string { return r.value }

// Reason returns why the strategy missed, or "" when it succeeded.
func (r Result) Reason() string { return r.reason }
