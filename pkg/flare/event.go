// event.go defines the canonical client event data structure for flare.

package flare

import (
	"errors"
	"strings"
)

// Level indicates the severity of a client event.
type Level string

const (
	// LevelInfo indicates a diagnostic event with no failure attached.
	LevelInfo Level = "info"

	// LevelWarning indicates a non-fatal issue that may need attention.
	LevelWarning Level = "warning"

	// LevelError indicates a failure that caused an operation to break.
	LevelError Level = "error"
)

// DefaultCategory is used when a caller does not group the event itself.
const DefaultCategory = "client"

// ClientEvent is the canonical event representation. Level, Category,
// EventName, and Message are required and must be non-empty; an event
// failing that invariant is rejected by the reporter rather than sent
// malformed. Everything else is optional.
type ClientEvent struct {
	// Level is the event severity.
	Level Level

	// Category is a free-form grouping string (e.g., "frontend").
	Category string

	// EventName identifies the event type.
	EventName string

	// Message is the human-readable description.
	Message string

	// ErrorName is the normalized exception class name, when the event
	// originates from a thrown or recovered value.
	ErrorName string

	// Stack is the normalized stack trace text, when available.
	Stack string

	// Location identifies the call site.
	Location string

	// Action identifies the user action in flight.
	Action string

	// StatusCode is an integer associated with the failure, e.g. an HTTP
	// status. Uses a pointer to distinguish "not set" from "zero value".
	StatusCode *int

	// ThreadID is a free-form correlation identifier.
	ThreadID string

	// Context is arbitrary nested structured data, serialized to a bounded
	// textual form before dispatch.
	Context map[string]any
}

// validate checks the required-field invariant.
func (e ClientEvent) validate() error {
	switch e.Level {
	case LevelInfo, LevelWarning, LevelError:
	default:
		return errors.New("invalid level")
	}
	if e.Category == "" {
		return errors.New("missing category")
	}
	if e.EventName == "" {
		return errors.New("missing event name")
	}
	if e.Message == "" {
		return errors.New("missing message")
	}
	return nil
}

// signatureSeparator joins signature parts. The ASCII unit separator cannot
// appear in ordinary event fields, so joined signatures are unambiguous.
const signatureSeparator = "\x1f"

// signature returns the dedupe key for the event: the four required fields
// joined in a fixed order. Events that agree on all four are treated as
// repeats of one another.
func (e ClientEvent) signature() string {
	return strings.Join([]string{
		string(e.Level),
		e.Category,
		e.EventName,
		e.Message,
	}, signatureSeparator)
}

// EventOptions carries the optional fields accepted by ReportError and
// ReportWarning. The zero value is valid.
type EventOptions struct {
	// Category overrides DefaultCategory when non-empty.
	Category string

	// Location identifies the call site.
	Location string

	// Action identifies the user action in flight.
	Action string

	// StatusCode is an integer associated with the failure.
	StatusCode *int

	// ThreadID is a free-form correlation identifier.
	ThreadID string

	// Context is arbitrary nested structured data.
	Context map[string]any
}
