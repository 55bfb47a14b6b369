// normalize.go turns arbitrary recovered or thrown values into a stable
// error shape.

package flare

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// UnknownErrorName is reported for values that carry no error shape of
// their own.
const UnknownErrorName = "UnknownError"

// NormalizedError is the stable {name, message, stack} rendering of an
// arbitrary value.
type NormalizedError struct {
	// Name is the exception class name, or UnknownErrorName.
	Name string

	// Message is a best-effort textual rendering of the value. Never empty
	// for non-nil input unless the value's own Error method returns "".
	Message string

	// Stack is the stack trace text, or empty when unavailable.
	Stack string
}

// stackTracer is the optional accessor for errors that carry their own
// formatted stack trace.
type stackTracer interface {
	StackTrace() string
}

// Normalize converts an arbitrary value into a NormalizedError. Values with
// conventional error shape use their own fields; everything else becomes an
// UnknownError with a best-effort message (JSON when serializable, a generic
// type description otherwise). Normalize never panics, regardless of input:
// nil, primitives, and cyclic structures all produce a usable result.
func Normalize(value any) (n NormalizedError) {
	defer func() {
		if recover() != nil {
			n = NormalizedError{Name: UnknownErrorName, Message: "unrenderable value"}
		}
	}()

	if value == nil {
		return NormalizedError{Name: UnknownErrorName, Message: "<nil>"}
	}

	if err, ok := value.(error); ok {
		n := NormalizedError{Name: errorTypeName(err), Message: err.Error()}
		if st, ok := value.(stackTracer); ok {
			n.Stack = st.StackTrace()
		}
		return n
	}

	return NormalizedError{Name: UnknownErrorName, Message: renderValue(value)}
}

// errorTypeName derives a class-like name from the concrete error type.
// Generic errors from the errors and fmt packages, and anonymous types,
// report "Error".
func errorTypeName(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "Error"
	}
	switch t.PkgPath() {
	case "errors", "fmt":
		return "Error"
	}
	return t.Name()
}

// renderValue produces a best-effort textual rendering of a non-error value.
func renderValue(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	if b, err := json.Marshal(value); err == nil {
		return string(b)
	}
	return fmt.Sprintf("unserializable value of type %T", value)
}
