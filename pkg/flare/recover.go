// recover.go provides deferred panic capture feeding the reporter. This is
// the capture path for uncaught failures in spawned work, alongside the
// diagnostic-channel hooks in hooks.go.

package flare

import (
	"context"
	"runtime/debug"
)

// Recover captures a panic, reports it, and returns the recovered value.
// It does NOT re-panic.
//
// It must be deferred directly; recover only observes a panic from the
// immediately deferred call:
//
//	func handler(ctx context.Context) {
//	    defer reporter.Recover(ctx)
//	    // code that might panic
//	}
func (r *Reporter) Recover(ctx context.Context) any {
	rec := recover()
	if rec == nil {
		return nil
	}
	r.reportRecovered(ctx, rec)
	return rec
}

// Recover is the package-level form of (*Reporter).Recover, reporting
// through the default reporter. It must be deferred directly, like
// (*Reporter).Recover; recover only works in the immediately deferred call.
func Recover(ctx context.Context) any {
	rec := recover()
	if rec == nil {
		return nil
	}
	Default().reportRecovered(ctx, rec)
	return rec
}

// reportRecovered shapes a recovered panic value into an error-level event.
func (r *Reporter) reportRecovered(ctx context.Context, rec any) {
	n := Normalize(rec)
	message := n.Message
	if message == "" {
		message = n.Name
	}
	stack := n.Stack
	if stack == "" {
		stack = string(debug.Stack())
	}

	r.Report(ctx, ClientEvent{
		Level:     LevelError,
		Category:  DefaultCategory,
		EventName: "panic",
		Message:   message,
		ErrorName: n.Name,
		Stack:     stack,
	})
}

// Go runs fn in a new goroutine, reporting any panic instead of crashing
// the process.
func (r *Reporter) Go(fn func()) {
	go func() {
		defer r.Recover(context.Background())
		fn()
	}()
}

// Go runs fn in a new goroutine, reporting any panic through the default
// reporter.
func Go(fn func()) {
	Default().Go(fn)
}
