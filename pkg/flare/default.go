// default.go holds the process-wide default reporter behind the
// package-level entry points.

package flare

import (
	"context"
	"sync"
)

var (
	defaultMu       sync.RWMutex
	defaultReporter *Reporter
)

// Default returns the process-wide reporter used by the package-level entry
// points. Until SetDefault is called it delivers to a no-op transport, so
// reporting before configuration is harmless.
func Default() *Reporter {
	defaultMu.RLock()
	r := defaultReporter
	defaultMu.RUnlock()
	if r != nil {
		return r
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultReporter == nil {
		defaultReporter = NewReporter()
	}
	return defaultReporter
}

// SetDefault replaces the process-wide reporter. The previous reporter is
// not closed; callers that constructed it own its lifecycle.
func SetDefault(r *Reporter) {
	defaultMu.Lock()
	defaultReporter = r
	defaultMu.Unlock()
}

// Report reports an event through the default reporter.
func Report(ctx context.Context, event ClientEvent) {
	Default().Report(ctx, event)
}

// ReportError reports an error-level event derived from an arbitrary caught
// value through the default reporter.
func ReportError(ctx context.Context, eventName string, value any, opts EventOptions) {
	Default().ReportError(ctx, eventName, value, opts)
}

// ReportWarning reports a warning-level event through the default reporter.
func ReportWarning(ctx context.Context, eventName, message string, opts EventOptions) {
	Default().ReportWarning(ctx, eventName, message, opts)
}
