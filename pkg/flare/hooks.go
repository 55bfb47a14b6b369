// hooks.go installs the process-wide interception of the warn and error
// diagnostic channels. The installed handler decorates whatever handler was
// in place: records pass through unchanged, and warn/error records are
// additionally reported as client events.

package flare

import (
	"context"
	"log/slog"
	"sync"
)

// ContextProvider supplies ambient context merged into reported events. It
// is invoked fresh for each event so the values reflect the moment of the
// event, not the moment of installation.
type ContextProvider func() map[string]any

// hookTarget abstracts the owner of the process-wide diagnostic channels so
// the installer can run against an explicit target in tests. A nil target
// makes installation an inert no-op; that is not an error, just an
// environment with nothing to hook.
type hookTarget interface {
	Default() *slog.Logger
	SetDefault(*slog.Logger)
}

// processTarget hooks the real slog default logger.
type processTarget struct{}

func (processTarget) Default() *slog.Logger     { return slog.Default() }
func (processTarget) SetDefault(l *slog.Logger) { slog.SetDefault(l) }

// hookState is the installation singleton: a reference count plus the
// restore material captured at first install. It is created on first
// install and cleared when the count returns to zero, so a later install
// starts fresh.
type hookState struct {
	mu       sync.Mutex
	refs     int
	target   hookTarget
	handler  *hookHandler
	previous *slog.Logger
}

var globalHooks = &hookState{}

// InstallGlobalHooks intercepts the process diagnostic channels, reporting
// through the default reporter. See (*Reporter).InstallGlobalHooks.
func InstallGlobalHooks(provider ContextProvider) func() {
	return Default().InstallGlobalHooks(provider)
}

// InstallGlobalHooks wraps the process-wide diagnostic channels so that
// warn- and error-level records are additionally reported through r, after
// the original handler has run unchanged. Installation is reference
// counted: independent call sites may each install and hold their own
// release function, and the original handler is restored only when the last
// one releases. Calling a release function more than once decrements at
// most once.
//
// When hooks are already installed, later installs increment the count but
// keep the first installer's reporter and provider.
func (r *Reporter) InstallGlobalHooks(provider ContextProvider) func() {
	return globalHooks.install(processTarget{}, r, provider)
}

// install performs the refcounted installation against an explicit target.
func (s *hookState) install(target hookTarget, r *Reporter, provider ContextProvider) func() {
	if target == nil {
		return func() {}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		previous := target.Default()
		handler := &hookHandler{
			next:     previous.Handler(),
			reporter: r,
			provider: provider,
		}
		target.SetDefault(slog.New(handler))
		s.target = target
		s.previous = previous
		s.handler = handler
	}
	s.refs++

	var once sync.Once
	return func() {
		once.Do(s.release)
	}
}

// release decrements the reference count and, at zero, restores the
// original logger and clears the singleton.
func (s *hookState) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		return
	}
	s.refs--
	if s.refs > 0 {
		return
	}

	// Restore only if the current default is still our own wrapper.
	// Another party may have layered its own hook on top since; replacing
	// it would clobber theirs.
	if current, ok := s.target.Default().Handler().(*hookHandler); ok && current == s.handler {
		s.target.SetDefault(s.previous)
	}

	s.target = nil
	s.previous = nil
	s.handler = nil
}

// hookHandler decorates the previously installed slog handler. Records are
// always delegated first; warn and error records are then reported as
// client events. The report side-effect is fully contained: it cannot
// panic, block, or log, so it can never re-enter the channel it hooks.
type hookHandler struct {
	next     slog.Handler
	reporter *Reporter
	provider ContextProvider
}

// Enabled admits warn and error records even when the underlying handler
// filters them out, so capture does not depend on the host's log level.
func (h *hookHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= slog.LevelWarn {
		return true
	}
	return h.next.Enabled(ctx, level)
}

// Handle delegates to the original handler, then reports the record.
func (h *hookHandler) Handle(ctx context.Context, record slog.Record) error {
	var err error
	if h.next.Enabled(ctx, record.Level) {
		err = h.next.Handle(ctx, record)
	}
	h.report(ctx, record)
	return err
}

func (h *hookHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &hookHandler{next: h.next.WithAttrs(attrs), reporter: h.reporter, provider: h.provider}
}

func (h *hookHandler) WithGroup(name string) slog.Handler {
	return &hookHandler{next: h.next.WithGroup(name), reporter: h.reporter, provider: h.provider}
}

// report shapes a warn/error record into a client event. Records below warn
// level, and records with no message, are ignored.
func (h *hookHandler) report(ctx context.Context, record slog.Record) {
	defer func() {
		_ = recover()
	}()

	if record.Level < slog.LevelWarn || h.reporter == nil {
		return
	}

	level := LevelWarning
	eventName := "log.warn"
	if record.Level >= slog.LevelError {
		level = LevelError
		eventName = "log.error"
	}

	// Copy the provider's map before adding attrs; the provider may hand out
	// a map it still owns.
	contextData := mergeContext(safeAmbient(h.provider), nil)
	record.Attrs(func(attr slog.Attr) bool {
		if contextData == nil {
			contextData = make(map[string]any, record.NumAttrs())
		}
		contextData[attr.Key] = attr.Value.Any()
		return true
	})

	h.reporter.Report(ctx, ClientEvent{
		Level:     level,
		Category:  DefaultCategory,
		EventName: eventName,
		Message:   record.Message,
		Context:   contextData,
	})
}
