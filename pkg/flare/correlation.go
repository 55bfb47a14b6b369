// correlation.go propagates the thread correlation identifier through
// context.Context.

package flare

import "context"

// Context key type (unexported to avoid collisions).
type threadIDKey struct{}

// WithThreadID returns a context with the thread correlation identifier
// attached. Events reported under this context inherit the identifier when
// they do not set one themselves.
func WithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, threadIDKey{}, threadID)
}

// ThreadIDFromContext extracts the thread correlation identifier from
// context. Returns empty string and false if not set or empty.
func ThreadIDFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(threadIDKey{})
	id, ok := v.(string)
	return id, ok && id != ""
}
