// Package stderr provides a Transport that prints client events to stderr
// in human-readable format. Useful for development and debugging; it is not
// the production delivery path.
package stderr

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/flarelabs/flare-go/pkg/flare"
)

// Option configures the stderr transport.
type Option func(*config)

type config struct {
	verbose bool
}

// WithVerbose enables full event details including stack traces.
func WithVerbose() Option {
	return func(c *config) {
		c.verbose = true
	}
}

// transport writes events to stderr in human-readable format.
type transport struct {
	verbose bool
}

// NewTransport creates a Transport that writes to stderr.
func NewTransport(opts ...Option) flare.Transport {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &transport{verbose: cfg.verbose}
}

// Send formats and prints the payload.
func (t *transport) Send(ctx context.Context, payload flare.Payload) error {
	timestamp := time.UnixMilli(payload.TimestampMs).Format(time.RFC3339)
	level := strings.ToUpper(string(payload.Level))

	parts := []string{fmt.Sprintf("[FLARE] %s %s %s/%s", timestamp, level, payload.Category, payload.EventName)}
	if payload.Location != "" {
		parts = append(parts, fmt.Sprintf("at %s", payload.Location))
	}
	if payload.Action != "" {
		parts = append(parts, fmt.Sprintf("during %s", payload.Action))
	}
	fmt.Fprintln(os.Stderr, strings.Join(parts, " "))

	if payload.Message != "" {
		fmt.Fprintf(os.Stderr, "        Message: %s\n", payload.Message)
	}
	if payload.ErrorName != "" {
		fmt.Fprintf(os.Stderr, "        Error: %s\n", payload.ErrorName)
	}
	if payload.StatusCode != nil {
		fmt.Fprintf(os.Stderr, "        Status: %d\n", *payload.StatusCode)
	}
	if payload.ThreadID != "" {
		fmt.Fprintf(os.Stderr, "        Thread: %s\n", payload.ThreadID)
	}
	if payload.Context != "" {
		fmt.Fprintf(os.Stderr, "        Context: %s\n", payload.Context)
	}

	if t.verbose && payload.Stack != "" {
		fmt.Fprintf(os.Stderr, "        Stack trace:\n")
		for _, line := range strings.Split(payload.Stack, "\n") {
			fmt.Fprintf(os.Stderr, "          %s\n", line)
		}
	}

	return nil
}
