// scrub.go implements sensitive data redaction for outgoing events.

package flare

import "regexp"

// ScrubberConfig controls scrubbing behavior.
type ScrubberConfig struct {
	// MaxMessageSize is the maximum length for event messages (default: 4096).
	MaxMessageSize int

	// MaxStackSize is the maximum length for stack traces (default: 32768).
	MaxStackSize int

	// MaxContextSize is the maximum length for the serialized context
	// (default: 16384).
	MaxContextSize int
}

// DefaultScrubberConfig returns production-safe defaults.
func DefaultScrubberConfig() ScrubberConfig {
	return ScrubberConfig{
		MaxMessageSize: 4096,
		MaxStackSize:   32768,
		MaxContextSize: 16384,
	}
}

// Compiled patterns for message and context scrubbing (compiled once at
// package init).
var scrubPatterns = []*regexp.Regexp{
	// API keys and tokens
	regexp.MustCompile(`(?i)(api[_-]?key|token)[=:\s]+['"]?[\w\-\.]+['"]?`),
	regexp.MustCompile(`(?i)(authorization|bearer)[=:\s]+['"]?[\w\-\.]+['"]?`),
	regexp.MustCompile(`(?i)sk-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`(?i)ghp_[a-zA-Z0-9]{36}`),
	regexp.MustCompile(`(?i)eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), // JWT

	// Credentials
	regexp.MustCompile(`(?i)password[=:\s]+['"]?[^\s'"",]+['"]?`),
	regexp.MustCompile(`(?i)secret[=:\s]+['"]?[^\s'"",]+['"]?`),
	regexp.MustCompile(`(?i)credential[=:\s]+['"]?[^\s'"",]+['"]?`),

	// PII
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`), // Email
}

// Path patterns to normalize in stack traces.
var pathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/home/[^/]+/`),
	regexp.MustCompile(`/Users/[^/]+/`),
	regexp.MustCompile(`C:\\Users\\[^\\]+\\`),
}

var addressPattern = regexp.MustCompile(`0x[0-9a-fA-F]+`)

// Scrubber redacts sensitive data from outgoing payload fields.
type Scrubber struct {
	cfg ScrubberConfig
}

// NewScrubber creates a scrubber with the given configuration.
func NewScrubber(cfg ScrubberConfig) *Scrubber {
	return &Scrubber{cfg: cfg}
}

// ScrubMessage redacts sensitive patterns from an event message and caps
// its length.
func (s *Scrubber) ScrubMessage(msg string) string {
	if msg == "" {
		return msg
	}
	if len(msg) > s.cfg.MaxMessageSize {
		msg = truncateWithMarker(msg, s.cfg.MaxMessageSize)
	}
	for _, pattern := range scrubPatterns {
		msg = pattern.ReplaceAllString(msg, "[REDACTED]")
	}
	return msg
}

// ScrubStack normalizes user-specific paths and memory addresses in a stack
// trace and caps its length.
func (s *Scrubber) ScrubStack(trace string) string {
	if trace == "" {
		return trace
	}
	for _, pattern := range pathPatterns {
		trace = pattern.ReplaceAllString(trace, "/[PATH]/")
	}
	trace = addressPattern.ReplaceAllString(trace, "0x...")
	if len(trace) > s.cfg.MaxStackSize {
		trace = truncateWithMarker(trace, s.cfg.MaxStackSize)
	}
	return trace
}

// ScrubContext redacts sensitive patterns from the serialized context and
// caps its length. The context is already flattened to text at this point,
// so message patterns apply directly.
func (s *Scrubber) ScrubContext(context string) string {
	if context == "" {
		return context
	}
	for _, pattern := range scrubPatterns {
		context = pattern.ReplaceAllString(context, "[REDACTED]")
	}
	if len(context) > s.cfg.MaxContextSize {
		context = truncateWithMarker(context, s.cfg.MaxContextSize)
	}
	return context
}

// truncateWithMarker truncates a string and appends a truncation marker.
func truncateWithMarker(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	marker := "...[TRUNCATED]"
	if maxLen <= len(marker) {
		return marker[:maxLen]
	}
	return s[:maxLen-len(marker)] + marker
}
