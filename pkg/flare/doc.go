// Package flare provides lightweight client-side event deduplication and
// reporting for running applications.
//
// flare captures error, warning, and diagnostic events emitted anywhere in a
// client process, suppresses duplicate bursts, normalizes arbitrary recovered
// values and nested context payloads into a bounded wire format, and relays
// them to a remote collector without ever blocking or panicking back into the
// caller.
//
// # Core Components
//
// The library is organized around these concepts:
//
//   - ClientEvent: The canonical event representation with severity, category, and context
//   - Reporter: Central pipeline that validates, deduplicates, shapes, and dispatches events
//   - Transport: Destination for finished payloads (HTTP collector, stderr, noop)
//   - Global hooks: Reference-counted interception of the process diagnostic channels
//
// # Quick Start
//
// Reporting to a remote collector:
//
//	reporter := flare.NewReporter(
//	    flare.WithTransport(collector.NewTransport("https://api.example.com")),
//	    flare.WithScrubbing(),
//	)
//	flare.SetDefault(reporter)
//	release := flare.InstallGlobalHooks(nil)
//	defer release()
//
// Capturing a panic in a goroutine:
//
//	go func() {
//	    defer flare.Recover(ctx)
//	    // code that might panic
//	}()
//
// # Design Principles
//
//   - Reporting never fails the caller: every entry point swallows its own errors
//   - Bounded everywhere: the dedupe cache, dispatch queue, and payload fields all have caps
//   - Dependency-light core: external dependencies only in transport packages
package flare
