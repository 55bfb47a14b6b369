// reporter.go provides the Reporter: validation, deduplication, payload
// shaping, and best-effort asynchronous delivery.

package flare

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transport delivers a finished payload to its destination. Implementations
// must be safe for concurrent use. Delivery is at-most-once: the dispatch
// loop swallows every returned error and never retries.
type Transport interface {
	Send(ctx context.Context, payload Payload) error
}

// Payload is the wire shape posted to the collector. Optional fields are
// omitted from the JSON body when absent.
type Payload struct {
	// EventID is a unique identifier for this dispatch (UUID).
	EventID string `json:"event_id"`

	// TimestampMs is the wall-clock dispatch time in milliseconds.
	TimestampMs int64 `json:"timestamp_ms"`

	Level     Level  `json:"level"`
	Category  string `json:"category"`
	EventName string `json:"event_name"`
	Message   string `json:"message"`

	ErrorName  string `json:"error_name,omitempty"`
	Stack      string `json:"stack,omitempty"`
	Location   string `json:"location,omitempty"`
	Action     string `json:"action,omitempty"`
	StatusCode *int   `json:"status_code,omitempty"`
	ThreadID   string `json:"thread_id,omitempty"`

	// Context is the serialized context, already clamped and scrubbed.
	Context string `json:"context,omitempty"`
}

// ReporterOption configures a Reporter.
type ReporterOption func(*reporterConfig)

type reporterConfig struct {
	transport    Transport
	window       time.Duration
	capacity     int
	queueSize    int
	onDropped    func(count int)
	scrubber     *Scrubber
	runtimeState bool
	ambient      ContextProvider
}

// WithTransport sets the delivery transport.
func WithTransport(transport Transport) ReporterOption {
	return func(c *reporterConfig) {
		c.transport = transport
	}
}

// WithDedupeWindow sets how long repeats of an accepted signature are
// suppressed (default: DefaultDedupeWindow).
func WithDedupeWindow(window time.Duration) ReporterOption {
	return func(c *reporterConfig) {
		if window > 0 {
			c.window = window
		}
	}
}

// WithCacheCapacity sets the maximum number of tracked signatures
// (default: DefaultCacheCapacity).
func WithCacheCapacity(capacity int) ReporterOption {
	return func(c *reporterConfig) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// WithQueueSize sets the maximum number of queued dispatches (default: 1000).
func WithQueueSize(size int) ReporterOption {
	return func(c *reporterConfig) {
		if size > 0 {
			c.queueSize = size
		}
	}
}

// WithOnDropped sets a callback invoked when dispatches are dropped due to
// queue overflow. This is the only observable signal the pipeline emits
// about its own losses.
func WithOnDropped(fn func(count int)) ReporterOption {
	return func(c *reporterConfig) {
		c.onDropped = fn
	}
}

// WithScrubber configures the reporter with a custom scrubber configuration.
func WithScrubber(cfg ScrubberConfig) ReporterOption {
	return func(c *reporterConfig) {
		c.scrubber = NewScrubber(cfg)
	}
}

// WithScrubbing enables scrubbing with production-safe defaults.
func WithScrubbing() ReporterOption {
	return func(c *reporterConfig) {
		c.scrubber = NewScrubber(DefaultScrubberConfig())
	}
}

// WithRuntimeState attaches a process metrics snapshot to the context of
// every error-level event.
func WithRuntimeState() ReporterOption {
	return func(c *reporterConfig) {
		c.runtimeState = true
	}
}

// WithAmbientContext sets a provider whose output is merged into the
// context of every reported event. The provider is called fresh per event;
// event-specific context wins on key collisions.
func WithAmbientContext(provider ContextProvider) ReporterOption {
	return func(c *reporterConfig) {
		c.ambient = provider
	}
}

// Reporter is the pipeline entry point. Events flow through validation,
// deduplication, and payload shaping synchronously, then are handed to a
// bounded dispatch queue; a background goroutine performs the transport
// send. No method ever blocks on the network or panics into the caller.
type Reporter struct {
	transport    Transport
	cache        *dedupeCache
	scrubber     *Scrubber
	runtimeState bool
	ambient      ContextProvider
	startTime    time.Time
	now          func() time.Time

	queue     chan Payload
	done      chan struct{}
	closeOnce sync.Once
	closeMu   sync.Mutex
	closed    bool
	wg        sync.WaitGroup
	onDropped func(count int)
}

// NewReporter creates a Reporter with the given options and starts its
// dispatch loop. With no transport configured, events are accepted and
// discarded.
func NewReporter(opts ...ReporterOption) *Reporter {
	cfg := &reporterConfig{
		window:    DefaultDedupeWindow,
		capacity:  DefaultCacheCapacity,
		queueSize: 1000,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.transport == nil {
		cfg.transport = noopTransport{}
	}

	r := &Reporter{
		transport:    cfg.transport,
		cache:        newDedupeCache(cfg.window, cfg.capacity),
		scrubber:     cfg.scrubber,
		runtimeState: cfg.runtimeState,
		ambient:      cfg.ambient,
		startTime:    time.Now(),
		now:          time.Now,
		queue:        make(chan Payload, cfg.queueSize),
		done:         make(chan struct{}),
		onDropped:    cfg.onDropped,
	}

	r.wg.Add(1)
	go r.dispatchLoop()

	return r
}

// dispatchLoop drains the queue and hands payloads to the transport.
// Transport errors are swallowed: telemetry must never surface a failure
// of its own.
func (r *Reporter) dispatchLoop() {
	defer r.wg.Done()
	for {
		select {
		case payload, ok := <-r.queue:
			if !ok {
				return
			}
			// Deliberately detached from any caller context so delivery
			// survives the caller going away right after dispatch.
			_ = r.transport.Send(context.Background(), payload)
		case <-r.done:
			// Drain remaining payloads before exiting.
			for {
				select {
				case payload, ok := <-r.queue:
					if !ok {
						return
					}
					_ = r.transport.Send(context.Background(), payload)
				default:
					return
				}
			}
		}
	}
}

// Report validates, deduplicates, shapes, and enqueues an event for
// delivery. Malformed events and duplicates within the dedupe window are
// dropped silently. Report never blocks and never panics, for any input.
func (r *Reporter) Report(ctx context.Context, event ClientEvent) {
	defer func() {
		_ = recover() // reporting must never propagate a failure into the caller
	}()

	if event.validate() != nil {
		return
	}
	if !r.cache.shouldReport(event.signature(), r.now()) {
		return
	}
	r.enqueue(r.buildPayload(ctx, event))
}

// ReportError reports an error-level event derived from an arbitrary
// caught value. The value is normalized into name/message/stack form.
func (r *Reporter) ReportError(ctx context.Context, eventName string, value any, opts EventOptions) {
	defer func() {
		_ = recover()
	}()

	n := Normalize(value)
	message := n.Message
	if message == "" {
		message = n.Name
	}

	r.Report(ctx, ClientEvent{
		Level:      LevelError,
		Category:   categoryOrDefault(opts.Category),
		EventName:  eventName,
		Message:    message,
		ErrorName:  n.Name,
		Stack:      n.Stack,
		Location:   opts.Location,
		Action:     opts.Action,
		StatusCode: opts.StatusCode,
		ThreadID:   opts.ThreadID,
		Context:    opts.Context,
	})
}

// ReportWarning reports a warning-level event.
func (r *Reporter) ReportWarning(ctx context.Context, eventName, message string, opts EventOptions) {
	defer func() {
		_ = recover()
	}()

	r.Report(ctx, ClientEvent{
		Level:      LevelWarning,
		Category:   categoryOrDefault(opts.Category),
		EventName:  eventName,
		Message:    message,
		Location:   opts.Location,
		Action:     opts.Action,
		StatusCode: opts.StatusCode,
		ThreadID:   opts.ThreadID,
		Context:    opts.Context,
	})
}

// buildPayload shapes an accepted event into its wire form.
func (r *Reporter) buildPayload(ctx context.Context, event ClientEvent) Payload {
	p := Payload{
		EventID:     uuid.NewString(),
		TimestampMs: r.now().UnixMilli(),
		Level:       event.Level,
		Category:    event.Category,
		EventName:   event.EventName,
		Message:     event.Message,
		ErrorName:   event.ErrorName,
		Stack:       event.Stack,
		Location:    event.Location,
		Action:      event.Action,
		StatusCode:  event.StatusCode,
		ThreadID:    event.ThreadID,
	}

	if p.ThreadID == "" {
		if id, ok := ThreadIDFromContext(ctx); ok {
			p.ThreadID = id
		}
	}

	merged := mergeContext(safeAmbient(r.ambient), event.Context)
	if r.runtimeState && event.Level == LevelError {
		if merged == nil {
			merged = make(map[string]any, 1)
		}
		merged["runtime"] = captureRuntimeState(r.startTime)
	}
	if len(merged) > 0 {
		p.Context = SerializeContext(merged)
	}

	if r.scrubber != nil {
		p.Message = r.scrubber.ScrubMessage(p.Message)
		p.Stack = r.scrubber.ScrubStack(p.Stack)
		p.Context = r.scrubber.ScrubContext(p.Context)
	}

	return p
}

// enqueue hands a payload to the dispatch queue without blocking. When the
// queue is full, the oldest queued payload is dropped to make room.
func (r *Reporter) enqueue(p Payload) {
	r.closeMu.Lock()
	if r.closed {
		r.closeMu.Unlock()
		return
	}
	r.closeMu.Unlock()

	select {
	case r.queue <- p:
		return
	default:
	}

	// Queue is full: drop the oldest and try once more.
	select {
	case <-r.queue:
		r.notifyDropped(1)
	default:
		// Queue was emptied by the dispatcher in the meantime.
	}
	select {
	case r.queue <- p:
	default:
		// Still full; drop the new payload instead.
		r.notifyDropped(1)
	}
}

func (r *Reporter) notifyDropped(count int) {
	if r.onDropped != nil {
		r.onDropped(count)
	}
}

// Flush blocks until every queued payload has been handed to the transport.
func (r *Reporter) Flush(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if len(r.queue) == 0 {
				// Give the dispatcher a moment to finish the last send.
				time.Sleep(10 * time.Millisecond)
				return nil
			}
		}
	}
}

// Close stops the dispatch loop after draining the queue. Events reported
// after Close are discarded.
func (r *Reporter) Close() error {
	r.closeOnce.Do(func() {
		r.closeMu.Lock()
		r.closed = true
		r.closeMu.Unlock()

		close(r.done)
		r.wg.Wait()
		close(r.queue)
	})
	return nil
}

// mergeContext overlays event context on top of ambient context without
// mutating either input. Returns nil when both are empty.
func mergeContext(ambient, event map[string]any) map[string]any {
	if len(ambient) == 0 && len(event) == 0 {
		return nil
	}
	merged := make(map[string]any, len(ambient)+len(event))
	for key, value := range ambient {
		merged[key] = value
	}
	for key, value := range event {
		merged[key] = value
	}
	return merged
}

// safeAmbient calls a context provider, containing any panic so external
// provider code cannot take the report path down with it.
func safeAmbient(provider ContextProvider) (out map[string]any) {
	if provider == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			out = nil
		}
	}()
	return provider()
}

func categoryOrDefault(category string) string {
	if category == "" {
		return DefaultCategory
	}
	return category
}

// noopTransport discards payloads. Used when no transport is configured.
type noopTransport struct{}

func (noopTransport) Send(ctx context.Context, payload Payload) error {
	return nil
}
