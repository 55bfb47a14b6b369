package flare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testTransport captures payloads for verification in tests.
type testTransport struct {
	mu       sync.Mutex
	payloads []Payload
	sendErr  error
}

func (t *testTransport) Send(ctx context.Context, payload Payload) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.payloads = append(t.payloads, payload)
	return nil
}

func (t *testTransport) all() []Payload {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]Payload, len(t.payloads))
	copy(result, t.payloads)
	return result
}

// gatedTransport blocks inside Send until released, so tests can hold the
// dispatcher busy at a known point.
type gatedTransport struct {
	testTransport
	entered chan struct{}
	release chan struct{}
}

func (g *gatedTransport) Send(ctx context.Context, payload Payload) error {
	g.entered <- struct{}{}
	<-g.release
	return g.testTransport.Send(ctx, payload)
}

func newTestReporter(t *testing.T, opts ...ReporterOption) (*Reporter, *testTransport) {
	t.Helper()
	tt := &testTransport{}
	r := NewReporter(append([]ReporterOption{WithTransport(tt)}, opts...)...)
	t.Cleanup(func() { _ = r.Close() })
	return r, tt
}

func TestReporter_DispatchesAcceptedEvent(t *testing.T) {
	r, tt := newTestReporter(t)

	r.Report(context.Background(), validEvent())
	require.NoError(t, r.Flush(context.Background()))

	payloads := tt.all()
	require.Len(t, payloads, 1)
	require.Equal(t, LevelError, payloads[0].Level)
	require.Equal(t, "chat_send_failed", payloads[0].EventName)
	require.Len(t, payloads[0].EventID, 36, "EventID should be a UUID")
	require.NotZero(t, payloads[0].TimestampMs)
}

func TestReporter_SuppressesDuplicateWithinWindow(t *testing.T) {
	r, tt := newTestReporter(t, WithDedupeWindow(time.Minute))

	r.Report(context.Background(), validEvent())
	r.Report(context.Background(), validEvent())
	require.NoError(t, r.Flush(context.Background()))

	require.Len(t, tt.all(), 1, "exactly one dispatch for a duplicate within the window")
}

func TestReporter_AcceptsDuplicateAfterWindow(t *testing.T) {
	r, tt := newTestReporter(t, WithDedupeWindow(time.Minute))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	r.now = func() time.Time { return current }

	r.Report(context.Background(), validEvent())
	current = base.Add(time.Minute)
	r.Report(context.Background(), validEvent())
	require.NoError(t, r.Flush(context.Background()))

	require.Len(t, tt.all(), 2, "both reports dispatch once the window has elapsed")
}

func TestReporter_EvictedSignatureReaccepted(t *testing.T) {
	r, tt := newTestReporter(t, WithDedupeWindow(time.Minute))

	ctx := context.Background()
	for i := 0; i < 542; i++ {
		event := validEvent()
		event.EventName = fmt.Sprintf("event_%d", i)
		r.Report(ctx, event)
	}

	// The very first signature has been evicted from the bounded cache, so
	// its repeat is accepted even though the window has not elapsed.
	first := validEvent()
	first.EventName = "event_0"
	r.Report(ctx, first)

	require.NoError(t, r.Flush(ctx))
	require.Len(t, tt.all(), 543)
}

func TestReporter_RejectsMalformedEvent(t *testing.T) {
	r, tt := newTestReporter(t)

	event := validEvent()
	event.Message = ""
	r.Report(context.Background(), event)
	require.NoError(t, r.Flush(context.Background()))

	require.Empty(t, tt.all(), "malformed events are rejected, not sent")
}

func TestReporter_PayloadOmitsAbsentFields(t *testing.T) {
	r, tt := newTestReporter(t)

	r.Report(context.Background(), validEvent())
	require.NoError(t, r.Flush(context.Background()))

	body, err := json.Marshal(tt.all()[0])
	require.NoError(t, err)

	for _, absent := range []string{"error_name", "stack", "location", "action", "status_code", "thread_id", "context"} {
		require.NotContains(t, string(body), `"`+absent+`"`)
	}
	for _, present := range []string{"event_id", "timestamp_ms", "level", "category", "event_name", "message"} {
		require.Contains(t, string(body), `"`+present+`"`)
	}
}

func TestReporter_PayloadCarriesOptionalFields(t *testing.T) {
	r, tt := newTestReporter(t)

	status := 502
	event := validEvent()
	event.ErrorName = "Error"
	event.Stack = "main.send"
	event.Location = "chat-panel"
	event.Action = "send"
	event.StatusCode = &status
	event.ThreadID = "t-7"
	event.Context = map[string]any{"attempt": 2}

	r.Report(context.Background(), event)
	require.NoError(t, r.Flush(context.Background()))

	payload := tt.all()[0]
	require.Equal(t, "Error", payload.ErrorName)
	require.Equal(t, "chat-panel", payload.Location)
	require.Equal(t, "send", payload.Action)
	require.NotNil(t, payload.StatusCode)
	require.Equal(t, 502, *payload.StatusCode)
	require.Equal(t, "t-7", payload.ThreadID)
	require.Contains(t, payload.Context, "attempt")
}

func TestReporter_ThreadIDFromContext(t *testing.T) {
	r, tt := newTestReporter(t)

	ctx := WithThreadID(context.Background(), "t-context")
	r.Report(ctx, validEvent())
	require.NoError(t, r.Flush(ctx))

	require.Equal(t, "t-context", tt.all()[0].ThreadID)
}

func TestReporter_EventThreadIDWins(t *testing.T) {
	r, tt := newTestReporter(t)

	event := validEvent()
	event.ThreadID = "t-event"
	ctx := WithThreadID(context.Background(), "t-context")
	r.Report(ctx, event)
	require.NoError(t, r.Flush(ctx))

	require.Equal(t, "t-event", tt.all()[0].ThreadID)
}

func TestReportError_NormalizesValue(t *testing.T) {
	r, tt := newTestReporter(t)

	r.ReportError(context.Background(), "load_failed", errors.New("boom"), EventOptions{})
	require.NoError(t, r.Flush(context.Background()))

	payload := tt.all()[0]
	require.Equal(t, LevelError, payload.Level)
	require.Equal(t, DefaultCategory, payload.Category)
	require.Equal(t, "load_failed", payload.EventName)
	require.Equal(t, "boom", payload.Message)
	require.Equal(t, "Error", payload.ErrorName)
}

func TestReportError_NonErrorValue(t *testing.T) {
	r, tt := newTestReporter(t)

	r.ReportError(context.Background(), "load_failed", map[string]any{"reason": "x"}, EventOptions{})
	require.NoError(t, r.Flush(context.Background()))

	payload := tt.all()[0]
	require.Equal(t, UnknownErrorName, payload.ErrorName)
	require.NotEmpty(t, payload.Message)
}

func TestReportWarning(t *testing.T) {
	r, tt := newTestReporter(t)

	r.ReportWarning(context.Background(), "slow_render", "frame took 412ms", EventOptions{Category: "frontend"})
	require.NoError(t, r.Flush(context.Background()))

	payload := tt.all()[0]
	require.Equal(t, LevelWarning, payload.Level)
	require.Equal(t, "frontend", payload.Category)
	require.Equal(t, "frame took 412ms", payload.Message)
}

func TestReporter_AmbientContextMerged(t *testing.T) {
	r, tt := newTestReporter(t, WithAmbientContext(func() map[string]any {
		return map[string]any{"app": "demo", "shared": "ambient"}
	}))

	event := validEvent()
	event.Context = map[string]any{"shared": "event"}
	r.Report(context.Background(), event)
	require.NoError(t, r.Flush(context.Background()))

	serialized := tt.all()[0].Context
	require.Contains(t, serialized, "demo")
	require.Contains(t, serialized, `"shared":"event"`, "event context wins on collisions")
}

func TestReporter_RuntimeStateOnErrors(t *testing.T) {
	r, tt := newTestReporter(t, WithRuntimeState())

	r.Report(context.Background(), validEvent())
	warning := validEvent()
	warning.Level = LevelWarning
	r.Report(context.Background(), warning)
	require.NoError(t, r.Flush(context.Background()))

	payloads := tt.all()
	require.Len(t, payloads, 2)
	require.Contains(t, payloads[0].Context, "goroutine_count")
	require.NotContains(t, payloads[1].Context, "goroutine_count")
}

func TestReporter_ScrubbingApplied(t *testing.T) {
	r, tt := newTestReporter(t, WithScrubbing())

	event := validEvent()
	event.Message = "request failed with api_key=sk_live_abc123"
	r.Report(context.Background(), event)
	require.NoError(t, r.Flush(context.Background()))

	message := tt.all()[0].Message
	require.NotContains(t, message, "sk_live_abc123")
	require.Contains(t, message, "[REDACTED]")
}

func TestReporter_TransportErrorSwallowed(t *testing.T) {
	tt := &testTransport{sendErr: errors.New("collector unreachable")}
	r := NewReporter(WithTransport(tt))
	defer r.Close()

	require.NotPanics(t, func() {
		r.Report(context.Background(), validEvent())
		require.NoError(t, r.Flush(context.Background()))
	})
}

func TestReporter_QueueOverflowDropsOldest(t *testing.T) {
	gt := &gatedTransport{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}

	var mu sync.Mutex
	dropped := 0
	r := NewReporter(
		WithTransport(gt),
		WithQueueSize(1),
		WithOnDropped(func(count int) {
			mu.Lock()
			dropped += count
			mu.Unlock()
		}),
	)
	defer r.Close()

	ctx := context.Background()
	report := func(name string) {
		event := validEvent()
		event.EventName = name
		r.Report(ctx, event)
	}

	report("first")
	<-gt.entered // dispatcher is now inside Send with "first"; queue is empty

	report("second") // fills the single queue slot
	report("third")  // overflows: "second" is dropped to make room

	close(gt.release)
	require.NoError(t, r.Flush(ctx))

	var names []string
	for _, payload := range gt.all() {
		names = append(names, payload.EventName)
	}
	require.Equal(t, []string{"first", "third"}, names)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, dropped)
}

func TestReporter_CloseDiscardsLaterReports(t *testing.T) {
	r, tt := newTestReporter(t)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "Close is idempotent")

	require.NotPanics(t, func() {
		r.Report(context.Background(), validEvent())
	})
	require.Empty(t, tt.all())
}

func TestReporter_DegradedContextStillDispatches(t *testing.T) {
	r, tt := newTestReporter(t)

	cyclic := map[string]any{"name": "ok"}
	cyclic["self"] = cyclic
	event := validEvent()
	event.Context = cyclic

	r.Report(context.Background(), event)
	require.NoError(t, r.Flush(context.Background()))

	payloads := tt.all()
	require.Len(t, payloads, 1, "serialization failure degrades the context, not the event")
	require.Contains(t, payloads[0].Context, truncatedPlaceholder)
}

func TestReporter_AmbientProviderPanicContained(t *testing.T) {
	r, tt := newTestReporter(t, WithAmbientContext(func() map[string]any {
		panic("provider broke")
	}))

	require.NotPanics(t, func() {
		r.Report(context.Background(), validEvent())
	})
	require.NoError(t, r.Flush(context.Background()))
	require.Len(t, tt.all(), 1, "event still dispatches without ambient context")
}

func TestReporter_EntryPointsNeverPanic(t *testing.T) {
	r, _ := newTestReporter(t)
	ctx := context.Background()

	cyclic := map[string]any{}
	cyclic["self"] = cyclic

	require.NotPanics(t, func() {
		r.Report(ctx, ClientEvent{})
		r.ReportError(ctx, "event", nil, EventOptions{})
		r.ReportError(ctx, "event", cyclic, EventOptions{Context: cyclic})
		r.ReportError(ctx, "", errors.New("no event name"), EventOptions{})
		r.ReportWarning(ctx, "event", "", EventOptions{})
	})
}

func TestDefaultReporter_Delegation(t *testing.T) {
	tt := &testTransport{}
	r := NewReporter(WithTransport(tt))
	SetDefault(r)
	defer func() {
		SetDefault(nil)
		_ = r.Close()
	}()

	Report(context.Background(), validEvent())
	ReportWarning(context.Background(), "slow_render", "frame took 412ms", EventOptions{})
	require.NoError(t, r.Flush(context.Background()))

	require.Len(t, tt.all(), 2)
}

func TestReporter_ContextSerializedBounded(t *testing.T) {
	r, tt := newTestReporter(t)

	event := validEvent()
	event.Context = map[string]any{"deep": nested(10)}
	r.Report(context.Background(), event)
	require.NoError(t, r.Flush(context.Background()))

	serialized := tt.all()[0].Context
	require.True(t, strings.Contains(serialized, truncatedPlaceholder))

	var decoded any
	require.NoError(t, json.Unmarshal([]byte(serialized), &decoded))
	require.LessOrEqual(t, maxDepth(decoded), contextDepthLimit)
}
