// runtime_state.go captures process runtime metrics attached to error
// events.

package flare

import (
	"os"
	"runtime"
	"time"
)

// RuntimeState captures process metrics at the time of an error event.
type RuntimeState struct {
	// MemoryBytes is the current memory allocation in bytes.
	MemoryBytes int64 `json:"memory_bytes"`

	// GoroutineCount is the number of active goroutines.
	GoroutineCount int `json:"goroutine_count"`

	// UptimeMs is the process uptime in milliseconds.
	UptimeMs int64 `json:"uptime_ms"`

	// HostName is the hostname of the machine, when resolvable.
	HostName string `json:"host_name,omitempty"`
}

// captureRuntimeState snapshots process metrics at the current moment. The
// startTime parameter is used to calculate uptime.
func captureRuntimeState(startTime time.Time) RuntimeState {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hostname, _ := os.Hostname() // empty hostname is acceptable

	uptimeMs := time.Since(startTime).Milliseconds()
	if uptimeMs < 0 {
		uptimeMs = 0
	}

	return RuntimeState{
		MemoryBytes:    int64(memStats.Alloc),
		GoroutineCount: runtime.NumGoroutine(),
		UptimeMs:       uptimeMs,
		HostName:       hostname,
	}
}
