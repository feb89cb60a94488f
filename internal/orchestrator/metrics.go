package orchestrator

import (
	"runtime"
	"sync"
	"time"

	"github.com/dyluth/vibelayer/pkg/protocol"
)

// metrics aggregates the figures reported in performance snapshots.
type metrics struct {
	mu            sync.Mutex
	admissions    int64
	admissionTime time.Duration
	clientFPS     float64
	heapMB        float64 // Refreshed by sampleMemory
	dropped       int64
}

func newMetrics() *metrics {
	return &metrics{}
}

func (m *metrics) observeAdmission(d time.Duration) {
	m.mu.Lock()
	m.admissions++
	m.admissionTime += d
	m.mu.Unlock()
}

func (m *metrics) recordClient(p protocol.Performance) {
	m.mu.Lock()
	m.clientFPS = p.FPS
	m.mu.Unlock()
}

func (m *metrics) dropEvent() {
	m.mu.Lock()
	m.dropped++
	m.mu.Unlock()
}

// sampleMemory refreshes the heap figure. Called once per performance snapshot.
func (m *metrics) sampleMemory() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.mu.Lock()
	m.heapMB = float64(mem.HeapAlloc) / (1 << 20)
	m.mu.Unlock()
}

// snapshot returns fps as last reported by a client, latency as the mean
// admission latency in milliseconds, and memory as the last sampled heap size
// in megabytes.
func (m *metrics) snapshot() protocol.Performance {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latency float64
	if m.admissions > 0 {
		latency = float64(m.admissionTime.Microseconds()) / float64(m.admissions) / 1000
	}
	return protocol.Performance{
		FPS:         m.clientFPS,
		Latency:     latency,
		MemoryUsage: m.heapMB,
	}
}

// droppedEvents returns how many status events were discarded on a full queue.
func (m *metrics) droppedEvents() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}
