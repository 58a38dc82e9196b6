package modelcontainer

import (
	"sync/atomic"
	"time"

	"github.com/vasplatform/modelcontainer/internal/interfaces"
)

// LatencyBuckets defines the inference-latency histogram buckets in
// nanoseconds, logarithmically spaced from 100us to 10s.
var LatencyBuckets = []uint64{
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	50_000_000,     // 50ms
	100_000_000,    // 100ms
	500_000_000,    // 500ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks per-process counters for inference calls, frame reads, and
// connection activity. Safe for concurrent use by many request handlers.
type Metrics struct {
	InferenceOps    atomic.Uint64
	InferenceErrors atomic.Uint64
	FrameReadOps    atomic.Uint64
	FrameReadErrors atomic.Uint64
	FrameReadBytes  atomic.Uint64

	ActiveConnections atomic.Int64
	TotalConnections  atomic.Uint64

	TotalDetections atomic.Uint64

	TotalInferenceLatencyNs atomic.Uint64
	InferenceLatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a metrics instance with its start time recorded.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// ObserveInference implements interfaces.Observer.
func (m *Metrics) ObserveInference(latencyNs uint64, detectionCount int, success bool) {
	m.InferenceOps.Add(1)
	if !success {
		m.InferenceErrors.Add(1)
	}
	m.TotalDetections.Add(uint64(detectionCount))
	m.TotalInferenceLatencyNs.Add(latencyNs)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.InferenceLatencyBuckets[i].Add(1)
		}
	}
}

// ObserveFrameRead implements interfaces.Observer.
func (m *Metrics) ObserveFrameRead(bytes uint64, latencyNs uint64, success bool) {
	m.FrameReadOps.Add(1)
	if success {
		m.FrameReadBytes.Add(bytes)
	} else {
		m.FrameReadErrors.Add(1)
	}
	_ = latencyNs
}

// ObserveConnection implements interfaces.Observer. active is the delta
// (+1 on accept, -1 on close).
func (m *Metrics) ObserveConnection(active int64) {
	m.ActiveConnections.Add(active)
	if active > 0 {
		m.TotalConnections.Add(uint64(active))
	}
}

// Stop marks the container as stopped for uptime accounting.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time read of Metrics, suitable for logging or
// a status endpoint.
type MetricsSnapshot struct {
	InferenceOps      uint64
	InferenceErrors   uint64
	FrameReadOps      uint64
	FrameReadErrors   uint64
	FrameReadBytes    uint64
	ActiveConnections int64
	TotalConnections  uint64
	TotalDetections   uint64
	AvgInferenceNs    uint64
	LatencyHistogram  [numLatencyBuckets]uint64
	UptimeNs          uint64
	ErrorRate         float64
}

// Snapshot computes derived statistics from the live counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		InferenceOps:      m.InferenceOps.Load(),
		InferenceErrors:   m.InferenceErrors.Load(),
		FrameReadOps:      m.FrameReadOps.Load(),
		FrameReadErrors:   m.FrameReadErrors.Load(),
		FrameReadBytes:    m.FrameReadBytes.Load(),
		ActiveConnections: m.ActiveConnections.Load(),
		TotalConnections:  m.TotalConnections.Load(),
		TotalDetections:   m.TotalDetections.Load(),
	}

	if snap.InferenceOps > 0 {
		snap.AvgInferenceNs = m.TotalInferenceLatencyNs.Load() / snap.InferenceOps
		snap.ErrorRate = float64(snap.InferenceErrors) / float64(snap.InferenceOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.InferenceLatencyBuckets[i].Load()
	}

	startTime := m.StartTime.Load()
	if stopTime := m.StopTime.Load(); stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	return snap
}

// NoOpObserver discards all observations; used where no metrics sink is
// configured.
type NoOpObserver struct{}

func (NoOpObserver) ObserveInference(uint64, int, bool)  {}
func (NoOpObserver) ObserveFrameRead(uint64, uint64, bool) {}
func (NoOpObserver) ObserveConnection(int64)              {}

var (
	_ interfaces.Observer = (*Metrics)(nil)
	_ interfaces.Observer = NoOpObserver{}
)
