// Package metrics provides lock-free relay counters using atomic operations
// so they impose minimal overhead on request handlers.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics tracks aggregate relay statistics.
//
// Every request lands in exactly one of three buckets: Rejected (the relay
// refused it before any vendor call, e.g. a missing field), Success (the
// vendor answered 2xx) or Failed (the vendor answered non-2xx or never
// answered). Total counts all three.
type Metrics struct {
	total    atomic.Uint64
	success  atomic.Uint64
	failed   atomic.Uint64
	rejected atomic.Uint64

	startTime time.Time
}

// Snapshot is a point-in-time copy of the counters, shaped for JSON.
type Snapshot struct {
	Total         uint64  `json:"total"`
	Success       uint64  `json:"success"`
	Failed        uint64  `json:"failed"`
	Rejected      uint64  `json:"rejected"`
	RPS           float64 `json:"rps"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}

// NewMetrics creates a Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordSuccess counts a request the vendor answered with 2xx.
func (m *Metrics) RecordSuccess() {
	m.total.Add(1)
	m.success.Add(1)
}

// RecordFailure counts a request that failed upstream.
func (m *Metrics) RecordFailure() {
	m.total.Add(1)
	m.failed.Add(1)
}

// RecordRejected counts a request refused before contacting the vendor.
func (m *Metrics) RecordRejected() {
	m.total.Add(1)
	m.rejected.Add(1)
}

// RequestsPerSecond returns the average request rate since creation.
// Returns 0 when no measurable time has elapsed.
func (m *Metrics) RequestsPerSecond() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.total.Load()) / elapsed
}

// Snapshot returns the current counters. The loads are independent, so the
// result may be very slightly inconsistent under load, which is acceptable
// for monitoring.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Total:         m.total.Load(),
		Success:       m.success.Load(),
		Failed:        m.failed.Load(),
		Rejected:      m.rejected.Load(),
		RPS:           m.RequestsPerSecond(),
		UptimeSeconds: int64(time.Since(m.startTime).Seconds()),
	}
}
