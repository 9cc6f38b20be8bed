package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	eventsProcessed atomic.Uint64
	ordersSubmitted atomic.Uint64
	ordersFilled    atomic.Uint64
	gatewayErrors   atomic.Uint64

	// Gauges
	activeSessions atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordEvent records one gateway event drained by the reconciler.
func (m *Metrics) RecordEvent() {
	m.eventsProcessed.Add(1)
}

// RecordOrderSubmitted records a successfully placed order.
func (m *Metrics) RecordOrderSubmitted() {
	m.ordersSubmitted.Add(1)
}

// RecordOrderFilled records a filled order.
func (m *Metrics) RecordOrderFilled() {
	m.ordersFilled.Add(1)
}

// RecordGatewayError records a gateway-reported error event.
func (m *Metrics) RecordGatewayError() {
	m.gatewayErrors.Add(1)
}

// IncrementSessions increments active sessions by 1.
func (m *Metrics) IncrementSessions() {
	m.activeSessions.Add(1)
}

// DecrementSessions decrements active sessions by 1.
func (m *Metrics) DecrementSessions() {
	m.activeSessions.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	EventsProcessed uint64
	OrdersSubmitted uint64
	OrdersFilled    uint64
	GatewayErrors   uint64
	ActiveSessions  int32
	Timestamp       time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		EventsProcessed: m.eventsProcessed.Load(),
		OrdersSubmitted: m.ordersSubmitted.Load(),
		OrdersFilled:    m.ordersFilled.Load(),
		GatewayErrors:   m.gatewayErrors.Load(),
		ActiveSessions:  m.activeSessions.Load(),
		Timestamp:       time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.eventsProcessed.Store(0)
	m.ordersSubmitted.Store(0)
	m.ordersFilled.Store(0)
	m.gatewayErrors.Store(0)
	m.activeSessions.Store(0)
}
