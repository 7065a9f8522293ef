// Package metrics provides lightweight, lock-free counters for
// tracking runtime statistics of a chat server.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a chat server.
// A nil Collector is safe to use — all methods become no-ops.
type Collector struct {
	sessionsActive atomic.Int64
	sessionsTotal  atomic.Int64
	registrations  atomic.Int64
	rejectedFull   atomic.Int64
	broadcasts     atomic.Int64
	directs        atomic.Int64
	timeouts       atomic.Int64
	errorsTotal    atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened increments both the active and total counters.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionClosed decrements the active session counter.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// ActiveSessions returns the current number of live sessions.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime session count.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// ── Admission metrics ────────────────────────────────────────────────

// ConnectionRejected records a room-full rejection.
func (c *Collector) ConnectionRejected() {
	if c == nil {
		return
	}
	c.rejectedFull.Add(1)
}

// RejectedConnections returns the room-full rejection count.
func (c *Collector) RejectedConnections() int64 {
	if c == nil {
		return 0
	}
	return c.rejectedFull.Load()
}

// ── Chat metrics ─────────────────────────────────────────────────────

// UserRegistered records a successful registration.
func (c *Collector) UserRegistered() {
	if c == nil {
		return
	}
	c.registrations.Add(1)
}

// BroadcastSent records a delivered send_all.
func (c *Collector) BroadcastSent() {
	if c == nil {
		return
	}
	c.broadcasts.Add(1)
}

// DirectSent records a delivered send_to.
func (c *Collector) DirectSent() {
	if c == nil {
		return
	}
	c.directs.Add(1)
}

// SessionTimedOut records an idle-timeout eviction.
func (c *Collector) SessionTimedOut() {
	if c == nil {
		return
	}
	c.timeouts.Add(1)
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	SessionsActive   int64  `json:"sessions_active"`
	SessionsTotal    int64  `json:"sessions_total"`
	Registrations    int64  `json:"registrations"`
	RejectedFull     int64  `json:"rejected_full"`
	Broadcasts       int64  `json:"broadcasts"`
	Directs          int64  `json:"directs"`
	Timeouts         int64  `json:"timeouts"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:         time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsActive: c.sessionsActive.Load(),
		SessionsTotal:  c.sessionsTotal.Load(),
		Registrations:  c.registrations.Load(),
		RejectedFull:   c.rejectedFull.Load(),
		Broadcasts:     c.broadcasts.Load(),
		Directs:        c.directs.Load(),
		Timeouts:       c.timeouts.Load(),
		ErrorsTotal:    c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
