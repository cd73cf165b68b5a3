package health

import (
	"sync"
	"time"
)

// Tracker records the liveness of the upstream event stream so the report
// server can answer readiness probes. The stream client flips the connected
// state; the ingest path marks every delivered event.
type Tracker struct {
	mu         sync.RWMutex
	connected  bool
	lastEvent  time.Time
	staleAfter time.Duration
}

// Status is a point-in-time view of stream health.
type Status struct {
	Connected bool      `json:"connected"`
	LastEvent time.Time `json:"last_event"`
	Stale     bool      `json:"stale"`
}

// NewTracker creates a tracker. Events older than staleAfter mark the
// stream as stale even while a connection is held; zero disables the check.
func NewTracker(staleAfter time.Duration) *Tracker {
	return &Tracker{staleAfter: staleAfter}
}

// SetConnected records a change in connection state.
func (t *Tracker) SetConnected(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = connected
}

// MarkEvent records that an event was just delivered.
func (t *Tracker) MarkEvent() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastEvent = time.Now()
}

// Snapshot returns the current health status.
func (t *Tracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stale := false
	if t.staleAfter > 0 && !t.lastEvent.IsZero() {
		stale = time.Since(t.lastEvent) > t.staleAfter
	}
	return Status{
		Connected: t.connected,
		LastEvent: t.lastEvent,
		Stale:     stale,
	}
}

// Ready reports whether the stream is connected and not stale.
func (t *Tracker) Ready() bool {
	s := t.Snapshot()
	return s.Connected && !s.Stale
}
