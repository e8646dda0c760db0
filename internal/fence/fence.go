// Package fence models asynchronous hardware completion signals.
//
// A fence is shared between the producer that created it and every consumer
// holding it. Consumers only ever poll it; nothing in this package blocks.
package fence

import (
	"sync"
)

// State is the resolution state of a fence at the time it was polled.
type State int

const (
	// Pending means the fence hasn't signaled yet. Poll again later.
	Pending State = iota
	// Signaled means the fence resolved to a concrete signal time.
	Signaled
	// Invalid means the fence will never report a usable time.
	Invalid
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Signaled:
		return "signaled"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Fence is a non-blocking view on a completion signal.
type Fence interface {
	// SignalTime returns the signal time in nanoseconds and the state of the
	// fence. The time is only meaningful when the state is Signaled.
	SignalTime() (int64, State)
}

// Time is a fence whose resolution is driven by its producer. The zero value
// is a pending fence.
type Time struct {
	mu     sync.Mutex
	state  State
	timeNS int64
}

// NewPending returns a fence that hasn't signaled yet.
func NewPending() *Time {
	return &Time{}
}

// NewSignaled returns a fence already signaled at timeNS.
func NewSignaled(timeNS int64) *Time {
	return &Time{state: Signaled, timeNS: timeNS}
}

// NewInvalid returns a fence that will never signal.
func NewInvalid() *Time {
	return &Time{state: Invalid}
}

// Signal resolves the fence at timeNS. A fence resolves once, later calls are ignored.
func (f *Time) Signal(timeNS int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Pending {
		return
	}
	f.state = Signaled
	f.timeNS = timeNS
}

// Invalidate marks a pending fence as never signaling.
func (f *Time) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Pending {
		return
	}
	f.state = Invalid
}

// SignalTime implements Fence.
func (f *Time) SignalTime() (int64, State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timeNS, f.state
}
