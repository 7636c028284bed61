package session

import (
	"context"
	"sync"
	"time"
)

// Bits is a set of connection state flags.
type Bits uint32

const (
	Connected Bits = 1 << iota
	Disconnected
)

func (b Bits) String() string {
	switch b {
	case 0:
		return "none"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Connected | Disconnected:
		return "connected|disconnected"
	}
	return "unknown"
}

// Signal holds the connection flags shared between the event goroutine and
// command handlers. Waiters are woken by closing the changed channel, which
// is replaced on every update.
type Signal struct {
	mu      sync.Mutex
	bits    Bits
	changed chan struct{}
}

// NewSignal returns a signal with every flag clear.
func NewSignal() *Signal {
	return &Signal{changed: make(chan struct{})}
}

// Update clears the clear bits then sets the set bits in one step.
func (s *Signal) Update(set, clear Bits) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := (s.bits &^ clear) | set
	if next == s.bits {
		return
	}
	s.bits = next
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Signal) Set(b Bits)   { s.Update(b, 0) }
func (s *Signal) Clear(b Bits) { s.Update(0, b) }

// Has reports whether every bit in b is set.
func (s *Signal) Has(b Bits) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bits&b == b
}

// Bits returns a snapshot of the flags.
func (s *Signal) Bits() Bits {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bits
}

// Wait blocks until every bit in b is set, the timeout elapses or ctx is
// done. A zero timeout only polls. It reports whether the bits were set.
func (s *Signal) Wait(ctx context.Context, b Bits, timeout time.Duration) bool {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	for {
		s.mu.Lock()
		if s.bits&b == b {
			s.mu.Unlock()
			return true
		}
		changed := s.changed
		s.mu.Unlock()

		if expired == nil {
			return false
		}
		select {
		case <-changed:
		case <-expired:
			return s.Has(b)
		case <-ctx.Done():
			return s.Has(b)
		}
	}
}
