// Package sensorsim serves a controllable stand-in for the vehicle sensor
// feed: a JSON state endpoint, an update endpoint, a websocket push feed and
// an HTML control panel.
package sensorsim

import (
	"math"
	"sync"
)

// Initial simulator readings.
const (
	DefaultCabinDB  = 60.0
	DefaultSpeedKMH = 60.0
)

// State is the simulated sensor reading as served on /state.
type State struct {
	CabinDB  float64 `json:"cabin_db"`
	SpeedKMH float64 `json:"speed_kmh"`
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	CabinDB  *float64
	SpeedKMH *float64
}

// Empty reports whether the patch carries no field.
func (p Patch) Empty() bool {
	return p.CabinDB == nil && p.SpeedKMH == nil
}

// Store holds the current State and fans changes out to subscribers.
type Store struct {
	mu   sync.Mutex
	cur  State
	subs map[chan State]struct{}
}

// NewStore returns a store seeded with initial.
func NewStore(initial State) *Store {
	return &Store{cur: initial, subs: make(map[chan State]struct{})}
}

// Get returns the current state.
func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Apply merges p into the current state. Non-finite values are ignored.
// Subscribers are notified only when a value actually changed.
func (s *Store) Apply(p Patch) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur
	if p.CabinDB != nil && finite(*p.CabinDB) {
		next.CabinDB = *p.CabinDB
	}
	if p.SpeedKMH != nil && finite(*p.SpeedKMH) {
		next.SpeedKMH = *p.SpeedKMH
	}
	if next != s.cur {
		s.cur = next
		for ch := range s.subs {
			offer(ch, next)
		}
	}
	return s.cur
}

// Subscribe registers a listener. The channel always holds the newest state
// not yet received; intermediate states may be skipped. Call the returned
// function to unsubscribe.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// offer replaces any pending value in ch with v. Callers hold the store lock,
// so offer is the only sender.
func offer(ch chan State, v State) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
