// Package sensor supplies cabin level and vehicle speed readings from a mock
// model, a remote HTTP or websocket feed, or a locally measured signal, and
// publishes them lock-free for the audio path.
package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// DefaultStateURL is the sensor feed used when SPEED_UI_URL is unset.
const DefaultStateURL = "http://127.0.0.1:5005/state"

// ErrNoFields reports a payload without any recognised numeric field.
var ErrNoFields = errors.New("sensor: payload has no recognised numeric field")

// Snapshot is one immutable sensor reading. It is replaced wholesale, never
// mutated after publication.
type Snapshot struct {
	CabinDB    float64
	HasCabin   bool
	SpeedKMH   float64
	CapturedAt time.Time
	IsFallback bool
}

// Cabin returns the measured cabin level and whether one exists.
func (s Snapshot) Cabin() (float64, bool) { return s.CabinDB, s.HasCabin }

// Speed returns vehicle speed in km/h.
func (s Snapshot) Speed() float64 { return s.SpeedKMH }

// Source produces readings on demand. ok=false means "no update".
type Source interface {
	Read(ctx context.Context) (snap Snapshot, ok bool)
}

// Reader exposes the latest published reading without blocking.
type Reader interface {
	Latest() (snap Snapshot, ok bool)
}

// Advancer is implemented by readers that run on simulated time. Processors
// advance them by each step's nominal duration.
type Advancer interface {
	Advance(d time.Duration)
}

// Slot holds the latest snapshot. One writer, any number of readers.
type Slot struct {
	p atomic.Pointer[Snapshot]
}

// Store publishes snap, replacing the previous reading.
func (s *Slot) Store(snap Snapshot) {
	s.p.Store(&snap)
}

// Latest returns the most recent snapshot, or ok=false if none was published.
func (s *Slot) Latest() (Snapshot, bool) {
	p := s.p.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return *p, true
}

// ParsePayload decodes a sensor feed JSON object and merges it over prev.
// Recognised keys are cabin_db, speed_kmh and the alternate speed;
// speed_kmh wins when both are present. Non-numeric values are ignored.
// A payload contributing no recognised field returns ErrNoFields.
func ParsePayload(data []byte, prev Snapshot, now time.Time) (Snapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return prev, fmt.Errorf("sensor: decode payload: %w", err)
	}

	next := prev
	next.IsFallback = false
	found := false

	if v, ok := numberField(fields, "cabin_db"); ok {
		next.CabinDB = v
		next.HasCabin = true
		found = true
	}
	if v, ok := numberField(fields, "speed_kmh"); ok {
		next.SpeedKMH = v
		found = true
	} else if v, ok := numberField(fields, "speed"); ok {
		next.SpeedKMH = v
		found = true
	}

	if !found {
		return prev, ErrNoFields
	}
	next.CapturedAt = now
	return next, nil
}

func numberField(fields map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
