package sensor

import (
	"context"
	"math"
	"sync/atomic"
	"time"
)

// MockCabinDB is the synthetic cabin level at t seconds.
func MockCabinDB(t float64) float64 {
	return 60 + 5*math.Sin(0.2*t) + 8*math.Sin(0.5*t)
}

// MockSpeedKMH is the synthetic vehicle speed at t seconds, sweeping 20..100.
func MockSpeedKMH(t float64) float64 {
	return 60 + 40*math.Sin(0.05*t)
}

// MockModel is a deterministic sensor driven by simulated time. Time moves
// only through Advance.
type MockModel struct {
	elapsed atomic.Int64 // nanoseconds
}

// NewMockModel returns a model at t=0.
func NewMockModel() *MockModel {
	return &MockModel{}
}

// At returns the reading at t seconds.
func (m *MockModel) At(t float64) Snapshot {
	return Snapshot{
		CabinDB:  MockCabinDB(t),
		HasCabin: true,
		SpeedKMH: MockSpeedKMH(t),
	}
}

// Advance moves simulated time forward by d. Non-positive d is ignored.
func (m *MockModel) Advance(d time.Duration) {
	if d > 0 {
		m.elapsed.Add(int64(d))
	}
}

// Elapsed returns the simulated time.
func (m *MockModel) Elapsed() time.Duration {
	return time.Duration(m.elapsed.Load())
}

// Latest returns the reading at the current simulated time. It always has one.
func (m *MockModel) Latest() (Snapshot, bool) {
	return m.At(m.Elapsed().Seconds()), true
}

// Read implements Source.
func (m *MockModel) Read(context.Context) (Snapshot, bool) {
	snap, _ := m.Latest()
	snap.CapturedAt = time.Now()
	return snap, true
}
