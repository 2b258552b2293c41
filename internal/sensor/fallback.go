package sensor

import (
	"context"
	"time"
)

// Fallback wraps a primary Source. Until the primary has produced its first
// reading, failed reads are answered by the mock model on wall-clock time and
// flagged IsFallback. Once the primary has succeeded, failures are passed
// through so the last good reading is held instead.
type Fallback struct {
	primary Source
	mock    *MockModel
	start   time.Time
	now     func() time.Time
	seen    bool
}

// NewFallback returns a Fallback over primary.
func NewFallback(primary Source) *Fallback {
	return &Fallback{
		primary: primary,
		mock:    NewMockModel(),
		start:   time.Now(),
		now:     time.Now,
	}
}

// Read implements Source.
func (f *Fallback) Read(ctx context.Context) (Snapshot, bool) {
	if snap, ok := f.primary.Read(ctx); ok {
		f.seen = true
		return snap, true
	}
	if f.seen {
		return Snapshot{}, false
	}
	now := f.now()
	snap := f.mock.At(now.Sub(f.start).Seconds())
	snap.CapturedAt = now
	snap.IsFallback = true
	return snap, true
}

// LastError forwards the primary's error, if it reports one.
func (f *Fallback) LastError() error {
	if e, ok := f.primary.(interface{ LastError() error }); ok {
		return e.LastError()
	}
	return nil
}
