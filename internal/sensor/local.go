package sensor

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/linuxmatters/cabingain/internal/gain"
	"github.com/linuxmatters/cabingain/internal/noise"
)

// LocalMeasurement turns live signal blocks into cabin readings. Feed is
// meant to be called from a single audio callback; after the first block it
// does not allocate or lock.
type LocalMeasurement struct {
	meter *noise.Meter
	speed Reader

	// Block level smoothing, nil when every block is taken as measured.
	smoother   *gain.Smoother
	sampleRate int
	channels   int

	cabinBits atomic.Uint64
	fed       atomic.Bool
}

// NewLocalMeasurement measures against calibrationDB. Speed comes from
// speed when non-nil, otherwise it reads as 0 km/h.
func NewLocalMeasurement(calibrationDB float64, speed Reader) *LocalMeasurement {
	return &LocalMeasurement{meter: noise.NewMeter(calibrationDB), speed: speed}
}

// Smooth passes successive block levels through an attack/release smoother,
// stepping it by each block's duration at the given capture format. Call it
// before the first Feed.
func (l *LocalMeasurement) Smooth(cfg gain.SmootherConfig, sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid capture format %d Hz x %d", sampleRate, channels)
	}
	s, err := gain.NewSmoother(0, cfg)
	if err != nil {
		return err
	}
	l.smoother, l.sampleRate, l.channels = s, sampleRate, channels
	return nil
}

// Feed measures one block of captured samples.
func (l *LocalMeasurement) Feed(block []float32) {
	if len(block) == 0 {
		return
	}
	db := l.meter.LevelDB(block)
	if l.smoother != nil {
		if !l.fed.Load() {
			l.smoother.Reset(db)
		} else {
			dt := float64(len(block)) / float64(l.sampleRate*l.channels)
			db = l.smoother.StepDT(db, dt)
		}
	}
	l.cabinBits.Store(math.Float64bits(db))
	l.fed.Store(true)
}

// CabinDB returns the latest measured level.
func (l *LocalMeasurement) CabinDB() (float64, bool) {
	if !l.fed.Load() {
		return 0, false
	}
	return math.Float64frombits(l.cabinBits.Load()), true
}

// Latest combines the measured level with the current speed reading. It has
// no reading until the first block is fed.
func (l *LocalMeasurement) Latest() (Snapshot, bool) {
	cabin, ok := l.CabinDB()
	if !ok {
		return Snapshot{}, false
	}
	snap := Snapshot{CabinDB: cabin, HasCabin: true, CapturedAt: time.Now()}
	if l.speed != nil {
		if s, has := l.speed.Latest(); has {
			snap.SpeedKMH = s.SpeedKMH
		}
	}
	return snap, true
}

// Read implements Source.
func (l *LocalMeasurement) Read(context.Context) (Snapshot, bool) {
	return l.Latest()
}

// Advance forwards simulated time to the speed reader when it is simulated.
func (l *LocalMeasurement) Advance(d time.Duration) {
	if a, ok := l.speed.(Advancer); ok {
		a.Advance(d)
	}
}
