package gain

import (
	"errors"
	"math"
	"time"
)

// Default smoother time constants in seconds.
const (
	DefaultTauAttack  = 0.1 // getting louder, respond fast
	DefaultTauRelease = 1.0 // getting quieter, respond slow
)

// ErrInvalidTau is returned when a time constant is not strictly positive.
var ErrInvalidTau = errors.New("gain: time constant must be > 0")

// SmootherConfig holds the attack and release time constants in seconds.
type SmootherConfig struct {
	TauAttack  float64
	TauRelease float64
}

// DefaultSmootherConfig returns attack 0.1 s and release 1.0 s.
func DefaultSmootherConfig() SmootherConfig {
	return SmootherConfig{TauAttack: DefaultTauAttack, TauRelease: DefaultTauRelease}
}

// Validate checks both time constants are positive and finite.
func (c SmootherConfig) Validate() error {
	if !(c.TauAttack > 0) || math.IsInf(c.TauAttack, 0) {
		return ErrInvalidTau
	}
	if !(c.TauRelease > 0) || math.IsInf(c.TauRelease, 0) {
		return ErrInvalidTau
	}
	return nil
}

// Smoother is a one-pole low-pass on a gain value in dB with asymmetric
// time constants. It is not safe for concurrent use; one goroutine owns it.
type Smoother struct {
	cfg        SmootherConfig
	currentDB  float64
	lastUpdate time.Time

	// now is the wall clock used by Step. Tests replace it.
	now func() time.Time
}

// NewSmoother returns a smoother starting at initDB.
func NewSmoother(initDB float64, cfg SmootherConfig) (*Smoother, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Smoother{cfg: cfg, currentDB: initDB, now: time.Now}
	s.lastUpdate = s.now()
	return s, nil
}

// SetClock replaces the wall clock used by Step and restarts elapsed-time
// tracking from the new clock's current reading.
func (s *Smoother) SetClock(now func() time.Time) {
	s.now = now
	s.lastUpdate = now()
}

// Step advances the smoother by the wall-clock time elapsed since the
// previous Step (or construction) and returns the smoothed value.
func (s *Smoother) Step(targetDB float64) float64 {
	now := s.now()
	dt := now.Sub(s.lastUpdate).Seconds()
	s.lastUpdate = now
	return s.StepDT(targetDB, dt)
}

// StepDT advances the smoother by dt seconds. A non-positive or NaN dt
// leaves the value unchanged.
func (s *Smoother) StepDT(targetDB, dt float64) float64 {
	if !(dt > 0) || math.IsNaN(targetDB) {
		return s.currentDB
	}
	tau := s.cfg.TauAttack
	if targetDB < s.currentDB {
		tau = s.cfg.TauRelease
	}
	alpha := 1 - math.Exp(-dt/tau)
	s.currentDB += alpha * (targetDB - s.currentDB)
	return s.currentDB
}

// Reset jumps the smoothed value to db.
func (s *Smoother) Reset(db float64) { s.currentDB = db }

// CurrentDB returns the smoothed value without advancing it.
func (s *Smoother) CurrentDB() float64 { return s.currentDB }

// Config returns the time constants the smoother was built with.
func (s *Smoother) Config() SmootherConfig { return s.cfg }
