package processor

import (
	"math"
	"time"

	"github.com/linuxmatters/cabingain/internal/gain"
	"github.com/linuxmatters/cabingain/internal/noise"
	"github.com/linuxmatters/cabingain/internal/sensor"
)

// Status describes one gain update. It is handed to observers (TUI, logs,
// session report) after every frame or control tick.
type Status struct {
	Index    int           // frame or tick number, from 0
	Total    int           // total frames, 0 when unknown
	Elapsed  time.Duration // audio time processed so far
	Progress float64       // 0..1, 0 when unknown

	SpeedKMH   float64
	CabinDB    float64
	HasCabin   bool
	Fallback   bool // reading came from the mock model
	NoReading  bool // no snapshot was available; gain was held
	NoiseDB    float64
	SpeedDB    float64 // speed-derived noise term alone
	RawGainDB  float64
	GainDB     float64
	GainLinear float64
	Limited    int // samples that reached the limiter knee
}

// Controller turns sensor snapshots into a smoothed linear gain. It is the
// estimator, mapper and smoother run in sequence. Not safe for concurrent use.
type Controller struct {
	est      *noise.Estimator
	mapper   *gain.Mapper
	smoother *gain.Smoother
	last     Status
}

// NewController builds the chain from cfg.
func NewController(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mapper, err := gain.NewMapper(cfg.Mapper)
	if err != nil {
		return nil, err
	}
	lo, hi := mapper.Bounds()
	startDB := math.Max(lo, math.Min(hi, cfg.InitialGainDB))
	smoother, err := gain.NewSmoother(startDB, cfg.Smoother)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		est:      noise.NewEstimator(cfg.Speed),
		mapper:   mapper,
		smoother: smoother,
	}
	c.last = Status{GainDB: startDB, GainLinear: gain.DBToLinear(startDB), NoReading: true}
	return c, nil
}

// Step folds snap into the smoothed gain over dt. Without a reading the
// gain is held at its current value.
func (c *Controller) Step(snap sensor.Snapshot, ok bool, dt time.Duration) Status {
	st := Status{NoReading: !ok}
	if ok {
		st.SpeedKMH = snap.SpeedKMH
		st.CabinDB, st.HasCabin = snap.Cabin()
		st.Fallback = snap.IsFallback
		st.SpeedDB = c.est.SpeedNoiseDB(snap.SpeedKMH)
		st.NoiseDB = c.est.EstimateNoiseDB(snap)
		st.RawGainDB = c.mapper.RawGainDB(st.NoiseDB)
		st.GainDB = c.smoother.StepDT(st.RawGainDB, dt.Seconds())
	} else {
		prev := c.last
		st.SpeedKMH, st.CabinDB, st.HasCabin = prev.SpeedKMH, prev.CabinDB, prev.HasCabin
		st.NoiseDB, st.SpeedDB, st.RawGainDB = prev.NoiseDB, prev.SpeedDB, prev.RawGainDB
		st.GainDB = c.smoother.CurrentDB()
	}
	st.GainLinear = gain.DBToLinear(st.GainDB)
	c.last = st
	return st
}

// Last returns the most recent status.
func (c *Controller) Last() Status { return c.last }
