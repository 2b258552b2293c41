package processor

import (
	"math"
	"time"
)

// Range tracks min, max and mean of a series
type Range struct {
	Min, Max float64
	sum      float64
	n        int
}

// Add records v
func (r *Range) Add(v float64) {
	if r.n == 0 || v < r.Min {
		r.Min = v
	}
	if r.n == 0 || v > r.Max {
		r.Max = v
	}
	r.sum += v
	r.n++
}

// Mean returns the average, or NaN when empty
func (r *Range) Mean() float64 {
	if r.n == 0 {
		return math.NaN()
	}
	return r.sum / float64(r.n)
}

// Count returns the number of values added
func (r *Range) Count() int { return r.n }

// Summary aggregates the Status stream of one session
type Summary struct {
	Frames          int
	FallbackFrames  int
	NoReadingFrames int
	LimitedSamples  int
	Duration        time.Duration

	GainDB  Range
	NoiseDB Range
	Speed   Range
}

// Add folds one status into the summary
func (s *Summary) Add(st Status) {
	s.Frames++
	if st.Fallback {
		s.FallbackFrames++
	}
	if st.NoReading {
		s.NoReadingFrames++
	} else {
		s.NoiseDB.Add(st.NoiseDB)
		s.Speed.Add(st.SpeedKMH)
	}
	s.LimitedSamples += st.Limited
	if st.Elapsed > s.Duration {
		s.Duration = st.Elapsed
	}
	s.GainDB.Add(st.GainDB)
}
