package noise

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	dsptime "github.com/cwbudde/algo-dsp/stats/time"
)

const (
	// RMSFloor stands in for silent or empty blocks so log10 stays finite.
	RMSFloor = 1e-9

	// DefaultCalibrationDB maps digital full-scale RMS to approximate dB SPL.
	// Calibrate per microphone.
	DefaultCalibrationDB = 94.0
)

// Meter measures calibrated levels of float32 blocks. It reuses one
// conversion buffer, so after the first block of a given size it does not
// allocate. A Meter is not safe for concurrent use.
type Meter struct {
	calibrationDB float64
	scratch       []float64
}

// NewMeter returns a meter adding calibrationDB to every level.
func NewMeter(calibrationDB float64) *Meter {
	return &Meter{calibrationDB: calibrationDB}
}

// RMS returns the root-mean-square of block. Empty blocks return 0.
func (m *Meter) RMS(block []float32) float64 {
	if cap(m.scratch) < len(block) {
		m.scratch = make([]float64, len(block))
	}
	samples := m.scratch[:len(block)]
	for i, s := range block {
		samples[i] = float64(s)
	}
	return dsptime.RMS(samples)
}

// LevelDB returns the calibrated level of block.
func (m *Meter) LevelDB(block []float32) float64 {
	return RMSToDB(m.RMS(block), m.calibrationDB)
}

// RMSToDB converts an RMS amplitude to a calibrated dB figure.
func RMSToDB(rms, calibrationDB float64) float64 {
	return core.LinearToDB(math.Max(rms, RMSFloor)) + calibrationDB
}

// LevelDB measures a live signal block as a calibrated cabin level.
func LevelDB(block []float32, calibrationDB float64) float64 {
	return NewMeter(calibrationDB).LevelDB(block)
}
