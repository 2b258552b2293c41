// Package noise estimates ambient cabin noise in dB from measured sound
// level and vehicle speed.
package noise

import (
	"fmt"
	"math"
)

// Speed model defaults: noise = A*ln(speed+1) + B.
const (
	DefaultSpeedCoeffA = 6.0
	DefaultSpeedCoeffB = 40.0
)

// Reading is the sensor input the estimator consumes.
type Reading interface {
	// Cabin returns the measured cabin level in dB and whether one exists.
	Cabin() (db float64, ok bool)
	// Speed returns vehicle speed in km/h.
	Speed() float64
}

// SpeedModel maps vehicle speed to a road/wind noise estimate.
type SpeedModel struct {
	A float64 `yaml:"a"`
	B float64 `yaml:"b"`
}

// DefaultSpeedModel returns A=6, B=40.
func DefaultSpeedModel() SpeedModel {
	return SpeedModel{A: DefaultSpeedCoeffA, B: DefaultSpeedCoeffB}
}

// Validate requires a positive, finite slope so noise rises with speed.
func (m SpeedModel) Validate() error {
	if !(m.A > 0) || math.IsInf(m.A, 0) || math.IsNaN(m.B) || math.IsInf(m.B, 0) {
		return fmt.Errorf("noise: speed model a=%v b=%v is invalid", m.A, m.B)
	}
	return nil
}

// NoiseDB returns A*ln(speed+1)+B. Negative or NaN speeds count as standstill.
func (m SpeedModel) NoiseDB(speedKMH float64) float64 {
	if !(speedKMH > 0) {
		speedKMH = 0
	}
	if math.IsInf(speedKMH, 1) {
		speedKMH = math.MaxFloat64
	}
	return m.A*math.Log1p(speedKMH) + m.B
}

// SpeedToNoiseDB applies the default speed model.
func SpeedToNoiseDB(speedKMH float64) float64 {
	return DefaultSpeedModel().NoiseDB(speedKMH)
}

// Estimator combines the cabin measurement with the speed-derived estimate.
type Estimator struct {
	model SpeedModel
}

// NewEstimator returns an estimator using model.
func NewEstimator(model SpeedModel) *Estimator {
	return &Estimator{model: model}
}

// EstimateNoiseDB returns the louder of the cabin measurement and the
// speed-derived noise. Without a cabin measurement only speed is used.
func (e *Estimator) EstimateNoiseDB(r Reading) float64 {
	speedDB := e.model.NoiseDB(r.Speed())
	cabin, ok := r.Cabin()
	if !ok || math.IsNaN(cabin) {
		return speedDB
	}
	return math.Max(cabin, speedDB)
}

// SpeedNoiseDB exposes the speed term on its own for status reporting.
func (e *Estimator) SpeedNoiseDB(speedKMH float64) float64 {
	return e.model.NoiseDB(speedKMH)
}
