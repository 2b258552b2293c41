package gain

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// Policy selects the noise-to-gain formula.
type Policy string

const (
	// PolicyTargetMinusNoise fully compensates noise so perceived output
	// level stays constant.
	PolicyTargetMinusNoise Policy = "target-minus-noise"

	// PolicyBaselinePlusSensitivity starts from the gain needed at a
	// baseline noise level and adds Sensitivity dB per dB of noise above it.
	PolicyBaselinePlusSensitivity Policy = "baseline-plus-sensitivity"
)

// Mapper defaults.
const (
	DefaultTargetLoudnessDB = 75.0 // target perceived playback level
	DefaultClampDB          = 24.0 // symmetric raw gain bound
	DefaultBaselineNoiseDB  = 60.0 // quiet cabin reference
	DefaultSensitivity      = 0.6  // dB of gain per dB of noise above baseline
)

// MapperConfig configures a Mapper. It is treated as immutable once the
// Mapper is built.
type MapperConfig struct {
	Policy           Policy
	TargetLoudnessDB float64
	UserOffsetDB     float64
	ClampMinDB       float64
	ClampMaxDB       float64

	// Used only by PolicyBaselinePlusSensitivity
	BaselineNoiseDB float64
	Sensitivity     float64
}

// DefaultMapperConfig returns the target-minus-noise policy with ±24 dB bounds.
func DefaultMapperConfig() MapperConfig {
	return MapperConfig{
		Policy:           PolicyTargetMinusNoise,
		TargetLoudnessDB: DefaultTargetLoudnessDB,
		ClampMinDB:       -DefaultClampDB,
		ClampMaxDB:       DefaultClampDB,
		BaselineNoiseDB:  DefaultBaselineNoiseDB,
		Sensitivity:      DefaultSensitivity,
	}
}

// Validate reports configuration that would produce undefined gain.
func (c MapperConfig) Validate() error {
	switch c.Policy {
	case PolicyTargetMinusNoise:
	case PolicyBaselinePlusSensitivity:
		if !(c.Sensitivity > 0) || c.Sensitivity > 1 {
			return fmt.Errorf("gain: sensitivity %.3f outside (0, 1]", c.Sensitivity)
		}
	default:
		return fmt.Errorf("gain: unknown policy %q", c.Policy)
	}
	if math.IsNaN(c.ClampMinDB) || math.IsNaN(c.ClampMaxDB) || c.ClampMinDB > c.ClampMaxDB {
		return fmt.Errorf("gain: clamp bounds [%.1f, %.1f] are invalid", c.ClampMinDB, c.ClampMaxDB)
	}
	return nil
}

// Mapper turns an ambient noise estimate into the raw, unsmoothed gain in dB.
type Mapper struct {
	cfg MapperConfig
}

// NewMapper validates cfg and returns a Mapper.
func NewMapper(cfg MapperConfig) (*Mapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Mapper{cfg: cfg}, nil
}

// RawGainDB maps noiseDB to a clamped gain using the configured user offset.
func (m *Mapper) RawGainDB(noiseDB float64) float64 {
	return m.RawGainDBWithOffset(noiseDB, m.cfg.UserOffsetDB)
}

// RawGainDBWithOffset maps noiseDB to a clamped gain with an explicit user offset.
func (m *Mapper) RawGainDBWithOffset(noiseDB, userOffsetDB float64) float64 {
	var raw float64
	switch m.cfg.Policy {
	case PolicyBaselinePlusSensitivity:
		base := m.cfg.TargetLoudnessDB - m.cfg.BaselineNoiseDB
		raw = base + m.cfg.Sensitivity*(noiseDB-m.cfg.BaselineNoiseDB) + userOffsetDB
	default:
		raw = m.cfg.TargetLoudnessDB - noiseDB + userOffsetDB
	}
	return m.clamp(raw)
}

// Bounds returns the clamp range.
func (m *Mapper) Bounds() (minDB, maxDB float64) {
	return m.cfg.ClampMinDB, m.cfg.ClampMaxDB
}

// Config returns the mapper configuration.
func (m *Mapper) Config() MapperConfig { return m.cfg }

func (m *Mapper) clamp(db float64) float64 {
	if math.IsNaN(db) {
		return 0
	}
	return core.Clamp(db, m.cfg.ClampMinDB, m.cfg.ClampMaxDB)
}
