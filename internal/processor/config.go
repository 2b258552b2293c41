// Package processor applies speed- and noise-dependent gain to audio, either
// frame by frame against real time or from an audio device callback
package processor

import (
	"fmt"
	"time"

	"github.com/linuxmatters/cabingain/internal/gain"
	"github.com/linuxmatters/cabingain/internal/noise"
)

// Processing defaults
const (
	DefaultFrameDuration = 100 * time.Millisecond
	DefaultControlPeriod = 50 * time.Millisecond
	minStepDuration      = 5 * time.Millisecond
)

// Config holds the gain control chain tunables
type Config struct {
	Mapper   gain.MapperConfig
	Smoother gain.SmootherConfig
	Speed    noise.SpeedModel

	InitialGainDB  float64       // smoother start value
	LimitThreshold float64       // soft limiter knee, fraction of full scale
	FrameDuration  time.Duration // chunk length in file mode
	ControlPeriod  time.Duration // control loop period in live mode
}

// DefaultConfig returns the standard in-car settings
func DefaultConfig() Config {
	return Config{
		Mapper:         gain.DefaultMapperConfig(),
		Smoother:       gain.DefaultSmootherConfig(),
		Speed:          noise.DefaultSpeedModel(),
		LimitThreshold: gain.DefaultLimitThreshold,
		FrameDuration:  DefaultFrameDuration,
		ControlPeriod:  DefaultControlPeriod,
	}
}

// Validate checks every stage of the chain
func (c Config) Validate() error {
	if err := c.Mapper.Validate(); err != nil {
		return err
	}
	if err := c.Smoother.Validate(); err != nil {
		return err
	}
	if err := c.Speed.Validate(); err != nil {
		return err
	}
	if !(c.LimitThreshold > 0 && c.LimitThreshold <= 1) {
		return fmt.Errorf("limiter threshold %v must be in (0, 1]", c.LimitThreshold)
	}
	if c.FrameDuration < minStepDuration {
		return fmt.Errorf("frame duration %v is below %v", c.FrameDuration, minStepDuration)
	}
	if c.ControlPeriod < minStepDuration {
		return fmt.Errorf("control period %v is below %v", c.ControlPeriod, minStepDuration)
	}
	return nil
}
