// Package config loads cabingain tuning from a YAML file, environment and
// command-line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/linuxmatters/cabingain/internal/gain"
	"github.com/linuxmatters/cabingain/internal/locale"
	"github.com/linuxmatters/cabingain/internal/noise"
	"github.com/linuxmatters/cabingain/internal/processor"
	"github.com/linuxmatters/cabingain/internal/sensor"
)

// EnvSensorURL overrides the sensor feed URL.
const EnvSensorURL = "SPEED_UI_URL"

// defaultLevelTau is about what a 0.95-per-block follower gives at 50 ms
// blocks.
const defaultLevelTau = 1.0

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Duration is a time.Duration read from YAML strings such as "150ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete tuning file.
type Config struct {
	Gain     GainConfig     `yaml:"gain"`
	Smoother SmootherConfig `yaml:"smoother"`
	Noise    NoiseConfig    `yaml:"noise"`
	Limiter  LimiterConfig  `yaml:"limiter"`
	Timing   TimingConfig   `yaml:"timing"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Display  DisplayConfig  `yaml:"display"`
}

// GainConfig configures the noise-to-gain mapping.
type GainConfig struct {
	Policy           gain.Policy `yaml:"policy"`
	TargetLoudnessDB float64     `yaml:"target_loudness_db"`
	UserOffsetDB     float64     `yaml:"user_offset_db"`
	ClampMinDB       float64     `yaml:"clamp_min_db"`
	ClampMaxDB       float64     `yaml:"clamp_max_db"`
	BaselineNoiseDB  float64     `yaml:"baseline_noise_db"`
	Sensitivity      float64     `yaml:"sensitivity"`
	InitialDB        float64     `yaml:"initial_db"`
}

// SmootherConfig holds the attack and release time constants in seconds.
type SmootherConfig struct {
	TauAttack  float64 `yaml:"tau_attack"`
	TauRelease float64 `yaml:"tau_release"`
}

// NoiseConfig configures the noise estimate.
type NoiseConfig struct {
	SpeedModel    noise.SpeedModel `yaml:"speed_model"`
	CalibrationDB float64          `yaml:"calibration_db"`
	Smoothing     SmootherConfig   `yaml:"smoothing"` // microphone block levels
}

// LimiterConfig configures the output limiter.
type LimiterConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// TimingConfig sets the processing cadence.
type TimingConfig struct {
	Frame         Duration `yaml:"frame"`
	ControlPeriod Duration `yaml:"control_period"`
}

// SensorConfig locates the sensor feed.
type SensorConfig struct {
	URL         string   `yaml:"url"`
	PollPeriod  Duration `yaml:"poll_period"`
	PollTimeout Duration `yaml:"poll_timeout"`
	Stream      bool     `yaml:"stream"` // subscribe to the websocket push feed instead of polling
}

// DisplayConfig controls presentation only.
type DisplayConfig struct {
	Units string `yaml:"units"`
}

// Default returns the built-in tuning.
func Default() *Config {
	m := gain.DefaultMapperConfig()
	s := gain.DefaultSmootherConfig()
	return &Config{
		Gain: GainConfig{
			Policy:           m.Policy,
			TargetLoudnessDB: m.TargetLoudnessDB,
			UserOffsetDB:     m.UserOffsetDB,
			ClampMinDB:       m.ClampMinDB,
			ClampMaxDB:       m.ClampMaxDB,
			BaselineNoiseDB:  m.BaselineNoiseDB,
			Sensitivity:      m.Sensitivity,
		},
		Smoother: SmootherConfig{TauAttack: s.TauAttack, TauRelease: s.TauRelease},
		Noise: NoiseConfig{
			SpeedModel:    noise.DefaultSpeedModel(),
			CalibrationDB: noise.DefaultCalibrationDB,
			Smoothing:     SmootherConfig{TauAttack: defaultLevelTau, TauRelease: defaultLevelTau},
		},
		Limiter: LimiterConfig{Threshold: gain.DefaultLimitThreshold},
		Timing: TimingConfig{
			Frame:         Duration(processor.DefaultFrameDuration),
			ControlPeriod: Duration(processor.DefaultControlPeriod),
		},
		Sensor: SensorConfig{
			URL:         sensor.DefaultStateURL,
			PollPeriod:  Duration(sensor.DefaultPollPeriod),
			PollTimeout: Duration(sensor.DefaultPollTimeout),
		},
		Display: DisplayConfig{Units: string(locale.UnitAuto)},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path yields the defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides using lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvSensorURL); ok && v != "" {
		c.Sensor.URL = v
	}
}

// Processor returns the gain chain configuration.
func (c *Config) Processor() processor.Config {
	return processor.Config{
		Mapper: gain.MapperConfig{
			Policy:           c.Gain.Policy,
			TargetLoudnessDB: c.Gain.TargetLoudnessDB,
			UserOffsetDB:     c.Gain.UserOffsetDB,
			ClampMinDB:       c.Gain.ClampMinDB,
			ClampMaxDB:       c.Gain.ClampMaxDB,
			BaselineNoiseDB:  c.Gain.BaselineNoiseDB,
			Sensitivity:      c.Gain.Sensitivity,
		},
		Smoother: gain.SmootherConfig{
			TauAttack:  c.Smoother.TauAttack,
			TauRelease: c.Smoother.TauRelease,
		},
		Speed:          c.Noise.SpeedModel,
		InitialGainDB:  c.Gain.InitialDB,
		LimitThreshold: c.Limiter.Threshold,
		FrameDuration:  c.Timing.Frame.Std(),
		ControlPeriod:  c.Timing.ControlPeriod.Std(),
	}
}

// LevelSmoothing returns the smoother settings for measured cabin levels.
func (c *Config) LevelSmoothing() gain.SmootherConfig {
	return gain.SmootherConfig{TauAttack: c.Noise.Smoothing.TauAttack, TauRelease: c.Noise.Smoothing.TauRelease}
}

// Units returns the configured display unit.
func (c *Config) Units() locale.Unit {
	u, err := locale.ParseUnit(c.Display.Units)
	if err != nil {
		return locale.UnitAuto
	}
	return u
}

// Validate checks the whole configuration. Errors wrap ErrInvalid.
func (c *Config) Validate() error {
	if err := c.Processor().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.LevelSmoothing().Validate(); err != nil {
		return fmt.Errorf("%w: level smoothing: %v", ErrInvalid, err)
	}
	if c.Sensor.URL == "" {
		return fmt.Errorf("%w: sensor url is empty", ErrInvalid)
	}
	if p := c.Sensor.PollPeriod.Std(); p != 0 && p < sensor.MinPollPeriod {
		return fmt.Errorf("%w: poll period %v is below %v", ErrInvalid, p, sensor.MinPollPeriod)
	}
	if c.Sensor.PollTimeout.Std() < 0 {
		return fmt.Errorf("%w: poll timeout must not be negative", ErrInvalid)
	}
	if _, err := locale.ParseUnit(c.Display.Units); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
