package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"

	"github.com/linuxmatters/cabingain/internal/config"
)

func ptr[T any](v T) *T { return &v }

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	t.Setenv(config.EnvSensorURL, "")
	path := writeTuning(t, "gain:\n  user_offset_db: 2\nsensor:\n  url: http://10.0.0.2:5005/state\ntiming:\n  frame: 200ms\n")

	cfg, err := loadConfig(&CLI{
		Config:    path,
		SensorURL: "http://car.local:5005/state",
		Frame:     ptr(50 * time.Millisecond),
		Offset:    ptr(-3.0),
		Units:     "mph",
		Stream:    true,
	})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Sensor.URL != "http://car.local:5005/state" || !cfg.Sensor.Stream {
		t.Errorf("sensor = %+v", cfg.Sensor)
	}
	if cfg.Timing.Frame.Std() != 50*time.Millisecond {
		t.Errorf("frame = %v", cfg.Timing.Frame.Std())
	}
	if cfg.Gain.UserOffsetDB != -3 {
		t.Errorf("offset = %v", cfg.Gain.UserOffsetDB)
	}
	if cfg.Display.Units != "mph" {
		t.Errorf("units = %q", cfg.Display.Units)
	}
}

func TestLoadConfigKeepsFileWithoutFlags(t *testing.T) {
	t.Setenv(config.EnvSensorURL, "")
	cfg, err := loadConfig(&CLI{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Timing.Frame.Std() != 100*time.Millisecond || cfg.Gain.UserOffsetDB != 0 {
		t.Errorf("defaults changed: frame=%v offset=%v", cfg.Timing.Frame.Std(), cfg.Gain.UserOffsetDB)
	}
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	t.Setenv(config.EnvSensorURL, "")
	_, err := loadConfig(&CLI{Frame: ptr(time.Millisecond)})
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
	_, err = loadConfig(&CLI{Units: "knots"})
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestLoadConfigExplicitZeroOverridesFile(t *testing.T) {
	t.Setenv(config.EnvSensorURL, "")
	path := writeTuning(t, "gain:\n  user_offset_db: 4\ntiming:\n  frame: 200ms\n")

	cfg, err := loadConfig(&CLI{Config: path, Offset: ptr(0.0)})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gain.UserOffsetDB != 0 {
		t.Errorf("offset = %v, want the explicit 0", cfg.Gain.UserOffsetDB)
	}
	if cfg.Timing.Frame.Std() != 200*time.Millisecond {
		t.Errorf("frame = %v, want the file's 200ms", cfg.Timing.Frame.Std())
	}

	// A zero frame is passed through and rejected, not ignored
	_, err = loadConfig(&CLI{Config: path, Frame: ptr(time.Duration(0))})
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestParseOffsetFlag(t *testing.T) {
	input := filepath.Join(t.TempDir(), "in.wav")
	if err := os.WriteFile(input, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want *float64
	}{
		{"absent", []string{input}, nil},
		{"zero", []string{"--offset", "0", input}, ptr(0.0)},
		{"negative", []string{"--offset=-2.5", input}, ptr(-2.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c CLI
			parser, err := kong.New(&c, kong.Exit(func(int) {}))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := parser.Parse(tt.args); err != nil {
				t.Fatalf("Parse: %v", err)
			}
			switch {
			case tt.want == nil && c.Offset != nil:
				t.Errorf("Offset = %v, want unset", *c.Offset)
			case tt.want != nil && (c.Offset == nil || *c.Offset != *tt.want):
				t.Errorf("Offset = %v, want %v", c.Offset, *tt.want)
			}
		})
	}
}
