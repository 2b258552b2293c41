package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/linuxmatters/cabingain/internal/cli"
	"github.com/linuxmatters/cabingain/internal/config"
	"github.com/linuxmatters/cabingain/internal/logging"
	"github.com/linuxmatters/cabingain/internal/processor"
	"github.com/linuxmatters/cabingain/internal/ui"
)

var (
	version = "0.0.1"
)

// debugLogFile receives logs while the TUI owns the terminal
const debugLogFile = "cabingain-debug.log"

// CLI defines the command-line interface
type CLI struct {
	Version    bool          `short:"v" help:"Show version information"`
	Config     string        `short:"c" type:"existingfile" help:"Path to YAML tuning file (optional)"`
	Mode       string        `short:"m" enum:"auto,remote" default:"auto" help:"Sensor source: simulated drive or remote feed"`
	SensorURL  string        `name:"sensor-url" env:"SPEED_UI_URL" placeholder:"URL" help:"Sensor feed state endpoint (remote mode)"`
	Stream     bool          `help:"Subscribe to the sensor feed's websocket push instead of polling"`
	Live       bool          `help:"Play through the audio device callback engine"`
	Mic        bool          `help:"Measure cabin noise from the default microphone (implies --live)"`
	Frame      *time.Duration `placeholder:"DURATION" help:"Frame duration in file mode"`
	Offset     *float64       `placeholder:"DB" help:"Personal loudness offset in dB"`
	Units      string        `placeholder:"UNIT" help:"Speed display unit: auto, kmh or mph"`
	TUI        bool          `name:"tui" help:"Show the live dashboard"`
	Logs       bool          `help:"Save a session report"`
	NoPlayback bool          `name:"no-playback" help:"Process without an audio device"`
	Output     string        `short:"o" type:"path" help:"Also write the processed audio to a WAV file"`
	Debug      bool          `help:"Enable debug logging"`
	File       string        `arg:"" name:"file" optional:"" type:"existingfile" help:"WAV file to play"`
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("cabingain"),
		kong.Description("Speed and cabin-noise adaptive volume for in-car audio"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter("cabingain 🚗", "Speed and cabin-noise adaptive volume for in-car audio")),
	)

	if cliArgs.Version {
		cli.PrintVersion("cabingain", version)
		os.Exit(0)
	}

	if cliArgs.Mic {
		cliArgs.Live = true
	}
	if cliArgs.File == "" && !cliArgs.Mic {
		cli.PrintError("No input file specified")
		ctx.PrintUsage(false)
		os.Exit(1)
	}

	if err := run(cliArgs); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

// loadConfig reads the tuning file and layers the command-line overrides on top.
func loadConfig(c *CLI) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if c.SensorURL != "" {
		cfg.Sensor.URL = c.SensorURL
	}
	if c.Stream {
		cfg.Sensor.Stream = true
	}
	// Nil when the flag was not given, so an explicit zero still overrides
	if c.Frame != nil {
		cfg.Timing.Frame = config.Duration(*c.Frame)
	}
	if c.Offset != nil {
		cfg.Gain.UserOffsetDB = *c.Offset
	}
	if c.Units != "" {
		cfg.Display.Units = c.Units
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes text logs to stderr, or to the debug file when the
// dashboard owns the terminal. The returned func closes the log file.
func newLogger(tui, debug bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	var w io.Writer = os.Stderr
	closeLog := func() {}
	if tui {
		f, err := os.Create(debugLogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create debug log: %w", err)
		}
		w, closeLog = f, func() { f.Close() }
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeLog, nil
}

func run(c *CLI) error {
	if c.Live && c.NoPlayback {
		return errors.New("--live needs an audio device; drop --no-playback")
	}
	if c.Live && c.Output != "" {
		return errors.New("--output is only available in file mode")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(c.TUI, c.Debug)
	if err != nil {
		return err
	}
	defer closeLog()

	sessionID := uuid.NewString()
	logger = logger.With("session", sessionID)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &session{
		id:    sessionID,
		args:  c,
		cfg:   cfg,
		units: cfg.Units().Resolve(),
		log:   logger,
	}
	if err := s.open(ctx); err != nil {
		return err
	}
	defer s.close()

	logger.Info("session starting",
		"mode", c.Mode,
		"live", c.Live,
		"mic", c.Mic,
		"file", c.File,
		"policy", cfg.Gain.Policy)

	if c.TUI {
		err = runWithDashboard(ctx, s)
	} else {
		err = runConsole(ctx, s)
	}
	if err != nil {
		return err
	}

	if c.Logs {
		path, err := logging.GenerateReport(s.report())
		if err != nil {
			return err
		}
		if !c.TUI {
			cli.PrintField("Report", path)
		}
	}
	return nil
}

// runConsole processes with a throttled status line on stderr.
func runConsole(ctx context.Context, s *session) error {
	var last time.Time
	s.status = func(st processor.Status) {
		if now := time.Now(); now.Sub(last) >= time.Second {
			last = now
			fmt.Fprintln(os.Stderr, cli.StatusLine(st, s.units))
		}
	}
	if err := s.process(ctx); err != nil {
		return err
	}
	sum := s.summary
	fmt.Fprintf(os.Stderr, "%s %d updates, gain %+.1f to %+.1f dB\n",
		cli.KeyStyle.Render("Done:"), sum.Frames, sum.GainDB.Min, sum.GainDB.Max)
	return nil
}

// runWithDashboard runs the processor in the background while the TUI owns
// the terminal, the way progress reached the UI in batch processing.
func runWithDashboard(ctx context.Context, s *session) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	source := "microphone"
	if s.args.File != "" {
		source = filepath.Base(s.args.File)
	}
	model := ui.NewModel(ui.Options{
		SessionID:  s.id,
		Source:     source,
		Mode:       s.args.Mode,
		Live:       s.args.Live,
		Units:      s.units,
		ClampMinDB: s.cfg.Gain.ClampMinDB,
		ClampMaxDB: s.cfg.Gain.ClampMaxDB,
		OnQuit:     cancel,
	})
	p := tea.NewProgram(model, tea.WithAltScreen())
	s.status = func(st processor.Status) { p.Send(ui.StatusMsg{Status: st}) }

	done := make(chan error, 1)
	go func() {
		err := s.process(ctx)
		msg := ui.SessionCompleteMsg{Summary: s.summary, Error: err}
		if err == nil && s.args.Logs {
			msg.ReportPath = logging.ReportPath(s.report())
		}
		p.Send(msg)
		done <- err
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return fmt.Errorf("UI error: %w", err)
	}
	cancel()
	return <-done
}
