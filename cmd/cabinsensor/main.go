package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/linuxmatters/cabingain/internal/cli"
	"github.com/linuxmatters/cabingain/internal/sensorsim"
)

var (
	version = "0.0.1"
)

// CLI defines the command-line interface
type CLI struct {
	Version bool    `short:"v" help:"Show version information"`
	Addr    string  `short:"a" default:"${addr}" placeholder:"HOST:PORT" help:"Listen address"`
	Cabin   float64 `default:"${cabin}" placeholder:"DB" help:"Initial cabin noise in dB"`
	Speed   float64 `default:"${speed}" placeholder:"KMH" help:"Initial speed in km/h"`
	Debug   bool    `help:"Enable debug logging"`
}

func main() {
	cliArgs := &CLI{}
	kong.Parse(cliArgs,
		kong.Name("cabinsensor"),
		kong.Description("Simulated vehicle sensor feed for cabingain"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
			"addr":    sensorsim.DefaultAddr,
			"cabin":   fmt.Sprint(sensorsim.DefaultCabinDB),
			"speed":   fmt.Sprint(sensorsim.DefaultSpeedKMH),
		},
		kong.Help(cli.StyledHelpPrinter("cabinsensor 🚗", "Simulated vehicle sensor feed for cabingain")),
	)

	if cliArgs.Version {
		cli.PrintVersion("cabinsensor", version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if cliArgs.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := sensorsim.NewStore(sensorsim.State{CabinDB: cliArgs.Cabin, SpeedKMH: cliArgs.Speed})
	srv := sensorsim.New(store, logger)

	cli.PrintField("Control panel", fmt.Sprintf("http://%s/", cliArgs.Addr))
	cli.PrintField("State", fmt.Sprintf("http://%s/state", cliArgs.Addr))
	logger.Info("sensor simulator listening", "addr", cliArgs.Addr)

	if err := srv.Run(ctx, cliArgs.Addr); err != nil {
		cli.PrintError(fmt.Sprintf("server failed: %v", err))
		os.Exit(1)
	}
	logger.Info("sensor simulator stopped")
}
