package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linuxmatters/cabingain/internal/audio"
	"github.com/linuxmatters/cabingain/internal/config"
	"github.com/linuxmatters/cabingain/internal/locale"
	"github.com/linuxmatters/cabingain/internal/logging"
	"github.com/linuxmatters/cabingain/internal/processor"
	"github.com/linuxmatters/cabingain/internal/sensor"
)

// micSampleRate is used for microphone pass-through, when no file sets the rate.
const micSampleRate = 48000

// session owns the resources of one run: the sensor feed, the decoded input
// and the audio device.
type session struct {
	id     string
	args   *CLI
	cfg    *config.Config
	units  locale.Unit
	log    *slog.Logger
	status func(processor.Status)

	reader   sensor.Reader
	local    *sensor.LocalMeasurement
	stopFeed func()
	device   bool

	buf        *audio.Buffer
	sampleRate int
	channels   int

	start     time.Time
	end       time.Time
	summary   processor.Summary
	underruns int64
}

// open decodes the input, starts the sensor feed and initialises the audio
// device. On error nothing is left running.
func (s *session) open(ctx context.Context) error {
	s.sampleRate, s.channels = micSampleRate, 1
	if s.args.File != "" {
		buf, meta, err := audio.OpenAudioFile(s.args.File)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", s.args.File, err)
		}
		s.buf, s.sampleRate, s.channels = buf, meta.SampleRate, meta.Channels
		s.log.Debug("input decoded",
			"file", s.args.File,
			"duration", meta.Duration,
			"sample_rate", meta.SampleRate,
			"channels", meta.Channels,
			"bit_depth", meta.BitDepth)
	}

	if err := s.startFeed(ctx); err != nil {
		return err
	}
	if s.args.Mic {
		s.local = sensor.NewLocalMeasurement(s.cfg.Noise.CalibrationDB, s.reader)
		if err := s.local.Smooth(s.cfg.LevelSmoothing(), s.sampleRate, 1); err != nil {
			s.close()
			return fmt.Errorf("failed to set up microphone metering: %w", err)
		}
		s.reader = s.local
	}

	if s.args.Live || !s.args.NoPlayback {
		if err := audio.Initialize(); err != nil {
			s.close()
			return err
		}
		s.device = true
	}
	return nil
}

// startFeed selects the sensor source for the configured mode.
func (s *session) startFeed(ctx context.Context) error {
	if s.args.Mode != "remote" {
		s.reader = sensor.NewMockModel()
		return nil
	}

	slot := &sensor.Slot{}
	s.reader = slot
	url := s.cfg.Sensor.URL

	if s.cfg.Sensor.Stream {
		wsURL, err := sensor.StreamURL(url)
		if err != nil {
			return err
		}
		feedCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			sensor.NewRemoteStream(wsURL, slot, s.log).Run(feedCtx)
		}()
		s.stopFeed = func() {
			cancel()
			<-done
		}
		s.log.Info("subscribed to sensor feed", "url", wsURL)
		return nil
	}

	poll := sensor.NewRemotePoll(url, s.cfg.Sensor.PollTimeout.Std())
	poller := sensor.NewPoller(sensor.NewFallback(poll), slot, s.cfg.Sensor.PollPeriod.Std(), s.log)
	poller.Start(ctx)
	s.stopFeed = poller.Stop
	s.log.Info("polling sensor feed", "url", poll.URL(), "period", poller.Period())
	return nil
}

// close stops the feed and releases the audio device.
func (s *session) close() {
	if s.stopFeed != nil {
		s.stopFeed()
	}
	if s.device {
		audio.Terminate()
	}
}

// process runs the session to completion. Cancellation is a normal stop.
func (s *session) process(ctx context.Context) error {
	s.start = time.Now()
	defer func() { s.end = time.Now() }()

	var err error
	if s.args.Live {
		err = s.processLive(ctx)
	} else {
		err = s.processFile(ctx)
	}
	if errors.Is(err, context.Canceled) {
		s.log.Info("session stopped", "updates", s.summary.Frames)
		return nil
	}
	if err == nil {
		s.log.Info("session complete", "updates", s.summary.Frames, "fallback", s.summary.FallbackFrames)
	}
	return err
}

func (s *session) observe(st processor.Status) {
	if s.status != nil {
		s.status(st)
	}
}

// processFile runs the chunk pipeline into the player and/or a WAV file.
func (s *session) processFile(ctx context.Context) (err error) {
	var sinks audio.MultiSink
	var player *audio.Player

	if !s.args.NoPlayback {
		player, err = audio.OpenPlayer(s.sampleRate, s.channels)
		if err != nil {
			return fmt.Errorf("failed to open audio device: %w", err)
		}
		defer player.Close()
		sinks = append(sinks, player)
	}
	if s.args.Output != "" {
		w, werr := audio.CreateWAV(s.args.Output, s.sampleRate, s.channels)
		if werr != nil {
			return werr
		}
		defer func() {
			if cerr := w.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to finalise %s: %w", s.args.Output, cerr)
			}
		}()
		sinks = append(sinks, w)
	}

	var sink audio.Sink = sinks
	if len(sinks) == 0 {
		sink = &audio.Discard{}
	}

	p, err := processor.NewChunkPipeline(s.cfg.Processor(), s.reader, s.log)
	if err != nil {
		return err
	}
	// Headless runs against the simulated drive need no real-time pacing.
	p.Pace = player != nil || s.args.Mode == "remote"
	p.Observer = s.observe

	sum, err := p.Run(ctx, s.buf, sink)
	if sum != nil {
		s.summary = *sum
	}
	if err != nil {
		return err
	}

	if player != nil {
		if err := player.Drain(ctx); err != nil {
			return err
		}
		s.underruns = player.Underruns()
		if d := player.Dropped(); d > 0 {
			s.log.Warn("playback queue overflowed", "dropped_samples", d)
		}
	}
	return nil
}

// processLive runs the callback engine, optionally measuring the cabin from
// the microphone. Without a file the microphone is passed through.
func (s *session) processLive(ctx context.Context) error {
	e, err := processor.NewLiveEngine(s.cfg.Processor(), s.reader, s.local, s.sampleRate, s.channels, s.log)
	if err != nil {
		return err
	}
	e.Observer = s.observe

	var stream *audio.Stream
	if s.args.Mic {
		passthrough := s.buf == nil
		stream, err = audio.OpenDuplex(s.sampleRate, 1, s.channels, audio.DefaultFramesPerBuffer, func(in, out []float32) {
			e.Capture(in)
			if passthrough {
				e.Enqueue(in)
			}
			e.Process(out)
		})
	} else {
		stream, err = audio.OpenOutput(s.sampleRate, s.channels, audio.DefaultFramesPerBuffer, e.Process)
	}
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	defer stream.Close()

	e.Start(ctx)
	defer func() {
		e.Stop()
		s.summary = e.Summary()
		s.underruns = e.Underruns()
	}()

	if s.buf == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return e.Play(ctx, s.buf)
}

// report assembles the session report from the finished run.
func (s *session) report() logging.ReportData {
	data := logging.ReportData{
		SessionID:  s.id,
		Mode:       s.args.Mode,
		Live:       s.args.Live,
		InputPath:  s.args.File,
		OutputPath: s.args.Output,
		StartTime:  s.start,
		EndTime:    s.end,
		Config:     s.cfg.Processor(),
		Summary:    s.summary,
		Units:      s.units,
		SampleRate: s.sampleRate,
		Channels:   s.channels,
		Underruns:  s.underruns,
	}
	if s.args.Mode == "remote" {
		data.SensorURL = s.cfg.Sensor.URL
	}
	return data
}
