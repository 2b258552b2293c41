package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linuxmatters/cabingain/internal/audio"
	"github.com/linuxmatters/cabingain/internal/gain"
	"github.com/linuxmatters/cabingain/internal/sensor"
)

// ChunkPipeline applies gain to a decoded buffer one frame at a time,
// recomputing the gain once per frame from the latest sensor snapshot and
// pacing frame delivery to real time.
type ChunkPipeline struct {
	cfg       Config
	ctrl      *Controller
	snapshots sensor.Reader
	log       *slog.Logger

	// Pace enables real-time pacing. When false frames are emitted as fast
	// as the sink accepts them.
	Pace bool

	// Sleep and Now drive pacing; tests substitute a fake clock.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time

	// Observer, when set, receives a Status for every emitted frame.
	Observer func(Status)
}

// NewChunkPipeline builds a paced pipeline reading snapshots from r.
func NewChunkPipeline(cfg Config, r sensor.Reader, logger *slog.Logger) (*ChunkPipeline, error) {
	if r == nil {
		return nil, errors.New("pipeline needs a sensor reader")
	}
	ctrl, err := NewController(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid processing config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChunkPipeline{
		cfg:       cfg,
		ctrl:      ctrl,
		snapshots: r,
		log:       logger,
		Pace:      true,
		Sleep:     sleepContext,
		Now:       time.Now,
	}, nil
}

// ProcessFrame updates the gain for one frame and applies it in place,
// soft-limited and clamped to full scale.
func (p *ChunkPipeline) ProcessFrame(fr audio.Frame, snap sensor.Snapshot, ok bool) Status {
	st := p.ctrl.Step(snap, ok, fr.Duration())
	st.Limited = gain.ApplyGainAndLimit(fr.Samples, st.GainLinear, p.cfg.LimitThreshold)
	return st
}

// Run processes buf frame by frame into sink. Cancelling ctx drops the
// remaining frames and returns the summary so far with ctx.Err().
func (p *ChunkPipeline) Run(ctx context.Context, buf *audio.Buffer, sink audio.Sink) (*Summary, error) {
	frames := buf.Frames(p.cfg.FrameDuration)
	sum := &Summary{}
	advancer, _ := p.snapshots.(sensor.Advancer)

	p.log.Debug("pipeline starting",
		"frames", len(frames),
		"frame_duration", p.cfg.FrameDuration,
		"sample_rate", buf.SampleRate,
		"channels", buf.Channels,
		"paced", p.Pace)

	start := p.Now()
	var elapsed time.Duration
	for i, fr := range frames {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		snap, ok := p.snapshots.Latest()
		st := p.ProcessFrame(fr, snap, ok)
		elapsed += fr.Duration()
		st.Index = i
		st.Total = len(frames)
		st.Elapsed = elapsed
		st.Progress = float64(i+1) / float64(len(frames))

		if err := sink.Write(ctx, fr); err != nil {
			return sum, fmt.Errorf("failed to write frame %d: %w", i, err)
		}
		sum.Add(st)
		if p.Observer != nil {
			p.Observer(st)
		}
		if advancer != nil {
			advancer.Advance(fr.Duration())
		}

		if p.Pace {
			// Sleep against the session start so per-frame overhead does not accumulate.
			if wait := start.Add(elapsed).Sub(p.Now()); wait > 0 {
				if err := p.Sleep(ctx, wait); err != nil {
					return sum, err
				}
			}
		}
	}

	p.log.Debug("pipeline finished", "frames", sum.Frames, "fallback_frames", sum.FallbackFrames)
	return sum, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
