package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/linuxmatters/cabingain/internal/audio"
	"github.com/linuxmatters/cabingain/internal/gain"
	"github.com/linuxmatters/cabingain/internal/sensor"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock advances only when slept on.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// recordSink keeps copies of every frame written.
type recordSink struct {
	frames [][]float32
}

func (s *recordSink) Write(_ context.Context, fr audio.Frame) error {
	s.frames = append(s.frames, append([]float32(nil), fr.Samples...))
	return nil
}

func newTestPipeline(t *testing.T, r sensor.Reader) (*ChunkPipeline, *fakeClock) {
	t.Helper()
	p, err := NewChunkPipeline(DefaultConfig(), r, quietLogger())
	if err != nil {
		t.Fatalf("NewChunkPipeline: %v", err)
	}
	clock := &fakeClock{now: time.Unix(0, 0)}
	p.Now = clock.Now
	p.Sleep = clock.Sleep
	return p, clock
}

func TestPipelinePacesToRealTime(t *testing.T) {
	slot := &sensor.Slot{}
	slot.Store(sensor.Snapshot{SpeedKMH: 50})
	p, clock := newTestPipeline(t, slot)

	buf := sineBuffer(1000, 1, 1.0, 0.3) // 1 s at 1 kHz, 10 frames
	sink := &recordSink{}
	sum, err := p.Run(context.Background(), buf, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.frames) != 10 || sum.Frames != 10 {
		t.Fatalf("emitted %d frames (summary %d), want 10", len(sink.frames), sum.Frames)
	}
	if len(clock.sleeps) != 10 {
		t.Errorf("slept %d times, want 10", len(clock.sleeps))
	}
	if got := clock.now.Sub(time.Unix(0, 0)); got != time.Second {
		t.Errorf("paced for %v, want 1s", got)
	}
	if sum.Duration != time.Second {
		t.Errorf("summary duration = %v", sum.Duration)
	}
}

func TestPipelineUnpacedDoesNotSleep(t *testing.T) {
	slot := &sensor.Slot{}
	slot.Store(sensor.Snapshot{SpeedKMH: 50})
	p, clock := newTestPipeline(t, slot)
	p.Pace = false

	if _, err := p.Run(context.Background(), sineBuffer(1000, 1, 0.5, 0.3), &audio.Discard{}); err != nil {
		t.Fatal(err)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("unpaced run slept %d times", len(clock.sleeps))
	}
}

func TestPipelineCancellationDropsRemainingFrames(t *testing.T) {
	slot := &sensor.Slot{}
	slot.Store(sensor.Snapshot{SpeedKMH: 50})
	p, _ := newTestPipeline(t, slot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Observer = func(st Status) {
		if st.Index == 2 {
			cancel()
		}
	}

	sink := &recordSink{}
	sum, err := p.Run(ctx, sineBuffer(1000, 1, 1.0, 0.3), sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(sink.frames) != 3 || sum.Frames != 3 {
		t.Errorf("emitted %d frames after cancel at frame 2, want 3", len(sink.frames))
	}
}

func TestPipelineUnityGainIsIdentity(t *testing.T) {
	// Noise equal to the target loudness maps to 0 dB, and the smoother
	// starts at 0 dB, so the signal must pass through unchanged.
	slot := &sensor.Slot{}
	slot.Store(sensor.Snapshot{CabinDB: gain.DefaultTargetLoudnessDB, HasCabin: true})
	p, _ := newTestPipeline(t, slot)
	p.Pace = false

	buf := sineBuffer(8000, 2, 0.5, 0.4)
	want := append([]float32(nil), buf.Samples...)
	sink := &recordSink{}
	if _, err := p.Run(context.Background(), buf, sink); err != nil {
		t.Fatal(err)
	}

	var got []float32
	for _, fr := range sink.frames {
		got = append(got, fr...)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPipelineNeverExceedsFullScale(t *testing.T) {
	slot := &sensor.Slot{}
	// Very quiet cabin asks for maximum boost
	slot.Store(sensor.Snapshot{CabinDB: 0, HasCabin: true, SpeedKMH: 0})
	p, _ := newTestPipeline(t, slot)
	p.Pace = false

	buf := sineBuffer(8000, 1, 3.0, 0.9)
	sink := &recordSink{}
	sum, err := p.Run(context.Background(), buf, sink)
	if err != nil {
		t.Fatal(err)
	}
	for _, fr := range sink.frames {
		for i, s := range fr {
			if s > 1 || s < -1 {
				t.Fatalf("sample %d = %v exceeds full scale", i, s)
			}
		}
	}
	if sum.LimitedSamples == 0 {
		t.Error("expected the limiter to engage at high gain")
	}
	if sum.GainDB.Max > gain.DefaultClampDB {
		t.Errorf("gain %v exceeded the clamp", sum.GainDB.Max)
	}
}

func TestPipelineHoldsGainWithoutReading(t *testing.T) {
	p, _ := newTestPipeline(t, &sensor.Slot{})
	p.Pace = false

	var statuses []Status
	p.Observer = func(st Status) { statuses = append(statuses, st) }
	sum, err := p.Run(context.Background(), sineBuffer(1000, 1, 0.5, 0.3), &audio.Discard{})
	if err != nil {
		t.Fatal(err)
	}
	if sum.NoReadingFrames != 5 {
		t.Errorf("NoReadingFrames = %d, want 5", sum.NoReadingFrames)
	}
	for _, st := range statuses {
		if !st.NoReading || st.GainDB != 0 || st.GainLinear != 1 {
			t.Errorf("frame %d: %+v, want held unity gain", st.Index, st)
		}
	}
}

func TestPipelineContinuesOnPriorSnapshotWhenFeedFails(t *testing.T) {
	slot := &sensor.Slot{}
	slot.Store(sensor.Snapshot{SpeedKMH: 80, CabinDB: 70, HasCabin: true})

	// A poller against an unreachable endpoint must leave the slot alone.
	remote := sensor.NewRemotePoll("http://127.0.0.1:1/state", 50*time.Millisecond)
	poller := sensor.NewPoller(remote, slot, sensor.MinPollPeriod, quietLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 3*sensor.MinPollPeriod)
	poller.Run(ctx)
	cancel()

	p, _ := newTestPipeline(t, slot)
	p.Pace = false
	var last Status
	p.Observer = func(st Status) { last = st }

	sum, err := p.Run(context.Background(), sineBuffer(1000, 1, 2.0, 0.3), &audio.Discard{})
	if err != nil {
		t.Fatal(err)
	}
	if sum.NoReadingFrames != 0 {
		t.Errorf("NoReadingFrames = %d, want 0", sum.NoReadingFrames)
	}
	if last.SpeedKMH != 80 || last.CabinDB != 70 {
		t.Errorf("last status used %+v, want the prior snapshot", last)
	}
}

func TestPipelineAdvancesMockModel(t *testing.T) {
	mock := sensor.NewMockModel()
	p, _ := newTestPipeline(t, mock)
	p.Pace = false

	var statuses []Status
	p.Observer = func(st Status) { statuses = append(statuses, st) }
	if _, err := p.Run(context.Background(), sineBuffer(1000, 1, 1.0, 0.1), &audio.Discard{}); err != nil {
		t.Fatal(err)
	}
	if mock.Elapsed() != time.Second {
		t.Errorf("mock elapsed = %v, want 1s", mock.Elapsed())
	}
	// Frame 3 is computed at t = 0.3 s
	if want := sensor.MockSpeedKMH(0.3); math.Abs(statuses[3].SpeedKMH-want) > 1e-9 {
		t.Errorf("frame 3 speed = %v, want %v", statuses[3].SpeedKMH, want)
	}
}

func TestPipelineGainTracksNoise(t *testing.T) {
	slot := &sensor.Slot{}
	slot.Store(sensor.Snapshot{CabinDB: 85, HasCabin: true})
	p, _ := newTestPipeline(t, slot)
	p.Pace = false

	var last Status
	p.Observer = func(st Status) { last = st }
	// Half a second of audio in five frames
	if _, err := p.Run(context.Background(), sineBuffer(1000, 1, 0.5, 0.01), &audio.Discard{}); err != nil {
		t.Fatal(err)
	}
	// target 75 - noise 85 = -10 dB, reached via the release path (tau 1 s)
	wantRaw := -10.0
	if last.RawGainDB != wantRaw {
		t.Errorf("raw gain = %v, want %v", last.RawGainDB, wantRaw)
	}
	want := wantRaw * (1 - math.Exp(-0.5/gain.DefaultTauRelease))
	if math.Abs(last.GainDB-want) > 1e-6 {
		t.Errorf("smoothed gain = %v, want %v", last.GainDB, want)
	}
}

func TestNewChunkPipelineRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameDuration = 0
	if _, err := NewChunkPipeline(cfg, &sensor.Slot{}, nil); err == nil {
		t.Error("expected error for zero frame duration")
	}
	if _, err := NewChunkPipeline(DefaultConfig(), nil, nil); err == nil {
		t.Error("expected error for a nil reader")
	}
}
