package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linuxmatters/cabingain/internal/audio"
	"github.com/linuxmatters/cabingain/internal/gain"
	"github.com/linuxmatters/cabingain/internal/sensor"
)

// liveQueueSeconds sizes the source sample queue.
const liveQueueSeconds = 1

// LiveEngine is the callback-driven execution shape. A control goroutine
// recomputes the gain every ControlPeriod and publishes it; the audio
// callback reads it without locking.
type LiveEngine struct {
	cfg       Config
	ctrl      *Controller
	snapshots sensor.Reader
	capture   *sensor.LocalMeasurement
	log       *slog.Logger

	queue    *audio.Ring
	gainBits atomic.Uint64

	consumed  atomic.Int64
	total     atomic.Int64
	underruns atomic.Int64
	limited   atomic.Int64

	// Observer, when set, receives a Status after every control tick. It
	// runs on the control goroutine.
	Observer func(Status)

	summary Summary
	mu      sync.Mutex // guards summary

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLiveEngine builds an engine for a stream of the given format.
// capture may be nil; when set, Capture feeds it.
func NewLiveEngine(cfg Config, r sensor.Reader, capture *sensor.LocalMeasurement, sampleRate, channels int, logger *slog.Logger) (*LiveEngine, error) {
	if r == nil {
		return nil, errors.New("live engine needs a sensor reader")
	}
	ctrl, err := NewController(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid processing config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &LiveEngine{
		cfg:       cfg,
		ctrl:      ctrl,
		snapshots: r,
		capture:   capture,
		log:       logger,
		queue:     audio.NewRing(sampleRate * channels * liveQueueSeconds),
	}
	e.storeGain(ctrl.Last().GainLinear)
	return e, nil
}

// Gain returns the linear gain the callback is currently applying.
func (e *LiveEngine) Gain() float64 {
	return math.Float64frombits(e.gainBits.Load())
}

func (e *LiveEngine) storeGain(lin float64) {
	e.gainBits.Store(math.Float64bits(lin))
}

// Process is the output callback. It plays queued source samples at the
// published gain, limited and clamped, and fills any shortfall with silence.
func (e *LiveEngine) Process(out []float32) {
	n := e.queue.Pop(out)
	if n > 0 {
		limited := gain.ApplyGainAndLimit(out[:n], e.Gain(), e.cfg.LimitThreshold)
		if limited > 0 {
			e.limited.Add(int64(limited))
		}
		e.consumed.Add(int64(n))
	}
	if n < len(out) {
		e.underruns.Add(1)
		clear(out[n:])
	}
}

// Capture is the input callback half. It measures the captured block as
// the cabin level.
func (e *LiveEngine) Capture(in []float32) {
	if e.capture != nil {
		e.capture.Feed(in)
	}
}

// Enqueue offers source samples to the callback queue and returns how many
// were accepted.
func (e *LiveEngine) Enqueue(samples []float32) int {
	return e.queue.Push(samples)
}

// Start launches the control loop. Stop ends it.
func (e *LiveEngine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.log.Debug("live control loop starting", "period", e.cfg.ControlPeriod, "capture", e.capture != nil)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.controlLoop(ctx)
	}()
}

// Stop cancels the control loop and waits for it to exit.
func (e *LiveEngine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *LiveEngine) controlLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ControlPeriod)
	defer ticker.Stop()

	last := time.Now()
	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.controlStep(tick, now.Sub(last))
			last = now
			tick++
		}
	}
}

// controlStep runs one control update over dt and publishes the gain.
func (e *LiveEngine) controlStep(tick int, dt time.Duration) Status {
	snap, ok := e.snapshots.Latest()
	st := e.ctrl.Step(snap, ok, dt)
	e.storeGain(st.GainLinear)

	if a, has := e.snapshots.(sensor.Advancer); has {
		a.Advance(dt)
	}

	st.Index = tick
	st.Limited = int(e.limited.Swap(0))
	if total := e.total.Load(); total > 0 {
		consumed := e.consumed.Load()
		st.Progress = math.Min(1, float64(consumed)/float64(total))
	}
	st.Elapsed = time.Duration(tick+1) * e.cfg.ControlPeriod

	e.mu.Lock()
	e.summary.Add(st)
	e.mu.Unlock()

	if e.Observer != nil {
		e.Observer(st)
	}
	return st
}

// Play feeds buf through the callback queue and returns once every sample
// has been consumed by the callback, or ctx ends.
func (e *LiveEngine) Play(ctx context.Context, buf *audio.Buffer) error {
	e.total.Store(int64(len(buf.Samples)))
	e.consumed.Store(0)

	block := buf.SamplesPer(e.cfg.ControlPeriod)
	ticker := time.NewTicker(e.cfg.ControlPeriod / 2)
	defer ticker.Stop()

	pending := buf.Samples
	for len(pending) > 0 {
		n := e.Enqueue(pending[:min(block, len(pending))])
		pending = pending[n:]
		if n > 0 && len(pending) > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	for e.consumed.Load() < e.total.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Underruns returns how many callbacks ran short of source samples.
func (e *LiveEngine) Underruns() int64 { return e.underruns.Load() }

// Summary returns the aggregated control ticks so far.
func (e *LiveEngine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary
}
