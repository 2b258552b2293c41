package processor

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linuxmatters/cabingain/internal/gain"
	"github.com/linuxmatters/cabingain/internal/sensor"
)

func newTestLiveEngine(t *testing.T, r sensor.Reader, capture *sensor.LocalMeasurement) *LiveEngine {
	t.Helper()
	e, err := NewLiveEngine(DefaultConfig(), r, capture, 1000, 1, quietLogger())
	if err != nil {
		t.Fatalf("NewLiveEngine: %v", err)
	}
	return e
}

func TestLiveEngineUnderflowIsSilence(t *testing.T) {
	e := newTestLiveEngine(t, &sensor.Slot{}, nil)

	out := []float32{1, 1, 1, 1}
	e.Process(out)
	for i, s := range out {
		if s != 0 {
			t.Errorf("out[%d] = %v, want silence", i, s)
		}
	}

	e.Enqueue([]float32{0.5, -0.5})
	out = []float32{1, 1, 1, 1}
	e.Process(out)
	want := []float32{0.5, -0.5, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
	if e.Underruns() != 2 {
		t.Errorf("Underruns = %d, want 2", e.Underruns())
	}
}

func TestLiveEngineControlStepPublishesGain(t *testing.T) {
	slot := &sensor.Slot{}
	slot.Store(sensor.Snapshot{CabinDB: 65, HasCabin: true})
	e := newTestLiveEngine(t, slot, nil)

	if e.Gain() != 1 {
		t.Fatalf("initial gain = %v, want unity", e.Gain())
	}

	// 75 - 65 = +10 dB via the attack path; 20 ticks of 50 ms is 10 tau
	var st Status
	for i := 0; i < 20; i++ {
		st = e.controlStep(i, 50*time.Millisecond)
	}
	want := 10 * (1 - math.Exp(-10))
	if math.Abs(st.GainDB-want) > 1e-6 {
		t.Errorf("gain = %v dB, want %v", st.GainDB, want)
	}
	if got := e.Gain(); math.Abs(got-gain.DBToLinear(st.GainDB)) > 1e-12 {
		t.Errorf("published gain %v does not match status %v", got, st.GainLinear)
	}

	e.Enqueue([]float32{0.1})
	out := make([]float32, 1)
	e.Process(out)
	if math.Abs(float64(out[0])-0.1*e.Gain()) > 1e-6 {
		t.Errorf("callback output %v, want %v", out[0], 0.1*e.Gain())
	}

	sum := e.Summary()
	if sum.Frames != 20 || sum.NoReadingFrames != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestLiveEngineCaptureDrivesGain(t *testing.T) {
	local := sensor.NewLocalMeasurement(94, nil)
	e := newTestLiveEngine(t, local, local)

	st := e.controlStep(0, 50*time.Millisecond)
	if !st.NoReading {
		t.Fatal("no capture yet, expected NoReading")
	}

	// Constant 0.1 block reads as 74 dB
	in := make([]float32, 128)
	for i := range in {
		in[i] = 0.1
	}
	e.Capture(in)
	st = e.controlStep(1, 50*time.Millisecond)
	if st.NoReading || math.Abs(st.CabinDB-74) > 1e-4 {
		t.Errorf("status = %+v, want cabin 74 dB", st)
	}
	if math.Abs(st.RawGainDB-1) > 1e-4 {
		t.Errorf("raw gain = %v, want +1 dB", st.RawGainDB)
	}
}

func TestLiveEnginePlayCompletesWhenConsumed(t *testing.T) {
	slot := &sensor.Slot{}
	slot.Store(sensor.Snapshot{SpeedKMH: 30})
	e := newTestLiveEngine(t, slot, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.Start(ctx)
	defer e.Stop()

	// Stand-in for the device callback thread
	var played atomic.Int64
	stop := make(chan struct{})
	go func() {
		out := make([]float32, 100)
		for {
			select {
			case <-stop:
				return
			default:
			}
			e.Process(out)
			played.Add(int64(len(out)))
			time.Sleep(time.Millisecond)
		}
	}()
	defer close(stop)

	buf := sineBuffer(1000, 1, 1.5, 0.2) // larger than the 1 s queue
	if err := e.Play(ctx, buf); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if e.consumed.Load() != int64(len(buf.Samples)) {
		t.Errorf("consumed %d of %d samples", e.consumed.Load(), len(buf.Samples))
	}
}

func TestLiveEnginePlayHonoursCancel(t *testing.T) {
	e := newTestLiveEngine(t, &sensor.Slot{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Nothing consumes the queue, so Play can only return through ctx.
	if err := e.Play(ctx, sineBuffer(1000, 1, 3, 0.2)); err == nil {
		t.Fatal("expected a context error")
	}
}

func TestLiveEngineAdvancesMock(t *testing.T) {
	mock := sensor.NewMockModel()
	e := newTestLiveEngine(t, mock, nil)
	for i := 0; i < 4; i++ {
		e.controlStep(i, 50*time.Millisecond)
	}
	if mock.Elapsed() != 200*time.Millisecond {
		t.Errorf("mock elapsed = %v, want 200ms", mock.Elapsed())
	}
}
