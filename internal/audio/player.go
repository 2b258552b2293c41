package audio

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// Sink receives processed frames in order.
type Sink interface {
	Write(ctx context.Context, fr Frame) error
}

// Discard accepts and counts frames without output, for headless runs.
type Discard struct {
	frames  atomic.Int64
	samples atomic.Int64
}

// Write implements Sink.
func (d *Discard) Write(_ context.Context, fr Frame) error {
	d.frames.Add(1)
	d.samples.Add(int64(len(fr.Samples)))
	return nil
}

// Frames returns the number of frames written.
func (d *Discard) Frames() int64 { return d.frames.Load() }

// Samples returns the number of interleaved samples written.
func (d *Discard) Samples() int64 { return d.samples.Load() }

// MultiSink writes each frame to every sink in order, stopping at the first
// error.
type MultiSink []Sink

// Write implements Sink.
func (m MultiSink) Write(ctx context.Context, fr Frame) error {
	for _, s := range m {
		if err := s.Write(ctx, fr); err != nil {
			return err
		}
	}
	return nil
}

// Player queues frames for a PortAudio output callback. The callback plays
// silence when the queue runs dry; writes beyond the queue capacity are
// dropped.
type Player struct {
	queue    *Ring
	stream   *Stream
	channels int

	underruns atomic.Int64
	dropped   atomic.Int64
}

// playerQueueSeconds sizes the queue.
const playerQueueSeconds = 2

// NewPlayer returns a player that is not yet attached to a device.
func NewPlayer(sampleRate, channels int) *Player {
	return &Player{
		queue:    NewRing(sampleRate * channels * playerQueueSeconds),
		channels: channels,
	}
}

// OpenPlayer opens the default output device and starts playback.
func OpenPlayer(sampleRate, channels int) (*Player, error) {
	p := NewPlayer(sampleRate, channels)
	st, err := OpenOutput(sampleRate, channels, DefaultFramesPerBuffer, p.Fill)
	if err != nil {
		return nil, err
	}
	p.stream = st
	return p, nil
}

// Write implements Sink.
func (p *Player) Write(_ context.Context, fr Frame) error {
	n := p.queue.Push(fr.Samples)
	if n < len(fr.Samples) {
		p.dropped.Add(int64(len(fr.Samples) - n))
	}
	return nil
}

// Fill is the output callback: it copies queued samples into out and
// zeroes whatever the queue could not supply.
func (p *Player) Fill(out []float32) {
	n := p.queue.Pop(out)
	if n < len(out) {
		p.underruns.Add(1)
		clear(out[n:])
	}
}

// Drain waits until the queue has been played out or ctx ends.
func (p *Player) Drain(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for p.queue.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Underruns returns how many callbacks were short of samples.
func (p *Player) Underruns() int64 { return p.underruns.Load() }

// Dropped returns how many samples were discarded on a full queue.
func (p *Player) Dropped() int64 { return p.dropped.Load() }

// Close stops the device stream.
func (p *Player) Close() error {
	if p.stream == nil {
		return errors.New("player not open")
	}
	return p.stream.Close()
}
