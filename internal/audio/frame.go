package audio

import "time"

// Frame is a block of interleaved float32 samples in [-1, 1].
type Frame struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// FrameCount returns samples per channel.
func (f Frame) FrameCount() int {
	if f.Channels <= 0 {
		return 0
	}
	return len(f.Samples) / f.Channels
}

// Duration returns the playback time of the frame.
func (f Frame) Duration() time.Duration {
	return samplesDuration(f.FrameCount(), f.SampleRate)
}

// Buffer is a fully decoded signal.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// FrameCount returns samples per channel.
func (b *Buffer) FrameCount() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback time of the buffer.
func (b *Buffer) Duration() time.Duration {
	return samplesDuration(b.FrameCount(), b.SampleRate)
}

// SamplesPer returns the interleaved sample count covering d, rounded down to
// whole sample frames and never less than one sample frame.
func (b *Buffer) SamplesPer(d time.Duration) int {
	n := int(d.Seconds() * float64(b.SampleRate))
	if n < 1 {
		n = 1
	}
	return n * max(b.Channels, 1)
}

// Frames splits the buffer into consecutive frames of duration d. The last
// frame may be shorter. Frames share the buffer's backing array.
func (b *Buffer) Frames(d time.Duration) []Frame {
	if len(b.Samples) == 0 {
		return nil
	}
	step := b.SamplesPer(d)
	frames := make([]Frame, 0, (len(b.Samples)+step-1)/step)
	for start := 0; start < len(b.Samples); start += step {
		end := min(start+step, len(b.Samples))
		frames = append(frames, Frame{
			Samples:    b.Samples[start:end],
			SampleRate: b.SampleRate,
			Channels:   b.Channels,
		})
	}
	return frames
}

func samplesDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
