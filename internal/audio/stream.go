package audio

import (
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// DefaultFramesPerBuffer is the callback block size in sample frames.
const DefaultFramesPerBuffer = 512

// Initialize starts the PortAudio host API. Pair with Terminate.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialise audio: %w", err)
	}
	return nil
}

// Terminate releases PortAudio.
func Terminate() {
	portaudio.Terminate()
}

// paStream abstracts a PortAudio stream for testing.
type paStream interface {
	Start() error
	Stop() error
	Close() error
}

// Stream is a started callback stream on the default device.
type Stream struct {
	s       paStream
	running atomic.Bool
}

// OpenOutput opens and starts a default output stream. cb is called on the
// audio thread for every block of interleaved output samples.
func OpenOutput(sampleRate, channels, framesPerBuffer int, cb func(out []float32)) (*Stream, error) {
	s, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), framesPerBuffer, cb)
	if err != nil {
		return nil, fmt.Errorf("failed to open output device: %w", err)
	}
	return start(s)
}

// OpenDuplex opens and starts a default input+output stream for live capture.
func OpenDuplex(sampleRate, inChannels, outChannels, framesPerBuffer int, cb func(in, out []float32)) (*Stream, error) {
	s, err := portaudio.OpenDefaultStream(inChannels, outChannels, float64(sampleRate), framesPerBuffer, cb)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio devices: %w", err)
	}
	return start(s)
}

func start(s paStream) (*Stream, error) {
	if err := s.Start(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	st := &Stream{s: s}
	st.running.Store(true)
	return st, nil
}

// Close stops and closes the stream. Safe to call more than once.
func (st *Stream) Close() error {
	if !st.running.CompareAndSwap(true, false) {
		return nil
	}
	stopErr := st.s.Stop()
	closeErr := st.s.Close()
	if stopErr != nil {
		return stopErr
	}
	return closeErr
}
