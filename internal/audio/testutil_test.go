package audio

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// TestAudioOptions configures the synthetic audio to generate
type TestAudioOptions struct {
	DurationSecs float64 // Total duration in seconds
	SampleRate   int     // Sample rate (default: 48000)
	Channels     int     // Interleaved channels (default: 1)
	ToneFreq     float64 // Sine wave frequency in Hz (0 = no tone)
	ToneLevel    float64 // Tone level in dBFS (e.g., -6.0)
}

// generateTestAudio creates a synthetic 16-bit WAV file in t.TempDir and
// returns its path and the samples written.
func generateTestAudio(t *testing.T, opts TestAudioOptions) (string, []int16) {
	t.Helper()

	if opts.SampleRate == 0 {
		opts.SampleRate = 48000
	}
	if opts.Channels == 0 {
		opts.Channels = 1
	}
	if opts.DurationSecs == 0 {
		opts.DurationSecs = 1.0
	}

	frames := int(opts.DurationSecs * float64(opts.SampleRate))
	samples := make([]int16, frames*opts.Channels)

	toneAmp := 0.0
	if opts.ToneFreq > 0 && opts.ToneLevel < 0 {
		toneAmp = math.Pow(10.0, opts.ToneLevel/20.0)
	}

	for i := 0; i < frames; i++ {
		ts := float64(i) / float64(opts.SampleRate)
		v := int16(toneAmp * math.Sin(2.0*math.Pi*opts.ToneFreq*ts) * math.MaxInt16)
		for ch := 0; ch < opts.Channels; ch++ {
			samples[i*opts.Channels+ch] = v
		}
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if err := writeWAV(f, samples, opts.SampleRate, opts.Channels, 16); err != nil {
		f.Close()
		t.Fatalf("failed to write WAV file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}
	return path, samples
}

// writeWAV writes a PCM WAV header followed by samples. bitsPerSample only
// changes the header; the payload is always written as 16-bit words, which
// is enough to exercise format rejection.
func writeWAV(f *os.File, samples []int16, sampleRate, numChannels, bitsPerSample int) error {
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := len(samples) * 2
	fileSize := 36 + dataSize

	// RIFF header
	if _, err := f.Write([]byte("RIFF")); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(fileSize)); err != nil {
		return err
	}
	if _, err := f.Write([]byte("WAVE")); err != nil {
		return err
	}

	// fmt subchunk
	if _, err := f.Write([]byte("fmt ")); err != nil {
		return err
	}
	header := []any{
		uint32(16), // Subchunk size
		uint16(1),  // Audio format (PCM)
		uint16(numChannels),
		uint32(sampleRate),
		uint32(byteRate),
		uint16(blockAlign),
		uint16(bitsPerSample),
	}
	for _, v := range header {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	// data subchunk
	if _, err := f.Write([]byte("data")); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(dataSize)); err != nil {
		return err
	}
	return binary.Write(f, binary.LittleEndian, samples)
}
