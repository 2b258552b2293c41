// Package audio provides WAV file I/O, frame buffers and PortAudio streams
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrUnsupportedFormat is returned for files that are not PCM WAV at a
// supported bit depth.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// WAV format tags
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// Metadata contains audio file metadata
type Metadata struct {
	Duration   float64 // seconds
	SampleRate int
	Channels   int
	BitDepth   int
}

// OpenAudioFile decodes a WAV file into normalised float32 samples
func OpenAudioFile(filename string) (*Buffer, *Metadata, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	buf, meta, err := Decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filename, err)
	}
	return buf, meta, nil
}

// Decode reads a complete WAV stream
func Decode(r io.ReadSeeker) (*Buffer, *Metadata, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, nil, fmt.Errorf("not a valid WAV file: %w", ErrUnsupportedFormat)
	}

	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, nil, fmt.Errorf("WAV format tag %d: %w", dec.WavAudioFormat, ErrUnsupportedFormat)
	}

	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, nil, fmt.Errorf("%d-bit samples: %w", bitDepth, ErrUnsupportedFormat)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode samples: %w", err)
	}
	if pcm.Format == nil || pcm.Format.NumChannels <= 0 || pcm.Format.SampleRate <= 0 {
		return nil, nil, fmt.Errorf("missing format chunk: %w", ErrUnsupportedFormat)
	}

	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	samples := make([]float32, len(pcm.Data))
	for i, v := range pcm.Data {
		samples[i] = float32(float64(v) * scale)
	}

	buf := &Buffer{
		Samples:    samples,
		SampleRate: pcm.Format.SampleRate,
		Channels:   pcm.Format.NumChannels,
	}

	metadata := &Metadata{
		Duration:   buf.Duration().Seconds(),
		SampleRate: buf.SampleRate,
		Channels:   buf.Channels,
		BitDepth:   bitDepth,
	}

	return buf, metadata, nil
}

// WAVWriter encodes processed frames to a 16-bit PCM WAV file
type WAVWriter struct {
	f       *os.File
	enc     *wav.Encoder
	format  *goaudio.Format
	scratch []int
}

// CreateWAV creates path for writing 16-bit PCM at the given format
func CreateWAV(path string, sampleRate, channels int) (*WAVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &WAVWriter{
		f:      f,
		enc:    wav.NewEncoder(f, sampleRate, 16, channels, wavFormatPCM),
		format: &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
	}, nil
}

// Write appends one frame of samples
func (w *WAVWriter) Write(_ context.Context, fr Frame) error {
	if cap(w.scratch) < len(fr.Samples) {
		w.scratch = make([]int, len(fr.Samples))
	}
	data := w.scratch[:len(fr.Samples)]
	for i, s := range fr.Samples {
		v := float64(s)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(v * 32767)
	}
	buf := &goaudio.IntBuffer{Format: w.format, Data: data, SourceBitDepth: 16}
	if err := w.enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	return nil
}

// Close finalises the WAV header and closes the file
func (w *WAVWriter) Close() error {
	encErr := w.enc.Close()
	fileErr := w.f.Close()
	if encErr != nil {
		return fmt.Errorf("failed to finalise WAV: %w", encErr)
	}
	return fileErr
}
