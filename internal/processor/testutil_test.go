package processor

import (
	"math"

	"github.com/linuxmatters/cabingain/internal/audio"
)

// sineBuffer creates an in-memory 440 Hz tone at the given peak amplitude,
// duplicated across channels.
func sineBuffer(sampleRate, channels int, durationSecs, amplitude float64) *audio.Buffer {
	const toneFreq = 440.0

	frames := int(durationSecs * float64(sampleRate))
	samples := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		t := float64(i) / float64(sampleRate)
		v := float32(amplitude * math.Sin(2.0*math.Pi*toneFreq*t))
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = v
		}
	}
	return &audio.Buffer{Samples: samples, SampleRate: sampleRate, Channels: channels}
}
