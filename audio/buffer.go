package audio

import (
	"math"

	"github.com/mrsingh-rishi/ptt-voice/model"
)

// Format is the container/codec tag inferred for an input byte stream.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
)

// Buffer is decoded audio of any layout. Samples are interleaved by channel
// and scaled so that full scale is ±1.
type Buffer struct {
	Format     Format
	SampleRate int
	Channels   int
	BitDepth   int
	Samples    []float64
}

// Frames returns the number of sample frames (samples per channel).
func (b *Buffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// IsCanonical reports whether the buffer already has the canonical layout.
func (b *Buffer) IsCanonical() bool {
	return b.Channels == model.CanonicalChannels &&
		b.SampleRate == model.CanonicalSampleRate &&
		b.BitDepth == model.CanonicalBitDepth
}

// Canonical downmixes, resamples and requantizes the buffer. Audio that is
// already canonical passes through bit-exact.
func (b *Buffer) Canonical() model.CanonicalAudio {
	mono := downmix(b.Samples, b.Channels)
	if b.SampleRate != model.CanonicalSampleRate {
		mono = resampleLinear(mono, b.SampleRate, model.CanonicalSampleRate)
	}

	out := make([]int16, len(mono))
	for i, v := range mono {
		out[i] = quantize(v)
	}
	return model.CanonicalAudio{Samples: out}
}

// quantize maps a ±1 sample to signed 16-bit with clipping.
func quantize(v float64) int16 {
	s := math.Round(v * 32768)
	if s > math.MaxInt16 {
		return math.MaxInt16
	}
	if s < math.MinInt16 {
		return math.MinInt16
	}
	return int16(s)
}
