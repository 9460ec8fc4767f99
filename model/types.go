package model

import "time"

// Canonical PCM contract shared by every stage after normalization.
const (
	CanonicalSampleRate = 16000
	CanonicalChannels   = 1
	CanonicalBitDepth   = 16
)

// CanonicalAudio is mono, 16 kHz, 16-bit signed PCM. The format is fixed by
// the type, only the samples travel.
type CanonicalAudio struct {
	Samples []int16
}

// Len returns the number of samples.
func (a CanonicalAudio) Len() int {
	return len(a.Samples)
}

// Duration returns the playback length of the audio.
func (a CanonicalAudio) Duration() time.Duration {
	return time.Duration(len(a.Samples)) * time.Second / CanonicalSampleRate
}

// Slice returns the audio between two sample offsets, clamped to the buffer.
func (a CanonicalAudio) Slice(start, end int) CanonicalAudio {
	if start < 0 {
		start = 0
	}
	if end > len(a.Samples) {
		end = len(a.Samples)
	}
	if start >= end {
		return CanonicalAudio{Samples: []int16{}}
	}
	return CanonicalAudio{Samples: a.Samples[start:end]}
}

// Transcript represents text produced by a transcription service. Empty
// means nothing intelligible was heard.
type Transcript string

// ReplyText is the assistant answer handed to speech synthesis.
type ReplyText string

// SpeechBytes is encoded audio of unknown container returned by synthesis.
type SpeechBytes []byte
