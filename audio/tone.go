package audio

import (
	"math"
	"time"

	"github.com/mrsingh-rishi/ptt-voice/model"
)

// Diagnostic tone parameters used by the /tone endpoint.
const (
	ToneFrequency = 1000.0
	ToneAmplitude = 30000.0
	ToneDuration  = time.Second
)

// Tone synthesizes a sine wave. Samples are truncated toward zero.
func Tone(frequency float64, duration time.Duration, sampleRate int, amplitude float64) []int16 {
	n := int(float64(sampleRate) * duration.Seconds())
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(amplitude * math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate)))
	}
	return samples
}

// ToneWAV renders Tone as a mono 16-bit WAV stream.
func ToneWAV(frequency float64, duration time.Duration, sampleRate int, amplitude float64) ([]byte, error) {
	return EncodeWAV(Tone(frequency, duration, sampleRate, amplitude), sampleRate)
}

// DiagnosticTone is one second of 1 kHz at 16 kHz, for checking playback on
// the device without touching the pipeline.
func DiagnosticTone() ([]byte, error) {
	return ToneWAV(ToneFrequency, ToneDuration, model.CanonicalSampleRate, ToneAmplitude)
}
