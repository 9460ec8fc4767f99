// Package silence crops dead air from the edges of a recording before it is
// sent for transcription.
package silence

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	DefaultThresholdDB = -35.0
	DefaultMinSilence  = 160 * time.Millisecond
	DefaultWindow      = 10 * time.Millisecond

	// fullScale is the reference for dBFS on 16-bit audio.
	fullScale = 32768.0
)

// Span is a half-open range of sample offsets.
type Span struct {
	Start int
	End   int
}

// Detector finds the non-silent spans of a recording.
type Detector interface {
	Detect(samples []int16, sampleRate int) ([]Span, error)
}

// Options tunes the window detector.
type Options struct {
	ThresholdDB float64       // windows above this level are speech
	MinSilence  time.Duration // shorter quiet runs never split or trim
	Window      time.Duration // analysis window length
}

func DefaultOptions() Options {
	return Options{
		ThresholdDB: DefaultThresholdDB,
		MinSilence:  DefaultMinSilence,
		Window:      DefaultWindow,
	}
}

// WindowDetector classifies fixed windows by RMS level in dBFS.
type WindowDetector struct {
	opts Options
}

func NewWindowDetector(opts Options) *WindowDetector {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	return &WindowDetector{opts: opts}
}

// Detect returns spans of loud windows. Quiet gaps shorter than MinSilence
// are merged into the surrounding speech, and quiet edges shorter than
// MinSilence are kept.
func (d *WindowDetector) Detect(samples []int16, sampleRate int) ([]Span, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if len(samples) == 0 {
		return nil, errors.New("no samples")
	}

	win := int(int64(d.opts.Window) * int64(sampleRate) / int64(time.Second))
	if win < 1 {
		return nil, fmt.Errorf("window %v is shorter than one sample at %d Hz", d.opts.Window, sampleRate)
	}
	minSilenceSamples := int(int64(d.opts.MinSilence) * int64(sampleRate) / int64(time.Second))
	minRun := (minSilenceSamples + win - 1) / win
	if minRun < 1 {
		minRun = 1
	}

	n := (len(samples) + win - 1) / win
	loud := make([]bool, n)
	for w := range loud {
		end := (w + 1) * win
		if end > len(samples) {
			end = len(samples)
		}
		loud[w] = LevelDBFS(samples[w*win:end]) > d.opts.ThresholdDB
	}

	// spans in window units
	var spans []Span
	for w := 0; w < n; {
		if !loud[w] {
			w++
			continue
		}
		start := w
		for w < n && loud[w] {
			w++
		}
		if len(spans) > 0 && start-spans[len(spans)-1].End < minRun {
			spans[len(spans)-1].End = w
			continue
		}
		spans = append(spans, Span{Start: start, End: w})
	}

	if len(spans) == 0 {
		return nil, nil
	}
	if spans[0].Start < minRun {
		spans[0].Start = 0
	}
	if last := &spans[len(spans)-1]; n-last.End < minRun {
		last.End = n
	}

	for i := range spans {
		spans[i].Start *= win
		spans[i].End *= win
		if spans[i].End > len(samples) {
			spans[i].End = len(samples)
		}
	}
	return spans, nil
}

// LevelDBFS returns the RMS level of samples relative to 16-bit full scale.
// Digital silence is -Inf.
func LevelDBFS(samples []int16) float64 {
	if len(samples) == 0 {
		return math.Inf(-1)
	}

	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/fullScale)
}
