package silence

import (
	"errors"
	"fmt"

	"github.com/mrsingh-rishi/ptt-voice/model"
)

// ErrAllSilent means no window rose above the threshold.
var ErrAllSilent = errors.New("no speech above threshold")

// Outcome tells whether trimming changed the audio.
type Outcome int

const (
	Unchanged Outcome = iota
	Trimmed
)

func (o Outcome) String() string {
	if o == Trimmed {
		return "trimmed"
	}
	return "unchanged"
}

// Result is always usable: Audio is either the cropped span or the input.
// Reason records why an Unchanged result fell back, if it did.
type Result struct {
	Outcome Outcome
	Audio   model.CanonicalAudio
	Span    Span
	Reason  error
}

// Trimmer crops canonical audio to its speech span. It never fails.
type Trimmer struct {
	detector Detector
}

// NewTrimmer returns a Trimmer using d, or the default window detector when d is nil.
func NewTrimmer(d Detector) *Trimmer {
	if d == nil {
		d = NewWindowDetector(DefaultOptions())
	}
	return &Trimmer{detector: d}
}

func (t *Trimmer) Trim(a model.CanonicalAudio) (res Result) {
	res = Result{Outcome: Unchanged, Audio: a, Span: Span{Start: 0, End: a.Len()}}

	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Outcome: Unchanged,
				Audio:   a,
				Span:    Span{Start: 0, End: a.Len()},
				Reason:  fmt.Errorf("silence detector panicked: %v", r),
			}
		}
	}()

	spans, err := t.detector.Detect(a.Samples, model.CanonicalSampleRate)
	if err != nil {
		res.Reason = err
		return res
	}
	if len(spans) == 0 {
		res.Reason = ErrAllSilent
		return res
	}

	start, end := spans[0].Start, spans[len(spans)-1].End
	if start < 0 {
		start = 0
	}
	if end > a.Len() {
		end = a.Len()
	}
	if start >= end || (start == 0 && end == a.Len()) {
		return res
	}

	return Result{
		Outcome: Trimmed,
		Audio:   a.Slice(start, end),
		Span:    Span{Start: start, End: end},
	}
}
