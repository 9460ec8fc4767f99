package audio

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mrsingh-rishi/ptt-voice/model"
)

func TestSniff(t *testing.T) {
	wavData, _ := EncodeWAV([]int16{1}, 16000)

	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"wav", wavData, FormatWAV},
		{"id3 tagged mp3", []byte("ID3\x04\x00\x00\x00\x00\x00\x00"), FormatMP3},
		{"mpeg frame sync", []byte{0xFF, 0xFB, 0x90, 0x64}, FormatMP3},
		{"adts aac", []byte{0xFF, 0xF1, 0x50, 0x80}, FormatUnknown},
		{"text", []byte("hello world"), FormatUnknown},
		{"empty", nil, FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.data); got != tt.want {
				t.Errorf("Sniff() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	wavData, err := EncodeWAV(Tone(440, 250*time.Millisecond, 16000, 12000), 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	canon, err := Normalize(wavData, FormatUnknown)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	out, err := EncodeCanonical(canon)
	if err != nil {
		t.Fatalf("EncodeCanonical failed: %v", err)
	}
	if !bytes.Equal(out, wavData) {
		t.Error("normalizing canonical audio changed its bytes")
	}
}

func TestNormalizeDownmixAndResample(t *testing.T) {
	// 0.5 s of stereo 48 kHz where the channels cancel except for a DC offset
	frames := 24000
	pcm := make([]byte, 0, frames*4)
	for i := 0; i < frames; i++ {
		l := int16(8000)
		r := int16(0)
		pcm = append(pcm, byte(l), byte(uint16(l)>>8), byte(r), byte(uint16(r)>>8))
	}
	data := buildWAV(formatPCM, 2, 48000, 16, nil, pcm)

	canon, err := Normalize(data, FormatWAV)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if canon.Len() != 8000 {
		t.Errorf("Expected 8000 samples for 0.5 s at 16 kHz, got %d", canon.Len())
	}
	if canon.Duration() != 500*time.Millisecond {
		t.Errorf("duration = %v, want 500ms", canon.Duration())
	}
	// average of 8000 and 0
	if got := canon.Samples[canon.Len()/2]; got != 4000 {
		t.Errorf("mid sample = %d, want 4000", got)
	}
}

func TestNormalizeUpsamplePreservesDuration(t *testing.T) {
	samples := Tone(300, time.Second, 8000, 10000)
	data, _ := EncodeWAV(samples, 8000)

	canon, err := Normalize(data, FormatUnknown)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if canon.Len() != model.CanonicalSampleRate {
		t.Errorf("Expected %d samples, got %d", model.CanonicalSampleRate, canon.Len())
	}

	// every other output sample lands exactly on an input sample
	for i := 0; i < 100; i += 2 {
		if canon.Samples[i] != samples[i/2] {
			t.Fatalf("sample %d = %d, want %d", i, canon.Samples[i], samples[i/2])
		}
	}
}

func TestNormalizeErrors(t *testing.T) {
	emptyWAV, _ := EncodeWAV(nil, 16000)

	tests := []struct {
		name string
		data []byte
		hint Format
		want error
	}{
		{"empty body", nil, FormatUnknown, ErrNoAudio},
		{"garbage", []byte("definitely not audio"), FormatUnknown, ErrUnsupportedFormat},
		{"corrupt wav hint", []byte("definitely not audio"), FormatWAV, ErrInvalidWAV},
		{"no samples", emptyWAV, FormatUnknown, ErrNoAudio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.data, tt.hint)
			if !errors.Is(err, tt.want) {
				t.Errorf("Normalize() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Normalize([]byte("ID3\x04\x00\x00\x00\x00\x00\x7f"), FormatUnknown); err == nil {
		t.Error("expected error for truncated mp3")
	}
}

// speech_22050_mono.mp3 holds the first 40 MPEG-2 Layer III frames (576
// samples each) of a mono 22.05 kHz speech recording.
const (
	mp3FixtureRate   = 22050
	mp3FixtureFrames = 40 * 576
)

func TestNormalizeMP3(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "speech_22050_mono.mp3"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	buf, err := Decode(data, FormatUnknown)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if buf.Format != FormatMP3 || buf.SampleRate != mp3FixtureRate || buf.Channels != 2 {
		t.Errorf("buffer = %s %d Hz %d ch, want mp3 %d Hz 2 ch", buf.Format, buf.SampleRate, buf.Channels, mp3FixtureRate)
	}

	got, err := Normalize(data, FormatUnknown)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	want := int(math.Round(float64(mp3FixtureFrames) * model.CanonicalSampleRate / mp3FixtureRate))
	frame := 576 * model.CanonicalSampleRate / mp3FixtureRate
	if diff := got.Len() - want; diff < -frame || diff > frame {
		t.Errorf("Normalize() = %d samples, want %d ±%d", got.Len(), want, frame)
	}
	if d := got.Duration(); d < time.Second || d > 1100*time.Millisecond {
		t.Errorf("Duration() = %v, want about 1.04s", d)
	}

	var peak int16
	for _, s := range got.Samples {
		if s > peak {
			peak = s
		} else if -s > peak {
			peak = -s
		}
	}
	if peak < 100 {
		t.Errorf("peak = %d, decoded speech should not be near silent", peak)
	}
}

func TestQuantizeClips(t *testing.T) {
	if got := quantize(1.5); got != math.MaxInt16 {
		t.Errorf("quantize(1.5) = %d", got)
	}
	if got := quantize(-2); got != math.MinInt16 {
		t.Errorf("quantize(-2) = %d", got)
	}
}

func TestResampleLinearLength(t *testing.T) {
	tests := []struct {
		n, from, to, want int
	}{
		{44100, 44100, 16000, 16000},
		{24000, 24000, 16000, 16000},
		{22050, 22050, 16000, 16000},
		{1, 48000, 16000, 1},
	}

	for _, tt := range tests {
		in := make([]float64, tt.n)
		if got := len(resampleLinear(in, tt.from, tt.to)); got != tt.want {
			t.Errorf("resample %d@%d->%d: len = %d, want %d", tt.n, tt.from, tt.to, got, tt.want)
		}
	}
}
