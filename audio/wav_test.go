package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"
)

func TestEncodeWAVHeader(t *testing.T) {
	samples := []int16{100, -200, 300, -400, 500}
	wavData, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(wavData) != WAVHeaderSize+len(samples)*2 {
		t.Fatalf("Expected WAV size %d, got %d", WAVHeaderSize+len(samples)*2, len(wavData))
	}

	le := binary.LittleEndian
	checks := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"ChunkSize", le.Uint32(wavData[4:8]), 36 + 10},
		{"Subchunk1Size", le.Uint32(wavData[16:20]), 16},
		{"AudioFormat", uint32(le.Uint16(wavData[20:22])), 1},
		{"NumChannels", uint32(le.Uint16(wavData[22:24])), 1},
		{"SampleRate", le.Uint32(wavData[24:28]), 16000},
		{"ByteRate", le.Uint32(wavData[28:32]), 32000},
		{"BlockAlign", uint32(le.Uint16(wavData[32:34])), 2},
		{"BitsPerSample", uint32(le.Uint16(wavData[34:36])), 16},
		{"Subchunk2Size", le.Uint32(wavData[40:44]), 10},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}

	for off, id := range map[int]string{0: "RIFF", 8: "WAVE", 12: "fmt ", 36: "data"} {
		if got := string(wavData[off : off+4]); got != id {
			t.Errorf("chunk id at %d = %q, want %q", off, got, id)
		}
	}

	if got := int16(le.Uint16(wavData[46:48])); got != -200 {
		t.Errorf("second sample = %d, want -200", got)
	}
}

func TestEncodeWAVInvalidSampleRate(t *testing.T) {
	if _, err := EncodeWAV([]int16{1, 2, 3}, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
	if _, err := EncodeWAV([]int16{1, 2, 3}, -1000); err == nil {
		t.Error("Expected error for negative sample rate")
	}
}

func TestEncodeWAVDeterministic(t *testing.T) {
	samples := Tone(440, 50*time.Millisecond, 8000, 1000)
	a, _ := EncodeWAV(samples, 8000)
	b, _ := EncodeWAV(samples, 8000)
	if !bytes.Equal(a, b) {
		t.Error("identical input produced different bytes")
	}
}

func TestWAVRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		samples    []int16
		sampleRate int
	}{
		{"short", []int16{100, -200, 300, -400, 500}, 8000},
		{"extremes", []int16{math.MinInt16, math.MaxInt16, 0, -1, 1}, 16000},
		{"empty", []int16{}, 22050},
		{"tone", Tone(440, 100*time.Millisecond, 44100, 16383), 44100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wavData, err := EncodeWAV(tt.samples, tt.sampleRate)
			if err != nil {
				t.Fatalf("EncodeWAV failed: %v", err)
			}

			buf, err := DecodeWAV(wavData)
			if err != nil {
				t.Fatalf("DecodeWAV failed: %v", err)
			}

			if buf.SampleRate != tt.sampleRate {
				t.Errorf("Expected sample rate %d, got %d", tt.sampleRate, buf.SampleRate)
			}
			if buf.Channels != 1 || buf.BitDepth != 16 {
				t.Errorf("Expected mono 16-bit, got %d channels %d bits", buf.Channels, buf.BitDepth)
			}
			if len(buf.Samples) != len(tt.samples) {
				t.Fatalf("Expected %d samples, got %d", len(tt.samples), len(buf.Samples))
			}
			for i, s := range tt.samples {
				if got := quantize(buf.Samples[i]); got != s {
					t.Errorf("Sample %d: expected %d, got %d", i, s, got)
				}
			}
		})
	}
}

func TestDecodeWAVErrors(t *testing.T) {
	valid, _ := EncodeWAV([]int16{1, 2, 3, 4}, 16000)

	badRIFF := append([]byte(nil), valid...)
	copy(badRIFF[0:4], "FAKE")

	badWAVE := append([]byte(nil), valid...)
	copy(badWAVE[8:12], "AVI ")

	noData := append([]byte(nil), valid[:36]...)

	float16 := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint16(float16[20:22], formatIEEEFloat)

	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte{1, 2, 3}},
		{"bad riff", badRIFF},
		{"bad wave", badWAVE},
		{"missing data chunk", noData},
		{"truncated fmt", valid[:20]},
		{"16-bit float", float16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeWAV(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalidWAV) {
				t.Errorf("error %v does not wrap ErrInvalidWAV", err)
			}
		})
	}
}

// buildWAV assembles a WAV with an arbitrary fmt chunk and optional extra chunk.
func buildWAV(audioFormat, channels uint16, sampleRate uint32, bits uint16, extra []byte, pcm []byte) []byte {
	le := binary.LittleEndian
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, le, uint32(0))
	b.WriteString("WAVE")

	if extra != nil {
		b.WriteString("LIST")
		binary.Write(&b, le, uint32(len(extra)))
		b.Write(extra)
		if len(extra)%2 == 1 {
			b.WriteByte(0)
		}
	}

	blockAlign := channels * bits / 8
	b.WriteString("fmt ")
	binary.Write(&b, le, uint32(16))
	binary.Write(&b, le, audioFormat)
	binary.Write(&b, le, channels)
	binary.Write(&b, le, sampleRate)
	binary.Write(&b, le, sampleRate*uint32(blockAlign))
	binary.Write(&b, le, blockAlign)
	binary.Write(&b, le, bits)

	b.WriteString("data")
	binary.Write(&b, le, uint32(len(pcm)))
	b.Write(pcm)

	out := b.Bytes()
	le.PutUint32(out[4:8], uint32(len(out)-8))
	return out
}

func TestDecodeWAVVariants(t *testing.T) {
	le := binary.LittleEndian

	t.Run("skips unknown chunks", func(t *testing.T) {
		pcm := make([]byte, 4)
		le.PutUint16(pcm[0:], uint16(0x4000))
		le.PutUint16(pcm[2:], uint16(0xC000))
		data := buildWAV(formatPCM, 1, 16000, 16, []byte("odd"), pcm)

		buf, err := DecodeWAV(data)
		if err != nil {
			t.Fatalf("DecodeWAV failed: %v", err)
		}
		if len(buf.Samples) != 2 || buf.Samples[0] != 0.5 || buf.Samples[1] != -0.5 {
			t.Errorf("unexpected samples %v", buf.Samples)
		}
	})

	t.Run("8-bit unsigned", func(t *testing.T) {
		data := buildWAV(formatPCM, 1, 8000, 8, nil, []byte{128, 255, 0})
		buf, err := DecodeWAV(data)
		if err != nil {
			t.Fatalf("DecodeWAV failed: %v", err)
		}
		want := []float64{0, 127.0 / 128, -1}
		for i, w := range want {
			if buf.Samples[i] != w {
				t.Errorf("sample %d = %v, want %v", i, buf.Samples[i], w)
			}
		}
	})

	t.Run("24-bit stereo", func(t *testing.T) {
		// L = +0.5, R = -0.5
		pcm := []byte{0x00, 0x00, 0x40, 0x00, 0x00, 0xC0}
		data := buildWAV(formatPCM, 2, 48000, 24, nil, pcm)
		buf, err := DecodeWAV(data)
		if err != nil {
			t.Fatalf("DecodeWAV failed: %v", err)
		}
		if buf.Channels != 2 || buf.Frames() != 1 {
			t.Fatalf("got %d channels %d frames", buf.Channels, buf.Frames())
		}
		if buf.Samples[0] != 0.5 || buf.Samples[1] != -0.5 {
			t.Errorf("unexpected samples %v", buf.Samples)
		}
	})

	t.Run("32-bit float", func(t *testing.T) {
		pcm := make([]byte, 8)
		le.PutUint32(pcm[0:], math.Float32bits(0.25))
		le.PutUint32(pcm[4:], math.Float32bits(-1))
		buf, err := DecodeWAV(buildWAV(formatIEEEFloat, 1, 24000, 32, nil, pcm))
		if err != nil {
			t.Fatalf("DecodeWAV failed: %v", err)
		}
		if buf.Samples[0] != 0.25 || buf.Samples[1] != -1 {
			t.Errorf("unexpected samples %v", buf.Samples)
		}
	})

	t.Run("streaming data size", func(t *testing.T) {
		data, _ := EncodeWAV([]int16{1, 2, 3}, 24000)
		le.PutUint32(data[40:44], 0xFFFFFFFF)
		buf, err := DecodeWAV(data)
		if err != nil {
			t.Fatalf("DecodeWAV failed: %v", err)
		}
		if len(buf.Samples) != 3 {
			t.Errorf("Expected 3 samples, got %d", len(buf.Samples))
		}
	})
}

func TestDecodeCanonicalWAV(t *testing.T) {
	samples := []int16{5, -5, 7}
	data, _ := EncodeWAV(samples, 16000)

	got, err := DecodeCanonicalWAV(data)
	if err != nil {
		t.Fatalf("DecodeCanonicalWAV failed: %v", err)
	}
	for i, s := range samples {
		if got.Samples[i] != s {
			t.Errorf("sample %d = %d, want %d", i, got.Samples[i], s)
		}
	}

	wrongRate, _ := EncodeWAV(samples, 8000)
	if _, err := DecodeCanonicalWAV(wrongRate); !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("expected ErrInvalidWAV for 8 kHz input, got %v", err)
	}

	headerOnly, _ := EncodeWAV(nil, 16000)
	if _, err := DecodeCanonicalWAV(headerOnly); !errors.Is(err, ErrNoAudio) {
		t.Errorf("expected ErrNoAudio for empty data chunk, got %v", err)
	}
}

func TestGetWAVInfo(t *testing.T) {
	wavData, err := EncodeWAV(make([]int16, 8000), 8000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("GetWAVInfo failed: %v", err)
	}
	if math.Abs(info.Duration-1.0) > 0.001 {
		t.Errorf("Expected duration 1.000, got %.3f", info.Duration)
	}
	if info.ChunkSize != 36+info.DataSize {
		t.Errorf("ChunkSize %d != 36 + DataSize %d", info.ChunkSize, info.DataSize)
	}

	if _, err := GetWAVInfo([]byte("RIFF")); err == nil {
		t.Error("Expected error for short header")
	}
}
