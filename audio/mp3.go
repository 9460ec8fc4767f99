package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// decodeMP3 decodes an MP3 stream. go-mp3 always emits 16-bit little-endian
// interleaved stereo, whatever the source channel count.
func decodeMP3(data []byte) (*Buffer, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("read mp3 frames: %w", err)
	}
	raw = raw[:len(raw)-len(raw)%4]

	samples := make([]float64, len(raw)/2)
	for i := range samples {
		samples[i] = float64(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768
	}

	return &Buffer{
		Format:     FormatMP3,
		SampleRate: dec.SampleRate(),
		Channels:   2,
		BitDepth:   16,
		Samples:    samples,
	}, nil
}
