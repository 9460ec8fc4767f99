package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/mrsingh-rishi/ptt-voice/model"
)

const (
	// WAVHeaderSize is the size of the canonical PCM header written by EncodeWAV.
	WAVHeaderSize = 44

	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

// ErrInvalidWAV is returned for malformed or truncated WAV containers.
var ErrInvalidWAV = errors.New("invalid WAV")

// WAVHeader represents the header structure of a WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // 36 + data size
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// EncodeWAV encodes mono PCM-16 samples into a 44-byte header WAV stream.
// The output is a pure function of samples and sampleRate.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	numChannels := uint16(1)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(samples) * 2)

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   formatPCM,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// EncodeCanonical encodes canonical audio as a WAV stream.
func EncodeCanonical(a model.CanonicalAudio) ([]byte, error) {
	return EncodeWAV(a.Samples, model.CanonicalSampleRate)
}

// wavFormat is the parsed "fmt " chunk.
type wavFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	BitsPerSample uint16
}

func (f wavFormat) frameSize() int {
	return int(f.NumChannels) * int(f.BitsPerSample) / 8
}

// parseRIFF walks the RIFF chunk list and returns the format and the raw
// sample bytes. Unknown chunks (LIST, fact, ...) are skipped. A data chunk
// whose declared size runs past the end of the buffer is clamped, which is
// what streaming encoders emit.
func parseRIFF(data []byte) (wavFormat, []byte, error) {
	var f wavFormat

	if len(data) < 12 {
		return f, nil, fmt.Errorf("%w: need at least 12 bytes, got %d", ErrInvalidWAV, len(data))
	}
	if string(data[0:4]) != "RIFF" {
		return f, nil, fmt.Errorf("%w: missing RIFF header", ErrInvalidWAV)
	}
	if string(data[8:12]) != "WAVE" {
		return f, nil, fmt.Errorf("%w: missing WAVE format", ErrInvalidWAV)
	}

	var (
		pcm     []byte
		hasFmt  bool
		hasData bool
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		pos += 8

		end := pos + size
		if end > len(data) || end < pos {
			if id != "data" {
				return f, nil, fmt.Errorf("%w: truncated %q chunk", ErrInvalidWAV, id)
			}
			end = len(data)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return f, nil, fmt.Errorf("%w: fmt chunk too small (%d bytes)", ErrInvalidWAV, size)
			}
			body := data[pos:end]
			f.AudioFormat = binary.LittleEndian.Uint16(body[0:2])
			f.NumChannels = binary.LittleEndian.Uint16(body[2:4])
			f.SampleRate = binary.LittleEndian.Uint32(body[4:8])
			f.BitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			if f.AudioFormat == formatExtensible && len(body) >= 26 {
				// first two bytes of the SubFormat GUID carry the real format code
				f.AudioFormat = binary.LittleEndian.Uint16(body[24:26])
			}
			hasFmt = true
		case "data":
			pcm = data[pos:end]
			hasData = true
		}

		pos = end + size%2
	}

	if !hasFmt {
		return f, nil, fmt.Errorf("%w: missing fmt chunk", ErrInvalidWAV)
	}
	if !hasData {
		return f, nil, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
	}
	if f.NumChannels == 0 {
		return f, nil, fmt.Errorf("%w: zero channels", ErrInvalidWAV)
	}
	if f.SampleRate == 0 {
		return f, nil, fmt.Errorf("%w: zero sample rate", ErrInvalidWAV)
	}

	switch {
	case f.AudioFormat == formatPCM && (f.BitsPerSample == 8 || f.BitsPerSample == 16 || f.BitsPerSample == 24 || f.BitsPerSample == 32):
	case f.AudioFormat == formatIEEEFloat && (f.BitsPerSample == 32 || f.BitsPerSample == 64):
	default:
		return f, nil, fmt.Errorf("%w: unsupported encoding (format %d, %d bits)", ErrInvalidWAV, f.AudioFormat, f.BitsPerSample)
	}

	// drop a trailing partial frame
	frame := f.frameSize()
	pcm = pcm[:len(pcm)-len(pcm)%frame]

	return f, pcm, nil
}

// DecodeWAV decodes any PCM or IEEE-float WAV stream into a Buffer.
func DecodeWAV(data []byte) (*Buffer, error) {
	f, pcm, err := parseRIFF(data)
	if err != nil {
		return nil, err
	}

	width := int(f.BitsPerSample) / 8
	samples := make([]float64, len(pcm)/width)
	for i := range samples {
		samples[i] = sampleAt(pcm[i*width:(i+1)*width], f)
	}

	return &Buffer{
		Format:     FormatWAV,
		SampleRate: int(f.SampleRate),
		Channels:   int(f.NumChannels),
		BitDepth:   int(f.BitsPerSample),
		Samples:    samples,
	}, nil
}

// DecodeCanonicalWAV reads a WAV stream that must already be 16 kHz, 16-bit,
// mono PCM. Nothing is resampled; any other layout is rejected.
func DecodeCanonicalWAV(data []byte) (model.CanonicalAudio, error) {
	f, pcm, err := parseRIFF(data)
	if err != nil {
		return model.CanonicalAudio{}, err
	}

	if f.AudioFormat != formatPCM || f.BitsPerSample != model.CanonicalBitDepth ||
		f.NumChannels != model.CanonicalChannels || f.SampleRate != model.CanonicalSampleRate {
		return model.CanonicalAudio{}, fmt.Errorf("%w: expected %d Hz %d-bit mono PCM, got %d Hz %d-bit %d channel(s)",
			ErrInvalidWAV, model.CanonicalSampleRate, model.CanonicalBitDepth,
			f.SampleRate, f.BitsPerSample, f.NumChannels)
	}

	samples := make([]int16, len(pcm)/2)
	if len(samples) == 0 {
		return model.CanonicalAudio{}, ErrNoAudio
	}
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return model.CanonicalAudio{Samples: samples}, nil
}

// sampleAt converts one little-endian sample to full scale ±1.
func sampleAt(b []byte, f wavFormat) float64 {
	if f.AudioFormat == formatIEEEFloat {
		if f.BitsPerSample == 64 {
			return math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}

	switch f.BitsPerSample {
	case 8:
		// 8-bit WAV is unsigned with a 128 midpoint
		return (float64(b[0]) - 128) / 128
	case 16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
	case 24:
		v := int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16)
		if v&0x800000 != 0 {
			v -= 1 << 24
		}
		return float64(v) / 8388608
	default:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
	}
}

// WAVInfo describes a canonical-header WAV stream.
type WAVInfo struct {
	SampleRate    uint32  `json:"sample_rate"`
	Channels      uint16  `json:"channels"`
	BitsPerSample uint16  `json:"bits_per_sample"`
	Duration      float64 `json:"duration_seconds"`
	DataSize      uint32  `json:"data_size_bytes"`
	ChunkSize     uint32  `json:"chunk_size"`
}

// GetWAVInfo reads the fixed 44-byte header fields.
func GetWAVInfo(data []byte) (*WAVInfo, error) {
	if len(data) < WAVHeaderSize {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrInvalidWAV, WAVHeaderSize, len(data))
	}

	var header WAVHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}
	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}
	if header.SampleRate == 0 || header.BlockAlign == 0 {
		return nil, fmt.Errorf("%w: zero sample rate or block align", ErrInvalidWAV)
	}

	frames := header.Subchunk2Size / uint32(header.BlockAlign)
	return &WAVInfo{
		SampleRate:    header.SampleRate,
		Channels:      header.NumChannels,
		BitsPerSample: header.BitsPerSample,
		Duration:      float64(frames) / float64(header.SampleRate),
		DataSize:      header.Subchunk2Size,
		ChunkSize:     header.ChunkSize,
	}, nil
}
