package audio

import (
	"errors"
	"fmt"

	"github.com/mrsingh-rishi/ptt-voice/model"
)

var (
	// ErrUnsupportedFormat is returned when no decoder recognizes the stream.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrNoAudio is returned for streams that decode to zero samples.
	ErrNoAudio = errors.New("no audio data")
)

// Sniff guesses the container from magic bytes.
func Sniff(data []byte) Format {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 && data[1]&0x06 != 0:
		// MPEG audio frame sync with a non-reserved layer (ADTS AAC has layer 00)
		return FormatMP3
	}
	return FormatUnknown
}

// Decode decodes a byte stream into a Buffer. An empty hint means sniff.
func Decode(data []byte, hint Format) (*Buffer, error) {
	if len(data) == 0 {
		return nil, ErrNoAudio
	}

	format := hint
	if format == FormatUnknown {
		format = Sniff(data)
	}

	switch format {
	case FormatWAV:
		return DecodeWAV(data)
	case FormatMP3:
		return decodeMP3(data)
	default:
		return nil, fmt.Errorf("%w: unrecognized container (%d bytes)", ErrUnsupportedFormat, len(data))
	}
}

// Normalize decodes data and converts it to canonical audio.
func Normalize(data []byte, hint Format) (model.CanonicalAudio, error) {
	buf, err := Decode(data, hint)
	if err != nil {
		return model.CanonicalAudio{}, err
	}
	if buf.Frames() == 0 {
		return model.CanonicalAudio{}, ErrNoAudio
	}
	return buf.Canonical(), nil
}
