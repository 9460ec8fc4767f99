// Package audio handles the binary side of push-to-talk: building and parsing
// PCM WAV containers, decoding incoming and synthesized audio, and normalizing
// everything to 16 kHz, 16-bit, mono PCM. It also generates the diagnostic tone.
package audio
