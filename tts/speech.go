// Package tts turns reply text into encoded speech. Backends return whatever
// container their API produces; callers normalize it before playback.
package tts

import "github.com/pkg/errors"

// ErrNoAudio means the backend answered successfully but sent no bytes.
var ErrNoAudio = errors.New("synthesizer returned no audio")
