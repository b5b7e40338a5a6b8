package speech

import (
	"context"
	"errors"
)

// ErrUnknownLanguage means the requested language code is not available.
var ErrUnknownLanguage = errors.New("unknown speech language")

// Synthesizer renders text to a playable audio asset on disk and returns
// its path. The caller owns the file and removes it after playback.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) (string, error)
	Languages(ctx context.Context) ([]string, error)
}
