//go:build !opus

package discord

// The real encoder needs cgo and libopus. This stub keeps builds without
// the opus tag working; playback produces no frames.

type opusEncoder interface {
	Encode(frame []int16) ([]byte, error)
}

type noopEncoder struct{}

func newOpusEncoder() (opusEncoder, error) {
	return &noopEncoder{}, nil
}

func (e *noopEncoder) Encode(_ []int16) ([]byte, error) {
	return nil, nil
}
