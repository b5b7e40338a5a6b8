package audio

import (
	"io"
	"time"
)

const (
	SampleRate = 48000
	Channels   = 2
	// FrameSize is the number of samples per channel in one 20ms frame.
	FrameSize = 960
)

// Source is a stream of signed 16-bit little-endian PCM at SampleRate/Channels.
type Source interface {
	io.ReadCloser
}

type StreamOptions struct {
	// StartAt seeks into the stream before playback begins.
	StartAt time.Duration
	// Reconnect enables transport-level reconnection for network sources.
	Reconnect bool
}

// Opener produces playable PCM sources from local files or remote stream URLs.
type Opener interface {
	OpenFile(path string) (Source, error)
	OpenStream(url string, opts StreamOptions) (Source, error)
}
