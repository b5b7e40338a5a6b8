//go:build opus

package discord

import (
	"github.com/hraban/opus"

	"github.com/seajon16/sassbot/internal/audio"
)

// maxOpusPacketBytes is comfortably above the largest packet the encoder
// produces for a 20ms stereo frame.
const maxOpusPacketBytes = 4000

type opusEncoder interface {
	Encode(frame []int16) ([]byte, error)
}

type libopusEncoder struct {
	enc *opus.Encoder
	buf []byte
}

func newOpusEncoder() (opusEncoder, error) {
	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		return nil, err
	}
	return &libopusEncoder{enc: enc, buf: make([]byte, maxOpusPacketBytes)}, nil
}

func (e *libopusEncoder) Encode(frame []int16) ([]byte, error) {
	n, err := e.enc.Encode(frame, e.buf)
	if err != nil {
		return nil, err
	}
	packet := make([]byte, n)
	copy(packet, e.buf[:n])
	return packet, nil
}
