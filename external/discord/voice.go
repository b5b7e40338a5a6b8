package discord

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/seajon16/sassbot/internal/audio"
)

const (
	defaultVolumePercent = 100
	frameBytes           = audio.FrameSize * audio.Channels * 2
	pauseCheckInterval   = 20 * time.Millisecond
)

// voiceConnection wraps a discordgo voice transport with a PCM playback
// pipeline. One playback runs at a time; starting a new one requires the
// previous to be stopped or finished.
type voiceConnection struct {
	mu      sync.Mutex
	vc      *discordgo.VoiceConnection
	volume  int
	playing bool
	paused  bool
	stop    chan struct{}
	done    chan struct{}
}

func newVoiceConnection(vc *discordgo.VoiceConnection) *voiceConnection {
	return &voiceConnection{vc: vc, volume: defaultVolumePercent}
}

// replaceTransport swaps in the transport returned by a channel move.
// Current playback is stopped first so frames never land in the old
// channel.
func (c *voiceConnection) replaceTransport(vc *discordgo.VoiceConnection) {
	c.Stop()
	c.mu.Lock()
	c.vc = vc
	c.mu.Unlock()
}

func (c *voiceConnection) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return ""
	}
	return c.vc.ChannelID
}

func (c *voiceConnection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vc != nil && c.vc.Ready
}

func (c *voiceConnection) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *voiceConnection) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *voiceConnection) Play(src audio.Source) (<-chan struct{}, error) {
	c.mu.Lock()
	if c.playing || c.paused {
		c.mu.Unlock()
		return nil, errors.New("playback already in progress")
	}
	if c.vc == nil || !c.vc.Ready {
		c.mu.Unlock()
		return nil, errors.New("voice connection is not ready")
	}
	enc, err := newOpusEncoder()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	vc := c.vc
	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop = stop
	c.done = done
	c.playing = true
	c.mu.Unlock()

	go c.streamPCM(vc, src, enc, stop, done)
	return done, nil
}

// streamPCM pushes 20ms opus frames until the source drains or the
// playback is stopped.
func (c *voiceConnection) streamPCM(vc *discordgo.VoiceConnection, src audio.Source, enc opusEncoder, stop, done chan struct{}) {
	defer func() {
		src.Close()
		c.mu.Lock()
		c.playing = false
		c.paused = false
		if c.done == done {
			c.stop = nil
			c.done = nil
		}
		c.mu.Unlock()
		close(done)
	}()

	if err := vc.Speaking(true); err != nil {
		slog.Error("failed to set speaking state", "error", err)
	}
	defer func() {
		if err := vc.Speaking(false); err != nil {
			slog.Debug("failed to clear speaking state", "error", err)
		}
	}()

	pcm := make([]byte, frameBytes)
	frame := make([]int16, audio.FrameSize*audio.Channels)
	for {
		select {
		case <-stop:
			return
		default:
		}
		if c.IsPaused() {
			select {
			case <-stop:
				return
			case <-time.After(pauseCheckInterval):
			}
			continue
		}

		if _, err := io.ReadFull(src, pcm); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				slog.Error("playback read failed", "error", err)
			}
			return
		}

		volume := c.Volume()
		for i := range frame {
			sample := int16(binary.LittleEndian.Uint16(pcm[2*i : 2*i+2]))
			if volume != defaultVolumePercent {
				sample = int16(int(sample) * volume / defaultVolumePercent)
			}
			frame[i] = sample
		}

		packet, err := enc.Encode(frame)
		if err != nil {
			slog.Error("opus encode failed", "error", err)
			return
		}
		if len(packet) == 0 {
			continue
		}
		select {
		case <-stop:
			return
		case vc.OpusSend <- packet:
		}
	}
}

// Stop halts playback and waits for the pipeline goroutine to release
// the transport. Safe to call when nothing is playing.
func (c *voiceConnection) Stop() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop = nil
	c.done = nil
	c.paused = false
	c.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (c *voiceConnection) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.playing = false
	c.paused = true
}

func (c *voiceConnection) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.paused = false
	c.playing = true
}

func (c *voiceConnection) SetVolume(percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = percent
}

func (c *voiceConnection) Volume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

func (c *voiceConnection) Disconnect() error {
	c.Stop()
	c.mu.Lock()
	vc := c.vc
	c.mu.Unlock()
	if vc == nil {
		return nil
	}
	return vc.Disconnect()
}
