package discord

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

// pcmSource serves a fixed number of silent frames, then EOF.
type pcmSource struct {
	mu     sync.Mutex
	frames int
	closed bool
}

func (s *pcmSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frames == 0 {
		return 0, io.EOF
	}
	s.frames--
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func (s *pcmSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *pcmSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newReadyConn() *voiceConnection {
	return newVoiceConnection(&discordgo.VoiceConnection{
		Ready:    true,
		OpusSend: make(chan []byte, 64),
	})
}

func TestVoiceConnection_PlayDrainsSourceAndSignalsDone(t *testing.T) {
	conn := newReadyConn()
	src := &pcmSource{frames: 3}

	done, err := conn.Play(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("playback never finished")
	}
	if conn.IsPlaying() {
		t.Fatal("expected playback to be finished")
	}
	if !src.isClosed() {
		t.Fatal("expected source to be closed after playback")
	}
}

func TestVoiceConnection_SecondPlayWhileBusyFails(t *testing.T) {
	conn := newReadyConn()

	done, err := conn.Play(&pcmSource{frames: 1 << 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := conn.Play(&pcmSource{frames: 1}); err == nil {
		t.Fatal("expected second play to fail while busy")
	}

	conn.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop never finished playback")
	}
}

func TestVoiceConnection_StopIsIdempotent(t *testing.T) {
	conn := newReadyConn()
	conn.Stop()

	if _, err := conn.Play(&pcmSource{frames: 1 << 30}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conn.Stop()
	conn.Stop()
	if conn.IsPlaying() {
		t.Fatal("expected playback to be stopped")
	}
}

func TestVoiceConnection_PauseResume(t *testing.T) {
	conn := newReadyConn()

	if _, err := conn.Play(&pcmSource{frames: 1 << 30}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conn.Pause()
	if !conn.IsPaused() || conn.IsPlaying() {
		t.Fatal("expected paused state")
	}
	conn.Resume()
	if conn.IsPaused() || !conn.IsPlaying() {
		t.Fatal("expected playing state after resume")
	}
	conn.Stop()
}

func TestVoiceConnection_PlayNotReadyFails(t *testing.T) {
	conn := newVoiceConnection(&discordgo.VoiceConnection{})
	if _, err := conn.Play(&pcmSource{frames: 1}); err == nil {
		t.Fatal("expected play on an unready connection to fail")
	}
}

func TestVoiceConnection_VolumeRoundTrips(t *testing.T) {
	conn := newReadyConn()
	if conn.Volume() != defaultVolumePercent {
		t.Fatalf("expected default volume, got %d", conn.Volume())
	}
	conn.SetVolume(35)
	if conn.Volume() != 35 {
		t.Fatalf("expected volume 35, got %d", conn.Volume())
	}
}
