package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/seajon16/sassbot/internal/audio"
	"github.com/seajon16/sassbot/internal/discord"
)

const defaultQueuePollInterval = 250 * time.Millisecond

// queueTask is a handle to a background playback queue. cancel stops it;
// done closes once the goroutine has fully exited.
type queueTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// reap cancels the task and waits for it to release the voice connection.
func (q *queueTask) reap() {
	q.cancel()
	<-q.done
}

// startQueue launches a goroutine that plays paths in order on conn,
// waiting for the connection to go idle between items. The caller must
// hold the session's command lock; any previous queue must be reaped
// first.
func startQueue(sess *Session, conn discord.VoiceConnection, opener audio.Opener, paths []string, pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = defaultQueuePollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	task := &queueTask{cancel: cancel, done: make(chan struct{})}
	sess.setQueue(task)
	go func() {
		defer close(task.done)
		runQueue(ctx, conn, opener, paths, pollInterval)
	}()
}

func runQueue(ctx context.Context, conn discord.VoiceConnection, opener audio.Opener, paths []string, pollInterval time.Duration) {
	for _, path := range paths {
		if !waitForIdle(ctx, conn, pollInterval) {
			return
		}
		src, err := opener.OpenFile(path)
		if err != nil {
			slog.Error("failed to open queued sound", "path", path, "error", err)
			continue
		}
		done, err := conn.Play(src)
		if err != nil {
			src.Close()
			slog.Error("failed to start queued sound", "path", path, "error", err)
			continue
		}
		select {
		case <-ctx.Done():
			conn.Stop()
			return
		case <-done:
		}
	}
}

// waitForIdle blocks until conn is free to accept playback. It returns
// false if the queue was cancelled or the connection dropped.
func waitForIdle(ctx context.Context, conn discord.VoiceConnection, pollInterval time.Duration) bool {
	for {
		if ctx.Err() != nil || !conn.IsConnected() {
			return false
		}
		if !conn.IsPlaying() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}
}
