package session

import (
	"context"
	"log/slog"
	"time"
)

// RunInactivityMonitor sweeps all sessions on the configured interval
// until ctx is cancelled. Each sweep disconnects guilds that have idled
// past the timeout and repairs activity tracking that drifted out of sync
// with the live connections.
func (m *Manager) RunInactivityMonitor(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	slog.Info("inactivity monitor started", "timeout", m.cfg.InactivityTimeout, "interval", m.cfg.SweepInterval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("inactivity monitor stopped")
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

func (m *Manager) sweep(now time.Time) {
	for _, sess := range m.registry.Snapshot() {
		m.sweepSession(sess, now)
	}
}

// sweepSession handles one guild. Failures here are logged and contained
// so one broken guild never stalls the rest of the sweep.
func (m *Manager) sweepSession(sess *Session, now time.Time) {
	if sess.ShouldTimeout(now, m.cfg.InactivityTimeout) {
		// Only the holder of the command lock may touch the connection.
		// A contended lock means a command is mid-flight, so the guild
		// is not actually idle; let a later sweep judge it.
		if !sess.TryLock() {
			return
		}
		defer sess.Unlock()
		conn, ok := m.client.ActiveVoiceConnection(sess.ID)
		live := ok && conn.IsConnected()
		if live && conn.IsPlaying() {
			// Long playback is not idleness. Leave the session alone and
			// let a later sweep judge it once the audio ends.
			return
		}
		// Activity is cleared before the disconnect so a failure here
		// cannot make the same guild error on every sweep.
		sess.MarkInactive()
		if !live {
			return
		}
		if err := conn.Disconnect(); err != nil {
			slog.Error("failed to disconnect idle guild", "guild_id", sess.ID, "error", err)
			return
		}
		if ch := sess.LastChannelID(); ch != "" {
			if err := m.client.SendChannelMessage(ch, messageInactivityDisconnect); err != nil {
				slog.Error("failed to send inactivity notice", "guild_id", sess.ID, "error", err)
			}
		}
		slog.Info("disconnected idle guild", "guild_id", sess.ID)
		return
	}

	// A live connection with no tracked activity means bookkeeping fell
	// out of sync, typically after a gateway reconnect. Revive it so the
	// timeout clock applies again.
	conn, ok := m.client.ActiveVoiceConnection(sess.ID)
	if ok && conn.IsConnected() && !sess.IsActive() {
		sess.Touch("")
		slog.Info("revived desynced session", "guild_id", sess.ID)
	}
}
