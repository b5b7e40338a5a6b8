package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/seajon16/sassbot/internal/audio"
	"github.com/seajon16/sassbot/internal/config"
	"github.com/seajon16/sassbot/internal/discord"
	"github.com/seajon16/sassbot/internal/media"
	"github.com/seajon16/sassbot/internal/soundboard"
	"github.com/seajon16/sassbot/internal/speech"
)

// leaveSettleDelay is how long a leave that lost a lock race waits before
// disconnecting, so the users see the race get called out first.
const leaveSettleDelay = 100 * time.Millisecond

const maxRequestURLLength = 100

const maxRequestMarkerLength = 10

// rickrollVideoID appears in every variant of the link people keep trying
// to sneak into the request ledger.
const rickrollVideoID = "dQw4w9WgXcQ"

// Manager coordinates all voice and soundboard operations across guilds.
// Each guild's inspect-then-mutate spans are serialized by its session's
// command lock; guilds never block each other.
type Manager struct {
	cfg      *config.Config
	client   discord.Client
	registry *Registry
	media    media.Resolver
	speech   speech.Synthesizer
	opener   audio.Opener
	requests *soundboard.RequestLog

	indexMu sync.RWMutex
	index   *soundboard.Index

	matchOrder soundboard.MatchOrder

	// Injectable for tests.
	sleep        func(time.Duration)
	randIntN     func(int) int
	settleDelay  time.Duration
	pollInterval time.Duration
}

func NewManager(cfg *config.Config, client discord.Client, resolver media.Resolver, synth speech.Synthesizer, opener audio.Opener) (*Manager, error) {
	idx, err := soundboard.BuildIndex(cfg.SoundDir, cfg.SoundRecentCount)
	if err != nil {
		return nil, fmt.Errorf("failed to build sound index: %w", err)
	}
	return &Manager{
		cfg:          cfg,
		client:       client,
		registry:     NewRegistry(),
		media:        resolver,
		speech:       synth,
		opener:       opener,
		requests:     soundboard.NewRequestLog(cfg.RequestFile, cfg.RequestFileMaxBytes),
		index:        idx,
		matchOrder:   soundboard.EditDistanceFirst,
		sleep:        time.Sleep,
		randIntN:     rand.IntN,
		settleDelay:  leaveSettleDelay,
		pollInterval: defaultQueuePollInterval,
	}, nil
}

func (m *Manager) snapshotIndex() *soundboard.Index {
	m.indexMu.RLock()
	defer m.indexMu.RUnlock()
	return m.index
}

// SeedGuilds creates inactive session records for every known guild so
// the registry reflects the roster from startup.
func (m *Manager) SeedGuilds(guilds []discord.Guild) {
	for _, g := range guilds {
		m.registry.GetOrCreate(g.ID)
	}
	slog.Info("seeded guild sessions", "count", len(guilds))
}

// Join connects to the given voice channel, moving an existing connection
// if there is one.
func (m *Manager) Join(guildID, channelID, textChannelID string) error {
	sess := m.registry.GetOrCreate(guildID)
	sess.Lock()
	defer sess.Unlock()

	m.reapQueue(sess)
	if conn, ok := m.client.ActiveVoiceConnection(guildID); ok && conn.IsConnected() && conn.ChannelID() == channelID {
		return userError(messageAlreadyInChannel)
	}
	if _, err := m.client.JoinVoiceChannel(guildID, channelID); err != nil {
		return externalError(err)
	}
	sess.Touch(textChannelID)
	return nil
}

// Summon connects to whatever voice channel the requester is in.
func (m *Manager) Summon(guildID, userID, textChannelID string) error {
	channelID, err := m.client.GetUserVoiceChannelID(guildID, userID)
	if err != nil {
		return externalError(err)
	}
	if channelID == "" {
		return userError(messageNotInVoice)
	}
	return m.Join(guildID, channelID, textChannelID)
}

// Stop halts current playback and cancels any queued sounds.
func (m *Manager) Stop(guildID, textChannelID string) error {
	sess := m.registry.GetOrCreate(guildID)
	sess.Lock()
	defer sess.Unlock()

	m.reapQueue(sess)
	conn, err := m.liveConnection(guildID)
	if err != nil {
		return err
	}
	if !conn.IsPlaying() && !conn.IsPaused() {
		return userError(messageNotPlaying)
	}
	conn.Stop()
	sess.Touch(textChannelID)
	return nil
}

// Leave disconnects from voice. If another voice command holds the lock
// when leave arrives, leave waits for it, pauses briefly, and calls out
// the indecision in the text channel before disconnecting anyway.
func (m *Manager) Leave(guildID, textChannelID string) error {
	if _, err := m.liveConnection(guildID); err != nil {
		return err
	}

	sess := m.registry.GetOrCreate(guildID)
	raced := !sess.TryLock()
	if raced {
		sess.Lock()
	}
	defer sess.Unlock()

	m.reapQueue(sess)
	if raced {
		m.sleep(m.settleDelay)
		if err := m.client.SendChannelMessage(textChannelID, messageLeaveRace); err != nil {
			slog.Error("failed to send leave notice", "guild_id", guildID, "error", err)
		}
	}

	conn, err := m.liveConnection(guildID)
	if err != nil {
		return err
	}
	conn.Stop()
	if err := conn.Disconnect(); err != nil {
		return externalError(err)
	}
	m.registry.MarkInactive(guildID)
	return nil
}

// Pause suspends current playback.
func (m *Manager) Pause(guildID, textChannelID string) error {
	sess := m.registry.GetOrCreate(guildID)
	sess.Lock()
	defer sess.Unlock()

	conn, err := m.liveConnection(guildID)
	if err != nil {
		return err
	}
	if !conn.IsPlaying() {
		return userError(messageNotPlaying)
	}
	conn.Pause()
	sess.Touch(textChannelID)
	return nil
}

// Resume continues paused playback.
func (m *Manager) Resume(guildID, textChannelID string) error {
	sess := m.registry.GetOrCreate(guildID)
	sess.Lock()
	defer sess.Unlock()

	conn, err := m.liveConnection(guildID)
	if err != nil {
		return err
	}
	if !conn.IsPaused() {
		return userError(messageNotPaused)
	}
	conn.Resume()
	sess.Touch(textChannelID)
	return nil
}

// Volume reads or sets the playback volume. With set false it only
// reports the current level.
func (m *Manager) Volume(guildID, textChannelID string, percent int, set bool) (int, error) {
	sess := m.registry.GetOrCreate(guildID)
	sess.Lock()
	defer sess.Unlock()

	conn, err := m.liveConnection(guildID)
	if err != nil {
		return 0, err
	}
	if !set {
		return conn.Volume(), nil
	}
	if percent < 0 || percent > 100 {
		return 0, userError("Volume must be between 0 and 100.")
	}
	conn.SetVolume(percent)
	sess.Touch(textChannelID)
	return percent, nil
}

// Play resolves a remote media query and streams the result, replacing
// whatever is currently playing. It returns the announcement line.
func (m *Manager) Play(ctx context.Context, guildID, userID, textChannelID, query string, startAt time.Duration) (string, error) {
	sess := m.registry.GetOrCreate(guildID)
	if !sess.beginResolve() {
		return "", userError(messageLookupInFlight)
	}
	defer sess.endResolve()

	track, err := m.media.Resolve(ctx, query)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedSource) {
			return "", userError("I can't play anything from there; give me a YouTube link or a search.")
		}
		return "", externalError(err)
	}

	sess.Lock()
	defer sess.Unlock()

	m.reapQueue(sess)
	conn, err := m.prepareToPlay(guildID, userID, textChannelID)
	if err != nil {
		return "", err
	}
	src, err := m.opener.OpenStream(track.StreamURL, audio.StreamOptions{StartAt: startAt, Reconnect: true})
	if err != nil {
		return "", externalError(err)
	}
	if _, err := conn.Play(src); err != nil {
		src.Close()
		return "", externalError(err)
	}
	sess.Touch(textChannelID)
	return nowPlayingReply(track.String()), nil
}

// Sb handles every soundboard form: no tokens lists categories, a single
// control token lists or picks sounds, and anything else resolves each
// token and plays the results in order.
func (m *Manager) Sb(guildID, userID, textChannelID string, tokens []string) (string, error) {
	idx := m.snapshotIndex()

	if len(tokens) == 0 {
		return categoriesReply(idx), nil
	}
	if len(tokens) == 1 {
		switch tokens[0] {
		case "all":
			return allSoundsReply(idx), nil
		case "new":
			return recentSoundsReply(idx), nil
		case "random":
			names := idx.Names()
			if len(names) == 0 {
				return "", userError("I have no sounds to pick from.")
			}
			name := names[m.randIntN(len(names))]
			if _, err := m.playSounds(idx, guildID, userID, textChannelID, []string{name}); err != nil {
				return "", err
			}
			return randomPlayedReply(name), nil
		}
		if _, ok := idx.Sounds(tokens[0]); ok {
			return categoryReply(idx, tokens[0]), nil
		}
	}

	matches := make([]*soundboard.Match, 0, len(tokens))
	for _, token := range tokens {
		match, err := idx.Resolve(token, m.matchOrder)
		if err != nil {
			return "", userError(unknownSoundReply(token))
		}
		matches = append(matches, match)
	}

	names := make([]string, len(matches))
	var notes []string
	for i, match := range matches {
		names[i] = match.Name
		if match.Fuzzy {
			notes = append(notes, fuzzyPlayNote(match.Token, match.Name))
		}
	}
	reply, err := m.playSounds(idx, guildID, userID, textChannelID, names)
	if err != nil {
		return "", err
	}
	if len(notes) > 0 {
		reply = strings.Join(notes, "\n") + "\n" + reply
	}
	return reply, nil
}

// playSounds plays the named sounds in order, replacing current playback.
// A busy command lock is reported rather than waited on so rapid-fire
// soundboard spam cannot pile up.
func (m *Manager) playSounds(idx *soundboard.Index, guildID, userID, textChannelID string, names []string) (string, error) {
	paths := make([]string, len(names))
	for i, name := range names {
		path, ok := idx.Path(name)
		if !ok {
			return "", userError(unknownSoundReply(name))
		}
		paths[i] = path
	}

	sess := m.registry.GetOrCreate(guildID)
	if !sess.TryLock() {
		return "", userError(messageCommandInFlight)
	}
	defer sess.Unlock()

	m.reapQueue(sess)
	conn, err := m.prepareToPlay(guildID, userID, textChannelID)
	if err != nil {
		return "", err
	}

	if len(paths) == 1 {
		src, err := m.opener.OpenFile(paths[0])
		if err != nil {
			return "", externalError(err)
		}
		if _, err := conn.Play(src); err != nil {
			src.Close()
			return "", externalError(err)
		}
		sess.Touch(textChannelID)
		return fmt.Sprintf("Playing `%s`.", names[0]), nil
	}

	startQueue(sess, conn, m.opener, paths, m.pollInterval)
	sess.Touch(textChannelID)
	return fmt.Sprintf("Queued %d sounds.", len(paths)), nil
}

// Say synthesizes text to speech and plays it. The synthesized asset is
// removed once playback finishes.
func (m *Manager) Say(ctx context.Context, guildID, userID, textChannelID, text, language string) error {
	if strings.TrimSpace(text) == "" {
		return userError("Give me something to say.")
	}
	if language == "" {
		language = m.cfg.DefaultTTSLanguage
	}

	path, err := m.speech.Synthesize(ctx, text, language)
	if err != nil {
		if errors.Is(err, speech.ErrUnknownLanguage) {
			return m.unknownLanguageError(ctx, language)
		}
		return externalError(err)
	}

	sess := m.registry.GetOrCreate(guildID)
	sess.Lock()
	defer sess.Unlock()

	m.reapQueue(sess)
	conn, err := m.prepareToPlay(guildID, userID, textChannelID)
	if err != nil {
		os.Remove(path)
		return err
	}
	src, err := m.opener.OpenFile(path)
	if err != nil {
		os.Remove(path)
		return externalError(err)
	}
	done, err := conn.Play(src)
	if err != nil {
		src.Close()
		os.Remove(path)
		return externalError(err)
	}
	go func() {
		<-done
		if err := os.Remove(path); err != nil {
			slog.Error("failed to remove synthesized speech", "path", path, "error", err)
		}
	}()
	sess.Touch(textChannelID)
	return nil
}

func (m *Manager) unknownLanguageError(ctx context.Context, language string) error {
	languages, err := m.speech.Languages(ctx)
	if err != nil {
		slog.Error("failed to list speech languages", "error", err)
		return userErrorf("I don't speak `%s`.", language)
	}
	return userErrorf("I don't speak `%s`. Try one of: %s", language, strings.Join(languages, ", "))
}

// Refresh bumps the guild's activity clock without touching playback.
func (m *Manager) Refresh(guildID, textChannelID string) error {
	if _, err := m.liveConnection(guildID); err != nil {
		return err
	}
	m.registry.GetOrCreate(guildID).Touch(textChannelID)
	return nil
}

// RequestSound records a soundboard addition request in the ledger.
func (m *Manager) RequestSound(author, url, start, end string) error {
	if strings.Contains(url, rickrollVideoID) {
		return userError(messageRickroll)
	}
	if len(url) > maxRequestURLLength {
		return userErrorf("That URL is too long; keep it under %d characters.", maxRequestURLLength)
	}
	if len(start) > maxRequestMarkerLength || len(end) > maxRequestMarkerLength {
		return userErrorf("Timestamps must be %d characters or fewer.", maxRequestMarkerLength)
	}
	err := m.requests.Append(soundboard.Request{Author: author, URL: url, Start: start, End: end})
	if errors.Is(err, soundboard.ErrRequestLogFull) {
		return userError(messageRequestLogFull)
	}
	if err != nil {
		return externalError(err)
	}
	return nil
}

// SoundCount reports how many sounds the index currently holds.
func (m *Manager) SoundCount() int {
	return m.snapshotIndex().Len()
}

// ReloadSounds rebuilds the sound index from disk. On failure the old
// index stays in place.
func (m *Manager) ReloadSounds() error {
	idx, err := soundboard.BuildIndex(m.cfg.SoundDir, m.cfg.SoundRecentCount)
	if err != nil {
		return externalError(err)
	}
	m.indexMu.Lock()
	m.index = idx
	m.indexMu.Unlock()
	slog.Info("reloaded sound index", "sounds", idx.Len())
	return nil
}

// Shutdown notifies every active guild and tears down its voice
// connection. Failures are logged per guild and never abort the loop.
func (m *Manager) Shutdown() {
	for _, sess := range m.registry.Snapshot() {
		if sess.IsActive() {
			if ch := sess.LastChannelID(); ch != "" {
				if err := m.client.SendChannelMessage(ch, MessageShutdown); err != nil {
					slog.Error("failed to send shutdown notice", "guild_id", sess.ID, "error", err)
				}
			}
		}
		if conn, ok := m.client.ActiveVoiceConnection(sess.ID); ok && conn.IsConnected() {
			conn.Stop()
			if err := conn.Disconnect(); err != nil {
				slog.Error("failed to disconnect on shutdown", "guild_id", sess.ID, "error", err)
			}
		}
	}
}

// reapQueue cancels the session's queue task, if any, and waits for it to
// release the voice connection. Must be called with the command lock held
// before any playback or disconnect.
func (m *Manager) reapQueue(sess *Session) {
	if q := sess.takeQueue(); q != nil {
		q.reap()
	}
}

func (m *Manager) liveConnection(guildID string) (discord.VoiceConnection, error) {
	conn, ok := m.client.ActiveVoiceConnection(guildID)
	if !ok || !conn.IsConnected() {
		return nil, userError(messageNoVoiceConnection)
	}
	return conn, nil
}

// prepareToPlay ensures a live connection, summoning the bot to the
// requester's channel if needed, and silences any current playback.
// Caller holds the command lock.
func (m *Manager) prepareToPlay(guildID, userID, textChannelID string) (discord.VoiceConnection, error) {
	conn, ok := m.client.ActiveVoiceConnection(guildID)
	if !ok || !conn.IsConnected() {
		channelID, err := m.client.GetUserVoiceChannelID(guildID, userID)
		if err != nil {
			return nil, externalError(err)
		}
		if channelID == "" {
			return nil, userError(messageNotInVoice)
		}
		conn, err = m.client.JoinVoiceChannel(guildID, channelID)
		if err != nil {
			return nil, externalError(err)
		}
		return conn, nil
	}
	if conn.IsPlaying() || conn.IsPaused() {
		conn.Stop()
	}
	return conn, nil
}
