package session

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/seajon16/sassbot/internal/audio"
	"github.com/seajon16/sassbot/internal/config"
	"github.com/seajon16/sassbot/internal/discord"
	"github.com/seajon16/sassbot/internal/media"
	"github.com/seajon16/sassbot/internal/speech"
)

var errTest = errors.New("test failure")

type fakeSource struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeSource) Read(p []byte) (int, error) { return 0, io.EOF }

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeVoiceConn struct {
	mu            sync.Mutex
	channelID     string
	connected     bool
	playing       bool
	paused        bool
	volume        int
	done          chan struct{}
	playCount     int
	stopCount     int
	disconnected  bool
	disconnectErr error
}

func (c *fakeVoiceConn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *fakeVoiceConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeVoiceConn) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *fakeVoiceConn) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *fakeVoiceConn) Play(src audio.Source) (<-chan struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = true
	c.playCount++
	c.done = make(chan struct{})
	return c.done, nil
}

// finish simulates a source reaching its natural end.
func (c *fakeVoiceConn) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		c.playing = false
		close(c.done)
		c.done = nil
	}
}

func (c *fakeVoiceConn) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCount++
	if c.playing {
		close(c.done)
		c.done = nil
	}
	c.playing = false
	c.paused = false
}

func (c *fakeVoiceConn) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = false
	c.paused = true
}

func (c *fakeVoiceConn) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = true
	c.paused = false
}

func (c *fakeVoiceConn) SetVolume(percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = percent
}

func (c *fakeVoiceConn) Volume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

func (c *fakeVoiceConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnectErr != nil {
		return c.disconnectErr
	}
	c.connected = false
	c.disconnected = true
	return nil
}

type sentMessage struct {
	channelID string
	content   string
}

type fakeClient struct {
	mu           sync.Mutex
	conns        map[string]*fakeVoiceConn
	userChannels map[string]string
	messages     []sentMessage
	upserts      []string
	joinErr      error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		conns:        make(map[string]*fakeVoiceConn),
		userChannels: make(map[string]string),
	}
}

func (c *fakeClient) Connect(ctx context.Context) error { return nil }
func (c *fakeClient) Close() error                      { return nil }
func (c *fakeClient) Run() error                        { return nil }
func (c *fakeClient) GetBotUserID() (string, error)     { return "bot", nil }
func (c *fakeClient) ListGuilds() ([]discord.Guild, error) {
	return nil, nil
}

func (c *fakeClient) SendChannelMessage(channelID, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, sentMessage{channelID: channelID, content: content})
	return nil
}

func (c *fakeClient) RegisterSlashCommandHandler(handler func(discord.SlashCommandEvent)) {}
func (c *fakeClient) RegisterGuildCreateHandler(handler func(discord.GuildEvent))         {}
func (c *fakeClient) UpsertGuildSlashCommands(guildID string, defs []discord.SlashCommandDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upserts = append(c.upserts, guildID)
	return nil
}

func (c *fakeClient) GetUserVoiceChannelID(guildID, userID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userChannels[guildID+":"+userID], nil
}

func (c *fakeClient) JoinVoiceChannel(guildID, channelID string) (discord.VoiceConnection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.joinErr != nil {
		return nil, c.joinErr
	}
	conn, ok := c.conns[guildID]
	if !ok {
		conn = &fakeVoiceConn{volume: 100}
		c.conns[guildID] = conn
	}
	conn.mu.Lock()
	conn.connected = true
	conn.channelID = channelID
	conn.mu.Unlock()
	return conn, nil
}

func (c *fakeClient) ActiveVoiceConnection(guildID string) (discord.VoiceConnection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.conns[guildID]
	if !ok {
		return nil, false
	}
	return conn, true
}

// addLiveConn wires a connected fake voice connection for the guild.
func (c *fakeClient) addLiveConn(guildID, channelID string) *fakeVoiceConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn := &fakeVoiceConn{connected: true, channelID: channelID, volume: 100}
	c.conns[guildID] = conn
	return conn
}

type fakeOpener struct {
	mu      sync.Mutex
	opened  []string
	streams []string
	openErr error
}

func (o *fakeOpener) OpenFile(path string) (audio.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.opened = append(o.opened, path)
	return &fakeSource{}, nil
}

func (o *fakeOpener) OpenStream(url string, opts audio.StreamOptions) (audio.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.streams = append(o.streams, url)
	return &fakeSource{}, nil
}

func (o *fakeOpener) openedPaths() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}

type fakeMediaResolver struct {
	track     *media.Track
	err       error
	onResolve func()
}

func (r *fakeMediaResolver) Resolve(_ context.Context, _ string) (*media.Track, error) {
	if r.onResolve != nil {
		r.onResolve()
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.track, nil
}

type fakeSynthesizer struct {
	dir       string
	err       error
	languages []string
}

func (s *fakeSynthesizer) Synthesize(_ context.Context, text, language string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	path := filepath.Join(s.dir, "speech.mp3")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (s *fakeSynthesizer) Languages(_ context.Context) ([]string, error) {
	return s.languages, nil
}

type managerFixture struct {
	manager  *Manager
	client   *fakeClient
	opener   *fakeOpener
	resolver *fakeMediaResolver
	synth    *fakeSynthesizer
	soundDir string
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	soundDir := t.TempDir()
	for category, sounds := range map[string][]string{
		"alarms":  {"siren", "airhorn"},
		"animals": {"moo"},
	} {
		if err := os.MkdirAll(filepath.Join(soundDir, category), 0o755); err != nil {
			t.Fatalf("failed to create category dir: %v", err)
		}
		for _, name := range sounds {
			path := filepath.Join(soundDir, category, name+".mp3")
			if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
				t.Fatalf("failed to write sound: %v", err)
			}
		}
	}

	cfg := &config.Config{
		Env:                 "test",
		DiscordToken:        "token",
		SoundDir:            soundDir,
		SoundRecentCount:    5,
		RequestFile:         filepath.Join(t.TempDir(), "requests.txt"),
		RequestFileMaxBytes: 10000,
		InactivityTimeout:   30 * time.Minute,
		SweepInterval:       time.Minute,
		DefaultTTSLanguage:  "en-GB",
		MediaRetryAttempts:  3,
		MediaRetryBackoff:   time.Millisecond,
	}

	client := newFakeClient()
	opener := &fakeOpener{}
	resolver := &fakeMediaResolver{
		track: &media.Track{
			Title:     "Never Mind",
			Uploader:  "somebody",
			Duration:  3*time.Minute + 5*time.Second,
			StreamURL: "https://cdn.example/stream",
		},
	}
	synth := &fakeSynthesizer{dir: t.TempDir(), languages: []string{"en-GB", "ja-JP"}}

	m, err := NewManager(cfg, client, resolver, synth, opener)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	m.sleep = func(time.Duration) {}
	m.pollInterval = time.Millisecond
	m.settleDelay = 0

	return &managerFixture{
		manager:  m,
		client:   client,
		opener:   opener,
		resolver: resolver,
		synth:    synth,
		soundDir: soundDir,
	}
}

func assertUserError(t *testing.T, err error, want string) {
	t.Helper()
	var ue *UserError
	if !errors.As(err, &ue) {
		t.Fatalf("expected user error, got %v", err)
	}
	if !strings.Contains(ue.Message, want) {
		t.Fatalf("expected message containing %q, got %q", want, ue.Message)
	}
}

func TestSb_NoTokensListsCategories(t *testing.T) {
	f := newManagerFixture(t)

	reply, err := f.manager.Sb("g1", "u1", "t1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"alarms", "animals"} {
		if !strings.Contains(reply, want) {
			t.Fatalf("expected listing to mention %q, got %q", want, reply)
		}
	}
}

func TestSb_CategoryTokenListsSounds(t *testing.T) {
	f := newManagerFixture(t)

	reply, err := f.manager.Sb("g1", "u1", "t1", []string{"alarms"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "airhorn") || !strings.Contains(reply, "siren") {
		t.Fatalf("expected alarm sounds in listing, got %q", reply)
	}
}

func TestSb_SingleSoundPlays(t *testing.T) {
	f := newManagerFixture(t)
	f.client.userChannels["g1:u1"] = "vc1"

	reply, err := f.manager.Sb("g1", "u1", "t1", []string{"siren"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "`siren`") {
		t.Fatalf("expected confirmation for siren, got %q", reply)
	}
	opened := f.opener.openedPaths()
	if len(opened) != 1 || !strings.HasSuffix(opened[0], filepath.Join("alarms", "siren.mp3")) {
		t.Fatalf("expected siren to be opened, got %v", opened)
	}
	if !f.manager.registry.GetOrCreate("g1").IsActive() {
		t.Fatal("expected session to be active after playback")
	}
}

func TestSb_FuzzyTokenNotesSubstitution(t *testing.T) {
	f := newManagerFixture(t)
	f.client.userChannels["g1:u1"] = "vc1"

	reply, err := f.manager.Sb("g1", "u1", "t1", []string{"sirne"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, fuzzyPlayNote("sirne", "siren")) {
		t.Fatalf("expected fuzzy substitution note, got %q", reply)
	}
}

func TestSb_UnknownTokenFails(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Sb("g1", "u1", "t1", []string{"zzzzzzzzzz"})
	assertUserError(t, err, "isn't a valid category or sound name")
}

func TestSb_RequesterNotInVoiceFails(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Sb("g1", "u1", "t1", []string{"siren"})
	assertUserError(t, err, messageNotInVoice)
}

func TestSb_BusyCommandLockIsReportedNotQueued(t *testing.T) {
	f := newManagerFixture(t)
	f.client.userChannels["g1:u1"] = "vc1"

	sess := f.manager.registry.GetOrCreate("g1")
	sess.Lock()
	defer sess.Unlock()

	_, err := f.manager.Sb("g1", "u1", "t1", []string{"siren"})
	assertUserError(t, err, messageCommandInFlight)
}

func TestSb_GuildsAreIndependent(t *testing.T) {
	f := newManagerFixture(t)
	f.client.userChannels["g2:u1"] = "vc1"

	// A stuck command in one guild must not block another guild.
	f.manager.registry.GetOrCreate("g1").Lock()
	defer f.manager.registry.GetOrCreate("g1").Unlock()

	if _, err := f.manager.Sb("g2", "u1", "t1", []string{"moo"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSb_RandomReportsWhatPlayed(t *testing.T) {
	f := newManagerFixture(t)
	f.client.userChannels["g1:u1"] = "vc1"
	f.manager.randIntN = func(n int) int { return 0 }

	reply, err := f.manager.Sb("g1", "u1", "t1", []string{"random"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "You just heard `airhorn`.") {
		t.Fatalf("expected random play report, got %q", reply)
	}
}

func TestPlay_AnnouncesTrack(t *testing.T) {
	f := newManagerFixture(t)
	f.client.userChannels["g1:u1"] = "vc1"

	reply, err := f.manager.Play(context.Background(), "g1", "u1", "t1", "never mind", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Now playing *Never Mind* uploaded by somebody [length: 3m 5s]"
	if reply != want {
		t.Fatalf("expected %q, got %q", want, reply)
	}
	if len(f.opener.streams) != 1 {
		t.Fatalf("expected one stream open, got %v", f.opener.streams)
	}
}

func TestPlay_ConcurrentLookupIsRejected(t *testing.T) {
	f := newManagerFixture(t)

	sess := f.manager.registry.GetOrCreate("g1")
	if !sess.beginResolve() {
		t.Fatal("failed to mark lookup in flight")
	}
	defer sess.endResolve()

	_, err := f.manager.Play(context.Background(), "g1", "u1", "t1", "x", 0)
	assertUserError(t, err, messageLookupInFlight)
}

func TestPlay_UnsupportedSourceIsUserError(t *testing.T) {
	f := newManagerFixture(t)
	f.resolver.err = media.ErrUnsupportedSource

	_, err := f.manager.Play(context.Background(), "g1", "u1", "t1", "https://example.com/x", 0)
	assertUserError(t, err, "can't play anything from there")
}

func TestPlay_ResolverFailureIsExternal(t *testing.T) {
	f := newManagerFixture(t)
	f.resolver.err = errors.New("extraction blew up")

	_, err := f.manager.Play(context.Background(), "g1", "u1", "t1", "x", 0)
	var ee *ExternalError
	if !errors.As(err, &ee) {
		t.Fatalf("expected external error, got %v", err)
	}
}

func TestLeave_WithoutConnectionFails(t *testing.T) {
	f := newManagerFixture(t)

	err := f.manager.Leave("g1", "t1")
	assertUserError(t, err, messageNoVoiceConnection)
}

func TestLeave_DisconnectsAndDeactivates(t *testing.T) {
	f := newManagerFixture(t)
	conn := f.client.addLiveConn("g1", "vc1")
	f.manager.registry.GetOrCreate("g1").Touch("t1")

	if err := f.manager.Leave("g1", "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !conn.disconnected {
		t.Fatal("expected voice connection to be disconnected")
	}
	if f.manager.registry.GetOrCreate("g1").IsActive() {
		t.Fatal("expected session to be inactive after leave")
	}
}

func TestLeave_LockRaceWaitsAndAdmonishes(t *testing.T) {
	f := newManagerFixture(t)
	f.client.addLiveConn("g1", "vc1")

	slept := false
	f.manager.sleep = func(time.Duration) { slept = true }

	sess := f.manager.registry.GetOrCreate("g1")
	sess.Lock()

	leaveDone := make(chan error, 1)
	go func() { leaveDone <- f.manager.Leave("g1", "t1") }()

	select {
	case err := <-leaveDone:
		t.Fatalf("leave finished while the lock was held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	sess.Unlock()
	if err := <-leaveDone; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slept {
		t.Fatal("expected leave to pause after losing the lock race")
	}

	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	if len(f.client.messages) != 1 || f.client.messages[0].content != messageLeaveRace {
		t.Fatalf("expected leave race notice, got %v", f.client.messages)
	}
}

func TestLeave_NoRaceNoNotice(t *testing.T) {
	f := newManagerFixture(t)
	f.client.addLiveConn("g1", "vc1")

	if err := f.manager.Leave("g1", "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.client.messages) != 0 {
		t.Fatalf("expected no notice on an uncontested leave, got %v", f.client.messages)
	}
}

func TestStop_WhenIdleFails(t *testing.T) {
	f := newManagerFixture(t)
	f.client.addLiveConn("g1", "vc1")

	err := f.manager.Stop("g1", "t1")
	assertUserError(t, err, messageNotPlaying)
}

func TestStop_HaltsPlayback(t *testing.T) {
	f := newManagerFixture(t)
	conn := f.client.addLiveConn("g1", "vc1")
	if _, err := conn.Play(&fakeSource{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := f.manager.Stop("g1", "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.IsPlaying() {
		t.Fatal("expected playback to stop")
	}
}

func TestPauseResume(t *testing.T) {
	f := newManagerFixture(t)
	conn := f.client.addLiveConn("g1", "vc1")

	if err := f.manager.Pause("g1", "t1"); !strings.Contains(err.Error(), messageNotPlaying) {
		t.Fatalf("expected not-playing error, got %v", err)
	}

	if _, err := conn.Play(&fakeSource{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.manager.Pause("g1", "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !conn.IsPaused() {
		t.Fatal("expected connection to be paused")
	}
	if err := f.manager.Resume("g1", "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !conn.IsPlaying() {
		t.Fatal("expected playback to resume")
	}
}

func TestVolume_GetAndSet(t *testing.T) {
	f := newManagerFixture(t)
	f.client.addLiveConn("g1", "vc1")

	level, err := f.manager.Volume("g1", "t1", 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level != 100 {
		t.Fatalf("expected default volume 100, got %d", level)
	}

	if _, err := f.manager.Volume("g1", "t1", 150, true); err == nil {
		t.Fatal("expected out-of-range volume to fail")
	}

	level, err = f.manager.Volume("g1", "t1", 40, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level != 40 {
		t.Fatalf("expected volume 40, got %d", level)
	}
}

func TestSay_PlaysSynthesizedSpeech(t *testing.T) {
	f := newManagerFixture(t)
	conn := f.client.addLiveConn("g1", "vc1")

	if err := f.manager.Say(context.Background(), "g1", "u1", "t1", "hello there", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !conn.IsPlaying() {
		t.Fatal("expected speech playback to start")
	}
}

func TestSay_EmptyTextFails(t *testing.T) {
	f := newManagerFixture(t)

	err := f.manager.Say(context.Background(), "g1", "u1", "t1", "  ", "")
	assertUserError(t, err, "something to say")
}

func TestSay_UnknownLanguageListsAvailable(t *testing.T) {
	f := newManagerFixture(t)
	f.synth.err = speech.ErrUnknownLanguage

	err := f.manager.Say(context.Background(), "g1", "u1", "t1", "hello", "xx-XX")
	assertUserError(t, err, "en-GB, ja-JP")
}

func TestRequestSound_RejectsRickroll(t *testing.T) {
	f := newManagerFixture(t)

	err := f.manager.RequestSound("u", "https://youtu.be/dQw4w9WgXcQ", "", "")
	assertUserError(t, err, messageRickroll)
}

func TestRequestSound_RejectsOversizedFields(t *testing.T) {
	f := newManagerFixture(t)

	err := f.manager.RequestSound("u", "https://example.com/"+strings.Repeat("a", 100), "", "")
	assertUserError(t, err, "too long")

	err = f.manager.RequestSound("u", "https://example.com/x", strings.Repeat("1", 11), "")
	assertUserError(t, err, "Timestamps")
}

func TestRequestSound_AppendsToLedger(t *testing.T) {
	f := newManagerFixture(t)

	if err := f.manager.RequestSound("somebody", "https://example.com/x", "0:01", "0:05"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(f.manager.cfg.RequestFile)
	if err != nil {
		t.Fatalf("failed to read ledger: %v", err)
	}
	if !strings.Contains(string(data), "somebody requests https://example.com/x") {
		t.Fatalf("unexpected ledger contents: %q", data)
	}
}

func TestReloadSounds_PicksUpNewFiles(t *testing.T) {
	f := newManagerFixture(t)

	before := f.manager.SoundCount()
	path := filepath.Join(f.soundDir, "alarms", "klaxon.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("failed to write sound: %v", err)
	}
	if err := f.manager.ReloadSounds(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.manager.SoundCount(); got != before+1 {
		t.Fatalf("expected %d sounds after reload, got %d", before+1, got)
	}
}

func TestShutdown_NotifiesActiveGuildsAndDisconnects(t *testing.T) {
	f := newManagerFixture(t)
	conn := f.client.addLiveConn("g1", "vc1")
	f.manager.registry.GetOrCreate("g1").Touch("t1")
	f.manager.registry.GetOrCreate("g2")

	f.manager.Shutdown()

	if !conn.disconnected {
		t.Fatal("expected active connection to be disconnected")
	}
	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	if len(f.client.messages) != 1 || f.client.messages[0].channelID != "t1" {
		t.Fatalf("expected one shutdown notice to t1, got %v", f.client.messages)
	}
}
