package discord

import (
	"context"

	"github.com/seajon16/sassbot/internal/audio"
)

type SlashCommandOption struct {
	Name        string
	Description string
	Required    bool
}

type SlashCommandDefinition struct {
	Name        string
	Description string
	Options     []SlashCommandOption
}

type SlashCommandEvent struct {
	GuildID     string
	ChannelID   string
	CommandName string
	UserID      string
	UserName    string
	Options     map[string]string
	Respond     func(content string) error

	// Defer acknowledges the interaction so a slow handler can answer
	// after the platform's response window; a later Respond then edits
	// the acknowledgement instead of opening a new response.
	Defer func() error
}

type GuildEvent struct {
	GuildID string
	Name    string
}

type Guild struct {
	ID   string
	Name string
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	Run() error
	GetBotUserID() (string, error)
	ListGuilds() ([]Guild, error)
	SendChannelMessage(channelID, content string) error
	RegisterSlashCommandHandler(handler func(SlashCommandEvent))
	RegisterGuildCreateHandler(handler func(GuildEvent))
	UpsertGuildSlashCommands(guildID string, defs []SlashCommandDefinition) error
	GetUserVoiceChannelID(guildID, userID string) (string, error)

	// JoinVoiceChannel connects to the channel, moving an existing
	// connection for the guild if one is live.
	JoinVoiceChannel(guildID, channelID string) (VoiceConnection, error)
	// ActiveVoiceConnection returns the guild's live connection, if any.
	ActiveVoiceConnection(guildID string) (VoiceConnection, bool)
}

// VoiceConnection is the per-guild voice transport. Connection-mutating
// calls are only made by whoever holds the guild session's command lock
// or by the recognized queue task.
type VoiceConnection interface {
	ChannelID() string
	IsConnected() bool
	IsPlaying() bool
	IsPaused() bool

	// Play starts playback of src and returns a channel closed when the
	// source finishes, is stopped, or the connection drops.
	Play(src audio.Source) (<-chan struct{}, error)
	Stop()
	Pause()
	Resume()

	SetVolume(percent int)
	Volume() int

	Disconnect() error
}
