package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/seajon16/sassbot/internal/discord"
)

// SlashCommandDefinitions describes every command the bot registers.
func SlashCommandDefinitions() []discord.SlashCommandDefinition {
	return []discord.SlashCommandDefinition{
		{Name: "join", Description: "Join a specific voice channel", Options: []discord.SlashCommandOption{
			{Name: "channel", Description: "Voice channel ID", Required: true},
		}},
		{Name: "summon", Description: "Join your current voice channel"},
		{Name: "play", Description: "Play media from a link or search", Options: []discord.SlashCommandOption{
			{Name: "query", Description: "Link or search terms", Required: true},
			{Name: "timestamp", Description: "Start position, like 1:23 or 1:02:03"},
		}},
		{Name: "pause", Description: "Pause playback"},
		{Name: "resume", Description: "Resume paused playback"},
		{Name: "stop", Description: "Stop playback and clear the queue"},
		{Name: "volume", Description: "Show or set the volume", Options: []discord.SlashCommandOption{
			{Name: "percent", Description: "New volume, 0 to 100"},
		}},
		{Name: "leave", Description: "Leave the voice channel"},
		{Name: "refresh", Description: "Reset the inactivity clock"},
		{Name: "sb", Description: "Play or list soundboard sounds", Options: []discord.SlashCommandOption{
			{Name: "sounds", Description: "Sound names, a category, or all/new/random"},
		}},
		{Name: "say", Description: "Speak text in the voice channel", Options: []discord.SlashCommandOption{
			{Name: "text", Description: "What to say", Required: true},
			{Name: "language", Description: "Language code, like en-GB; anything unrecognized lists the choices"},
		}},
		{Name: "sbrequest", Description: "Request a new soundboard sound", Options: []discord.SlashCommandOption{
			{Name: "url", Description: "Where the sound lives", Required: true},
			{Name: "start", Description: "Clip start marker"},
			{Name: "end", Description: "Clip end marker"},
		}},
		{Name: "sbcount", Description: "Count the available sounds"},
		{Name: "sbreload", Description: "Reload the sound library from disk"},
	}
}

// HandleSlashCommand dispatches one interaction to the matching
// operation and turns its outcome into a response.
func (m *Manager) HandleSlashCommand(evt discord.SlashCommandEvent) {
	reply, err := m.dispatch(evt)
	if err != nil {
		m.respondError(evt, err)
		return
	}
	m.respondChunked(evt, reply)
}

func (m *Manager) dispatch(evt discord.SlashCommandEvent) (string, error) {
	ctx := context.Background()
	switch evt.CommandName {
	case "join":
		if err := m.Join(evt.GuildID, evt.Options["channel"], evt.ChannelID); err != nil {
			return "", err
		}
		return "On my way.", nil
	case "summon":
		if err := m.Summon(evt.GuildID, evt.UserID, evt.ChannelID); err != nil {
			return "", err
		}
		return "You rang?", nil
	case "play":
		startAt, err := parseTimestamp(evt.Options["timestamp"])
		if err != nil {
			return "", err
		}
		// Media resolution can retry past the interaction response
		// window, so acknowledge before looking anything up.
		m.deferResponse(evt)
		return m.Play(ctx, evt.GuildID, evt.UserID, evt.ChannelID, evt.Options["query"], startAt)
	case "pause":
		if err := m.Pause(evt.GuildID, evt.ChannelID); err != nil {
			return "", err
		}
		return "Paused.", nil
	case "resume":
		if err := m.Resume(evt.GuildID, evt.ChannelID); err != nil {
			return "", err
		}
		return "Resuming.", nil
	case "stop":
		if err := m.Stop(evt.GuildID, evt.ChannelID); err != nil {
			return "", err
		}
		return "Stopped.", nil
	case "volume":
		raw, set := evt.Options["percent"]
		percent := 0
		if set {
			var err error
			percent, err = strconv.Atoi(raw)
			if err != nil {
				return "", userErrorf("`%s` is not a number.", raw)
			}
		}
		level, err := m.Volume(evt.GuildID, evt.ChannelID, percent, set)
		if err != nil {
			return "", err
		}
		if set {
			return fmt.Sprintf("Volume set to %d%%.", level), nil
		}
		return fmt.Sprintf("Volume is at %d%%.", level), nil
	case "leave":
		if err := m.Leave(evt.GuildID, evt.ChannelID); err != nil {
			return "", err
		}
		return "Later.", nil
	case "refresh":
		if err := m.Refresh(evt.GuildID, evt.ChannelID); err != nil {
			return "", err
		}
		return messageRefreshed, nil
	case "sb":
		return m.Sb(evt.GuildID, evt.UserID, evt.ChannelID, strings.Fields(evt.Options["sounds"]))
	case "say":
		if err := m.Say(ctx, evt.GuildID, evt.UserID, evt.ChannelID, evt.Options["text"], evt.Options["language"]); err != nil {
			return "", err
		}
		return "Speaking.", nil
	case "sbrequest":
		if err := m.RequestSound(evt.UserName, evt.Options["url"], evt.Options["start"], evt.Options["end"]); err != nil {
			return "", err
		}
		return messageRequestRecorded, nil
	case "sbcount":
		return fmt.Sprintf("I know %d sounds.", m.SoundCount()), nil
	case "sbreload":
		if err := m.ReloadSounds(); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s I know %d sounds now.", messageSoundsReloaded, m.SoundCount()), nil
	}
	return "", fmt.Errorf("unknown command %q", evt.CommandName)
}

func (m *Manager) respondError(evt discord.SlashCommandEvent, err error) {
	var ue *UserError
	if errors.As(err, &ue) {
		m.respond(evt, ue.Message)
		return
	}
	var ee *ExternalError
	if errors.As(err, &ee) {
		slog.Error("command failed", "command", evt.CommandName, "guild_id", evt.GuildID, "error", ee.Err)
		m.respond(evt, messageExternalFailure)
		return
	}
	slog.Error("command failed unexpectedly", "command", evt.CommandName, "guild_id", evt.GuildID, "error", err)
	m.respond(evt, messageUnexpectedFailure)
}

func (m *Manager) deferResponse(evt discord.SlashCommandEvent) {
	if evt.Defer == nil {
		return
	}
	if err := evt.Defer(); err != nil {
		slog.Error("failed to defer interaction response", "command", evt.CommandName, "guild_id", evt.GuildID, "error", err)
	}
}

func (m *Manager) respond(evt discord.SlashCommandEvent, content string) {
	if err := evt.Respond(content); err != nil {
		slog.Error("failed to respond to interaction", "command", evt.CommandName, "guild_id", evt.GuildID, "error", err)
	}
}

// respondChunked answers the interaction, spilling anything past the
// message length limit into follow-up channel messages split on
// newlines.
func (m *Manager) respondChunked(evt discord.SlashCommandEvent, content string) {
	chunks := splitMessage(content, messageLengthLimit)
	m.respond(evt, chunks[0])
	for _, chunk := range chunks[1:] {
		if err := m.client.SendChannelMessage(evt.ChannelID, chunk); err != nil {
			slog.Error("failed to send follow-up chunk", "guild_id", evt.GuildID, "error", err)
			return
		}
	}
}

// HandleGuildCreate seeds a session record when the bot sees a guild.
// A guild not yet in the registry is a fresh invite, so its slash
// commands are registered too; guilds seeded at startup already have
// theirs.
func (m *Manager) HandleGuildCreate(evt discord.GuildEvent) {
	if m.registry.Known(evt.GuildID) {
		return
	}
	m.registry.GetOrCreate(evt.GuildID)
	slog.Info("joined new guild", "guild_id", evt.GuildID, "name", evt.Name)
	if err := m.client.UpsertGuildSlashCommands(evt.GuildID, SlashCommandDefinitions()); err != nil {
		slog.Error("failed to register commands for new guild", "guild_id", evt.GuildID, "error", err)
	}
}

// parseTimestamp reads colon-separated positions like "90", "1:23", or
// "1:02:03".
func parseTimestamp(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return 0, userErrorf("`%s` doesn't look like a timestamp; use ss, mm:ss, or hh:mm:ss.", raw)
	}
	var total time.Duration
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, userErrorf("`%s` doesn't look like a timestamp; use ss, mm:ss, or hh:mm:ss.", raw)
		}
		total = total*60 + time.Duration(n)*time.Second
	}
	return total, nil
}
