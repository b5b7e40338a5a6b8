package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	discordpkg "github.com/seajon16/sassbot/internal/discord"
)

type Client struct {
	session   *discordgo.Session
	token     string
	botUserID string

	voiceMu sync.Mutex
	conns   map[string]*voiceConnection

	// commandLimiter paces slash command registration so upserting the
	// full command set across many guilds stays under the REST limits.
	commandLimiter *rate.Limiter
}

func NewClient(token string) discordpkg.Client {
	return &Client{
		token:          token,
		conns:          make(map[string]*voiceConnection),
		commandLimiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	_ = ctx
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	s.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates)
	s.State.TrackVoice = true
	if err := s.Open(); err != nil {
		return err
	}
	userID, err := c.GetBotUserID()
	if err != nil {
		return err
	}
	c.botUserID = userID
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) Run() error {
	select {}
}

func (c *Client) GetBotUserID() (string, error) {
	if c.botUserID != "" {
		return c.botUserID, nil
	}
	if c.session == nil {
		return "", fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		c.botUserID = c.session.State.User.ID
		return c.botUserID, nil
	}
	u, err := c.session.User("@me")
	if err != nil {
		return "", err
	}
	c.botUserID = u.ID
	return c.botUserID, nil
}

func (c *Client) ListGuilds() ([]discordpkg.Guild, error) {
	if c.session == nil {
		return nil, fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil && len(c.session.State.Guilds) > 0 {
		guilds := make([]discordpkg.Guild, 0, len(c.session.State.Guilds))
		for _, g := range c.session.State.Guilds {
			if g == nil || g.ID == "" {
				continue
			}
			guilds = append(guilds, discordpkg.Guild{ID: g.ID, Name: g.Name})
		}
		return guilds, nil
	}

	// Cache may be cold right after bot startup; ask Discord API directly as fallback.
	raw, err := c.session.UserGuilds(0, "", "", false)
	if err != nil {
		return nil, err
	}
	guilds := make([]discordpkg.Guild, 0, len(raw))
	for _, g := range raw {
		if g == nil || g.ID == "" {
			continue
		}
		guilds = append(guilds, discordpkg.Guild{ID: g.ID, Name: g.Name})
	}
	return guilds, nil
}

func (c *Client) SendChannelMessage(channelID, content string) error {
	_, err := c.session.ChannelMessageSend(channelID, content)
	return err
}

func (c *Client) RegisterSlashCommandHandler(handler func(discordpkg.SlashCommandEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := ic.ApplicationCommandData()
		if data.Name == "" {
			return
		}
		userID := ""
		userName := ""
		if ic.Member != nil && ic.Member.User != nil {
			userID = ic.Member.User.ID
			userName = ic.Member.User.Username
		}
		if userID == "" && ic.User != nil {
			userID = ic.User.ID
			userName = ic.User.Username
		}
		if userID == "" {
			return
		}
		options := make(map[string]string, len(data.Options))
		for _, opt := range data.Options {
			if opt == nil {
				continue
			}
			options[opt.Name] = fmt.Sprintf("%v", opt.Value)
		}
		slog.Info("slash command interaction received", "guild_id", ic.GuildID, "channel_id", ic.ChannelID, "command", data.Name, "user_id", userID)
		deferred := false
		handler(discordpkg.SlashCommandEvent{
			GuildID:     ic.GuildID,
			ChannelID:   ic.ChannelID,
			CommandName: data.Name,
			UserID:      userID,
			UserName:    userName,
			Options:     options,
			Respond: func(content string) error {
				if deferred {
					_, err := s.InteractionResponseEdit(ic.Interaction, &discordgo.WebhookEdit{
						Content: &content,
					})
					return err
				}
				return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
					Type: discordgo.InteractionResponseChannelMessageWithSource,
					Data: &discordgo.InteractionResponseData{
						Content: content,
					},
				})
			},
			Defer: func() error {
				if deferred {
					return nil
				}
				if err := s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
					Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
				}); err != nil {
					return err
				}
				deferred = true
				return nil
			},
		})
	})
}

func (c *Client) RegisterGuildCreateHandler(handler func(discordpkg.GuildEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, gc *discordgo.GuildCreate) {
		if gc == nil || gc.Guild == nil || gc.ID == "" {
			return
		}
		handler(discordpkg.GuildEvent{GuildID: gc.ID, Name: gc.Name})
	})
}

func (c *Client) UpsertGuildSlashCommands(guildID string, defs []discordpkg.SlashCommandDefinition) error {
	appID := c.applicationID()
	if appID == "" {
		return fmt.Errorf("discord application id is not available")
	}
	existing, err := c.session.ApplicationCommands(appID, guildID)
	if err != nil {
		return err
	}
	existingByName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, cmd := range existing {
		if cmd == nil || cmd.Name == "" {
			continue
		}
		existingByName[cmd.Name] = cmd
	}
	for _, def := range defs {
		if err := c.commandLimiter.Wait(context.Background()); err != nil {
			return err
		}
		if err := c.upsertGuildSlashCommand(appID, guildID, def, existingByName); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) upsertGuildSlashCommand(appID, guildID string, def discordpkg.SlashCommandDefinition, existingByName map[string]*discordgo.ApplicationCommand) error {
	if def.Name == "" {
		return nil
	}
	payload := &discordgo.ApplicationCommand{
		Name:        def.Name,
		Description: def.Description,
		Options:     commandOptions(def),
	}
	cmd, ok := existingByName[def.Name]
	if !ok {
		_, err := c.session.ApplicationCommandCreate(appID, guildID, payload)
		return err
	}
	if commandUpToDate(cmd, payload) {
		return nil
	}
	_, err := c.session.ApplicationCommandEdit(appID, guildID, cmd.ID, payload)
	return err
}

func commandOptions(def discordpkg.SlashCommandDefinition) []*discordgo.ApplicationCommandOption {
	if len(def.Options) == 0 {
		return nil
	}
	options := make([]*discordgo.ApplicationCommandOption, 0, len(def.Options))
	for _, opt := range def.Options {
		options = append(options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        opt.Name,
			Description: opt.Description,
			Required:    opt.Required,
		})
	}
	return options
}

func commandUpToDate(existing, want *discordgo.ApplicationCommand) bool {
	if existing.Description != want.Description {
		return false
	}
	if len(existing.Options) != len(want.Options) {
		return false
	}
	for i, opt := range want.Options {
		have := existing.Options[i]
		if have == nil || have.Name != opt.Name || have.Description != opt.Description || have.Required != opt.Required {
			return false
		}
	}
	return true
}

func (c *Client) GetUserVoiceChannelID(guildID, userID string) (string, error) {
	if c.session == nil {
		return "", nil
	}
	if c.session.State != nil {
		vs, err := c.session.State.VoiceState(guildID, userID)
		if err == nil && vs != nil {
			return vs.ChannelID, nil
		}
		guild, err := c.session.State.Guild(guildID)
		if err == nil && guild != nil {
			for _, state := range guild.VoiceStates {
				if state != nil && state.UserID == userID {
					return state.ChannelID, nil
				}
			}
		}
	}

	// Cache may be cold right after bot startup; ask Discord API directly as fallback.
	vs, err := c.session.UserVoiceState(guildID, userID)
	if err != nil {
		if isRESTNotFound(err) {
			return "", nil
		}
		return "", err
	}
	if vs == nil {
		return "", nil
	}
	return vs.ChannelID, nil
}

func isRESTNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}

func (c *Client) JoinVoiceChannel(guildID, channelID string) (discordpkg.VoiceConnection, error) {
	c.voiceMu.Lock()
	defer c.voiceMu.Unlock()

	vc, err := c.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}
	conn, ok := c.conns[guildID]
	if ok {
		conn.replaceTransport(vc)
		return conn, nil
	}
	conn = newVoiceConnection(vc)
	c.conns[guildID] = conn
	return conn, nil
}

func (c *Client) ActiveVoiceConnection(guildID string) (discordpkg.VoiceConnection, bool) {
	c.voiceMu.Lock()
	defer c.voiceMu.Unlock()
	conn, ok := c.conns[guildID]
	if !ok {
		return nil, false
	}
	return conn, true
}

func (c *Client) applicationID() string {
	if c.session == nil || c.session.State == nil {
		return ""
	}
	if c.session.State.Application != nil && c.session.State.Application.ID != "" {
		return c.session.State.Application.ID
	}
	if c.session.State.User != nil {
		return c.session.State.User.ID
	}
	return ""
}
