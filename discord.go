package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/go-hclog"
)

// ErrLoginFailure is returned by Open when the bot cannot log in.
var ErrLoginFailure = errors.New("discord login failed")

const (
	colorLogin  = 0x79b59a
	colorLogout = 0xf09090
	colorStart  = 0x43b581
	colorStop   = 0xf04747
)

// DiscordChannel is the bot session: it posts notices to the chat channel,
// forwards chat messages and dispatches slash commands.
type DiscordChannel struct {
	session    *discordgo.Session
	channelID  string
	guildID    string
	serverName string
	inbound    chan InboundMessage
	botUserID  string
	logger     hclog.Logger

	dispatch func(ctx context.Context, i *discordgo.Interaction) error
}

func NewDiscordChannel(cfg DiscordConfig, logger hclog.Logger) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discordgo session: %w", err)
	}

	dc := &DiscordChannel{
		session:    session,
		channelID:  cfg.ChatChannel,
		guildID:    cfg.GuildID,
		serverName: cfg.ServerName,
		inbound:    make(chan InboundMessage, 100),
		logger:     logger,
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	session.AddHandler(dc.onMessage)
	session.AddHandler(dc.onInteraction)

	return dc, nil
}

func (dc *DiscordChannel) Name() string { return "Discord" }

// HTTPClient is the session's HTTP client, reused for attachment downloads.
func (dc *DiscordChannel) HTTPClient() *http.Client { return dc.session.Client }

// OnInteraction sets the slash command dispatcher. Call before Open.
func (dc *DiscordChannel) OnInteraction(dispatch func(ctx context.Context, i *discordgo.Interaction) error) {
	dc.dispatch = dispatch
}

// Open connects to the gateway. Failure is fatal for the bot.
func (dc *DiscordChannel) Open() error {
	if err := dc.session.Open(); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailure, err)
	}
	dc.botUserID = dc.session.State.User.ID
	dc.logger.Info("discord bot connected", "user", dc.session.State.User.Username)
	return nil
}

func (dc *DiscordChannel) Close() error {
	return dc.session.Close()
}

func (dc *DiscordChannel) Messages() <-chan InboundMessage { return dc.inbound }

func (dc *DiscordChannel) Send(ctx context.Context, notice Notice) error {
	msg := formatNotice(notice)
	if msg == nil {
		return nil
	}
	msg.AllowedMentions = &discordgo.MessageAllowedMentions{}

	if _, err := dc.session.ChannelMessageSendComplex(dc.channelID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send to Discord: %w", err)
	}
	return nil
}

func (dc *DiscordChannel) SetStatus(_ context.Context, status ServerStatus) error {
	if err := dc.session.UpdateStatusComplex(presenceFor(dc.serverName, status)); err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	return nil
}

func (dc *DiscordChannel) React(ctx context.Context, msg InboundMessage, emoji string) error {
	if err := dc.session.MessageReactionAdd(msg.ChannelID, msg.MessageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("react to message %s: %w", msg.MessageID, err)
	}
	return nil
}

func (dc *DiscordChannel) Reply(ctx context.Context, msg InboundMessage, text string) error {
	ref := &discordgo.MessageReference{MessageID: msg.MessageID, ChannelID: msg.ChannelID}
	if _, err := dc.session.ChannelMessageSendReply(msg.ChannelID, text, ref, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("reply to message %s: %w", msg.MessageID, err)
	}
	return nil
}

// CreateCommand publishes a slash command to the configured guild (global
// when no guild is set) and returns its id.
func (dc *DiscordChannel) CreateCommand(def *discordgo.ApplicationCommand) (string, error) {
	created, err := dc.session.ApplicationCommandCreate(dc.session.State.User.ID, dc.guildID, def)
	if err != nil {
		return "", fmt.Errorf("create command %s: %w", def.Name, err)
	}
	return created.ID, nil
}

// DeleteCommands removes every slash command the bot has published.
func (dc *DiscordChannel) DeleteCommands() error {
	appID := dc.session.State.User.ID
	commands, err := dc.session.ApplicationCommands(appID, dc.guildID)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}
	var errs []error
	for _, cmd := range commands {
		if err := dc.session.ApplicationCommandDelete(appID, dc.guildID, cmd.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete command %s: %w", cmd.Name, err))
			continue
		}
		dc.logger.Info("command deleted", "command", cmd.Name)
	}
	return errors.Join(errs...)
}

func (dc *DiscordChannel) Respond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	return dc.session.InteractionRespond(i, resp)
}

func (dc *DiscordChannel) EditResponse(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	_, err := dc.session.InteractionResponseEdit(i, webhookEdit(resp))
	return err
}

// webhookEdit carries a response's content and embeds over to an edit of the
// original interaction message. Flags cannot change after acknowledgement.
func webhookEdit(resp *discordgo.InteractionResponse) *discordgo.WebhookEdit {
	edit := &discordgo.WebhookEdit{AllowedMentions: &discordgo.MessageAllowedMentions{}}
	if resp == nil || resp.Data == nil {
		return edit
	}
	if resp.Data.Content != "" {
		content := resp.Data.Content
		edit.Content = &content
	}
	if len(resp.Data.Embeds) > 0 {
		embeds := resp.Data.Embeds
		edit.Embeds = &embeds
	}
	return edit
}

func (dc *DiscordChannel) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	if dc.dispatch == nil {
		return
	}
	if err := dc.dispatch(context.Background(), ic.Interaction); err != nil {
		dc.logger.Warn("interaction failed", "error", err)
	}
}

func (dc *DiscordChannel) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == dc.botUserID {
		return
	}
	if m.ChannelID != dc.channelID {
		return
	}
	if m.Content == "" && len(m.Attachments) == 0 {
		return
	}

	author := m.Author.GlobalName
	if m.Member != nil && m.Member.Nick != "" {
		author = m.Member.Nick
	}
	if author == "" {
		author = m.Author.Username
	}

	msg := InboundMessage{
		Source:    "Discord",
		Author:    author,
		Content:   m.Content,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
	}
	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, Attachment{Name: a.Filename, URL: a.URL, Size: a.Size})
	}

	select {
	case dc.inbound <- msg:
	default:
		dc.logger.Warn("inbound queue full, dropping message", "author", author)
	}
}

// formatNotice renders a notice as a Discord message, or nil when the event
// has no Discord rendering.
func formatNotice(n Notice) *discordgo.MessageSend {
	switch e := n.Event.(type) {
	case PlayerChat:
		return &discordgo.MessageSend{Content: fmt.Sprintf("<%s> %s", e.Name, e.Message)}

	case PlayerAction:
		embed := &discordgo.MessageEmbed{
			Description: fmt.Sprintf("`%s` logged in", e.Name),
			Color:       colorLogin,
		}
		if e.Kind == ActionLogout {
			embed.Description = fmt.Sprintf("`%s` logged out", e.Name)
			embed.Color = colorLogout
		}
		if n.Players != nil {
			embed.Fields = []*discordgo.MessageEmbedField{
				{Name: "Online", Value: formatUsers(n.Players.Users), Inline: true},
				{Name: "Players", Value: n.Players.Count + "/" + n.Players.Max, Inline: true},
			}
		}
		return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}

	case ServerLifecycle:
		embed := &discordgo.MessageEmbed{Title: "Server started", Color: colorStart}
		if e.Kind == LifecycleStop {
			embed.Title = "Server stopped"
			embed.Color = colorStop
		}
		return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
	}
	return nil
}

func formatUsers(users []string) string {
	if len(users) == 0 {
		return "-"
	}
	quoted := make([]string, len(users))
	for i, u := range users {
		quoted[i] = "`" + u + "`"
	}
	return strings.Join(quoted, ", ")
}

func presenceFor(serverName string, status ServerStatus) discordgo.UpdateStatusData {
	if !status.Online {
		return discordgo.UpdateStatusData{
			Status:     string(discordgo.StatusDoNotDisturb),
			Activities: []*discordgo.Activity{{Name: serverName + " offline", Type: discordgo.ActivityTypeWatching}},
		}
	}
	name := serverName
	if status.Players != nil {
		name = fmt.Sprintf("%s (%s/%s players)", serverName, status.Players.Count, status.Players.Max)
	}
	return discordgo.UpdateStatusData{
		Status:     string(discordgo.StatusOnline),
		Activities: []*discordgo.Activity{{Name: name, Type: discordgo.ActivityTypeGame}},
	}
}
