package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// fakeConsole answers commands from a reply table. err, when set, fails every command.
type fakeConsole struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	sent    []string
}

func (c *fakeConsole) Send(command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, command)
	if c.err != nil {
		return "", c.err
	}
	return c.replies[command], nil
}

func (c *fakeConsole) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *fakeConsole) SetErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

type reaction struct {
	MessageID string
	Emoji     string
}

type reply struct {
	MessageID string
	Text      string
}

type fakeChannel struct {
	mu        sync.Mutex
	inbound   chan InboundMessage
	notices   []Notice
	statuses  []ServerStatus
	reactions []reaction
	replies   []reply
	sendErr   error
	statusErr error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{inbound: make(chan InboundMessage, 10)}
}

func (c *fakeChannel) Name() string { return "Discord" }

func (c *fakeChannel) Send(_ context.Context, n Notice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.notices = append(c.notices, n)
	return nil
}

func (c *fakeChannel) SetStatus(_ context.Context, s ServerStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.statusErr != nil {
		return c.statusErr
	}
	c.statuses = append(c.statuses, s)
	return nil
}

func (c *fakeChannel) Messages() <-chan InboundMessage { return c.inbound }

func (c *fakeChannel) React(_ context.Context, msg InboundMessage, emoji string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactions = append(c.reactions, reaction{MessageID: msg.MessageID, Emoji: emoji})
	return nil
}

func (c *fakeChannel) Reply(_ context.Context, msg InboundMessage, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, reply{MessageID: msg.MessageID, Text: text})
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func (c *fakeChannel) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.notices...)
}

func (c *fakeChannel) Statuses() []ServerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ServerStatus(nil), c.statuses...)
}

func (c *fakeChannel) Reactions() []reaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]reaction(nil), c.reactions...)
}

func (c *fakeChannel) Replies() []reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]reply(nil), c.replies...)
}

// fakeHost records published commands and responses. Commands named in
// failNames are rejected.
type fakeHost struct {
	mu        sync.Mutex
	created   []*discordgo.ApplicationCommand
	failNames map[string]bool
	deleted   int
	deleteErr error
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.InteractionResponse
	nextID    int
}

func (h *fakeHost) CreateCommand(def *discordgo.ApplicationCommand) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failNames[def.Name] {
		return "", errors.New("rate limited")
	}
	h.nextID++
	h.created = append(h.created, def)
	return fmt.Sprintf("id-%d", h.nextID), nil
}

func (h *fakeHost) DeleteCommands() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted++
	return h.deleteErr
}

func (h *fakeHost) Respond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses = append(h.responses, resp)
	return nil
}

func (h *fakeHost) EditResponse(_ *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.edits = append(h.edits, resp)
	return nil
}

// stubCommand is a minimal Command for registry tests.
type stubCommand struct {
	name  string
	perm  *int64
	calls int
}

func (c *stubCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.name, Description: c.name + " command"}
}

func (c *stubCommand) Permissions() *int64 { return c.perm }

// deferredStub is a stubCommand that asks to be acknowledged before it runs.
type deferredStub struct {
	stubCommand
}

func (c *deferredStub) Deferred() bool { return true }

func (c *stubCommand) Handle(context.Context, *discordgo.Interaction) *discordgo.InteractionResponse {
	c.calls++
	return messageResponse("ran " + c.name)
}

func commandInteraction(channelID, commandID, name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: channelID,
		Data: discordgo.ApplicationCommandInteractionData{
			ID:      commandID,
			Name:    name,
			Options: opts,
		},
	}
}

func subcommandOption(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:    name,
		Type:    discordgo.ApplicationCommandOptionSubCommand,
		Options: opts,
	}
}

func stringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

// intOption uses float64 like options decoded from gateway JSON.
func intOption(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionInteger,
		Value: float64(value),
	}
}
