package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/go-hclog"
)

const (
	colorInfo  = 0x5865f2
	colorError = 0xf04747
)

// Command is a slash command: its definition, the member permissions it
// requires, and the callback producing the interaction response.
type Command interface {
	Definition() *discordgo.ApplicationCommand
	Permissions() *int64
	Handle(ctx context.Context, i *discordgo.Interaction) *discordgo.InteractionResponse
}

// deferrable is implemented by commands that may outlast Discord's
// acknowledgement window. They are acknowledged first and their response is
// edited in afterwards.
type deferrable interface {
	Deferred() bool
}

// CommandHost is the remote side commands are published to.
type CommandHost interface {
	CreateCommand(def *discordgo.ApplicationCommand) (string, error)
	DeleteCommands() error
	Respond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error
	// EditResponse replaces a deferred acknowledgement with the final response.
	EditResponse(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error
}

type commandHandler func(ctx context.Context, i *discordgo.Interaction) *discordgo.InteractionResponse

type registeredCommand struct {
	name     string
	handle   commandHandler
	deferred bool
}

// CommandRegistry maps remote command ids to callbacks. Every callback is
// wrapped so that interactions from outside the chat channel get an
// ephemeral refusal.
type CommandRegistry struct {
	host        CommandHost
	chatChannel string
	logger      hclog.Logger
	metrics     *bridgeMetrics

	mu       sync.RWMutex
	handlers map[string]registeredCommand
	defs     []*discordgo.ApplicationCommand
}

func NewCommandRegistry(host CommandHost, chatChannel string, logger hclog.Logger, metrics *bridgeMetrics) *CommandRegistry {
	return &CommandRegistry{
		host:        host,
		chatChannel: chatChannel,
		logger:      logger,
		metrics:     metrics,
		handlers:    make(map[string]registeredCommand),
	}
}

// RegisterAll replaces the dispatch table with the given commands. A command
// that fails to publish is skipped; the rest are still registered and all
// failures are returned joined.
func (r *CommandRegistry) RegisterAll(commands []Command) error {
	handlers := make(map[string]registeredCommand, len(commands))
	var defs []*discordgo.ApplicationCommand
	var errs []error

	for _, cmd := range commands {
		def := cmd.Definition()
		def.DefaultMemberPermissions = cmd.Permissions()

		id, err := r.host.CreateCommand(def)
		if err != nil {
			r.logger.Error("command registration failed", "command", def.Name, "error", err)
			errs = append(errs, fmt.Errorf("register /%s: %w", def.Name, err))
			continue
		}
		d, ok := cmd.(deferrable)
		handlers[id] = registeredCommand{name: def.Name, handle: r.scoped(cmd.Handle), deferred: ok && d.Deferred()}
		defs = append(defs, def)
		r.logger.Info("command registered", "command", def.Name, "id", id)
	}

	r.mu.Lock()
	r.handlers = handlers
	r.defs = defs
	r.mu.Unlock()

	return errors.Join(errs...)
}

// Dispatch routes an application command interaction to its callback and
// sends the response. Other interaction types and unknown ids are ignored.
func (r *CommandRegistry) Dispatch(ctx context.Context, i *discordgo.Interaction) error {
	if i.Type != discordgo.InteractionApplicationCommand {
		r.logger.Debug("ignoring interaction", "type", i.Type.String())
		return nil
	}
	data := i.ApplicationCommandData()

	r.mu.RLock()
	cmd, ok := r.handlers[data.ID]
	r.mu.RUnlock()
	if !ok {
		r.logger.Debug("unknown command id", "id", data.ID, "name", data.Name)
		return nil
	}

	r.metrics.interaction(cmd.name)
	if cmd.deferred && r.inScope(i) {
		return r.dispatchDeferred(ctx, cmd, i)
	}
	resp := cmd.handle(ctx, i)
	if err := r.host.Respond(i, resp); err != nil {
		return fmt.Errorf("respond to /%s: %w", cmd.name, err)
	}
	return nil
}

func (r *CommandRegistry) dispatchDeferred(ctx context.Context, cmd registeredCommand, i *discordgo.Interaction) error {
	ack := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource}
	if err := r.host.Respond(i, ack); err != nil {
		return fmt.Errorf("acknowledge /%s: %w", cmd.name, err)
	}
	if err := r.host.EditResponse(i, cmd.handle(ctx, i)); err != nil {
		return fmt.Errorf("edit response to /%s: %w", cmd.name, err)
	}
	return nil
}

// DeleteAll removes every remote command and clears the dispatch table.
func (r *CommandRegistry) DeleteAll() error {
	err := r.host.DeleteCommands()

	r.mu.Lock()
	r.handlers = make(map[string]registeredCommand)
	r.defs = nil
	r.mu.Unlock()

	if err != nil {
		return fmt.Errorf("delete commands: %w", err)
	}
	return nil
}

// Definitions returns the definitions registered by the last RegisterAll.
func (r *CommandRegistry) Definitions() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*discordgo.ApplicationCommand(nil), r.defs...)
}

func (r *CommandRegistry) scoped(next commandHandler) commandHandler {
	return func(ctx context.Context, i *discordgo.Interaction) *discordgo.InteractionResponse {
		if !r.inScope(i) {
			return ephemeral(messageResponse(fmt.Sprintf("This command can only be used in <#%s>.", r.chatChannel)))
		}
		return next(ctx, i)
	}
}

func (r *CommandRegistry) inScope(i *discordgo.Interaction) bool {
	return i.ChannelID == r.chatChannel
}

// commandDeps are the collaborators the built-in commands are constructed with.
type commandDeps struct {
	Console     Console
	Teleports   *TeleportStore
	Schematics  *SchematicStore
	Definitions func() []*discordgo.ApplicationCommand
}

func builtinCommands(deps commandDeps) []Command {
	return []Command{
		&helpCommand{definitions: deps.Definitions},
		&cmdCommand{console: deps.Console},
		&schematicCommand{store: deps.Schematics},
		&teleportPointCommand{store: deps.Teleports},
	}
}

func messageResponse(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:         content,
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		},
	}
}

func embedResponse(embed *discordgo.MessageEmbed) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:          []*discordgo.MessageEmbed{embed},
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		},
	}
}

func ephemeral(resp *discordgo.InteractionResponse) *discordgo.InteractionResponse {
	resp.Data.Flags |= discordgo.MessageFlagsEphemeral
	return resp
}

func errorResponse(title string, err error) *discordgo.InteractionResponse {
	return ephemeral(embedResponse(&discordgo.MessageEmbed{
		Title:       "⚠️ " + title,
		Description: err.Error(),
		Color:       colorError,
	}))
}

func offlineResponse() *discordgo.InteractionResponse {
	return ephemeral(embedResponse(&discordgo.MessageEmbed{
		Title:       "🔌 Server offline",
		Description: "The server console is not connected. Try again once the server is up.",
		Color:       colorError,
	}))
}

type commandOptions map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionsOf(opts []*discordgo.ApplicationCommandInteractionDataOption) commandOptions {
	m := make(commandOptions, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

// subcommand returns the invoked subcommand name and its options.
func subcommand(i *discordgo.Interaction) (string, commandOptions) {
	data := i.ApplicationCommandData()
	for _, o := range data.Options {
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			return o.Name, optionsOf(o.Options)
		}
	}
	return "", optionsOf(data.Options)
}

func (o commandOptions) String(name string) (string, bool) {
	opt, ok := o[name]
	if !ok {
		return "", false
	}
	s, ok := opt.Value.(string)
	return s, ok
}

// Int accepts the float64 produced by decoding gateway JSON as well as native ints.
func (o commandOptions) Int(name string) (int, bool) {
	opt, ok := o[name]
	if !ok {
		return 0, false
	}
	switch v := opt.Value.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}
