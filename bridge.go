package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorcon/rcon"
	"github.com/hashicorp/go-hclog"
)

// maxRelayedChat caps the chat text relayed into the game.
const maxRelayedChat = 256

// BridgeSubscriber forwards LogEvents to the Bridge's event channel.
type BridgeSubscriber struct {
	events  chan<- LogEvent
	logger  hclog.Logger
	metrics *bridgeMetrics
}

func (s *BridgeSubscriber) OnLogEvent(event LogEvent) {
	select {
	case s.events <- event:
	default:
		// Drop event if channel is full (avoid blocking log tailer)
		s.metrics.eventDropped(event.Type())
		if s.logger != nil {
			s.logger.Warn("bridge queue full, dropping log event", "type", event.Type())
		}
	}
}

type schematicDownloader interface {
	Download(ctx context.Context, name, url string) (int64, error)
}

// Bridge fans out LogEvents to all channels and relays inbound chat into the game.
type Bridge struct {
	console    Console
	schematics schematicDownloader
	channels   []Channel
	events     chan LogEvent
	allowed    func(eventType string) bool
	logger     hclog.Logger
	metrics    *bridgeMetrics
}

func NewBridge(console Console, schematics schematicDownloader, channels []Channel, allowed func(string) bool,
	logger hclog.Logger, metrics *bridgeMetrics) *Bridge {
	if allowed == nil {
		allowed = func(string) bool { return true }
	}
	return &Bridge{
		console:    console,
		schematics: schematics,
		channels:   channels,
		events:     make(chan LogEvent, 100),
		allowed:    allowed,
		logger:     logger,
		metrics:    metrics,
	}
}

// Events returns the event channel for subscribers to write to.
func (b *Bridge) Events() chan<- LogEvent {
	return b.events
}

// Subscriber returns a LogSubscriber feeding this bridge.
func (b *Bridge) Subscriber() *BridgeSubscriber {
	return &BridgeSubscriber{events: b.events, logger: b.logger, metrics: b.metrics}
}

// FanOutEvents reads events and sends them to all channels.
func (b *Bridge) FanOutEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.events:
			b.dispatchEvent(ctx, event)
		}
	}
}

func (b *Bridge) dispatchEvent(ctx context.Context, event LogEvent) {
	b.metrics.logEvent(event.Type())
	if !b.allowed(event.Type()) {
		return
	}

	notice := Notice{Event: event}
	switch e := event.(type) {
	case PlayerAction:
		if players, ok := b.onlinePlayers(); ok {
			notice.Players = &players
		}
	case ServerLifecycle:
		status := ServerStatus{Online: e.Kind == LifecycleStart}
		for _, ch := range b.channels {
			if err := ch.SetStatus(ctx, status); err != nil {
				b.logger.Warn("set status", "channel", ch.Name(), "error", err)
			}
		}
	}

	for _, ch := range b.channels {
		if err := ch.Send(ctx, notice); err != nil {
			b.logger.Warn("send notice", "channel", ch.Name(), "type", event.Type(), "error", err)
			continue
		}
		if _, ok := event.(PlayerChat); ok {
			b.metrics.relayed("to_" + strings.ToLower(ch.Name()))
		}
	}
}

// onlinePlayers asks the console for the player list.
func (b *Bridge) onlinePlayers() (PlayerList, bool) {
	resp, err := b.console.Send("list")
	if err != nil {
		b.logger.Debug("player list unavailable", "error", err)
		return PlayerList{}, false
	}
	players, ok := ParsePlayerList(resp)
	if !ok {
		b.logger.Debug("unexpected list reply", "reply", resp)
	}
	return players, ok
}

// HandleInbound reads messages from a channel and relays them into the game.
func (b *Bridge) HandleInbound(ctx context.Context, ch Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch.Messages():
			b.handleMessage(ctx, ch, msg)
		}
	}
}

func (b *Bridge) handleMessage(ctx context.Context, ch Channel, msg InboundMessage) {
	for _, a := range msg.Attachments {
		if !IsSchematicFile(a.Name) {
			continue
		}
		b.uploadSchematic(ctx, ch, msg, a)
	}

	if strings.TrimSpace(msg.Content) == "" {
		return
	}
	if _, err := b.console.Send(chatTellraw(msg)); err != nil {
		b.logger.Warn("relay chat to minecraft", "author", msg.Author, "error", err)
		if err := ch.React(ctx, msg, "⚠️"); err != nil {
			b.logger.Debug("react", "error", err)
		}
		return
	}
	b.metrics.relayed("to_minecraft")
}

func (b *Bridge) uploadSchematic(ctx context.Context, ch Channel, msg InboundMessage, a Attachment) {
	var reply string
	n, err := b.schematics.Download(ctx, a.Name, a.URL)
	if err != nil {
		b.logger.Warn("schematic upload failed", "name", a.Name, "error", err)
		reply = fmt.Sprintf("⚠️ Could not upload `%s`: %v", a.Name, err)
	} else {
		reply = fmt.Sprintf("📥 Uploaded `%s` (%s) to the server.", a.Name, humanSize(n))
	}
	if err := ch.Reply(ctx, msg, reply); err != nil {
		b.logger.Debug("reply", "error", err)
	}
}

// chatTellraw renders an inbound chat message as a tellraw broadcast:
// a blue source tag followed by "<author> text". The text is shortened until
// the command fits in rcon.MaxCommandLen bytes.
func chatTellraw(msg InboundMessage) string {
	limit := maxRelayedChat
	for {
		cmd := tellraw("@a",
			textComponent{Text: "[" + msg.Source + "] ", Color: "blue"},
			textComponent{Text: fmt.Sprintf("<%s> %s", msg.Author, truncateRunes(msg.Content, limit))},
		)
		over := len(cmd) - rcon.MaxCommandLen
		if over <= 0 || limit == 0 {
			return cmd
		}
		// a rune costs at most 6 bytes once JSON-escaped
		limit = max(limit-max(over/6, 1), 0)
	}
}
