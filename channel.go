package main

import "context"

// ServerStatus is what a channel shows as the server's presence.
type ServerStatus struct {
	Online  bool
	Players *PlayerList
}

// Channel abstracts an external chat platform the bridge talks to.
type Channel interface {
	Name() string
	Send(ctx context.Context, notice Notice) error
	SetStatus(ctx context.Context, status ServerStatus) error
	Messages() <-chan InboundMessage
	React(ctx context.Context, msg InboundMessage, emoji string) error
	Reply(ctx context.Context, msg InboundMessage, text string) error
	Close() error
}
