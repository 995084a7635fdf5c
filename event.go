package main

// LogEvent is a domain event parsed from one server log line.
// A nil LogEvent means the line carried nothing of interest.
type LogEvent interface {
	// Type is one of "chat", "login", "logout", "start", "stop".
	Type() string
	logEvent()
}

// PlayerChat is a chat message typed in game.
type PlayerChat struct {
	Name    string
	Message string
}

func (PlayerChat) Type() string { return "chat" }
func (PlayerChat) logEvent()    {}

type ActionKind int

const (
	ActionLogin ActionKind = iota + 1
	ActionLogout
)

func (k ActionKind) String() string {
	switch k {
	case ActionLogin:
		return "login"
	case ActionLogout:
		return "logout"
	default:
		return "unknown"
	}
}

// PlayerAction is a player joining or leaving the server.
type PlayerAction struct {
	Name string
	Kind ActionKind
}

func (e PlayerAction) Type() string { return e.Kind.String() }
func (PlayerAction) logEvent()      {}

type LifecycleKind int

const (
	LifecycleStart LifecycleKind = iota + 1
	LifecycleStop
)

func (k LifecycleKind) String() string {
	switch k {
	case LifecycleStart:
		return "start"
	case LifecycleStop:
		return "stop"
	default:
		return "unknown"
	}
}

// ServerLifecycle marks the server finishing startup or beginning shutdown.
type ServerLifecycle struct {
	Kind LifecycleKind
}

func (e ServerLifecycle) Type() string { return e.Kind.String() }
func (ServerLifecycle) logEvent()      {}

// Notice is what the Bridge hands to a Channel for one event.
type Notice struct {
	Event   LogEvent
	Players *PlayerList // set for player actions when the list command succeeded
}

// Attachment is a file attached to an inbound chat message.
type Attachment struct {
	Name string
	URL  string
	Size int
}

// InboundMessage represents a message from an external channel destined for Minecraft.
type InboundMessage struct {
	Source      string // Channel name (e.g., "Discord")
	Author      string
	Content     string
	ChannelID   string
	MessageID   string
	Attachments []Attachment
}

// LogSubscriber receives parsed events from the LogTailer.
type LogSubscriber interface {
	OnLogEvent(event LogEvent)
}
