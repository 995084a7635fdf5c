package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type fakeDownloader struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (d *fakeDownloader) Download(_ context.Context, name, url string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names = append(d.names, name)
	if d.err != nil {
		return 0, d.err
	}
	return 2048, nil
}

const listReply = "There are 2 of a max of 20 players online: Alice, Bob"

func newTestBridge(console *fakeConsole, ch *fakeChannel, allowed func(string) bool) (*Bridge, *fakeDownloader) {
	dl := &fakeDownloader{}
	return NewBridge(console, dl, []Channel{ch}, allowed, hclog.NewNullLogger(), nil), dl
}

func TestBridge_ChatIsForwardedAsNotice(t *testing.T) {
	ch := newFakeChannel()
	console := &fakeConsole{}
	b, _ := newTestBridge(console, ch, nil)

	b.dispatchEvent(context.Background(), PlayerChat{Name: "Alice", Message: "hello"})

	assert.Equal(t, []Notice{{Event: PlayerChat{Name: "Alice", Message: "hello"}}}, ch.Notices())
	assert.Empty(t, console.Sent(), "chat needs no console round trip")
}

func TestBridge_PlayerActionIncludesPlayerList(t *testing.T) {
	ch := newFakeChannel()
	console := &fakeConsole{replies: map[string]string{"list": listReply}}
	b, _ := newTestBridge(console, ch, nil)

	b.dispatchEvent(context.Background(), PlayerAction{Name: "Bob", Kind: ActionLogin})

	notices := ch.Notices()
	require.Len(t, notices, 1)
	require.NotNil(t, notices[0].Players)
	assert.Equal(t, PlayerList{Count: "2", Max: "20", Users: []string{"Alice", "Bob"}}, *notices[0].Players)
	assert.Equal(t, []string{"list"}, console.Sent())
}

func TestBridge_PlayerActionWithoutConsoleStillPosts(t *testing.T) {
	ch := newFakeChannel()
	b, _ := newTestBridge(&fakeConsole{err: ErrNotConnected}, ch, nil)

	b.dispatchEvent(context.Background(), PlayerAction{Name: "Bob", Kind: ActionLogout})

	notices := ch.Notices()
	require.Len(t, notices, 1)
	assert.Nil(t, notices[0].Players)
}

func TestBridge_LifecycleUpdatesStatus(t *testing.T) {
	ch := newFakeChannel()
	b, _ := newTestBridge(&fakeConsole{}, ch, nil)

	b.dispatchEvent(context.Background(), ServerLifecycle{Kind: LifecycleStart})
	b.dispatchEvent(context.Background(), ServerLifecycle{Kind: LifecycleStop})

	assert.Equal(t, []ServerStatus{{Online: true}, {Online: false}}, ch.Statuses())
	assert.Len(t, ch.Notices(), 2)
}

func TestBridge_EventFilter(t *testing.T) {
	ch := newFakeChannel()
	b, _ := newTestBridge(&fakeConsole{}, ch, func(eventType string) bool { return eventType == "chat" })

	b.dispatchEvent(context.Background(), ServerLifecycle{Kind: LifecycleStart})
	b.dispatchEvent(context.Background(), PlayerChat{Name: "A", Message: "m"})

	require.Len(t, ch.Notices(), 1)
	assert.Empty(t, ch.Statuses())
}

func TestBridge_SendFailureDoesNotStopFanOut(t *testing.T) {
	ch := newFakeChannel()
	ch.sendErr = errors.New("discord down")
	b, _ := newTestBridge(&fakeConsole{}, ch, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.FanOutEvents(ctx)
		close(done)
	}()

	sub := &BridgeSubscriber{events: b.Events()}
	sub.OnLogEvent(PlayerChat{Name: "A", Message: "1"})

	ch.mu.Lock()
	ch.sendErr = nil
	ch.mu.Unlock()
	require.Eventually(t, func() bool {
		sub.OnLogEvent(PlayerChat{Name: "A", Message: "2"})
		return len(ch.Notices()) > 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestBridgeSubscriber_DropsWhenFull(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	metrics, err := newBridgeMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	events := make(chan LogEvent, 1)
	sub := &BridgeSubscriber{events: events, logger: hclog.NewNullLogger(), metrics: metrics}

	sub.OnLogEvent(PlayerChat{Name: "a", Message: "1"})
	assert.NotPanics(t, func() { sub.OnLogEvent(PlayerChat{Name: "a", Message: "2"}) })
	sub.OnLogEvent(PlayerAction{Name: "a", Kind: ActionLogout})
	assert.Len(t, events, 1)

	got := collectMetrics(t, reader)
	assert.Equal(t, map[string]int64{"chat": 1, "logout": 1}, sumByAttr(t, got["bridge.events_dropped"], "type"))
}

func TestBridge_SubscriberFeedsEvents(t *testing.T) {
	b, _ := newTestBridge(&fakeConsole{}, newFakeChannel(), nil)
	sub := b.Subscriber()
	require.NotNil(t, sub.logger)

	sub.OnLogEvent(ServerLifecycle{Kind: LifecycleStart})
	assert.Equal(t, ServerLifecycle{Kind: LifecycleStart}, <-b.events)
}

func TestBridge_InboundChatBecomesTellraw(t *testing.T) {
	ch := newFakeChannel()
	console := &fakeConsole{}
	b, _ := newTestBridge(console, ch, nil)

	b.handleMessage(context.Background(), ch, InboundMessage{
		Source: "Discord", Author: "Carol", Content: `say "hi" \o/`, ChannelID: "c", MessageID: "m1",
	})

	assert.Equal(t,
		[]string{`tellraw @a ["",{"text":"[Discord] ","color":"blue"},{"text":"<Carol> say \"hi\" \\o/"}]`},
		console.Sent())
	assert.Empty(t, ch.Reactions())
}

func TestBridge_InboundChatFailureReacts(t *testing.T) {
	ch := newFakeChannel()
	b, _ := newTestBridge(&fakeConsole{err: ErrNotConnected}, ch, nil)

	b.handleMessage(context.Background(), ch, InboundMessage{Source: "Discord", Author: "Carol", Content: "hi", MessageID: "m1"})

	assert.Equal(t, []reaction{{MessageID: "m1", Emoji: "⚠️"}}, ch.Reactions())
}

func TestBridge_InboundChatIsTruncated(t *testing.T) {
	ch := newFakeChannel()
	console := &fakeConsole{}
	b, _ := newTestBridge(console, ch, nil)

	b.handleMessage(context.Background(), ch, InboundMessage{Source: "Discord", Author: "A", Content: strings.Repeat("あ", 300)})

	sent := console.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], strings.Repeat("あ", maxRelayedChat)+"...")
	assert.NotContains(t, sent[0], strings.Repeat("あ", maxRelayedChat+1))
}

func TestBridge_SchematicAttachmentsAreUploaded(t *testing.T) {
	ch := newFakeChannel()
	console := &fakeConsole{}
	b, dl := newTestBridge(console, ch, nil)

	b.handleMessage(context.Background(), ch, InboundMessage{
		Source: "Discord", Author: "A", MessageID: "m1",
		Attachments: []Attachment{
			{Name: "house.schem", URL: "https://cdn/house.schem"},
			{Name: "photo.png", URL: "https://cdn/photo.png"},
		},
	})

	assert.Equal(t, []string{"house.schem"}, dl.names)
	assert.Empty(t, console.Sent(), "attachment-only message relays no chat")
	replies := ch.Replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "m1", replies[0].MessageID)
	assert.Contains(t, replies[0].Text, "Uploaded `house.schem` (2.0 KiB)")
}

func TestBridge_SchematicUploadFailureIsReported(t *testing.T) {
	ch := newFakeChannel()
	b, dl := newTestBridge(&fakeConsole{}, ch, nil)
	dl.err = errors.New("download house.schem: 403 Forbidden")

	b.handleMessage(context.Background(), ch, InboundMessage{
		Author: "A", MessageID: "m1", Attachments: []Attachment{{Name: "house.schem", URL: "u"}},
	})

	replies := ch.Replies()
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "Could not upload `house.schem`")
	assert.Contains(t, replies[0].Text, "403")
}

func TestBridge_HandleInboundLoop(t *testing.T) {
	ch := newFakeChannel()
	console := &fakeConsole{}
	b, _ := newTestBridge(console, ch, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.HandleInbound(ctx, ch)
		close(done)
	}()

	ch.inbound <- InboundMessage{Source: "Discord", Author: "A", Content: "one"}
	ch.inbound <- InboundMessage{Source: "Discord", Author: "A", Content: "two"}
	require.Eventually(t, func() bool { return len(console.Sent()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, console.Sent()[0], "one")
	assert.Contains(t, console.Sent()[1], "two")

	cancel()
	<-done
}
