// ABOUTME: Matrix bridge for the archivist bot
// ABOUTME: Translates Matrix events to dispatcher events and renders replies

package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/archivist/internal/access"
	"github.com/2389/archivist/internal/bot"
	"github.com/2389/archivist/internal/config"
	"github.com/2389/archivist/internal/store"
)

// networkTimeout bounds outbound Matrix API calls
const networkTimeout = 30 * time.Second

// Bridge connects Matrix to the dispatcher.
type Bridge struct {
	cfg        *config.Config
	matrix     *mautrix.Client
	dispatcher *bot.Dispatcher
	logger     *slog.Logger

	// ctx is the parent context for message processing goroutines
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBridge creates a Matrix bridge over the given store.
func NewBridge(cfg *config.Config, st store.Store, logger *slog.Logger) (*Bridge, error) {
	client, err := mautrix.NewClient(cfg.Matrix.Homeserver, id.UserID(cfg.Matrix.UserID), cfg.Matrix.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	oracle := &roomOracle{client: client, logger: logger.With("component", "oracle")}
	gates := access.NewGatekeeper(st, cfg.Gates.CheckTimeout)

	return &Bridge{
		cfg:        cfg,
		matrix:     client,
		dispatcher: bot.New(st, gates, oracle, cfg.Admin),
		logger:     logger.With("component", "bridge"),
	}, nil
}

// Run starts the bridge and blocks until the context is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)
	defer b.cancel()

	syncer, ok := b.matrix.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", b.matrix.Syncer)
	}
	syncer.OnEventType(event.EventMessage, b.handleMessageEvent)

	b.logger.Info("connecting to matrix homeserver", "homeserver", b.cfg.Matrix.Homeserver)

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- b.matrix.SyncWithContext(b.ctx)
	}()

	b.logger.Info("archivist running")

	select {
	case <-ctx.Done():
		b.logger.Info("shutting down")
		b.cancel()
		return nil
	case err := <-syncErr:
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

// handleMessageEvent translates one incoming Matrix message
func (b *Bridge) handleMessageEvent(_ context.Context, evt *event.Event) {
	// Ignore our own messages
	if evt.Sender == id.UserID(b.cfg.Matrix.UserID) {
		return
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return
	}

	ev := b.translate(evt.Sender, content)
	if ev == nil {
		return
	}

	// Process in a goroutine to not block the sync loop
	go b.process(b.ctx, evt.RoomID, ev)
}

// translate maps Matrix message content onto a dispatcher event. Returns
// nil for message types the bot does not handle.
func (b *Bridge) translate(sender id.UserID, content *event.MessageEventContent) *bot.Event {
	principal := sender.String()

	switch content.MsgType {
	case event.MsgText:
		body := strings.TrimSpace(content.Body)
		if body == "" {
			return nil
		}

		// Selection tokens are sent back as bare text; Matrix has no
		// native button events
		if act, err := bot.ParseAction(body); err == nil {
			return &bot.Event{Kind: bot.EventSelection, PrincipalID: principal, Action: &act}
		}

		if strings.HasPrefix(body, "/") {
			return &bot.Event{
				Kind:            bot.EventCommand,
				PrincipalID:     principal,
				PrincipalHandle: principal,
				Command:         strings.TrimPrefix(strings.Fields(body)[0], "/"),
			}
		}

		return &bot.Event{Kind: bot.EventText, PrincipalID: principal, Text: body}

	case event.MsgImage, event.MsgVideo, event.MsgAudio, event.MsgFile:
		return &bot.Event{
			Kind:        bot.EventMedia,
			PrincipalID: principal,
			Media: &bot.Media{
				Kind:    mediaKind(content.MsgType),
				Handle:  string(content.URL),
				Caption: content.Body,
			},
		}
	}

	return nil
}

func mediaKind(t event.MessageType) store.ArtifactKind {
	switch t {
	case event.MsgImage:
		return store.KindPhoto
	case event.MsgVideo:
		return store.KindVideo
	case event.MsgAudio:
		return store.KindAudio
	}
	return store.KindDocument
}

// msgType maps a stored artifact kind back to a Matrix message type
func msgType(kind store.ArtifactKind) event.MessageType {
	switch kind {
	case store.KindPhoto:
		return event.MsgImage
	case store.KindVideo, store.KindAnimation:
		return event.MsgVideo
	case store.KindAudio:
		return event.MsgAudio
	}
	return event.MsgFile
}

func (b *Bridge) process(ctx context.Context, roomID id.RoomID, ev *bot.Event) {
	reply, err := b.dispatcher.Handle(ctx, ev)
	if err != nil {
		b.logger.Error("dispatch failed", "principal", ev.PrincipalID, "error", err)
		b.sendText(roomID, "Something went wrong. Please try again.")
		return
	}
	if reply == nil {
		return
	}

	if reply.Delivery != nil {
		if err := b.deliver(roomID, reply.Delivery); err != nil {
			b.logger.Error("delivery failed", "principal", ev.PrincipalID, "error", err)
			b.sendText(roomID, "Delivery failed. Please try again later.")
		}
		return
	}

	b.sendReply(roomID, reply)
}

// deliver sends stored content into the room. Failures are wrapped as
// upstream errors; the content stays retrievable for a later attempt.
func (b *Bridge) deliver(roomID id.RoomID, d *bot.Delivery) error {
	ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
	defer cancel()

	body := d.Caption
	if body == "" {
		body = string(d.Kind)
	}

	content := &event.MessageEventContent{
		MsgType: msgType(d.Kind),
		Body:    body,
		URL:     id.ContentURIString(d.Handle),
	}

	if _, err := b.matrix.SendMessageEvent(ctx, roomID, event.EventMessage, content); err != nil {
		return fmt.Errorf("%w: %v", bot.ErrUpstreamUnavailable, err)
	}
	return nil
}

// sendReply renders a reply with its buttons as a formatted message.
// Action buttons become tokens the user sends back; URL buttons become links.
func (b *Bridge) sendReply(roomID id.RoomID, reply *bot.Reply) {
	var plain, rich strings.Builder
	plain.WriteString(reply.Text)
	rich.WriteString(html.EscapeString(reply.Text))

	for _, btn := range reply.Buttons {
		if btn.URL != "" {
			fmt.Fprintf(&plain, "\n%s: %s", btn.Label, btn.URL)
			fmt.Fprintf(&rich, "<br/><a href=\"%s\">%s</a>", btn.URL, html.EscapeString(btn.Label))
		} else {
			fmt.Fprintf(&plain, "\n%s: send %s", btn.Label, btn.Action)
			fmt.Fprintf(&rich, "<br/>%s: send <code>%s</code>", html.EscapeString(btn.Label), btn.Action)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
	defer cancel()

	content := &event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          plain.String(),
		Format:        event.FormatHTML,
		FormattedBody: rich.String(),
	}
	if _, err := b.matrix.SendMessageEvent(ctx, roomID, event.EventMessage, content); err != nil {
		b.logger.Error("failed to send reply", "room", roomID.String(), "error", err)
	}
}

func (b *Bridge) sendText(roomID id.RoomID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
	defer cancel()

	if _, err := b.matrix.SendText(ctx, roomID, text); err != nil {
		b.logger.Error("failed to send message", "room", roomID.String(), "error", err)
	}
}

// roomOracle answers membership checks against the homeserver. Lookup
// failures surface as errors; the gatekeeper treats them as non-membership.
type roomOracle struct {
	client *mautrix.Client
	logger *slog.Logger
}

func (o *roomOracle) IsMember(ctx context.Context, channelRef, userID string) (bool, error) {
	roomID, err := o.resolveRoom(ctx, channelRef)
	if err != nil {
		return false, err
	}

	var member event.MemberEventContent
	err = o.client.StateEvent(ctx, roomID, event.StateMember, userID, &member)
	if err != nil {
		var httpErr mautrix.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsStatus(404) {
			return false, nil
		}
		return false, fmt.Errorf("membership lookup in %s: %w", channelRef, err)
	}

	return member.Membership == event.MembershipJoin, nil
}

// resolveRoom maps a channel reference to a room id. Only room ids and
// aliases resolve here; other reference forms fail closed upstream.
func (o *roomOracle) resolveRoom(ctx context.Context, channelRef string) (id.RoomID, error) {
	switch {
	case strings.HasPrefix(channelRef, "!"):
		return id.RoomID(channelRef), nil
	case strings.HasPrefix(channelRef, "#"):
		resp, err := o.client.ResolveAlias(ctx, id.RoomAlias(channelRef))
		if err != nil {
			return "", fmt.Errorf("resolving alias %s: %w", channelRef, err)
		}
		return resp.RoomID, nil
	}
	return "", fmt.Errorf("channel reference %q is not resolvable on this platform", channelRef)
}
