// ABOUTME: Platform-neutral inbound event and outbound reply models
// ABOUTME: The transport bridge translates between these and the chat platform

package bot

import (
	"errors"

	"github.com/2389/archivist/internal/store"
)

// ErrUpstreamUnavailable indicates the chat platform rejected or failed a
// delivery call. Transports wrap their send errors with it so callers can
// surface a transient failure without retrying.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// EventKind discriminates inbound events
type EventKind int

const (
	// EventCommand is a slash command such as /start or /cancel
	EventCommand EventKind = iota
	// EventText is freeform text outside of a command
	EventText
	// EventMedia is an uploaded file of any media kind
	EventMedia
	// EventSelection is a button press carrying an encoded Action
	EventSelection
)

// Media describes an uploaded payload: the platform's opaque handle for
// the content plus its kind and optional caption
type Media struct {
	Kind    store.ArtifactKind
	Handle  string
	Caption string
}

// Event is one inbound interaction from a principal
type Event struct {
	Kind            EventKind
	PrincipalID     string
	PrincipalHandle string

	// Command holds the command name without the leading slash.
	// Set for EventCommand.
	Command string

	// Text holds the message body. Set for EventText.
	Text string

	// Media is set for EventMedia.
	Media *Media

	// Action is the decoded selection token. Set for EventSelection.
	Action *Action
}

// Button is one inline choice attached to a reply. Exactly one of
// Action and URL is set: Action buttons round-trip through ParseAction,
// URL buttons open externally and never reach the dispatcher.
type Button struct {
	Label  string
	Action string
	URL    string
}

// Delivery is an instruction to send stored content to the principal
type Delivery struct {
	Kind    store.ArtifactKind
	Handle  string
	URL     string
	Caption string
}

// Reply is the dispatcher's answer to one event
type Reply struct {
	Text     string
	Buttons  []Button
	Delivery *Delivery
}
