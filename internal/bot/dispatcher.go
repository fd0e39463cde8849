// ABOUTME: Dispatcher - routes inbound events to browsing, retrieval, and admin flows
// ABOUTME: Owns the per-principal sessions and the explicit authorization check

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/archivist/internal/access"
	"github.com/2389/archivist/internal/catalog"
	"github.com/2389/archivist/internal/config"
	"github.com/2389/archivist/internal/session"
	"github.com/2389/archivist/internal/store"
)

// Dispatcher turns inbound events into replies. It is safe for concurrent
// use; per-principal workflow state lives in the session manager.
type Dispatcher struct {
	store    store.Store
	tree     *catalog.Tree
	resolver *catalog.Resolver
	gates    *access.Gatekeeper
	sessions *session.Manager
	admin    config.AdminConfig
	oracle   access.MembershipOracle
	logger   *slog.Logger
}

// New creates a Dispatcher over the given store and gatekeeper. The oracle
// answers channel membership lookups during retrieval.
func New(st store.Store, gates *access.Gatekeeper, oracle access.MembershipOracle, adminCfg config.AdminConfig) *Dispatcher {
	return &Dispatcher{
		store:    st,
		tree:     catalog.NewTree(st),
		resolver: catalog.NewResolver(st),
		gates:    gates,
		sessions: session.NewManager(),
		admin:    adminCfg,
		oracle:   oracle,
		logger:   slog.Default().With("component", "dispatcher"),
	}
}

// Handle processes one inbound event. A nil reply with a nil error means
// the event was intentionally ignored. A non-nil error is an internal
// failure; the transport renders a generic apology.
func (d *Dispatcher) Handle(ctx context.Context, ev *Event) (*Reply, error) {
	sess := d.sessions.Get(ev.PrincipalID)

	switch ev.Kind {
	case EventCommand:
		return d.handleCommand(ctx, ev, sess)
	case EventSelection:
		return d.handleSelection(ctx, ev, sess)
	case EventText, EventMedia:
		return d.handleWorkflowInput(ctx, ev, sess)
	}
	return nil, fmt.Errorf("unhandled event kind %d", ev.Kind)
}

func (d *Dispatcher) handleCommand(ctx context.Context, ev *Event, sess *session.Session) (*Reply, error) {
	switch ev.Command {
	case "start":
		user := &store.User{ID: ev.PrincipalID, Handle: ev.PrincipalHandle}
		if err := d.store.UpsertUser(ctx, user); err != nil {
			return nil, fmt.Errorf("registering user: %w", err)
		}
		sess.Cancel()
		return &Reply{
			Text: "Welcome to the archive. Browse the catalog or log in to manage it.",
			Buttons: []Button{
				{Label: "Browse", Action: Action{Kind: ActionShowMenus}.Encode()},
				{Label: "Admin login", Action: Action{Kind: ActionAdminLogin}.Encode()},
			},
		}, nil

	case "cancel":
		if sess.State() == session.StateIdle {
			return &Reply{Text: "Nothing to cancel."}, nil
		}
		sess.Cancel()
		return &Reply{Text: "Cancelled."}, nil
	}

	return &Reply{Text: "Unknown command. Use /start."}, nil
}

func (d *Dispatcher) handleSelection(ctx context.Context, ev *Event, sess *session.Session) (*Reply, error) {
	if ev.Action == nil {
		return nil, errors.New("selection event without an action")
	}
	act := *ev.Action

	// Browsing and the login entry are open to everyone
	switch act.Kind {
	case ActionShowMenus:
		return d.showRoots(ctx)
	case ActionOpenMenu:
		return d.showMenu(ctx, act.MenuID)
	case ActionGetArtifact:
		return d.retrieve(ctx, ev.PrincipalID, act.Token)
	case ActionAdminLogin:
		return d.beginLogin(ctx, ev.PrincipalID, sess)
	}

	ok, err := d.isAdmin(ctx, ev.PrincipalID, sess)
	if err != nil {
		return nil, err
	}
	if !ok {
		d.logger.Warn("rejected admin action", "principal", ev.PrincipalID, "action", act.Encode())
		return &Reply{
			Text:    "You need to log in first.",
			Buttons: []Button{{Label: "Admin login", Action: Action{Kind: ActionAdminLogin}.Encode()}},
		}, nil
	}

	return d.handleAdminSelection(ctx, act, sess)
}

// isAdmin grants access to principals on the persistent allow list or
// with an authenticated session
func (d *Dispatcher) isAdmin(ctx context.Context, principalID string, sess *session.Session) (bool, error) {
	if sess.Authenticated() {
		return true, nil
	}
	ok, err := d.store.IsAdmin(ctx, principalID)
	if err != nil {
		return false, fmt.Errorf("checking admin status: %w", err)
	}
	return ok, nil
}

func (d *Dispatcher) beginLogin(ctx context.Context, principalID string, sess *session.Session) (*Reply, error) {
	ok, err := d.isAdmin(ctx, principalID, sess)
	if err != nil {
		return nil, err
	}
	if ok {
		return d.adminPanel("Admin panel."), nil
	}

	if err := sess.Begin(session.StateLoginUsername); err != nil {
		return &Reply{Text: "Finish the current operation first, or use /cancel."}, nil
	}
	return &Reply{Text: "Enter the admin username:"}, nil
}

func (d *Dispatcher) adminPanel(text string) *Reply {
	return &Reply{
		Text: text,
		Buttons: []Button{
			{Label: "Add menu", Action: Action{Kind: ActionAddMenu}.Encode()},
			{Label: "Rename menu", Action: Action{Kind: ActionEditMenu}.Encode()},
			{Label: "Delete menu", Action: Action{Kind: ActionDeleteMenu}.Encode()},
			{Label: "Upload file", Action: Action{Kind: ActionUploadArtifact}.Encode()},
			{Label: "Add link", Action: Action{Kind: ActionAddLink}.Encode()},
			{Label: "Gates", Action: Action{Kind: ActionManageGates}.Encode()},
			{Label: "Users", Action: Action{Kind: ActionShowUsers}.Encode()},
			{Label: "Browse", Action: Action{Kind: ActionShowMenus}.Encode()},
		},
	}
}

func (d *Dispatcher) showRoots(ctx context.Context) (*Reply, error) {
	menus, err := d.tree.ListRoots(ctx)
	if err != nil {
		return nil, err
	}
	if len(menus) == 0 {
		return &Reply{Text: "The catalog is empty."}, nil
	}

	reply := &Reply{Text: "Catalog:"}
	for _, m := range menus {
		reply.Buttons = append(reply.Buttons, Button{
			Label:  m.Name,
			Action: Action{Kind: ActionOpenMenu, MenuID: m.ID}.Encode(),
		})
	}
	return reply, nil
}

func (d *Dispatcher) showMenu(ctx context.Context, menuID int64) (*Reply, error) {
	menu, err := d.store.GetMenu(ctx, menuID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &Reply{Text: "That menu no longer exists."}, nil
		}
		return nil, err
	}

	children, err := d.tree.ListChildren(ctx, menuID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &Reply{Text: "That menu no longer exists."}, nil
		}
		return nil, err
	}

	reply := &Reply{Text: menu.Name + ":"}
	for _, m := range children.Menus {
		reply.Buttons = append(reply.Buttons, Button{
			Label:  m.Name,
			Action: Action{Kind: ActionOpenMenu, MenuID: m.ID}.Encode(),
		})
	}
	for _, a := range children.Artifacts {
		reply.Buttons = append(reply.Buttons, artifactButton(a))
	}
	if len(reply.Buttons) == 0 {
		reply.Text = menu.Name + " is empty."
	}
	return reply, nil
}

// artifactButton renders a link artifact as a URL button and everything
// else as a retrieval action carrying the opaque access token
func artifactButton(a *store.Artifact) Button {
	label := a.Caption
	if label == "" {
		label = string(a.Kind)
	}
	if a.Kind.IsLink() {
		return Button{Label: label, URL: a.URL}
	}
	return Button{Label: label, Action: Action{Kind: ActionGetArtifact, Token: a.AccessToken}.Encode()}
}

func (d *Dispatcher) retrieve(ctx context.Context, principalID, token string) (*Reply, error) {
	decision, err := d.gates.Check(ctx, principalID, d.oracle)
	if err != nil {
		return nil, err
	}

	if !decision.Satisfied {
		d.logger.Info("retrieval denied", "principal", principalID, "gate_id", decision.FailedGate.ID)
		reply := &Reply{Text: "Join the required channels first, then try again."}
		for _, gate := range decision.Gates {
			if u := joinLink(gate.ChannelRef); u != "" {
				reply.Buttons = append(reply.Buttons, Button{Label: gate.ChannelRef, URL: u})
			} else {
				reply.Text += "\n• " + gate.ChannelRef
			}
		}
		reply.Buttons = append(reply.Buttons, Button{
			Label:  "Try again",
			Action: Action{Kind: ActionGetArtifact, Token: token}.Encode(),
		})
		return reply, nil
	}

	artifact, err := d.resolver.ResolveByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &Reply{Text: "That file is no longer available."}, nil
		}
		return nil, err
	}

	if artifact.Kind.IsLink() {
		label := artifact.Caption
		if label == "" {
			label = "Open link"
		}
		return &Reply{
			Text:    "Here you go:",
			Buttons: []Button{{Label: label, URL: artifact.URL}},
		}, nil
	}

	return &Reply{
		Delivery: &Delivery{
			Kind:    artifact.Kind,
			Handle:  artifact.Handle,
			Caption: artifact.Caption,
		},
	}, nil
}

// joinLink builds a public join URL for a channel reference where one
// exists. Numeric broadcast ids have no public link.
func joinLink(ref string) string {
	switch {
	case strings.HasPrefix(ref, "!"), strings.HasPrefix(ref, "#"):
		return "https://matrix.to/#/" + ref
	case strings.HasPrefix(ref, "@"):
		return "https://t.me/" + strings.TrimPrefix(ref, "@")
	}
	return ""
}
