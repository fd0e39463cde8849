// ABOUTME: Admin workflow handlers - login and multi-step content mutations
// ABOUTME: Each step validates input, then advances or aborts the session

package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2389/archivist/internal/access"
	"github.com/2389/archivist/internal/catalog"
	"github.com/2389/archivist/internal/session"
	"github.com/2389/archivist/internal/store"
)

// handleAdminSelection routes selections the caller has already authorized
func (d *Dispatcher) handleAdminSelection(ctx context.Context, act Action, sess *session.Session) (*Reply, error) {
	switch act.Kind {
	case ActionAddMenu:
		return d.beginWorkflow(sess, session.StateAddMenuName, "Send the name for the new menu:")

	case ActionEditMenu:
		return d.beginMenuSelect(ctx, sess, session.StateEditMenuSelect, "Choose a menu to rename:")

	case ActionDeleteMenu:
		return d.beginMenuSelect(ctx, sess, session.StateDeleteMenuSelect, "Choose a menu to delete:")

	case ActionUploadArtifact:
		return d.beginMenuSelect(ctx, sess, session.StateUploadSelectMenu, "Choose a menu for the file:")

	case ActionAddLink:
		return d.beginMenuSelect(ctx, sess, session.StateAddLinkSelectMenu, "Choose a menu for the link:")

	case ActionManageGates:
		return d.showGates(ctx)

	case ActionAddGate:
		return d.beginWorkflow(sess, session.StateAddGateRef,
			"Send the channel reference (@handle, numeric id, or room id):")

	case ActionEditGate:
		return d.beginGateSelect(ctx, sess, session.StateEditGateSelect, "Choose a gate to edit:")

	case ActionDeleteGate:
		return d.beginGateSelect(ctx, sess, session.StateDeleteGateSelect, "Choose a gate to remove:")

	case ActionShowUsers:
		return d.showUsers(ctx)

	case ActionSelectMenu:
		return d.handleMenuPick(ctx, act.MenuID, sess)

	case ActionSelectGate:
		return d.handleGatePick(ctx, act.GateID, sess)
	}

	return nil, fmt.Errorf("unhandled action kind %d", act.Kind)
}

func (d *Dispatcher) beginWorkflow(sess *session.Session, entry session.State, prompt string) (*Reply, error) {
	if err := sess.Begin(entry); err != nil {
		return &Reply{Text: "Finish the current operation first, or use /cancel."}, nil
	}
	return &Reply{Text: prompt}, nil
}

// beginMenuSelect starts a workflow whose first step is picking a menu.
// The full flat menu list is offered; admins pick by button, never by id.
func (d *Dispatcher) beginMenuSelect(ctx context.Context, sess *session.Session, entry session.State, prompt string) (*Reply, error) {
	menus, err := d.store.ListMenus(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing menus: %w", err)
	}
	if len(menus) == 0 {
		return &Reply{Text: "No menus yet. Add one first."}, nil
	}

	if err := sess.Begin(entry); err != nil {
		return &Reply{Text: "Finish the current operation first, or use /cancel."}, nil
	}

	reply := &Reply{Text: prompt}
	for _, m := range menus {
		reply.Buttons = append(reply.Buttons, Button{
			Label:  m.Name,
			Action: Action{Kind: ActionSelectMenu, MenuID: m.ID}.Encode(),
		})
	}
	return reply, nil
}

func (d *Dispatcher) beginGateSelect(ctx context.Context, sess *session.Session, entry session.State, prompt string) (*Reply, error) {
	gates, err := d.gates.ListGates(ctx)
	if err != nil {
		return nil, err
	}
	if len(gates) == 0 {
		return &Reply{Text: "No gates configured."}, nil
	}

	if err := sess.Begin(entry); err != nil {
		return &Reply{Text: "Finish the current operation first, or use /cancel."}, nil
	}

	reply := &Reply{Text: prompt}
	for _, g := range gates {
		reply.Buttons = append(reply.Buttons, Button{
			Label:  g.ChannelRef,
			Action: Action{Kind: ActionSelectGate, GateID: g.ID}.Encode(),
		})
	}
	return reply, nil
}

func (d *Dispatcher) showGates(ctx context.Context) (*Reply, error) {
	gates, err := d.gates.ListGates(ctx)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	if len(gates) == 0 {
		sb.WriteString("No gates configured; retrieval is open.")
	} else {
		sb.WriteString("Required channels:")
		for _, g := range gates {
			sb.WriteString("\n• " + g.ChannelRef)
		}
	}

	return &Reply{
		Text: sb.String(),
		Buttons: []Button{
			{Label: "Add gate", Action: Action{Kind: ActionAddGate}.Encode()},
			{Label: "Edit gate", Action: Action{Kind: ActionEditGate}.Encode()},
			{Label: "Remove gate", Action: Action{Kind: ActionDeleteGate}.Encode()},
		},
	}, nil
}

func (d *Dispatcher) showUsers(ctx context.Context) (*Reply, error) {
	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	if len(users) == 0 {
		return &Reply{Text: "No registered users yet."}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d registered users:", len(users))
	for _, u := range users {
		if u.Handle != "" {
			fmt.Fprintf(&sb, "\n• %s (%s)", u.Handle, u.ID)
		} else {
			fmt.Fprintf(&sb, "\n• %s", u.ID)
		}
	}
	return &Reply{Text: sb.String()}, nil
}

// handleMenuPick consumes a menu selection in the workflows that expect one
func (d *Dispatcher) handleMenuPick(ctx context.Context, menuID int64, sess *session.Session) (*Reply, error) {
	switch sess.State() {
	case session.StateEditMenuSelect:
		if reply, err := d.requireMenu(ctx, menuID, sess); reply != nil || err != nil {
			return reply, err
		}
		sess.SetPendingMenu(menuID)
		if err := sess.Advance(session.StateEditMenuName); err != nil {
			return nil, err
		}
		return &Reply{Text: "Send the new name:"}, nil

	case session.StateDeleteMenuSelect:
		err := d.tree.DeleteMenu(ctx, menuID)
		if errors.Is(err, store.ErrNotFound) {
			sess.Finish()
			return &Reply{Text: "That menu is already gone."}, nil
		}
		if err != nil {
			return nil, err
		}
		sess.Finish()
		return &Reply{Text: "Menu deleted. Its files are gone; submenus moved to the top level."}, nil

	case session.StateUploadSelectMenu:
		if reply, err := d.requireMenu(ctx, menuID, sess); reply != nil || err != nil {
			return reply, err
		}
		sess.SetPendingMenu(menuID)
		if err := sess.Advance(session.StateUploadPayload); err != nil {
			return nil, err
		}
		return &Reply{Text: "Send the file to store:"}, nil

	case session.StateAddLinkSelectMenu:
		if reply, err := d.requireMenu(ctx, menuID, sess); reply != nil || err != nil {
			return reply, err
		}
		sess.SetPendingMenu(menuID)
		if err := sess.Advance(session.StateAddLinkURL); err != nil {
			return nil, err
		}
		return &Reply{Text: "Send the link URL:"}, nil
	}

	// A stale button from an earlier prompt
	return &Reply{Text: "That choice is no longer active."}, nil
}

// requireMenu aborts the workflow when the picked menu vanished between
// the prompt and the pick. Returns a non-nil reply on abort.
func (d *Dispatcher) requireMenu(ctx context.Context, menuID int64, sess *session.Session) (*Reply, error) {
	if _, err := d.store.GetMenu(ctx, menuID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			sess.Finish()
			return &Reply{Text: "That menu no longer exists."}, nil
		}
		return nil, err
	}
	return nil, nil
}

func (d *Dispatcher) handleGatePick(ctx context.Context, gateID int64, sess *session.Session) (*Reply, error) {
	switch sess.State() {
	case session.StateEditGateSelect:
		if _, err := d.store.GetGate(ctx, gateID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				sess.Finish()
				return &Reply{Text: "That gate no longer exists."}, nil
			}
			return nil, err
		}
		sess.SetPendingGate(gateID)
		if err := sess.Advance(session.StateEditGateRef); err != nil {
			return nil, err
		}
		return &Reply{Text: "Send the new channel reference:"}, nil

	case session.StateDeleteGateSelect:
		err := d.gates.RemoveGate(ctx, gateID)
		if errors.Is(err, store.ErrNotFound) {
			sess.Finish()
			return &Reply{Text: "That gate is already gone."}, nil
		}
		if err != nil {
			return nil, err
		}
		sess.Finish()
		return &Reply{Text: "Gate removed."}, nil
	}

	return &Reply{Text: "That choice is no longer active."}, nil
}

// handleWorkflowInput feeds text and media into the principal's in-flight
// workflow. Input of the wrong kind re-prompts without changing state.
func (d *Dispatcher) handleWorkflowInput(ctx context.Context, ev *Event, sess *session.Session) (*Reply, error) {
	state := sess.State()
	if state == session.StateIdle {
		return &Reply{Text: "Use /start to begin."}, nil
	}

	switch state.Expects() {
	case session.ExpectsText:
		if ev.Kind != EventText {
			return &Reply{Text: "Please send text."}, nil
		}
		return d.handleWorkflowText(ctx, strings.TrimSpace(ev.Text), sess)
	case session.ExpectsMedia:
		if ev.Kind != EventMedia {
			return &Reply{Text: "Please send a file."}, nil
		}
		return d.handleWorkflowMedia(ctx, ev.Media, sess)
	case session.ExpectsSelection:
		return &Reply{Text: "Please use the buttons above."}, nil
	}

	return &Reply{Text: "Use /start to begin."}, nil
}

func (d *Dispatcher) handleWorkflowText(ctx context.Context, text string, sess *session.Session) (*Reply, error) {
	switch sess.State() {
	case session.StateLoginUsername:
		if !d.admin.VerifyUsername(text) {
			sess.Finish()
			d.logger.Warn("admin login failed", "principal", sess.PrincipalID(), "step", "username")
			return &Reply{Text: "Login failed."}, nil
		}
		if err := sess.Advance(session.StateLoginPassword); err != nil {
			return nil, err
		}
		return &Reply{Text: "Enter the admin password:"}, nil

	case session.StateLoginPassword:
		if !d.admin.VerifyPassword(text) {
			sess.Finish()
			d.logger.Warn("admin login failed", "principal", sess.PrincipalID(), "step", "password")
			return &Reply{Text: "Login failed."}, nil
		}
		sess.SetAuthenticated()
		sess.Finish()
		d.logger.Info("admin logged in", "principal", sess.PrincipalID())
		return d.adminPanel("Logged in."), nil

	case session.StateAddMenuName:
		_, err := d.tree.CreateMenu(ctx, text, store.RootMenuID)
		if catalog.IsValidation(err) {
			return &Reply{Text: fmt.Sprintf("%v. Try again:", err)}, nil
		}
		if err != nil {
			return nil, err
		}
		sess.Finish()
		return &Reply{Text: fmt.Sprintf("Menu %q created.", text)}, nil

	case session.StateEditMenuName:
		err := d.tree.RenameMenu(ctx, sess.PendingMenu(), text)
		if catalog.IsValidation(err) {
			return &Reply{Text: fmt.Sprintf("%v. Try again:", err)}, nil
		}
		if errors.Is(err, store.ErrNotFound) {
			sess.Finish()
			return &Reply{Text: "That menu no longer exists."}, nil
		}
		if err != nil {
			return nil, err
		}
		sess.Finish()
		return &Reply{Text: "Menu renamed."}, nil

	case session.StateAddLinkURL:
		artifact, err := d.resolver.Store(ctx, sess.PendingMenu(), store.KindLink, text, "")
		if catalog.IsValidation(err) {
			return &Reply{Text: fmt.Sprintf("%v. Try again:", err)}, nil
		}
		if errors.Is(err, store.ErrNotFound) {
			sess.Finish()
			return &Reply{Text: "That menu no longer exists."}, nil
		}
		if err != nil {
			return nil, err
		}
		sess.Finish()
		return &Reply{
			Text:    "Link added.",
			Buttons: []Button{{Label: "Open", URL: artifact.URL}},
		}, nil

	case session.StateAddGateRef:
		_, err := d.gates.AddGate(ctx, text)
		if errors.Is(err, access.ErrInvalidChannelRef) {
			return &Reply{Text: "Invalid channel reference. Try again:"}, nil
		}
		if err != nil {
			return nil, err
		}
		sess.Finish()
		return &Reply{Text: fmt.Sprintf("Gate %s added.", text)}, nil

	case session.StateEditGateRef:
		err := d.gates.EditGate(ctx, sess.PendingGate(), text)
		if errors.Is(err, access.ErrInvalidChannelRef) {
			return &Reply{Text: "Invalid channel reference. Try again:"}, nil
		}
		if errors.Is(err, store.ErrNotFound) {
			sess.Finish()
			return &Reply{Text: "That gate no longer exists."}, nil
		}
		if err != nil {
			return nil, err
		}
		sess.Finish()
		return &Reply{Text: "Gate updated."}, nil
	}

	return nil, fmt.Errorf("text input in unhandled state %s", sess.State())
}

func (d *Dispatcher) handleWorkflowMedia(ctx context.Context, media *Media, sess *session.Session) (*Reply, error) {
	if sess.State() != session.StateUploadPayload {
		return nil, fmt.Errorf("media input in unhandled state %s", sess.State())
	}
	if media == nil {
		return nil, errors.New("media event without a payload")
	}

	artifact, err := d.resolver.Store(ctx, sess.PendingMenu(), media.Kind, media.Handle, media.Caption)
	if catalog.IsValidation(err) {
		return &Reply{Text: fmt.Sprintf("%v. Send the file again:", err)}, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		sess.Finish()
		return &Reply{Text: "That menu no longer exists."}, nil
	}
	if err != nil {
		return nil, err
	}

	sess.Finish()
	return &Reply{
		Text: "Stored.",
		Buttons: []Button{{
			Label:  "Get it",
			Action: Action{Kind: ActionGetArtifact, Token: artifact.AccessToken}.Encode(),
		}},
	}, nil
}
