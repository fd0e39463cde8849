// ABOUTME: Per-administrator workflow state machine and session manager
// ABOUTME: Tracks authentication and multi-step content-mutation workflows

package session

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBadTransition is returned when a workflow step is requested from a
// state that does not lead to it
var ErrBadTransition = errors.New("invalid workflow transition")

// InputKind is the kind of inbound input a workflow state expects
type InputKind int

const (
	// ExpectsNothing - no workflow is in flight
	ExpectsNothing InputKind = iota
	// ExpectsText - free text input
	ExpectsText
	// ExpectsSelection - a button/selection signal
	ExpectsSelection
	// ExpectsMedia - an uploaded media payload
	ExpectsMedia
)

// State identifies the current step of an admin workflow.
// StateIdle means no workflow is in flight.
type State int

const (
	StateIdle State = iota

	// Credential challenge
	StateLoginUsername
	StateLoginPassword

	// Menu workflows
	StateAddMenuName
	StateEditMenuSelect
	StateEditMenuName
	StateDeleteMenuSelect

	// Artifact workflows
	StateUploadSelectMenu
	StateUploadPayload
	StateAddLinkSelectMenu
	StateAddLinkURL

	// Gate workflows
	StateAddGateRef
	StateEditGateSelect
	StateEditGateRef
	StateDeleteGateSelect
)

var stateNames = map[State]string{
	StateIdle:             "idle",
	StateLoginUsername:    "login/username",
	StateLoginPassword:    "login/password",
	StateAddMenuName:      "add-menu/name",
	StateEditMenuSelect:   "edit-menu/select",
	StateEditMenuName:     "edit-menu/name",
	StateDeleteMenuSelect: "delete-menu/select",
	StateUploadSelectMenu: "upload/select-menu",
	StateUploadPayload:    "upload/payload",
	StateAddLinkSelectMenu: "add-link/select-menu",
	StateAddLinkURL:       "add-link/url",
	StateAddGateRef:       "add-gate/ref",
	StateEditGateSelect:   "edit-gate/select",
	StateEditGateRef:      "edit-gate/ref",
	StateDeleteGateSelect: "delete-gate/select",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Expects returns the input kind the state accepts. Any other input kind
// is rejected with a retry prompt and no state change.
func (s State) Expects() InputKind {
	switch s {
	case StateLoginUsername, StateLoginPassword, StateAddMenuName,
		StateEditMenuName, StateAddLinkURL, StateAddGateRef, StateEditGateRef:
		return ExpectsText
	case StateEditMenuSelect, StateDeleteMenuSelect, StateUploadSelectMenu,
		StateAddLinkSelectMenu, StateEditGateSelect, StateDeleteGateSelect:
		return ExpectsSelection
	case StateUploadPayload:
		return ExpectsMedia
	default:
		return ExpectsNothing
	}
}

// entryStates are the states a workflow may begin from (from idle)
var entryStates = map[State]bool{
	StateLoginUsername:     true,
	StateAddMenuName:       true,
	StateEditMenuSelect:    true,
	StateDeleteMenuSelect:  true,
	StateUploadSelectMenu:  true,
	StateAddLinkSelectMenu: true,
	StateAddGateRef:        true,
	StateEditGateSelect:    true,
	StateDeleteGateSelect:  true,
}

// advances lists the legal mid-workflow steps
var advances = map[State]State{
	StateLoginUsername:     StateLoginPassword,
	StateEditMenuSelect:    StateEditMenuName,
	StateUploadSelectMenu:  StateUploadPayload,
	StateAddLinkSelectMenu: StateAddLinkURL,
	StateEditGateSelect:    StateEditGateRef,
}

// Session holds one administrator's transient conversation state. It is
// never persisted; authentication flags and in-flight workflow state are
// lost on process restart. All methods are safe for concurrent use, but
// the state belongs to exactly one principal.
type Session struct {
	mu sync.Mutex

	principalID   string
	authenticated bool
	state         State

	// Workflow scratch, meaningful only for the current state
	pendingMenuID int64
	pendingGateID int64
}

// PrincipalID returns the owning principal's id
func (s *Session) PrincipalID() string {
	return s.principalID
}

// State returns the current workflow state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Authenticated reports whether the session holds a live admin flag
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// SetAuthenticated grants the session-scoped admin flag. Set only after
// the two-phase credential challenge succeeds.
func (s *Session) SetAuthenticated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
}

// Begin starts a workflow from idle. Returns ErrBadTransition if another
// workflow is already in flight or the state is not a workflow entry.
func (s *Session) Begin(entry State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, s.state, entry)
	}
	if !entryStates[entry] {
		return fmt.Errorf("%w: %s is not a workflow entry", ErrBadTransition, entry)
	}

	s.state = entry
	return nil
}

// Advance moves to the next step of the current workflow. Returns
// ErrBadTransition if next does not follow the current state.
func (s *Session) Advance(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if advances[s.state] != next {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, s.state, next)
	}

	s.state = next
	return nil
}

// Finish terminates the current workflow, success or failure, returning to
// idle. Scratch state is discarded.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// Cancel aborts any in-flight workflow. It is accepted from every
// non-terminal state and never touches the authentication flag.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Session) clearLocked() {
	s.state = StateIdle
	s.pendingMenuID = 0
	s.pendingGateID = 0
}

// SetPendingMenu records a menu selection for the current workflow
func (s *Session) SetPendingMenu(menuID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingMenuID = menuID
}

// PendingMenu returns the recorded menu selection
func (s *Session) PendingMenu() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingMenuID
}

// SetPendingGate records a gate selection for the current workflow
func (s *Session) SetPendingGate(gateID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingGateID = gateID
}

// PendingGate returns the recorded gate selection
func (s *Session) PendingGate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingGateID
}

// Manager tracks sessions keyed by principal id. Each principal's state is
// invisible to every other principal's session.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Get returns the principal's session, creating it on first use
func (m *Manager) Get(principalID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[principalID]
	if !ok {
		s = &Session{principalID: principalID}
		m.sessions[principalID] = s
	}
	return s
}

// Drop discards a principal's session entirely, including any
// authentication flag
func (m *Manager) Drop(principalID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, principalID)
}
