// ABOUTME: Tests for the admin session state machine
// ABOUTME: Covers transitions, cancellation, and per-principal isolation

package session

import (
	"errors"
	"sync"
	"testing"
)

func TestBegin_FromIdle(t *testing.T) {
	s := &Session{}

	if err := s.Begin(StateAddMenuName); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if s.State() != StateAddMenuName {
		t.Errorf("state = %v, want %v", s.State(), StateAddMenuName)
	}
}

func TestBegin_RejectsWhileBusy(t *testing.T) {
	s := &Session{}

	if err := s.Begin(StateAddMenuName); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := s.Begin(StateDeleteMenuSelect); !errors.Is(err, ErrBadTransition) {
		t.Errorf("expected ErrBadTransition, got %v", err)
	}
	if s.State() != StateAddMenuName {
		t.Errorf("state changed on rejected Begin: %v", s.State())
	}
}

func TestBegin_RejectsNonEntryState(t *testing.T) {
	s := &Session{}

	if err := s.Begin(StateLoginPassword); !errors.Is(err, ErrBadTransition) {
		t.Errorf("expected ErrBadTransition, got %v", err)
	}
}

func TestAdvance_FollowsWorkflow(t *testing.T) {
	s := &Session{}

	if err := s.Begin(StateEditMenuSelect); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	s.SetPendingMenu(7)
	if err := s.Advance(StateEditMenuName); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if s.PendingMenu() != 7 {
		t.Errorf("pending menu = %d, want 7", s.PendingMenu())
	}
}

func TestAdvance_RejectsSkips(t *testing.T) {
	s := &Session{}

	if err := s.Begin(StateUploadSelectMenu); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := s.Advance(StateEditMenuName); !errors.Is(err, ErrBadTransition) {
		t.Errorf("expected ErrBadTransition, got %v", err)
	}
}

func TestFinish_DiscardsScratch(t *testing.T) {
	s := &Session{}

	if err := s.Begin(StateUploadSelectMenu); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	s.SetPendingMenu(3)
	s.Finish()

	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle", s.State())
	}
	if s.PendingMenu() != 0 {
		t.Errorf("pending menu survived Finish: %d", s.PendingMenu())
	}
}

func TestCancel_FromAnyState_KeepsAuthentication(t *testing.T) {
	entries := []State{
		StateLoginUsername, StateAddMenuName, StateEditMenuSelect,
		StateDeleteMenuSelect, StateUploadSelectMenu, StateAddLinkSelectMenu,
		StateAddGateRef, StateEditGateSelect, StateDeleteGateSelect,
	}

	for _, entry := range entries {
		s := &Session{}
		s.SetAuthenticated()
		if err := s.Begin(entry); err != nil {
			t.Fatalf("Begin(%v) failed: %v", entry, err)
		}
		s.Cancel()
		if s.State() != StateIdle {
			t.Errorf("Cancel from %v left state %v", entry, s.State())
		}
		if !s.Authenticated() {
			t.Errorf("Cancel from %v dropped authentication", entry)
		}
	}
}

func TestExpects(t *testing.T) {
	tests := []struct {
		state State
		want  InputKind
	}{
		{StateIdle, ExpectsNothing},
		{StateLoginUsername, ExpectsText},
		{StateLoginPassword, ExpectsText},
		{StateAddMenuName, ExpectsText},
		{StateEditMenuSelect, ExpectsSelection},
		{StateEditMenuName, ExpectsText},
		{StateDeleteMenuSelect, ExpectsSelection},
		{StateUploadSelectMenu, ExpectsSelection},
		{StateUploadPayload, ExpectsMedia},
		{StateAddLinkSelectMenu, ExpectsSelection},
		{StateAddLinkURL, ExpectsText},
		{StateAddGateRef, ExpectsText},
		{StateEditGateSelect, ExpectsSelection},
		{StateEditGateRef, ExpectsText},
		{StateDeleteGateSelect, ExpectsSelection},
	}

	for _, tt := range tests {
		if got := tt.state.Expects(); got != tt.want {
			t.Errorf("%v.Expects() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestManager_IsolatesPrincipals(t *testing.T) {
	m := NewManager()

	a := m.Get("@alice:example.org")
	b := m.Get("@bob:example.org")

	a.SetAuthenticated()
	if err := a.Begin(StateAddMenuName); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if b.Authenticated() {
		t.Error("bob sees alice's authentication")
	}
	if b.State() != StateIdle {
		t.Errorf("bob sees alice's workflow state: %v", b.State())
	}

	// Same principal gets the same session back
	if m.Get("@alice:example.org") != a {
		t.Error("manager did not return the existing session")
	}
}

func TestManager_Drop(t *testing.T) {
	m := NewManager()

	s := m.Get("@u:example.org")
	s.SetAuthenticated()
	m.Drop("@u:example.org")

	if m.Get("@u:example.org").Authenticated() {
		t.Error("dropped session retained authentication")
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := m.Get("@shared:example.org")
			_ = s.State()
			s.SetPendingMenu(1)
		}()
	}
	wg.Wait()
}
