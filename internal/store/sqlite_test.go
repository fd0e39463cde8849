// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers menu CRUD, cascade delete, artifact tokens, gates, users, admins

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// newTestStore creates a SQLite store in a temp directory
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return s
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestCreateAndGetMenu(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	id, err := s.CreateMenu(ctx, "Books", RootMenuID)
	if err != nil {
		t.Fatalf("CreateMenu failed: %v", err)
	}

	got, err := s.GetMenu(ctx, id)
	if err != nil {
		t.Fatalf("GetMenu failed: %v", err)
	}
	if got.Name != "Books" {
		t.Errorf("Name mismatch: got %q, want %q", got.Name, "Books")
	}
	if got.ParentID != RootMenuID {
		t.Errorf("ParentID mismatch: got %d, want %d", got.ParentID, RootMenuID)
	}
}

func TestGetMenu_NotFound(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	_, err := s.GetMenu(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListChildMenus(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	booksID, err := s.CreateMenu(ctx, "Books", RootMenuID)
	if err != nil {
		t.Fatalf("CreateMenu failed: %v", err)
	}
	if _, err := s.CreateMenu(ctx, "Fiction", booksID); err != nil {
		t.Fatalf("CreateMenu failed: %v", err)
	}
	if _, err := s.CreateMenu(ctx, "Music", RootMenuID); err != nil {
		t.Fatalf("CreateMenu failed: %v", err)
	}

	roots, err := s.ListChildMenus(ctx, RootMenuID)
	if err != nil {
		t.Fatalf("ListChildMenus failed: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("expected 2 root menus, got %d", len(roots))
	}
	if roots[0].Name != "Books" || roots[1].Name != "Music" {
		t.Errorf("unexpected root ordering: %q, %q", roots[0].Name, roots[1].Name)
	}

	children, err := s.ListChildMenus(ctx, booksID)
	if err != nil {
		t.Fatalf("ListChildMenus failed: %v", err)
	}
	if len(children) != 1 || children[0].Name != "Fiction" {
		t.Errorf("unexpected children: %+v", children)
	}
}

func TestRenameMenu(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	id, err := s.CreateMenu(ctx, "Old", RootMenuID)
	if err != nil {
		t.Fatalf("CreateMenu failed: %v", err)
	}

	if err := s.RenameMenu(ctx, id, "New"); err != nil {
		t.Fatalf("RenameMenu failed: %v", err)
	}

	got, err := s.GetMenu(ctx, id)
	if err != nil {
		t.Fatalf("GetMenu failed: %v", err)
	}
	if got.Name != "New" {
		t.Errorf("Name mismatch: got %q, want %q", got.Name, "New")
	}
}

func TestRenameMenu_NotFound(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	err := s.RenameMenu(context.Background(), 42, "anything")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMenu_CascadesArtifacts(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	menuID, err := s.CreateMenu(ctx, "Docs", RootMenuID)
	if err != nil {
		t.Fatalf("CreateMenu failed: %v", err)
	}

	if _, err := s.CreateArtifact(ctx, &Artifact{
		MenuID:      menuID,
		Kind:        KindDocument,
		Handle:      "mxc://example.org/abc",
		AccessToken: "token-1",
	}); err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}

	if err := s.DeleteMenu(ctx, menuID); err != nil {
		t.Fatalf("DeleteMenu failed: %v", err)
	}

	if _, err := s.GetMenu(ctx, menuID); !errors.Is(err, ErrNotFound) {
		t.Errorf("menu still present after delete: %v", err)
	}
	if _, err := s.GetArtifactByToken(ctx, "token-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("artifact still resolvable after menu delete: %v", err)
	}
}

func TestDeleteMenu_ReparentsChildren(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	parentID, err := s.CreateMenu(ctx, "Parent", RootMenuID)
	if err != nil {
		t.Fatalf("CreateMenu failed: %v", err)
	}
	childID, err := s.CreateMenu(ctx, "Child", parentID)
	if err != nil {
		t.Fatalf("CreateMenu failed: %v", err)
	}

	if err := s.DeleteMenu(ctx, parentID); err != nil {
		t.Fatalf("DeleteMenu failed: %v", err)
	}

	child, err := s.GetMenu(ctx, childID)
	if err != nil {
		t.Fatalf("GetMenu failed: %v", err)
	}
	if child.ParentID != RootMenuID {
		t.Errorf("child not reparented to root: parent_id = %d", child.ParentID)
	}
}

func TestDeleteMenu_NotFound(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	err := s.DeleteMenu(context.Background(), 123)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateArtifact_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	menuID, err := s.CreateMenu(ctx, "Media", RootMenuID)
	if err != nil {
		t.Fatalf("CreateMenu failed: %v", err)
	}

	a := &Artifact{
		MenuID:      menuID,
		Kind:        KindVideo,
		Handle:      "mxc://example.org/vid",
		Caption:     "a video",
		AccessToken: "tok-video",
	}
	id, err := s.CreateArtifact(ctx, a)
	if err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}

	got, err := s.GetArtifactByToken(ctx, "tok-video")
	if err != nil {
		t.Fatalf("GetArtifactByToken failed: %v", err)
	}
	if got.ID != id {
		t.Errorf("ID mismatch: got %d, want %d", got.ID, id)
	}
	if got.MenuID != menuID {
		t.Errorf("MenuID mismatch: got %d, want %d", got.MenuID, menuID)
	}
	if got.Kind != KindVideo {
		t.Errorf("Kind mismatch: got %q, want %q", got.Kind, KindVideo)
	}
	if got.Handle != a.Handle {
		t.Errorf("Handle mismatch: got %q, want %q", got.Handle, a.Handle)
	}
	if got.Caption != a.Caption {
		t.Errorf("Caption mismatch: got %q, want %q", got.Caption, a.Caption)
	}
	if got.URL != "" {
		t.Errorf("URL should be empty for media kinds, got %q", got.URL)
	}
}

func TestCreateArtifact_DuplicateToken(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	menuID, err := s.CreateMenu(ctx, "Media", RootMenuID)
	if err != nil {
		t.Fatalf("CreateMenu failed: %v", err)
	}

	a := &Artifact{MenuID: menuID, Kind: KindDocument, Handle: "h", AccessToken: "dup"}
	if _, err := s.CreateArtifact(ctx, a); err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}

	_, err = s.CreateArtifact(ctx, &Artifact{
		MenuID: menuID, Kind: KindDocument, Handle: "h2", AccessToken: "dup",
	})
	if !errors.Is(err, ErrDuplicateToken) {
		t.Errorf("expected ErrDuplicateToken, got %v", err)
	}
}

func TestListMenuArtifacts_ScopedToMenu(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	menuA, _ := s.CreateMenu(ctx, "A", RootMenuID)
	menuB, _ := s.CreateMenu(ctx, "B", RootMenuID)

	for i := 0; i < 3; i++ {
		if _, err := s.CreateArtifact(ctx, &Artifact{
			MenuID:      menuA,
			Kind:        KindDocument,
			Handle:      fmt.Sprintf("h-%d", i),
			AccessToken: fmt.Sprintf("a-%d", i),
		}); err != nil {
			t.Fatalf("CreateArtifact failed: %v", err)
		}
	}
	if _, err := s.CreateArtifact(ctx, &Artifact{
		MenuID: menuB, Kind: KindLink, URL: "https://example.org", AccessToken: "b-0",
	}); err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}

	got, err := s.ListMenuArtifacts(ctx, menuA)
	if err != nil {
		t.Fatalf("ListMenuArtifacts failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 artifacts, got %d", len(got))
	}
	for _, a := range got {
		if a.MenuID != menuA {
			t.Errorf("artifact %d belongs to menu %d, want %d", a.ID, a.MenuID, menuA)
		}
	}
}

func TestGateCRUD(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	id, err := s.CreateGate(ctx, "@channel")
	if err != nil {
		t.Fatalf("CreateGate failed: %v", err)
	}

	g, err := s.GetGate(ctx, id)
	if err != nil {
		t.Fatalf("GetGate failed: %v", err)
	}
	if g.ChannelRef != "@channel" {
		t.Errorf("ChannelRef mismatch: got %q", g.ChannelRef)
	}

	if err := s.UpdateGate(ctx, id, "@renamed"); err != nil {
		t.Fatalf("UpdateGate failed: %v", err)
	}
	g, err = s.GetGate(ctx, id)
	if err != nil {
		t.Fatalf("GetGate failed: %v", err)
	}
	if g.ChannelRef != "@renamed" {
		t.Errorf("ChannelRef not updated: got %q", g.ChannelRef)
	}

	gates, err := s.ListGates(ctx)
	if err != nil {
		t.Fatalf("ListGates failed: %v", err)
	}
	if len(gates) != 1 {
		t.Fatalf("expected 1 gate, got %d", len(gates))
	}

	if err := s.DeleteGate(ctx, id); err != nil {
		t.Fatalf("DeleteGate failed: %v", err)
	}
	if err := s.DeleteGate(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUpsertUser_RefreshesHandle(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	if err := s.UpsertUser(ctx, &User{ID: "@u:example.org", Handle: "old"}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	if err := s.UpsertUser(ctx, &User{ID: "@u:example.org", Handle: "new"}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Handle != "new" {
		t.Errorf("handle not refreshed: got %q", users[0].Handle)
	}
}

func TestIsAdmin(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	ok, err := s.IsAdmin(ctx, "@nobody:example.org")
	if err != nil {
		t.Fatalf("IsAdmin failed: %v", err)
	}
	if ok {
		t.Error("unknown user reported as admin")
	}

	if err := s.UpsertAdmin(ctx, &Admin{ID: "@boss:example.org", Handle: "boss"}); err != nil {
		t.Fatalf("UpsertAdmin failed: %v", err)
	}

	ok, err = s.IsAdmin(ctx, "@boss:example.org")
	if err != nil {
		t.Fatalf("IsAdmin failed: %v", err)
	}
	if !ok {
		t.Error("allow-listed user not reported as admin")
	}
}
