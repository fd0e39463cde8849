// ABOUTME: MenuTree - logical view over the store's menu hierarchy
// ABOUTME: Resolves parent/child relationships and validates structural mutations

package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/archivist/internal/store"
)

// MenuStore provides the menu rows the tree operates on
type MenuStore interface {
	CreateMenu(ctx context.Context, name string, parentID int64) (int64, error)
	GetMenu(ctx context.Context, id int64) (*store.Menu, error)
	ListChildMenus(ctx context.Context, parentID int64) ([]*store.Menu, error)
	RenameMenu(ctx context.Context, id int64, name string) error
	DeleteMenu(ctx context.Context, id int64) error
	ListMenuArtifacts(ctx context.Context, menuID int64) ([]*store.Artifact, error)
}

// Children holds one level of the hierarchy. Artifacts are always listed
// after submenus when rendered.
type Children struct {
	Menus     []*store.Menu
	Artifacts []*store.Artifact
}

// Tree exposes the content hierarchy. It holds no state of its own; every
// read reflects the latest committed store state.
type Tree struct {
	store  MenuStore
	logger *slog.Logger
}

// NewTree creates a Tree over the given store
func NewTree(s MenuStore) *Tree {
	return &Tree{
		store:  s,
		logger: slog.Default().With("component", "catalog"),
	}
}

// ListRoots returns the ordered top-level menus. An empty catalog is valid.
func (t *Tree) ListRoots(ctx context.Context) ([]*store.Menu, error) {
	menus, err := t.store.ListChildMenus(ctx, store.RootMenuID)
	if err != nil {
		return nil, fmt.Errorf("listing root menus: %w", err)
	}
	return menus, nil
}

// ListChildren returns the submenus and artifacts directly under a menu.
// Returns store.ErrNotFound if the menu doesn't exist.
func (t *Tree) ListChildren(ctx context.Context, menuID int64) (*Children, error) {
	if _, err := t.store.GetMenu(ctx, menuID); err != nil {
		return nil, err
	}

	menus, err := t.store.ListChildMenus(ctx, menuID)
	if err != nil {
		return nil, fmt.Errorf("listing child menus: %w", err)
	}

	artifacts, err := t.store.ListMenuArtifacts(ctx, menuID)
	if err != nil {
		return nil, fmt.Errorf("listing menu artifacts: %w", err)
	}

	return &Children{Menus: menus, Artifacts: artifacts}, nil
}

// CreateMenu inserts a new menu under parentID (store.RootMenuID for top level).
// Returns a ValidationError for an empty name, store.ErrNotFound for a
// missing parent.
func (t *Tree) CreateMenu(ctx context.Context, name string, parentID int64) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, validationf("menu name must not be empty")
	}

	if parentID != store.RootMenuID {
		if _, err := t.store.GetMenu(ctx, parentID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return 0, err
			}
			return 0, fmt.Errorf("checking parent menu: %w", err)
		}
	}

	id, err := t.store.CreateMenu(ctx, name, parentID)
	if err != nil {
		return 0, fmt.Errorf("creating menu: %w", err)
	}

	t.logger.Info("created menu", "id", id, "name", name, "parent_id", parentID)
	return id, nil
}

// RenameMenu sets a menu's display name.
// Returns a ValidationError for an empty name, store.ErrNotFound for a
// missing menu.
func (t *Tree) RenameMenu(ctx context.Context, menuID int64, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return validationf("menu name must not be empty")
	}

	if err := t.store.RenameMenu(ctx, menuID, newName); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("renaming menu: %w", err)
	}

	t.logger.Info("renamed menu", "id", menuID, "name", newName)
	return nil
}

// DeleteMenu removes a menu together with its direct artifacts in one
// transaction; direct child menus are reparented to root.
// Returns store.ErrNotFound if the menu doesn't exist.
func (t *Tree) DeleteMenu(ctx context.Context, menuID int64) error {
	if err := t.store.DeleteMenu(ctx, menuID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("deleting menu: %w", err)
	}

	t.logger.Info("deleted menu", "id", menuID)
	return nil
}
