// ABOUTME: Store interface and data types for archivist persistence
// ABOUTME: Defines Menu, Artifact, Gate, User, Admin and the Store interface

package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateToken is returned when an artifact access token collides
// with one already in the store
var ErrDuplicateToken = errors.New("access token already exists")

// RootMenuID is the parent id marker for top-level menus
const RootMenuID int64 = 0

// Menu represents one node of the content hierarchy.
// ParentID is RootMenuID for top-level menus.
type Menu struct {
	ID       int64
	Name     string
	ParentID int64
}

// ArtifactKind identifies how an artifact is delivered
type ArtifactKind string

const (
	KindDocument  ArtifactKind = "document"
	KindVideo     ArtifactKind = "video"
	KindPhoto     ArtifactKind = "photo"
	KindAudio     ArtifactKind = "audio"
	KindAnimation ArtifactKind = "animation"
	KindLink      ArtifactKind = "link"
)

// ValidKinds lists all artifact kinds accepted by the store
var ValidKinds = []ArtifactKind{
	KindDocument,
	KindVideo,
	KindPhoto,
	KindAudio,
	KindAnimation,
	KindLink,
}

// IsValid reports whether k is a known artifact kind
func (k ArtifactKind) IsValid() bool {
	for _, v := range ValidKinds {
		if k == v {
			return true
		}
	}
	return false
}

// IsLink reports whether the kind is delivered by external navigation
// rather than a gated media send
func (k ArtifactKind) IsLink() bool {
	return k == KindLink
}

// Artifact is a downloadable item stored under a menu.
// Exactly one of Handle (media kinds) or URL (link kind) is set.
// AccessToken is the opaque identifier used for out-of-band retrieval;
// it never encodes the artifact's position in the tree.
type Artifact struct {
	ID          int64
	MenuID      int64
	Kind        ArtifactKind
	Handle      string
	Caption     string
	URL         string
	AccessToken string
}

// Gate is one externally-enforced membership requirement. All configured
// gates must be satisfied for any artifact retrieval to succeed.
type Gate struct {
	ID         int64
	ChannelRef string
}

// User is an end user known to the bot. The ID is the immutable platform
// user id; Handle is the last-known display handle.
type User struct {
	ID     string
	Handle string
}

// Admin is a durable allow-listed administrator identity
type Admin struct {
	ID     string
	Handle string
}

// Store defines the interface for archivist persistence.
// All foreign references (menu_id, parent_id) are validated by callers;
// the engine is treated as a generic key-indexed store.
type Store interface {
	// Menus
	CreateMenu(ctx context.Context, name string, parentID int64) (int64, error)
	GetMenu(ctx context.Context, id int64) (*Menu, error)
	ListMenus(ctx context.Context) ([]*Menu, error)
	ListChildMenus(ctx context.Context, parentID int64) ([]*Menu, error)
	RenameMenu(ctx context.Context, id int64, name string) error
	// DeleteMenu atomically removes the menu, removes every artifact
	// directly under it, and reparents its direct child menus to root.
	DeleteMenu(ctx context.Context, id int64) error

	// Artifacts
	CreateArtifact(ctx context.Context, a *Artifact) (int64, error)
	ListMenuArtifacts(ctx context.Context, menuID int64) ([]*Artifact, error)
	GetArtifactByToken(ctx context.Context, token string) (*Artifact, error)

	// Gates
	CreateGate(ctx context.Context, channelRef string) (int64, error)
	GetGate(ctx context.Context, id int64) (*Gate, error)
	ListGates(ctx context.Context) ([]*Gate, error)
	UpdateGate(ctx context.Context, id int64, channelRef string) error
	DeleteGate(ctx context.Context, id int64) error

	// Users
	UpsertUser(ctx context.Context, u *User) error
	ListUsers(ctx context.Context) ([]*User, error)

	// Admin allow-list
	UpsertAdmin(ctx context.Context, a *Admin) error
	IsAdmin(ctx context.Context, userID string) (bool, error)

	// Close releases any resources held by the store
	Close() error
}
