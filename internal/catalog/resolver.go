// ABOUTME: ArtifactResolver - stores artifacts and resolves opaque access tokens
// ABOUTME: Tokens decouple where a file lives from how it is requested

package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/archivist/internal/store"
)

// tokenRetries bounds the collision retry loop. A 128-bit random token
// colliding even once is already negligible.
const tokenRetries = 3

// ArtifactStore provides artifact persistence for the resolver
type ArtifactStore interface {
	GetMenu(ctx context.Context, id int64) (*store.Menu, error)
	CreateArtifact(ctx context.Context, a *store.Artifact) (int64, error)
	GetArtifactByToken(ctx context.Context, token string) (*store.Artifact, error)
}

// Resolver stores artifacts under menus and resolves retrieval tokens.
// Token lookup is the only artifact access path exposed to end users;
// internal ids never appear in outbound tokens.
type Resolver struct {
	store  ArtifactStore
	logger *slog.Logger
}

// NewResolver creates a Resolver over the given store
func NewResolver(s ArtifactStore) *Resolver {
	return &Resolver{
		store:  s,
		logger: slog.Default().With("component", "resolver"),
	}
}

// Store validates and persists a new artifact, generating a fresh access
// token. For media kinds handleOrURL is the transport delivery handle; for
// the link kind it is the external URL. Returns a ValidationError for a
// kind/payload mismatch, store.ErrNotFound for a missing menu.
func (r *Resolver) Store(ctx context.Context, menuID int64, kind store.ArtifactKind, handleOrURL, caption string) (*store.Artifact, error) {
	if !kind.IsValid() {
		return nil, validationf("unknown artifact kind %q", kind)
	}

	handleOrURL = strings.TrimSpace(handleOrURL)
	a := &store.Artifact{
		MenuID:  menuID,
		Kind:    kind,
		Caption: caption,
	}

	if kind.IsLink() {
		if err := validateURL(handleOrURL); err != nil {
			return nil, err
		}
		a.URL = handleOrURL
	} else {
		if handleOrURL == "" {
			return nil, validationf("artifact kind %q requires a delivery handle", kind)
		}
		a.Handle = handleOrURL
	}

	if _, err := r.store.GetMenu(ctx, menuID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("checking menu: %w", err)
	}

	var lastErr error
	for i := 0; i < tokenRetries; i++ {
		a.AccessToken = uuid.NewString()
		id, err := r.store.CreateArtifact(ctx, a)
		if err == nil {
			a.ID = id
			r.logger.Info("stored artifact", "id", id, "menu_id", menuID, "kind", kind)
			return a, nil
		}
		if !errors.Is(err, store.ErrDuplicateToken) {
			return nil, fmt.Errorf("storing artifact: %w", err)
		}
		lastErr = err
		r.logger.Warn("access token collision, regenerating", "menu_id", menuID)
	}

	return nil, fmt.Errorf("storing artifact: %w", lastErr)
}

// ResolveByToken returns the artifact carrying the given access token.
// Returns store.ErrNotFound if no artifact carries it.
func (r *Resolver) ResolveByToken(ctx context.Context, token string) (*store.Artifact, error) {
	a, err := r.store.GetArtifactByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolving token: %w", err)
	}
	return a, nil
}

// validateURL checks that a link artifact carries an absolute http(s) URL
func validateURL(raw string) error {
	if raw == "" {
		return validationf("link artifact requires a URL")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return validationf("malformed link %q", raw)
	}
	return nil
}
