// ABOUTME: AccessGate - membership requirements gating artifact retrieval
// ABOUTME: Conjunctive fail-closed check against an external membership oracle

package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/2389/archivist/internal/store"
)

// ErrInvalidChannelRef is returned when a channel reference fails the
// accepted syntax. Recoverable - callers re-prompt.
var ErrInvalidChannelRef = errors.New("malformed channel reference")

// defaultGateTimeout bounds each oracle lookup
const defaultGateTimeout = 5 * time.Second

// Accepted channel reference forms: an @handle, a numeric broadcast id
// (possibly negative), or a Matrix room/alias id.
var (
	handleRefPattern  = regexp.MustCompile(`^@[A-Za-z0-9_]+$`)
	numericRefPattern = regexp.MustCompile(`^-?[0-9]+$`)
	matrixRefPattern  = regexp.MustCompile(`^[!#][^:\s]+:[^\s]+$`)
)

// MembershipOracle answers whether a user currently belongs to a channel.
// Implemented by the chat platform client; lookups are blocking I/O.
type MembershipOracle interface {
	IsMember(ctx context.Context, channelRef, userID string) (bool, error)
}

// GateStore provides gate persistence
type GateStore interface {
	CreateGate(ctx context.Context, channelRef string) (int64, error)
	GetGate(ctx context.Context, id int64) (*store.Gate, error)
	ListGates(ctx context.Context) ([]*store.Gate, error)
	UpdateGate(ctx context.Context, id int64, channelRef string) error
	DeleteGate(ctx context.Context, id int64) error
}

// Decision is the outcome of a gate check. When not satisfied, Gates still
// carries the full configured set so the caller can render join prompts.
type Decision struct {
	Satisfied bool
	// FailedGate is the first gate the user did not satisfy, nil when
	// Satisfied. An oracle failure and a genuine non-membership are
	// indistinguishable here on purpose.
	FailedGate *store.Gate
	Gates      []*store.Gate
}

// Gatekeeper evaluates membership requirements.
// With zero gates configured, access is open.
type Gatekeeper struct {
	store   GateStore
	timeout time.Duration
	logger  *slog.Logger
}

// NewGatekeeper creates a Gatekeeper. A non-positive timeout falls back to
// the default per-gate bound.
func NewGatekeeper(s GateStore, perGateTimeout time.Duration) *Gatekeeper {
	if perGateTimeout <= 0 {
		perGateTimeout = defaultGateTimeout
	}
	return &Gatekeeper{
		store:   s,
		timeout: perGateTimeout,
		logger:  slog.Default().With("component", "access"),
	}
}

// ValidateChannelRef checks the accepted channel reference syntax.
// Returns ErrInvalidChannelRef on failure.
func ValidateChannelRef(ref string) error {
	ref = strings.TrimSpace(ref)
	if handleRefPattern.MatchString(ref) ||
		numericRefPattern.MatchString(ref) ||
		matrixRefPattern.MatchString(ref) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidChannelRef, ref)
}

// ListGates returns all configured gates
func (g *Gatekeeper) ListGates(ctx context.Context) ([]*store.Gate, error) {
	gates, err := g.store.ListGates(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing gates: %w", err)
	}
	return gates, nil
}

// AddGate registers a new membership requirement.
// Returns ErrInvalidChannelRef on bad syntax.
func (g *Gatekeeper) AddGate(ctx context.Context, channelRef string) (int64, error) {
	channelRef = strings.TrimSpace(channelRef)
	if err := ValidateChannelRef(channelRef); err != nil {
		return 0, err
	}

	id, err := g.store.CreateGate(ctx, channelRef)
	if err != nil {
		return 0, fmt.Errorf("creating gate: %w", err)
	}

	g.logger.Info("added gate", "id", id, "channel_ref", channelRef)
	return id, nil
}

// EditGate replaces a gate's channel reference.
// Returns ErrInvalidChannelRef on bad syntax, store.ErrNotFound for a
// missing gate.
func (g *Gatekeeper) EditGate(ctx context.Context, gateID int64, newChannelRef string) error {
	newChannelRef = strings.TrimSpace(newChannelRef)
	if err := ValidateChannelRef(newChannelRef); err != nil {
		return err
	}

	if err := g.store.UpdateGate(ctx, gateID, newChannelRef); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("updating gate: %w", err)
	}

	g.logger.Info("edited gate", "id", gateID, "channel_ref", newChannelRef)
	return nil
}

// RemoveGate deletes a membership requirement.
// Returns store.ErrNotFound if the gate doesn't exist.
func (g *Gatekeeper) RemoveGate(ctx context.Context, gateID int64) error {
	if err := g.store.DeleteGate(ctx, gateID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("deleting gate: %w", err)
	}

	g.logger.Info("removed gate", "id", gateID)
	return nil
}

// Check evaluates whether the user satisfies every configured gate.
// Zero gates means open access. The check short-circuits on the first
// failing gate; a lookup failure or timeout counts as not satisfied rather
// than surfacing as an error (fail-closed - a transient oracle outage must
// never leak gated content). The returned error covers only store reads.
func (g *Gatekeeper) Check(ctx context.Context, userID string, oracle MembershipOracle) (*Decision, error) {
	gates, err := g.store.ListGates(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing gates: %w", err)
	}

	if len(gates) == 0 {
		return &Decision{Satisfied: true}, nil
	}

	for _, gate := range gates {
		member, err := g.checkGate(ctx, gate, userID, oracle)
		if err != nil {
			g.logger.Warn("membership lookup failed, treating as not a member",
				"gate_id", gate.ID,
				"channel_ref", gate.ChannelRef,
				"error", err,
			)
			member = false
		}
		if !member {
			return &Decision{Satisfied: false, FailedGate: gate, Gates: gates}, nil
		}
	}

	return &Decision{Satisfied: true, Gates: gates}, nil
}

// checkGate queries the oracle for one gate under the per-gate timeout
func (g *Gatekeeper) checkGate(ctx context.Context, gate *store.Gate, userID string, oracle MembershipOracle) (bool, error) {
	gateCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	return oracle.IsMember(gateCtx, gate.ChannelRef, userID)
}
