// ABOUTME: Tests for the gatekeeper membership checks and gate CRUD
// ABOUTME: Uses a fake oracle to cover fail-closed and short-circuit behavior

package access

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/archivist/internal/store"
)

// fakeOracle answers membership queries from a fixed map and records calls
type fakeOracle struct {
	members map[string]bool
	errs    map[string]error
	calls   []string
	slow    time.Duration
}

func (f *fakeOracle) IsMember(ctx context.Context, channelRef, userID string) (bool, error) {
	f.calls = append(f.calls, channelRef)
	if f.slow > 0 {
		select {
		case <-time.After(f.slow):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if err, ok := f.errs[channelRef]; ok {
		return false, err
	}
	return f.members[channelRef], nil
}

func newTestGatekeeper(t *testing.T) (*Gatekeeper, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewGatekeeper(s, time.Second), s
}

func TestValidateChannelRef(t *testing.T) {
	valid := []string{"@my_channel", "@abc123", "-1001234567890", "42",
		"!room:example.org", "#alias:example.org"}
	for _, ref := range valid {
		assert.NoError(t, ValidateChannelRef(ref), "ref %q", ref)
	}

	invalid := []string{"", "channel", "@bad channel", "@", "http://x", "@bad-dash"}
	for _, ref := range invalid {
		assert.ErrorIs(t, ValidateChannelRef(ref), ErrInvalidChannelRef, "ref %q", ref)
	}
}

func TestAddGate_RejectsBadRef(t *testing.T) {
	gk, _ := newTestGatekeeper(t)

	_, err := gk.AddGate(context.Background(), "not a channel")
	assert.ErrorIs(t, err, ErrInvalidChannelRef)
}

func TestGateCRUD(t *testing.T) {
	gk, _ := newTestGatekeeper(t)
	ctx := context.Background()

	id, err := gk.AddGate(ctx, "@news")
	require.NoError(t, err)

	gates, err := gk.ListGates(ctx)
	require.NoError(t, err)
	require.Len(t, gates, 1)
	assert.Equal(t, "@news", gates[0].ChannelRef)

	require.NoError(t, gk.EditGate(ctx, id, "@updates"))
	assert.ErrorIs(t, gk.EditGate(ctx, id, "bad ref"), ErrInvalidChannelRef)
	assert.ErrorIs(t, gk.EditGate(ctx, 999, "@x"), store.ErrNotFound)

	require.NoError(t, gk.RemoveGate(ctx, id))
	assert.ErrorIs(t, gk.RemoveGate(ctx, id), store.ErrNotFound)
}

func TestCheck_ZeroGatesIsOpen(t *testing.T) {
	gk, _ := newTestGatekeeper(t)

	d, err := gk.Check(context.Background(), "@anyone:example.org", &fakeOracle{})
	require.NoError(t, err)
	assert.True(t, d.Satisfied)
}

func TestCheck_AllSatisfied(t *testing.T) {
	gk, _ := newTestGatekeeper(t)
	ctx := context.Background()

	_, err := gk.AddGate(ctx, "@one")
	require.NoError(t, err)
	_, err = gk.AddGate(ctx, "@two")
	require.NoError(t, err)

	oracle := &fakeOracle{members: map[string]bool{"@one": true, "@two": true}}
	d, err := gk.Check(ctx, "@u:example.org", oracle)
	require.NoError(t, err)
	assert.True(t, d.Satisfied)
	assert.Len(t, oracle.calls, 2)
}

func TestCheck_FailClosedOnOracleError(t *testing.T) {
	gk, _ := newTestGatekeeper(t)
	ctx := context.Background()

	_, err := gk.AddGate(ctx, "@broken")
	require.NoError(t, err)
	_, err = gk.AddGate(ctx, "@fine")
	require.NoError(t, err)

	oracle := &fakeOracle{
		members: map[string]bool{"@fine": true},
		errs:    map[string]error{"@broken": errors.New("oracle unreachable")},
	}

	d, err := gk.Check(ctx, "@u:example.org", oracle)
	require.NoError(t, err)
	assert.False(t, d.Satisfied)
	require.NotNil(t, d.FailedGate)
	assert.Equal(t, "@broken", d.FailedGate.ChannelRef)
}

func TestCheck_ShortCircuitsOnFirstFailure(t *testing.T) {
	gk, _ := newTestGatekeeper(t)
	ctx := context.Background()

	_, err := gk.AddGate(ctx, "@first")
	require.NoError(t, err)
	_, err = gk.AddGate(ctx, "@second")
	require.NoError(t, err)

	oracle := &fakeOracle{members: map[string]bool{"@second": true}}
	d, err := gk.Check(ctx, "@u:example.org", oracle)
	require.NoError(t, err)
	assert.False(t, d.Satisfied)
	// Second gate was never queried
	assert.Equal(t, []string{"@first"}, oracle.calls)
	// Full gate list is still reported for join prompts
	assert.Len(t, d.Gates, 2)
}

func TestCheck_TimeoutIsNotSatisfied(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	gk := NewGatekeeper(s, 20*time.Millisecond)
	ctx := context.Background()

	_, err = gk.AddGate(ctx, "@slow")
	require.NoError(t, err)

	oracle := &fakeOracle{members: map[string]bool{"@slow": true}, slow: 200 * time.Millisecond}
	d, err := gk.Check(ctx, "@u:example.org", oracle)
	require.NoError(t, err)
	assert.False(t, d.Satisfied)
}

func TestCheck_MembershipRestored(t *testing.T) {
	gk, _ := newTestGatekeeper(t)
	ctx := context.Background()

	_, err := gk.AddGate(ctx, "@club")
	require.NoError(t, err)

	oracle := &fakeOracle{members: map[string]bool{}}
	d, err := gk.Check(ctx, "@u:example.org", oracle)
	require.NoError(t, err)
	assert.False(t, d.Satisfied)

	// User joins the channel, retry succeeds
	oracle.members["@club"] = true
	d, err = gk.Check(ctx, "@u:example.org", oracle)
	require.NoError(t, err)
	assert.True(t, d.Satisfied)
}
