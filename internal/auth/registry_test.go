package auth

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenstream/internal/ir"
)

func TestRegistry_DefaultDeny(t *testing.T) {
	r := NewRegistry()

	for _, a := range ir.Actions {
		assert.False(t, r.IsAuthorized("alice", "dave", a))
	}
}

func TestRegistry_GrantIsIdempotent(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Grant("alice", "dave", ir.CreateOnBehalf))
	require.NoError(t, r.Grant("alice", "dave", ir.CreateOnBehalf))

	assert.True(t, r.IsAuthorized("alice", "dave", ir.CreateOnBehalf))
	assert.Len(t, r.List(), 1)
}

func TestRegistry_GrantIsScopedToTriple(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Grant("alice", "dave", ir.WithdrawOnBehalf))

	assert.True(t, r.IsAuthorized("alice", "dave", ir.WithdrawOnBehalf))
	assert.False(t, r.IsAuthorized("alice", "dave", ir.CancelOnBehalf), "other action")
	assert.False(t, r.IsAuthorized("alice", "erin", ir.WithdrawOnBehalf), "other delegate")
	assert.False(t, r.IsAuthorized("bob", "dave", ir.WithdrawOnBehalf), "other grantor")
	assert.False(t, r.IsAuthorized("dave", "alice", ir.WithdrawOnBehalf), "reversed")
}

func TestRegistry_GrantRejectsNullDelegate(t *testing.T) {
	r := NewRegistry()

	err := r.Grant("alice", ir.ZeroAddress, ir.CreateOnBehalf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ir.ErrInvalidDelegate))
	assert.Empty(t, r.List())
}

func TestRegistry_GrantRejectsInvalidAction(t *testing.T) {
	r := NewRegistry()

	err := r.Grant("alice", "dave", ir.Action(0))
	assert.True(t, errors.Is(err, ir.ErrInvalidAction))

	err = r.Revoke("alice", "dave", ir.Action(42))
	assert.True(t, errors.Is(err, ir.ErrInvalidAction))

	assert.False(t, r.IsAuthorized("alice", "dave", ir.Action(0)))
}

func TestRegistry_RevokeMissingIsNoop(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Revoke("alice", "dave", ir.CancelOnBehalf))
	assert.False(t, r.IsAuthorized("alice", "dave", ir.CancelOnBehalf))
	assert.Empty(t, r.List())
}

func TestRegistry_GrantRevokeGrant(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Grant("alice", "dave", ir.CancelOnBehalf))
	require.NoError(t, r.Revoke("alice", "dave", ir.CancelOnBehalf))
	assert.False(t, r.IsAuthorized("alice", "dave", ir.CancelOnBehalf))

	grants := r.List()
	require.Len(t, grants, 1)
	assert.False(t, grants[0].Allowed)

	require.NoError(t, r.Grant("alice", "dave", ir.CancelOnBehalf))
	assert.True(t, r.IsAuthorized("alice", "dave", ir.CancelOnBehalf))
}

func TestRegistry_RestoreAndList(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Grant("zed", "dave", ir.CreateOnBehalf))

	r.Restore([]ir.Grant{
		{Grantor: "bob", Delegate: "dave", Action: ir.CancelOnBehalf, Allowed: true},
		{Grantor: "alice", Delegate: "erin", Action: ir.WithdrawOnBehalf, Allowed: false},
		{Grantor: "alice", Delegate: "dave", Action: ir.CancelOnBehalf, Allowed: true},
		{Grantor: "alice", Delegate: "dave", Action: ir.CreateOnBehalf, Allowed: true},
	})

	assert.False(t, r.IsAuthorized("zed", "dave", ir.CreateOnBehalf), "restore replaces state")
	assert.True(t, r.IsAuthorized("bob", "dave", ir.CancelOnBehalf))
	assert.False(t, r.IsAuthorized("alice", "erin", ir.WithdrawOnBehalf))

	assert.Equal(t, []ir.Grant{
		{Grantor: "alice", Delegate: "dave", Action: ir.CreateOnBehalf, Allowed: true},
		{Grantor: "alice", Delegate: "dave", Action: ir.CancelOnBehalf, Allowed: true},
		{Grantor: "alice", Delegate: "erin", Action: ir.WithdrawOnBehalf, Allowed: false},
		{Grantor: "bob", Delegate: "dave", Action: ir.CancelOnBehalf, Allowed: true},
	}, r.List())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.Grant("alice", "dave", ir.WithdrawOnBehalf)
		}()
		go func() {
			defer wg.Done()
			_ = r.IsAuthorized("alice", "dave", ir.WithdrawOnBehalf)
		}()
	}
	wg.Wait()

	assert.True(t, r.IsAuthorized("alice", "dave", ir.WithdrawOnBehalf))
}
