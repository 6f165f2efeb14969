// Package auth implements the capability registry that gates delegated
// operations.
//
// A grant is the triple (grantor, delegate, action). Absence of a triple
// means "not granted". Only the grantor toggles its own triples; the caller
// of Grant/Revoke is trusted to pass its own identity as grantor.
package auth

import (
	"slices"
	"strings"
	"sync"

	"github.com/roach88/tokenstream/internal/ir"
)

type key struct {
	grantor  ir.Address
	delegate ir.Address
	action   ir.Action
}

// Registry stores capability grants.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	grants map[key]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{grants: make(map[key]bool)}
}

// Check validates a triple without changing state.
func Check(grantor, delegate ir.Address, action ir.Action) error {
	if !action.Valid() {
		return ir.NewError(ir.CodeInvalidAction, "unknown action "+action.String())
	}
	if delegate.IsZero() {
		return ir.NewError(ir.CodeInvalidDelegate, "delegate is the null identifier")
	}
	if grantor.IsZero() {
		return ir.NewError(ir.CodeInvalidParty, "grantor is the null identifier")
	}
	return nil
}

// Grant sets (grantor, delegate, action) to true. Idempotent.
func (r *Registry) Grant(grantor, delegate ir.Address, action ir.Action) error {
	if err := Check(grantor, delegate, action); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[key{grantor, delegate, action}] = true
	return nil
}

// Revoke sets (grantor, delegate, action) to false.
// Revoking a grant that never existed is a no-op.
func (r *Registry) Revoke(grantor, delegate ir.Address, action ir.Action) error {
	if !action.Valid() {
		return ir.NewError(ir.CodeInvalidAction, "unknown action "+action.String())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{grantor, delegate, action}
	if _, ok := r.grants[k]; ok {
		r.grants[k] = false
	}
	return nil
}

// IsAuthorized is a pure lookup. Unknown triples and invalid actions are false.
func (r *Registry) IsAuthorized(grantor, delegate ir.Address, action ir.Action) bool {
	if !action.Valid() || delegate.IsZero() {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.grants[key{grantor, delegate, action}]
}

// Set writes a triple directly. Used when replaying persisted grants.
func (r *Registry) Set(g ir.Grant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[key{g.Grantor, g.Delegate, g.Action}] = g.Allowed
}

// Restore replaces all grants with the given set.
func (r *Registry) Restore(grants []ir.Grant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants = make(map[key]bool, len(grants))
	for _, g := range grants {
		r.grants[key{g.Grantor, g.Delegate, g.Action}] = g.Allowed
	}
}

// List returns every recorded triple (including revoked ones) ordered by
// grantor, delegate, action.
func (r *Registry) List() []ir.Grant {
	r.mu.RLock()
	out := make([]ir.Grant, 0, len(r.grants))
	for k, allowed := range r.grants {
		out = append(out, ir.Grant{Grantor: k.grantor, Delegate: k.delegate, Action: k.action, Allowed: allowed})
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b ir.Grant) int {
		if c := strings.Compare(string(a.Grantor), string(b.Grantor)); c != 0 {
			return c
		}
		if c := strings.Compare(string(a.Delegate), string(b.Delegate)); c != 0 {
			return c
		}
		return int(a.Action) - int(b.Action)
	})
	return out
}
