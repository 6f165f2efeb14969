package engine

import (
	"context"

	"github.com/roach88/tokenstream/internal/auth"
	"github.com/roach88/tokenstream/internal/ir"
)

// Grant lets delegate perform action on grantor's behalf. The caller is
// the grantor. Idempotent.
func (e *Engine) Grant(ctx context.Context, grantor, delegate ir.Address, action ir.Action) error {
	if err := auth.Check(grantor, delegate, action); err != nil {
		e.finish(ctx, OpGrant, 0, grantor, nil, err)
		return err
	}
	return e.setGrant(ctx, OpGrant, ir.Grant{Grantor: grantor, Delegate: delegate, Action: action, Allowed: true})
}

// Revoke withdraws a grant. Revoking a grant that was never given is not
// an error.
func (e *Engine) Revoke(ctx context.Context, grantor, delegate ir.Address, action ir.Action) error {
	if !action.Valid() {
		err := ir.NewError(ir.CodeInvalidAction, "unknown action "+action.String())
		e.finish(ctx, OpRevoke, 0, grantor, nil, err)
		return err
	}
	return e.setGrant(ctx, OpRevoke, ir.Grant{Grantor: grantor, Delegate: delegate, Action: action})
}

// IsAuthorized reports whether delegate may perform action for grantor.
func (e *Engine) IsAuthorized(grantor, delegate ir.Address, action ir.Action) bool {
	return e.grants.IsAuthorized(grantor, delegate, action)
}

// Grants lists every recorded grant, including revoked ones.
func (e *Engine) Grants() []ir.Grant {
	return e.grants.List()
}

func (e *Engine) setGrant(ctx context.Context, op string, g ir.Grant) (err error) {
	var t *tx
	defer func() { e.finish(ctx, op, 0, g.Grantor, t, err) }()

	e.grantMu.Lock()
	defer e.grantMu.Unlock()

	kind := ir.EventDelegateAuthorized
	if !g.Allowed {
		kind = ir.EventDelegateRevoked
	}
	t, err = e.atomically(ctx, 0, unix(e.clock), func(ctx context.Context, t *tx) error {
		if err := t.w.PutGrant(ctx, g); err != nil {
			return storageError(0, "put grant", err)
		}
		return t.emit(ctx, ir.Event{
			Kind:     kind,
			Caller:   g.Grantor,
			Sender:   g.Grantor,
			Delegate: g.Delegate,
			Action:   g.Action,
		})
	})
	if err != nil {
		return err
	}

	if g.Allowed {
		return e.grants.Grant(g.Grantor, g.Delegate, g.Action)
	}
	return e.grants.Revoke(g.Grantor, g.Delegate, g.Action)
}
