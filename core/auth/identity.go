package auth

import "context"

type ctxKey int

const identityKey ctxKey = iota

// Identity is an authenticated subject with its current roles.
// The zero value is the anonymous identity.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Roles  Roles
}

func (id Identity) IsAnonymous() bool {
	return id.Email == ""
}

func (id Identity) HasRole(role Role) bool {
	return id.Roles.Has(role)
}

// WithIdentity attaches id to ctx unless an identity is already attached.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if _, ok := FromContext(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, identityKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
