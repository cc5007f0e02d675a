package auth

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/microlms/core"
)

const bearerScheme = "bearer"

var ErrUnknownSubject = core.NewError(core.KindUnauthenticated, "token subject not found")

// IdentityResolver resolves a token subject against the live credential store.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, email string) (Identity, error)
}

// Gate turns an Authorization header into an Identity.
type Gate struct {
	tokens   *TokenService
	resolver IdentityResolver
}

func NewGate(tokens *TokenService, resolver IdentityResolver) *Gate {
	return &Gate{tokens: tokens, resolver: resolver}
}

// Authenticate returns the anonymous identity when there is no bearer token.
// Roles come from the resolver, not from the token.
func (g *Gate) Authenticate(ctx context.Context, authHeader string) (Identity, error) {
	token, ok := bearerToken(authHeader)
	if !ok {
		return Identity{}, nil
	}
	claims, err := g.tokens.Validate(token)
	if err != nil {
		return Identity{}, err
	}
	id, err := g.resolver.ResolveIdentity(ctx, claims.Subject)
	if err != nil {
		if core.KindOf(err) == core.KindNotFound {
			return Identity{}, ErrUnknownSubject
		}
		return Identity{}, errors.Wrap(err, "resolving token subject")
	}
	return id, nil
}

// AuthenticateContext attaches the request identity to ctx. It runs at most once per request:
// when ctx already carries an identity, it is returned unchanged.
func (g *Gate) AuthenticateContext(ctx context.Context, authHeader string) (context.Context, error) {
	if _, ok := FromContext(ctx); ok {
		return ctx, nil
	}
	id, err := g.Authenticate(ctx, authHeader)
	if err != nil {
		return ctx, err
	}
	return WithIdentity(ctx, id), nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) == 0 || !strings.EqualFold(parts[0], bearerScheme) {
		return "", false
	}
	if len(parts) == 1 {
		return "", true // "Bearer" without a token is malformed, not anonymous
	}
	return strings.TrimSpace(parts[1]), true
}
