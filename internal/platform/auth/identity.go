package auth

import (
	"context"
	"errors"
	"net/http"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the authenticated caller as the services see it, whichever
// authenticator produced it.
type Identity struct {
	Subject string
	Email   string
	Roles   []string
}

// Authenticator turns an incoming request into an Identity. Implementations
// return ErrUnauthenticated when no credentials are presented at all.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (Identity, error)
}

type ctxKeyIdentity struct{}

func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	return v, ok
}
