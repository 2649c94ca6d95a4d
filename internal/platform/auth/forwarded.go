package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/parkrow-labs/parkrow-go/internal/platform/requestid"
)

// ForwardedAuthenticator verifies identity headers injected by the gateway.
type ForwardedAuthenticator struct {
	Secret  string
	MaxSkew time.Duration
}

func NewForwardedAuthenticator(secret string) (*ForwardedAuthenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("PARKROW_INTERNAL_AUTH_SECRET is required")
	}
	return &ForwardedAuthenticator{
		Secret:  secret,
		MaxSkew: 5 * time.Minute,
	}, nil
}

func (a *ForwardedAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	subject := strings.TrimSpace(r.Header.Get(HeaderSubject))
	if subject == "" {
		return Identity{}, ErrUnauthenticated
	}

	email := strings.TrimSpace(r.Header.Get(HeaderEmail))
	rolesRaw := strings.TrimSpace(r.Header.Get(HeaderRoles))

	ts := strings.TrimSpace(r.Header.Get(HeaderInternalAuthTimestamp))
	sig := strings.TrimSpace(r.Header.Get(HeaderInternalAuthSignature))
	if ts == "" || sig == "" {
		return Identity{}, ErrUnauthenticated
	}

	if err := VerifyInternalAuthTimestamp(ts, time.Now().UTC(), a.MaxSkew); err != nil {
		return Identity{}, err
	}
	if err := VerifyInternalAuthSignature(
		a.Secret,
		ts,
		r.Method,
		r.URL.Path,
		requestid.FromRequest(r),
		subject,
		email,
		rolesRaw,
		sig,
	); err != nil {
		return Identity{}, err
	}

	return Identity{
		Subject: subject,
		Email:   email,
		Roles:   parseCSV(rolesRaw),
	}, nil
}
