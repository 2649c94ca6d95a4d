package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SharedKeyAuthenticator verifies HS256 bearer tokens minted with a shared
// secret. Used for service-to-service calls and the operator CLI.
type SharedKeyAuthenticator struct {
	secret   []byte
	issuer   string
	audience string
}

func NewSharedKeyAuthenticator(cfg Config) (*SharedKeyAuthenticator, error) {
	if strings.TrimSpace(cfg.SharedKeySecret) == "" {
		return nil, errors.New("shared key secret is required")
	}
	return &SharedKeyAuthenticator{
		secret:   []byte(cfg.SharedKeySecret),
		issuer:   strings.TrimSpace(cfg.SharedKeyIssuer),
		audience: strings.TrimSpace(cfg.SharedKeyAudience),
	}, nil
}

func (a *SharedKeyAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	raw := bearerToken(r)
	if raw == "" {
		return Identity{}, ErrUnauthenticated
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("unexpected claims type")
	}

	subject, _ := claims["sub"].(string)
	if strings.TrimSpace(subject) == "" {
		return Identity{}, errors.New("token missing sub claim")
	}
	email, _ := claims["email"].(string)

	return Identity{
		Subject: strings.TrimSpace(subject),
		Email:   strings.TrimSpace(email),
		Roles:   rolesClaim(claims, "roles"),
	}, nil
}

// MintSharedKeyToken issues a token for the given identity. Intended for the
// CLI and for tests; services only verify.
func MintSharedKeyToken(cfg Config, identity Identity, ttl time.Duration) (string, error) {
	if strings.TrimSpace(cfg.SharedKeySecret) == "" {
		return "", errors.New("shared key secret is required")
	}
	if strings.TrimSpace(identity.Subject) == "" {
		return "", errors.New("subject is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":   identity.Subject,
		"roles": identity.Roles,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if strings.TrimSpace(identity.Email) != "" {
		claims["email"] = identity.Email
	}
	if strings.TrimSpace(cfg.SharedKeyIssuer) != "" {
		claims["iss"] = cfg.SharedKeyIssuer
	}
	if strings.TrimSpace(cfg.SharedKeyAudience) != "" {
		claims["aud"] = cfg.SharedKeyAudience
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.SharedKeySecret))
}
