package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func sharedKeyTestConfig() Config {
	return Config{
		Mode:              ModeSharedKey,
		SharedKeySecret:   "test-secret",
		SharedKeyIssuer:   "parkrow",
		SharedKeyAudience: "parkrow-backoffice",
	}
}

func TestSharedKeyAuthenticator_RoundTrip(t *testing.T) {
	cfg := sharedKeyTestConfig()
	authn, err := NewSharedKeyAuthenticator(cfg)
	if err != nil {
		t.Fatalf("NewSharedKeyAuthenticator() err=%v", err)
	}

	token, err := MintSharedKeyToken(cfg, Identity{Subject: "svc-billing", Email: "svc@example.test", Roles: []string{"editor"}}, time.Hour)
	if err != nil {
		t.Fatalf("MintSharedKeyToken() err=%v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "http://example.test/sites/site-1/leases", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	identity, err := authn.Authenticate(req.Context(), req)
	if err != nil {
		t.Fatalf("Authenticate() err=%v", err)
	}
	if identity.Subject != "svc-billing" {
		t.Fatalf("Subject=%q, want svc-billing", identity.Subject)
	}
	if len(identity.Roles) != 1 || identity.Roles[0] != "editor" {
		t.Fatalf("Roles=%v, want [editor]", identity.Roles)
	}
}

func TestSharedKeyAuthenticator_MissingToken(t *testing.T) {
	authn, err := NewSharedKeyAuthenticator(sharedKeyTestConfig())
	if err != nil {
		t.Fatalf("NewSharedKeyAuthenticator() err=%v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)
	if _, err := authn.Authenticate(req.Context(), req); err != ErrUnauthenticated {
		t.Fatalf("err=%v, want ErrUnauthenticated", err)
	}
}

func TestSharedKeyAuthenticator_RejectsWrongSecret(t *testing.T) {
	cfg := sharedKeyTestConfig()
	authn, err := NewSharedKeyAuthenticator(cfg)
	if err != nil {
		t.Fatalf("NewSharedKeyAuthenticator() err=%v", err)
	}

	other := cfg
	other.SharedKeySecret = "other-secret"
	token, err := MintSharedKeyToken(other, Identity{Subject: "svc"}, time.Hour)
	if err != nil {
		t.Fatalf("MintSharedKeyToken() err=%v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if _, err := authn.Authenticate(req.Context(), req); err == nil {
		t.Fatalf("expected token signed with wrong secret to be rejected")
	}
}

func TestSharedKeyAuthenticator_RejectsNonHMACAlg(t *testing.T) {
	cfg := sharedKeyTestConfig()
	authn, err := NewSharedKeyAuthenticator(cfg)
	if err != nil {
		t.Fatalf("NewSharedKeyAuthenticator() err=%v", err)
	}

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "mallory",
		"iss": cfg.SharedKeyIssuer,
		"aud": cfg.SharedKeyAudience,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if _, err := authn.Authenticate(req.Context(), req); err == nil {
		t.Fatalf("expected alg=none token to be rejected")
	}
}

func TestSharedKeyAuthenticator_RejectsExpired(t *testing.T) {
	cfg := sharedKeyTestConfig()
	authn, err := NewSharedKeyAuthenticator(cfg)
	if err != nil {
		t.Fatalf("NewSharedKeyAuthenticator() err=%v", err)
	}

	claims := jwt.MapClaims{
		"sub": "svc",
		"iss": cfg.SharedKeyIssuer,
		"aud": cfg.SharedKeyAudience,
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.SharedKeySecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if _, err := authn.Authenticate(req.Context(), req); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
