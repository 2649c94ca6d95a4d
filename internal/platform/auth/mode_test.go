package auth

import (
	"os"
	"testing"
)

func TestConfigFromEnv_Trust(t *testing.T) {
	t.Setenv("AUTH_MODE", "trust")
	t.Setenv("AUTH_TRUST_SUBJECT", "local-ops")
	t.Setenv("AUTH_TRUST_ROLES", "admin,viewer")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.Mode != ModeTrust {
		t.Fatalf("Mode=%q, want trust", cfg.Mode)
	}
	if cfg.TrustSubject != "local-ops" {
		t.Fatalf("TrustSubject=%q, want local-ops", cfg.TrustSubject)
	}
	if len(cfg.TrustRoles) != 2 {
		t.Fatalf("TrustRoles=%v, want 2 roles", cfg.TrustRoles)
	}
}

func TestConfigFromEnv_SharedKey_RequiresSecret(t *testing.T) {
	_ = os.Unsetenv("AUTH_SHARED_KEY_SECRET")
	t.Setenv("AUTH_MODE", "sharedkey")

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("expected error when secret missing")
	}
}

func TestConfigFromEnv_Forwarded_RequiresSecret(t *testing.T) {
	_ = os.Unsetenv("PARKROW_INTERNAL_AUTH_SECRET")
	t.Setenv("AUTH_MODE", "forwarded")

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("expected error when internal auth secret missing")
	}
}

func TestConfigFromEnv_UnknownMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "header-sniffing")

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestNewAuthenticator_PerMode(t *testing.T) {
	trust, err := NewAuthenticator(Config{Mode: ModeTrust, TrustSubject: "dev", TrustRoles: []string{RoleAdmin}})
	if err != nil {
		t.Fatalf("NewAuthenticator(trust) err=%v", err)
	}
	if _, ok := trust.(*TrustAuthenticator); !ok {
		t.Fatalf("expected TrustAuthenticator, got %T", trust)
	}

	shared, err := NewAuthenticator(Config{Mode: ModeSharedKey, SharedKeySecret: "s3cret"})
	if err != nil {
		t.Fatalf("NewAuthenticator(sharedkey) err=%v", err)
	}
	if _, ok := shared.(*SharedKeyAuthenticator); !ok {
		t.Fatalf("expected SharedKeyAuthenticator, got %T", shared)
	}

	forwarded, err := NewAuthenticator(Config{Mode: ModeForwarded, InternalAuthSecret: "s3cret"})
	if err != nil {
		t.Fatalf("NewAuthenticator(forwarded) err=%v", err)
	}
	if _, ok := forwarded.(*ForwardedAuthenticator); !ok {
		t.Fatalf("expected ForwardedAuthenticator, got %T", forwarded)
	}
}
