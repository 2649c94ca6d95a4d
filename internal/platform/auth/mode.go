package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/parkrow-labs/parkrow-go/internal/platform/env"
)

// Mode selects how a back-office service authenticates callers. The mode is
// fixed at startup; services never sniff headers to guess the caller kind.
type Mode string

const (
	// ModeTrust accepts every request as a fixed identity. Local development only.
	ModeTrust Mode = "trust"
	// ModeSharedKey verifies HS256 bearer tokens minted with a shared secret.
	ModeSharedKey Mode = "sharedkey"
	// ModeForwarded verifies gateway-signed identity headers.
	ModeForwarded Mode = "forwarded"
)

type Config struct {
	Mode Mode

	TrustSubject string
	TrustEmail   string
	TrustRoles   []string

	SharedKeySecret   string
	SharedKeyIssuer   string
	SharedKeyAudience string

	InternalAuthSecret string
}

func ConfigFromEnv() (Config, error) {
	modeRaw := strings.ToLower(strings.TrimSpace(env.String("AUTH_MODE", string(ModeForwarded))))
	var mode Mode
	switch modeRaw {
	case string(ModeTrust):
		mode = ModeTrust
	case string(ModeSharedKey):
		mode = ModeSharedKey
	case string(ModeForwarded):
		mode = ModeForwarded
	default:
		return Config{}, fmt.Errorf("AUTH_MODE must be one of: trust, sharedkey, forwarded (got %q)", modeRaw)
	}

	cfg := Config{
		Mode:               mode,
		TrustSubject:       env.String("AUTH_TRUST_SUBJECT", "local-admin"),
		TrustEmail:         env.String("AUTH_TRUST_EMAIL", "local-admin@example.local"),
		TrustRoles:         env.List("AUTH_TRUST_ROLES", []string{RoleAdmin}),
		SharedKeySecret:    env.String("AUTH_SHARED_KEY_SECRET", ""),
		SharedKeyIssuer:    env.String("AUTH_SHARED_KEY_ISSUER", "parkrow"),
		SharedKeyAudience:  env.String("AUTH_SHARED_KEY_AUDIENCE", "parkrow-backoffice"),
		InternalAuthSecret: env.String("PARKROW_INTERNAL_AUTH_SECRET", ""),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeTrust:
		if strings.TrimSpace(c.TrustSubject) == "" {
			return errors.New("AUTH_TRUST_SUBJECT is required when AUTH_MODE=trust")
		}
		if len(c.TrustRoles) == 0 {
			return errors.New("AUTH_TRUST_ROLES must be non-empty when AUTH_MODE=trust")
		}
	case ModeSharedKey:
		if strings.TrimSpace(c.SharedKeySecret) == "" {
			return errors.New("AUTH_SHARED_KEY_SECRET is required when AUTH_MODE=sharedkey")
		}
	case ModeForwarded:
		if strings.TrimSpace(c.InternalAuthSecret) == "" {
			return errors.New("PARKROW_INTERNAL_AUTH_SECRET is required when AUTH_MODE=forwarded")
		}
	default:
		return fmt.Errorf("unsupported auth mode: %q", c.Mode)
	}
	return nil
}

// NewAuthenticator builds the authenticator for the configured mode.
func NewAuthenticator(cfg Config) (Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case ModeTrust:
		return NewTrustAuthenticator(cfg), nil
	case ModeSharedKey:
		return NewSharedKeyAuthenticator(cfg)
	case ModeForwarded:
		return NewForwardedAuthenticator(cfg.InternalAuthSecret)
	default:
		return nil, fmt.Errorf("unsupported auth mode: %q", cfg.Mode)
	}
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		item := strings.ToLower(strings.TrimSpace(part))
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
