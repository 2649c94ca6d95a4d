package requestid

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
)

// Header carries the request id across service boundaries.
const Header = "X-Request-Id"

func New() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// FromRequest returns the inbound request id, if any.
func FromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.Header.Get(Header))
}
