package auth

import (
	"errors"
	"net/http"
	"strings"
)

var ErrForbidden = errors.New("forbidden")

// Role names form a strict ladder; each role grants everything below it.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

func roleRank(role string) int {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleAdmin:
		return 3
	case RoleEditor:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// HasAtLeast reports whether any granted role meets the required tier.
// Unknown role names grant nothing.
func HasAtLeast(roles []string, required string) bool {
	want := roleRank(required)
	if want == 0 {
		return false
	}
	for _, role := range roles {
		if roleRank(role) >= want {
			return true
		}
	}
	return false
}

// RequiredRoleForRequest maps the HTTP method to the minimum role: reads
// need viewer, deletes need admin, other mutations need editor.
func RequiredRoleForRequest(r *http.Request) string {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return RoleViewer
	case http.MethodDelete:
		return RoleAdmin
	default:
		return RoleEditor
	}
}
