package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type ctxKeySiteID struct{}

// ErrSiteRequired indicates a missing site scope for a request.
var ErrSiteRequired = errors.New("site_id_required")

// SiteResolver extracts the site (management company) scope for the request.
type SiteResolver func(r *http.Request, identity Identity) (string, error)

func ContextWithSiteID(ctx context.Context, siteID string) context.Context {
	return context.WithValue(ctx, ctxKeySiteID{}, strings.TrimSpace(siteID))
}

func SiteIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(ctxKeySiteID{}).(string)
	return strings.TrimSpace(value), ok
}

// SiteIDFromRequest checks path parameters and headers for a site id.
func SiteIDFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if v := strings.TrimSpace(r.PathValue("site_id")); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get("X-Site-Id")); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get("X-Site-ID")); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.URL.Query().Get("site_id")); v != "" {
		return v
	}
	return ""
}

// RequireSiteIDResolver enforces site scoping for requests except listed prefixes.
func RequireSiteIDResolver(skipPrefixes []string) SiteResolver {
	return func(r *http.Request, identity Identity) (string, error) {
		for _, prefix := range skipPrefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				return "", nil
			}
		}
		siteID := SiteIDFromRequest(r)
		if siteID == "" {
			return "", ErrSiteRequired
		}
		return siteID, nil
	}
}
