package utils

import (
	"net/url"
	"strings"
)

// SanitizeProxyURLForLog returns a string form of the URL with user info
// removed so credentials never reach the logs.
func SanitizeProxyURLForLog(u *url.URL) string {
	if u == nil {
		return ""
	}
	clone := *u
	clone.User = nil
	return clone.String()
}

// sensitiveQueryParams are query parameters whose values are redacted before
// a URL is logged.
var sensitiveQueryParams = []string{"key", "api_key", "apikey", "token", "access_token", "auth"}

// SanitizeURLForLog renders a request URL with auth material stripped:
// sensitive query parameters are redacted and userinfo is dropped.
func SanitizeURLForLog(u *url.URL) string {
	if u == nil {
		return ""
	}
	clone := *u
	clone.User = nil
	if clone.RawQuery != "" {
		query := clone.Query()
		changed := false
		for _, param := range sensitiveQueryParams {
			if query.Has(param) {
				query.Set(param, "REDACTED")
				changed = true
			}
		}
		if changed {
			clone.RawQuery = query.Encode()
		}
	}
	return clone.String()
}

// SanitizeRequestURLForLog is the string form of SanitizeURLForLog. Input
// that does not parse is returned unchanged.
func SanitizeRequestURLForLog(s string) string {
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	return SanitizeURLForLog(u)
}

// SanitizeProxyString removes user info from a proxy URL string, with a
// best-effort fallback when the URL does not parse.
func SanitizeProxyString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if u, err := url.Parse(s); err == nil {
		return SanitizeProxyURLForLog(u)
	}
	schemeIdx := strings.Index(s, "://")
	atIdx := strings.LastIndex(s, "@")
	if schemeIdx >= 0 && atIdx > schemeIdx+3 {
		return s[:schemeIdx+3] + s[atIdx+1:]
	}
	return s
}
