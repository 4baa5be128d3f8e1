package errors

import (
	"strings"

	"github.com/tidwall/gjson"
)

// maxErrorBodyLength limits how much of an upstream error body is surfaced to
// clients and logs.
const maxErrorBodyLength = 2048

// ParseUpstreamError extracts a human-readable message from an upstream error
// body. It understands the common shapes returned by chat-completion backends
// and falls back to the raw body when no known field is present.
func ParseUpstreamError(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	raw := string(body)
	if gjson.Valid(raw) {
		// Checked from most to least specific.
		candidates := []string{
			"error.message",
			"error_msg",
			"error",
			"message",
		}
		for _, path := range candidates {
			if v := gjson.Get(raw, path); v.Type == gjson.String && v.Str != "" {
				return truncateString(strings.TrimSpace(v.Str), maxErrorBodyLength)
			}
		}
	}

	return truncateString(strings.TrimSpace(raw), maxErrorBodyLength)
}

// truncateString shortens s to at most maxLength bytes.
func truncateString(s string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	if len(s) > maxLength {
		return s[:maxLength]
	}
	return s
}
