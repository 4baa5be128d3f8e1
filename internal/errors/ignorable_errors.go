package errors

import "strings"

// ignorableErrorSubstrings matches I/O failures that stem from the client
// going away rather than from a fault in the relay or the upstream.
var ignorableErrorSubstrings = []string{
	"context canceled",
	"connection reset by peer",
	"broken pipe",
	"use of closed network connection",
	"request canceled",
}

// IsIgnorableError reports whether the error is an expected disconnect that
// should be logged at debug level instead of as a failure.
func IsIgnorableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, substr := range ignorableErrorSubstrings {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}
