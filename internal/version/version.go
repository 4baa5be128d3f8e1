// Package version holds the build version of the relay.
package version

// Version is set at build time via -ldflags "-X chat-relay/internal/version.Version=x.y.z".
var Version = "1.0.0"
