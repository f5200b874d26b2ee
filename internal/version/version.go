// Package version provides the Medusa version string.
// The version is set at build time via -ldflags.
package version

// Version is the current Medusa version.
// Override at build time: go build -ldflags "-X github.com/medusa-kv/medusa/internal/version.Version=1.0.0"
var Version = "0.1.0"
