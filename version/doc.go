// Package version provides build version information for the voiced
// daemon. It is reported by GET /version and tagged on telemetry.
//
// Version, git commit, branch, and build time are set at compile time
// via -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/voicekit/version.Version=1.0.0" ./cmd/voiced
package version
