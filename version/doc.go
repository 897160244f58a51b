// Package version reports build information for the dictation binary.
//
// Version, commit, and build time are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/dictation/version.Version=1.0.0" ./cmd/dictation
package version
