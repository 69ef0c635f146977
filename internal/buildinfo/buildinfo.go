// Package buildinfo provides build-time information for certkeeper binaries.
// Build information is injected at compile time via ldflags.
package buildinfo

import "runtime"

// Build information variables - injected at compile time via ldflags
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
	BuildUser  = "unknown"
	BuildHost  = "unknown"
)

// Info returns a structured representation of the build information
type Info struct {
	Version    string `json:"version" yaml:"version"`
	CommitHash string `json:"commit_hash" yaml:"commit_hash"`
	BuildTime  string `json:"build_time" yaml:"build_time"`
	BuildUser  string `json:"build_user" yaml:"build_user"`
	BuildHost  string `json:"build_host" yaml:"build_host"`
	GoVersion  string `json:"go_version" yaml:"go_version"`
	GOOS       string `json:"os" yaml:"os"`
	GOARCH     string `json:"arch" yaml:"arch"`
}

// Get returns the current build information as a structured Info
func Get() Info {
	return Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		BuildUser:  BuildUser,
		BuildHost:  BuildHost,
		GoVersion:  runtime.Version(),
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
	}
}
