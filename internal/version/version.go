// Package version provides centralized version information for the
// resumeflow binaries.
//
// The version variables are set during build using ldflags:
//
//	-ldflags "-X resumeflow/internal/version.version=v1.0.0 -X resumeflow/internal/version.commit=abc123 -X resumeflow/internal/version.buildTime=2025-01-01T00:00:00Z"
package version

import (
	"fmt"
	"io"
	"time"
)

// These variables are set via ldflags during build.
//
//nolint:gochecknoglobals // Required for build-time injection via ldflags.
var (
	version   string
	commit    string
	buildTime string
)

// ApplicationName is the name displayed in version output.
const ApplicationName = "resumeflow"

// Default values used when version information is not available.
const (
	DefaultVersion   = "dev"
	DefaultCommit    = "unknown"
	DefaultBuildTime = "unknown"
)

// Info encapsulates all version-related information with proper defaults.
type Info struct {
	Version   string
	Commit    string
	BuildTime string
}

// Get returns the current version information.
func Get() *Info {
	info := &Info{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
	if info.Version == "" {
		info.Version = DefaultVersion
	}
	if info.Commit == "" {
		info.Commit = DefaultCommit
	}
	if info.BuildTime == "" {
		info.BuildTime = DefaultBuildTime
	}
	return info
}

// Write renders the version to w, either as a bare version number or
// the full multi-line report.
func (i *Info) Write(w io.Writer, short bool) error {
	if short {
		_, err := fmt.Fprintln(w, i.Version)
		return err
	}
	_, err := fmt.Fprintf(w, "%s\nVersion: %s\nCommit: %s\nBuilt: %s\n",
		ApplicationName, i.Version, i.Commit, i.BuildTime)
	return err
}

// IsDevelopment returns true if the version indicates a development build.
func (i *Info) IsDevelopment() bool {
	return i.Version == DefaultVersion
}

// BuildTimestamp parses the build time, returning a zero time when it
// is absent or unparseable.
func (i *Info) BuildTimestamp() time.Time {
	if i.BuildTime == DefaultBuildTime {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, i.BuildTime)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// SetBuildVars sets the build-time variables. Primarily for tests;
// production builds inject these via ldflags.
func SetBuildVars(ver, com, bt string) {
	version = ver
	commit = com
	buildTime = bt
}

// ResetBuildVars clears all build variables.
func ResetBuildVars() {
	version = ""
	commit = ""
	buildTime = ""
}
