// Package buildinfo reports the identity of the running binary.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// Set at build time, e.g.
//
//	-ldflags "-X github.com/m3rciful/tandembot/core/buildinfo.Version=v1.2.3
//	          -X github.com/m3rciful/tandembot/core/buildinfo.Commit=abcdef0
//	          -X github.com/m3rciful/tandembot/core/buildinfo.Date=2026-01-02T15:04:05Z"
//
// Without ldflags Commit and Date fall back to the VCS stamp from go build.
var (
	Version = "dev"
	Commit  = "local"
	Date    = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && Commit == "local" && len(s.Value) >= 7:
			Commit = s.Value[:7]
		case s.Key == "vcs.time" && Date == "":
			Date = s.Value
		}
	}
}

// String renders the build identity on one line.
func String() string {
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return fmt.Sprintf("%s (%s, built %s)", Version, Commit, Date)
}
