// Package version reports the build the binary came from.
package version

import (
	"runtime/debug"
	"sync"
)

// Set through -ldflags "-X github.com/memohai/confidant/internal/version.Version=...".
var (
	Version    = "dev"
	CommitHash = ""
	BuildTime  = ""
)

// Info is the resolved build metadata.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}

var (
	resolveOnce sync.Once
	resolved    Info
)

// Get returns the build metadata, filling commit and time from the Go VCS
// stamp when ldflags left them empty.
func Get() Info {
	resolveOnce.Do(func() {
		resolved = resolve(Version, CommitHash, BuildTime, readVCS)
	})
	return resolved
}

// GetInfo returns "<version>" or "<version> (<short commit>)".
func GetInfo() string {
	return Get().String()
}

func (i Info) String() string {
	if i.Commit == "" {
		return i.Version
	}
	return i.Version + " (" + shortCommit(i.Commit) + ")"
}

func resolve(ver, commit, built string, vcs func() (string, string)) Info {
	if commit == "" {
		commit, built = mergeVCS(built, vcs)
	}
	return Info{Version: ver, Commit: commit, BuildTime: built}
}

func mergeVCS(built string, vcs func() (string, string)) (string, string) {
	revision, vcsTime := vcs()
	if built == "" {
		built = vcsTime
	}
	return revision, built
}

func readVCS() (revision, vcsTime string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			vcsTime = s.Value
		}
	}
	return revision, vcsTime
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
