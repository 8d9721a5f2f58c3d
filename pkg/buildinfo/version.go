// Package buildinfo reports which oreflow build is running.
//
// Release builds stamp the values through ldflags:
//
//	go build -ldflags "-X github.com/matzehuels/oreflow/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/matzehuels/oreflow/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/oreflow/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Unstamped builds (go install, go run) fall back to the module version and
// VCS settings the Go toolchain embeds in the binary.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Set via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info describes one build.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Dirty   bool   `json:"dirty,omitempty"`
}

var (
	once   sync.Once
	cached Info
)

// Get returns the stamped build information, filling unstamped fields from
// the binary's embedded build info.
func Get() Info {
	once.Do(func() {
		cached = Info{Version: Version, Commit: Commit, Date: Date}
		if bi, ok := debug.ReadBuildInfo(); ok {
			cached = merge(cached, bi)
		}
	})
	return cached
}

// merge fills the fields of in that still hold their unstamped defaults.
func merge(in Info, bi *debug.BuildInfo) Info {
	if in.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		in.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if in.Commit == "none" {
				in.Commit = s.Value
			}
		case "vcs.time":
			if in.Date == "unknown" {
				in.Date = s.Value
			}
		case "vcs.modified":
			in.Dirty = s.Value == "true"
		}
	}
	return in
}

func (i Info) String() string {
	commit := i.Commit
	if i.Dirty {
		commit += " (modified)"
	}
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", i.Version, commit, i.Date)
}

// Template returns the cobra version template.
func Template() string {
	return "{{.Name}} " + Get().String() + "\n"
}
