package version

import (
	"runtime/debug"
	"strings"
)

// Link-time values. Empty commit and build time fall back to the VCS stamp
// the toolchain embeds.
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Info is what /info and the version command report.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
	IsDirty   bool   `json:"is_dirty"`
}

func Get() Info {
	info := Info{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
		vcs := map[string]string{}
		for _, s := range bi.Settings {
			vcs[s.Key] = s.Value
		}
		info.GitCommit = first(info.GitCommit, vcs["vcs.revision"])
		info.BuildTime = first(info.BuildTime, vcs["vcs.time"])
		info.IsDirty = vcs["vcs.modified"] == "true"
	}
	if len(info.GitCommit) > 7 {
		info.GitCommit = info.GitCommit[:7]
	}
	return info
}

func first(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// String is "version[-commit][-dirty][ (built time)]".
func (i Info) String() string {
	var b strings.Builder
	b.WriteString(i.Version)
	if i.GitCommit != "" {
		b.WriteString("-" + i.GitCommit)
	}
	if i.IsDirty {
		b.WriteString("-dirty")
	}
	if i.BuildTime != "" {
		b.WriteString(" (built " + i.BuildTime + ")")
	}
	return b.String()
}
