package version

import "runtime/debug"

// Set at build time:
// go build -ldflags "-X yearn-vaults/internal/version.Version=v1.2.3 -X yearn-vaults/internal/version.GitCommit=$(git rev-parse HEAD)"
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func GetVersion() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

// GetBuildInfo reports ldflags values, falling back to the VCS stamp the
// go toolchain embeds when ldflags were not set.
func GetBuildInfo() map[string]string {
	info := map[string]string{
		"version":    GetVersion(),
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if GitCommit == "unknown" {
				info["git_commit"] = s.Value
			}
		case "vcs.time":
			if BuildTime == "unknown" {
				info["build_time"] = s.Value
			}
		case "vcs.modified":
			info["dirty"] = s.Value
		}
	}
	return info
}
