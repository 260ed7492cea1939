// Package version carries build metadata injected through ldflags.
package version

import "runtime"

// Set via -ldflags "-X github.com/smazurov/uvcrtsp/internal/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is the build metadata of the running binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build metadata.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String formats the build metadata for the version subcommand.
func (i Info) String() string {
	return "uvcrtsp " + i.Version + " (" + i.GitCommit + ", built " + i.BuildDate + ", " + i.GoVersion + " " + i.Platform + ")"
}
