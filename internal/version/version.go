// Package version holds build metadata stamped in with ldflags:
//
//	go build -ldflags "-X github.com/rickgao/matchfeed/internal/version.Version=1.2.0 \
//	                   -X github.com/rickgao/matchfeed/internal/version.Commit=$(git rev-parse --short HEAD)" \
//	         ./cmd/matchd
package version

var (
	Version = "dev"
	Commit  = "unknown"
	// BuildTime is an RFC 3339 UTC timestamp.
	BuildTime = "unknown"
)

// Info is the build metadata reported by /health and `matchd version`.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{Version: Version, Commit: Commit, BuildTime: BuildTime}
}

// String formats the build metadata on one line.
func (i Info) String() string {
	return i.Version + " (" + i.Commit + ") built " + i.BuildTime
}
