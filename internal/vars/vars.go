// Package vars holds build-time variables populated via the linker (ldflags).
package vars

import (
	"fmt"
	"os"
	"time"
)

// License of the project
const License = "MIT"

var (
	// Name of the project
	Name = "sampq"

	// Version of application (git tag) semver/tag, e.g. v1.2.3
	Version = "dev"

	// Commit is the current git commit, full or short git SHA
	Commit = "unknown"

	// BuildTime is the time of start build app, RFC3339 UTC
	BuildTime = time.Unix(0, 0)

	// URL to repository (https)
	URL = "https://github.com/woozymasta/samp"

	_buildTime string
)

func init() {
	if _buildTime != "" {
		if t, err := time.Parse(time.RFC3339, _buildTime); err == nil {
			BuildTime = t.UTC()
		}
	}
}

// Print writes the build information to the standard output.
func Print() {
	fmt.Printf(`name:     %s
url:      %s
file:     %s
version:  %s
commit:   %s
built:    %s
license:  %s
`, Name, URL, os.Args[0], Version, Commit, BuildTime, License)
}

// CommitShort returns the first 7 characters of the git commit hash.
func CommitShort() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}

	return Commit
}
