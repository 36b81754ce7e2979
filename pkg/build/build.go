// SPDX-License-Identifier: MIT

// Package build exposes metadata stamped into the binary at link time.
// Release builds set the variables through -ldflags; development builds
// fall back to the defaults below.
package build

import "fmt"

// Populated at link time, e.g.
//
//	go build -ldflags "-X spectro/pkg/build.version=v0.3.0 \
//	  -X spectro/pkg/build.commit=$(git rev-parse --short HEAD) \
//	  -X spectro/pkg/build.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Version returns the stamped semantic version, or "dev" for an
// unstamped build.
func Version() string { return version }

// String formats the full build identity for version output.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}
