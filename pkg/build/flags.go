// SPDX-License-Identifier: MIT
//
// Package build carries the name, version, commit and build time embedded
// with -ldflags, e.g.
//
//	go build -ldflags "-X ledmeter/pkg/build.buildVersion=0.3.0 \
//	  -X ledmeter/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X ledmeter/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds fall back to the VCS stamp Go records in the binary.
package build

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

const (
	DefaultName        = "ledmeter"
	DefaultDescription = "Sound level meter that drives an LED bar graph"
)

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String is the one-line version banner.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultFlags()

	readBuildInfo = debug.ReadBuildInfo
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:        DefaultName,
		Description: DefaultDescription,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize copies the ldflags values into the build info. Missing values
// are filled from the Go build stamp where possible and reported in the
// returned error, which callers may treat as a warning.
func Initialize() error {
	var missing []string

	set := func(dst *string, val, name string) {
		if val == "" {
			missing = append(missing, name)
			return
		}
		*dst = val
	}
	set(&buildFlags.Name, buildName, "BuildName")
	set(&buildFlags.Time, buildTime, "BuildTime")
	set(&buildFlags.Commit, buildCommit, "BuildCommit")
	set(&buildFlags.Version, buildVersion, "BuildVersion")

	if len(missing) == 0 {
		return nil
	}

	if info, ok := readBuildInfo(); ok {
		if buildVersion == "" && info.Main.Version != "" {
			buildFlags.Version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && buildCommit == "":
				buildFlags.Commit = s.Value
				if len(buildFlags.Commit) > 7 {
					buildFlags.Commit = buildFlags.Commit[:7]
				}
			case s.Key == "vcs.time" && buildTime == "":
				buildFlags.Time = s.Value
			}
		}
	}

	return errors.New("build flags not set: " + strings.Join(missing, ", "))
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
