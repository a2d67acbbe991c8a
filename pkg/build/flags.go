// SPDX-License-Identifier: MIT

// Package build carries build metadata (name, version, commit, timestamp)
// injected at compile time via -ldflags. During development the fields fall
// back to "dev" placeholders so the binary still runs without linker flags.
package build

type Flags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// Populated by -ldflags at compile time.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var flags = &Flags{
	Name:    "rave",
	Time:    "dev",
	Commit:  "dev",
	Version: "dev",
}

// Initialize copies linker-provided build information into the Flags struct.
// Call once early in startup; empty linker values keep the dev defaults.
func Initialize() {
	if buildName != "" {
		flags.Name = buildName
	}
	if buildTime != "" {
		flags.Time = buildTime
	}
	if buildCommit != "" {
		flags.Commit = buildCommit
	}
	if buildVersion != "" {
		flags.Version = buildVersion
	}
}

// GetFlags returns the current build information. Safe to call any time;
// values are only complete after Initialize has run.
func GetFlags() *Flags {
	return flags
}
