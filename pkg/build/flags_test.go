// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"testing"
)

var (
	origName    string
	origTime    string
	origCommit  string
	origVersion string
	origFlags   Flags
)

func TestMain(m *testing.M) {
	origName = buildName
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	origFlags = *flags

	exitCode := m.Run()

	buildName = origName
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	*flags = origFlags

	os.Exit(exitCode)
}

func TestInitializeDefaults(t *testing.T) {
	flags = &Flags{Name: "rave", Time: "dev", Commit: "dev", Version: "dev"}
	buildName, buildTime, buildCommit, buildVersion = "", "", "", ""

	Initialize()

	if flags.Name != "rave" || flags.Time != "dev" || flags.Commit != "dev" || flags.Version != "dev" {
		t.Errorf("Initialize() without ldflags should keep dev defaults, got %+v", flags)
	}
}

func TestInitializeFromLdflags(t *testing.T) {
	flags = &Flags{Name: "rave", Time: "dev", Commit: "dev", Version: "dev"}
	buildName = "rave"
	buildTime = "2026-08-30"
	buildCommit = "abcdef123"
	buildVersion = "v0.3.0"

	Initialize()

	if flags.Name != "rave" {
		t.Errorf("flags.Name = %v, want rave", flags.Name)
	}
	if flags.Time != "2026-08-30" {
		t.Errorf("flags.Time = %v, want 2026-08-30", flags.Time)
	}
	if flags.Commit != "abcdef123" {
		t.Errorf("flags.Commit = %v, want abcdef123", flags.Commit)
	}
	if flags.Version != "v0.3.0" {
		t.Errorf("flags.Version = %v, want v0.3.0", flags.Version)
	}
}

func TestGetFlags(t *testing.T) {
	expected := Flags{Name: "rave", Time: "t", Commit: "c", Version: "v"}
	flags = &expected

	got := GetFlags()
	if *got != expected {
		t.Errorf("GetFlags() = %+v, want %+v", got, expected)
	}
}
