package cmd

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestCurrentBuildUsesVCSStampWhenUnset(t *testing.T) {
	oldCommit, oldDate := Commit, Date
	t.Cleanup(func() { Commit, Date = oldCommit, oldDate })
	Commit, Date = "", ""

	read := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
		}}, true
	}
	meta := currentBuild(read)
	if meta.Commit != "0123456789ab" {
		t.Fatalf("commit = %q, want short revision", meta.Commit)
	}
	if meta.Date != "2026-10-01T12:00:00Z" {
		t.Fatalf("date = %q", meta.Date)
	}
	if !strings.HasPrefix(meta.String(), "proxychat dev 0123456789ab (2026-10-01T12:00:00Z) go") {
		t.Fatalf("String() = %q", meta.String())
	}
}

func TestCurrentBuildPrefersLinkerValues(t *testing.T) {
	oldVersion, oldCommit, oldDate := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldVersion, oldCommit, oldDate })
	Version, Commit, Date = "1.2.0", "abc123", "2026-09-30"

	read := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffffffff"}}}, true
	}
	meta := currentBuild(read)
	if meta.Version != "1.2.0" || meta.Commit != "abc123" || meta.Date != "2026-09-30" {
		t.Fatalf("meta = %+v", meta)
	}

	meta = currentBuild(func() (*debug.BuildInfo, bool) { return nil, false })
	if meta.Commit != "abc123" {
		t.Fatalf("commit without build info = %q", meta.Commit)
	}
}
