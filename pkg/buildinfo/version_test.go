package buildinfo

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFill(t *testing.T) {
	v, c, d := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = v, c, d })

	Version, Commit, Date = "dev", "none", "unknown"
	fill(&debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	})
	if Version != "v1.2.0" || Commit != "abc123" || Date != "2026-01-02T03:04:05Z" {
		t.Errorf("got %s %s %s", Version, Commit, Date)
	}

	Version, Commit = "v9.9.9", "ldflags"
	fill(&debug.BuildInfo{
		Main:     debug.Module{Version: "v1.2.0"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}},
	})
	if Version != "v9.9.9" || Commit != "ldflags" {
		t.Error("ldflags values should win over the toolchain stamp")
	}

	Version = "dev"
	fill(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	if Version != "dev" {
		t.Errorf("(devel) should not replace dev, got %s", Version)
	}
}

func TestTemplate(t *testing.T) {
	if !strings.Contains(Template(), Version) || !strings.Contains(String(), "commit: ") {
		t.Error("version strings should include the build info")
	}
}
