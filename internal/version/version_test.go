package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, GoVersion, info.GoVersion)
	assert.False(t, info.BuildTime.IsZero())
}

func TestBuildInfoString(t *testing.T) {
	info := BuildInfo{
		Version:   "1.2.3",
		BuildDate: "2025-03-01T00:00:00Z",
		GitCommit: "abcdef1234567890",
		GoVersion: "go1.24",
	}

	s := info.String()
	assert.True(t, strings.HasPrefix(s, "Velox Window Engine\n"))
	assert.Contains(t, s, "Version: 1.2.3")
	assert.Contains(t, s, "Build Date: 2025-03-01T00:00:00Z")
	// Commit hashes are shortened for display.
	assert.Contains(t, s, "Git Commit: abcdef1")
	assert.NotContains(t, s, "abcdef1234567890")
}

func TestBuildInfoStringDirty(t *testing.T) {
	info := BuildInfo{Version: "1.0.0", Dirty: true}
	assert.Contains(t, info.String(), "(dirty)")
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "velox-window/"+Version, UserAgent())
}

func TestIsRelease(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"dev", false},
		{"1.0.0", true},
		{"1.0.0-rc1", false},
	}

	orig := Version
	defer func() { Version = orig }()

	for _, tt := range tests {
		Version = tt.version
		assert.Equal(t, tt.want, IsRelease(), "version %s", tt.version)
	}
}
