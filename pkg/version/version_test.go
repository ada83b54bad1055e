package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, GitCommit, info.GitCommit)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
	// "unknown" is not RFC3339, so no BuildTime in a dev build.
	assert.True(t, info.BuildTime.IsZero())
}

func TestGetBuildInfoParsesBuildDate(t *testing.T) {
	original := BuildDate
	defer func() { BuildDate = original }()
	BuildDate = "2026-03-01T12:00:00Z"

	info := GetBuildInfo()
	require.False(t, info.BuildTime.IsZero())

	want, err := time.Parse(time.RFC3339, BuildDate)
	require.NoError(t, err)
	assert.True(t, info.BuildTime.Equal(want))
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "fleetd/"+Version, UserAgent("fleetd"))
}
