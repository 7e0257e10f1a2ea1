package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionInfo(t *testing.T) {
	origVersion, origDate, origCommit := Version, BuildDate, CommitHash
	t.Cleanup(func() { Version, BuildDate, CommitHash = origVersion, origDate, origCommit })

	Version, BuildDate, CommitHash = "1.2.3", "2024-05-01", "abc123"
	assert.Equal(t, "LogChannel version 1.2.3 (build: 2024-05-01, commit: abc123)", VersionInfo())
}
