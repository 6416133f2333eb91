package blacklist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsBlacklistedMatchesAnyPattern(t *testing.T) {
	bl, err := Compile([]string{`^/internal/.*$`, `/health$`})
	require.NoError(t, err)

	require.True(t, bl.IsBlacklisted("/internal/metrics"))
	require.True(t, bl.IsBlacklisted("/app/health"))
	require.False(t, bl.IsBlacklisted("/users"))
}

func TestCompileEmptyPatternsMatchesNothing(t *testing.T) {
	bl, err := Compile(nil)
	require.NoError(t, err)
	require.False(t, bl.IsBlacklisted("/anything"))
}

func TestCompileRejectsInvalidRegex(t *testing.T) {
	_, err := Compile([]string{`(unclosed`})
	require.Error(t, err)
}
