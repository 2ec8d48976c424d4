package tremotesf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckVersionRejectsServerTooOld(t *testing.T) {
	// S1 in spec.md §8: rpc-version 13 < client minimum 14.
	ok, kind := checkVersion(13, 1)
	require.False(t, ok)
	require.Equal(t, ServerIsTooOld, kind)
}

func TestCheckVersionRejectsServerTooNew(t *testing.T) {
	ok, kind := checkVersion(17, 15)
	require.False(t, ok)
	require.Equal(t, ServerIsTooNew, kind)
}

func TestCheckVersionAcceptsCompatibleServer(t *testing.T) {
	ok, kind := checkVersion(14, 1)
	require.True(t, ok)
	require.Equal(t, NoError, kind)

	ok, kind = checkVersion(17, 14)
	require.True(t, ok)
	require.Equal(t, NoError, kind)
}

func TestCheckVersionAcceptsExactBoundary(t *testing.T) {
	ok, _ := checkVersion(clientMinimumRPCVersion, clientMinimumRPCVersion)
	require.True(t, ok)
}
