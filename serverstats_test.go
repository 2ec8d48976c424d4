package tremotesf

import (
	"testing"

	"github.com/hekmon/cunits/v2"
	"github.com/stretchr/testify/require"
)

func TestServerStatsUpdateFromJSON(t *testing.T) {
	raw := []byte(`{
		"downloadSpeed": 1024,
		"uploadSpeed": 512,
		"current-stats": {"downloadedBytes": 2048, "uploadedBytes": 1024, "secondsActive": 60, "sessionCount": 1},
		"cumulative-stats": {"downloadedBytes": 4096, "uploadedBytes": 2048, "secondsActive": 3600, "sessionCount": 10}
	}`)

	var s ServerStats
	changed, err := s.updateFromJSON(raw)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, cunits.ImportInByte(1024), s.DownloadSpeed)
	require.Equal(t, int64(1), s.Current.SessionCount)
	require.Equal(t, int64(10), s.Cumulative.SessionCount)
}

func TestServerStatsUpdateFromJSONReportsNoChangeWhenIdentical(t *testing.T) {
	raw := []byte(`{"downloadSpeed": 1, "current-stats": {}, "cumulative-stats": {}}`)
	var s ServerStats
	_, err := s.updateFromJSON(raw)
	require.NoError(t, err)
	changed, err := s.updateFromJSON(raw)
	require.NoError(t, err)
	require.False(t, changed)
}
