package tremotesf

import (
	"testing"

	"github.com/hekmon/cunits/v2"
	"github.com/stretchr/testify/require"
)

func TestUpdateFilesFromJSONBuildsPathsAndReportsChangedIndexes(t *testing.T) {
	var files []TorrentFile
	names := []fileWire{
		{Name: "show/episode1.mkv", Length: 100},
		{Name: "show/episode2.mkv", Length: 200},
	}
	stats := []fileStatWire{
		{BytesCompleted: 50, Wanted: true, Priority: 0},
		{BytesCompleted: 0, Wanted: false, Priority: -1},
	}

	changed := updateFilesFromJSON(&files, names, stats)
	require.Equal(t, []int{0, 1}, changed)
	require.Len(t, files, 2)
	require.Equal(t, []string{"show", "episode1.mkv"}, files[0].Path)
	require.Equal(t, "episode1.mkv", files[0].Name())
	require.Equal(t, cunits.ImportInByte(50), files[0].CompletedSize)
	require.Equal(t, PriorityLow, files[1].Priority)
	require.False(t, files[1].Wanted)
}

func TestUpdateFilesFromJSONReportsNoChangeOnIdenticalReapply(t *testing.T) {
	var files []TorrentFile
	names := []fileWire{{Name: "a.txt", Length: 10}}
	stats := []fileStatWire{{BytesCompleted: 10, Wanted: true, Priority: 0}}

	updateFilesFromJSON(&files, names, stats)
	changed := updateFilesFromJSON(&files, names, stats)
	require.Empty(t, changed)
}

func TestTorrentFileEqualComparesPathComponents(t *testing.T) {
	a := TorrentFile{ID: 1, Path: []string{"a", "b"}, Wanted: true}
	b := TorrentFile{ID: 1, Path: []string{"a", "b"}, Wanted: true}
	c := TorrentFile{ID: 1, Path: []string{"a", "c"}, Wanted: true}
	require.True(t, a.equal(b))
	require.False(t, a.equal(c))
}
