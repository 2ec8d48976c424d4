package tremotesf

import (
	"strings"

	"github.com/hekmon/cunits/v2"
)

// TorrentFile mirrors one entry of a torrent's files/fileStats arrays. ID is
// the file's position in the list (its identity, per spec.md §3) and is
// stable only within a given torrent-get reply set, not across daemon
// restarts.
type TorrentFile struct {
	ID             int64
	Path           []string // path components, split on '/'
	Size           cunits.Bytes
	CompletedSize  cunits.Bytes
	Priority       Priority
	Wanted         bool
}

// Name returns the last path component, or "" for a zero-length path.
func (f TorrentFile) Name() string {
	if len(f.Path) == 0 {
		return ""
	}
	return f.Path[len(f.Path)-1]
}

type fileWire struct {
	Name           string `json:"name"`
	BytesCompleted float64 `json:"bytesCompleted"`
	Length         float64 `json:"length"`
}

type fileStatWire struct {
	BytesCompleted float64 `json:"bytesCompleted"`
	Wanted         bool    `json:"wanted"`
	Priority       int64   `json:"priority"`
}

func splitFilePath(name string) []string {
	if name == "" {
		return nil
	}
	return strings.Split(name, "/")
}

// updateFilesFromJSON rebuilds t.Files from the parallel "files"/"fileStats"
// arrays of a ["files","fileStats"] sub-fetch, returning the indexes of
// files whose fields changed (torrent_files_updated's changed_indexes,
// spec.md §4.5). Files are identified by position, per spec.md §3.
func updateFilesFromJSON(files *[]TorrentFile, names []fileWire, stats []fileStatWire) []int {
	changedIdx := make([]int, 0)
	n := len(names)
	if len(stats) < n {
		n = len(stats)
	}
	existing := *files
	result := make([]TorrentFile, n)
	for i := 0; i < n; i++ {
		f := TorrentFile{
			ID:            int64(i),
			Path:          splitFilePath(names[i].Name),
			Size:          cunits.ImportInByte(names[i].Length),
			CompletedSize: cunits.ImportInByte(stats[i].BytesCompleted),
			Priority:      filePriorityMapper.fromWire(nil, stats[i].Priority),
			Wanted:        stats[i].Wanted,
		}
		result[i] = f
		if i >= len(existing) || !existing[i].equal(f) {
			changedIdx = append(changedIdx, i)
		}
	}
	*files = result
	return changedIdx
}

func (f TorrentFile) equal(other TorrentFile) bool {
	if f.ID != other.ID || f.Size != other.Size || f.CompletedSize != other.CompletedSize ||
		f.Priority != other.Priority || f.Wanted != other.Wanted || len(f.Path) != len(other.Path) {
		return false
	}
	for i := range f.Path {
		if f.Path[i] != other.Path[i] {
			return false
		}
	}
	return true
}
