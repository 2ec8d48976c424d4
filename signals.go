package tremotesf

import "sync"

// signal is a minimal typed pub/sub slot, the engine's stand-in for the
// source's host signal/slot system (spec.md §9: "do not require entities
// themselves to own notification machinery" — only Client owns these).
// Emit is only ever called from the engine's single run loop goroutine
// (client.go); Connect may be called from any goroutine, hence the lock.
type signal[T any] struct {
	mu        sync.Mutex
	listeners []func(T)
}

func (s *signal[T]) Connect(f func(T)) {
	if f == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, f)
}

func (s *signal[T]) emit(v T) {
	s.mu.Lock()
	listeners := make([]func(T), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()
	for _, f := range listeners {
		f(v)
	}
}

// IndexRange is a half-open [First, Last) index range, used by the List
// Reconciler's batched notifications (spec.md §4.3).
type IndexRange struct {
	First, Last int
}

// TorrentsUpdated carries the batched reconciliation result of one
// torrent-get cycle (spec.md §4.5).
type TorrentsUpdated struct {
	Removed []IndexRange
	Changed []IndexRange
	Added   int
}

// TorrentFilesUpdated carries the list of file indexes whose fields changed
// in a torrent's files/fileStats sub-fetch.
type TorrentFilesUpdated struct {
	Torrent        *Torrent
	ChangedIndexes []int
}

// TorrentPeersUpdated carries a peers sub-fetch's reconciliation result.
type TorrentPeersUpdated struct {
	Torrent *Torrent
	Removed []IndexRange
	Changed []IndexRange
	Added   int
}

// FileRenamed reports a successful torrent-rename-path reply.
type FileRenamed struct {
	TorrentID int64
	Path      string
	NewName   string
}

// FreeSpaceResult is delivered by GetFreeSpaceForPath.
type FreeSpaceResult struct {
	Path    string
	Success bool
	Bytes   int64
}
