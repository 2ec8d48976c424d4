package tremotesf

import "log/slog"

// enumMapper converts a daemon-visible wire value (an integer or short string)
// to a tagged Go value, falling back to a default and logging the unknown case.
// It mirrors the teacher's habit of keeping marshalling concerns in small,
// single-purpose helpers (see TorrentSetPayload.MarshalJSON).
type enumMapper[W comparable, V any] struct {
	field   string
	forward map[W]V
	def     V
}

func newEnumMapper[W comparable, V any](field string, def V, pairs map[W]V) enumMapper[W, V] {
	return enumMapper[W, V]{field: field, forward: pairs, def: def}
}

func (m enumMapper[W, V]) fromWire(logger *slog.Logger, wire W) V {
	if v, ok := m.forward[wire]; ok {
		return v
	}
	if logger != nil {
		logger.Debug("unknown enum value received, using default", "field", m.field, "value", wire)
	}
	return m.def
}

// Priority is the download priority of a TorrentFile. The daemon encodes it as
// -1/0/1; see filePriorityMapper.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityHigh:
		return "High"
	default:
		return "Normal"
	}
}

var filePriorityMapper = newEnumMapper("priority", PriorityNormal, map[int64]Priority{
	-1: PriorityLow,
	0:  PriorityNormal,
	1:  PriorityHigh,
})

// WireValue converts a Priority back to the Transmission integer encoding
// (S5 in spec.md §8: Low=-1, Normal=0, High=1).
func (p Priority) WireValue() int64 {
	switch p {
	case PriorityLow:
		return -1
	case PriorityHigh:
		return 1
	default:
		return 0
	}
}

// TrackerStatus mirrors the announce state of a Tracker, mapped from the
// daemon's 0..3 integer range.
type TrackerStatus int

const (
	TrackerInactive TrackerStatus = iota
	TrackerWaitingForUpdate
	TrackerQueuedForUpdate
	TrackerUpdating
)

func (s TrackerStatus) String() string {
	switch s {
	case TrackerWaitingForUpdate:
		return "WaitingForUpdate"
	case TrackerQueuedForUpdate:
		return "QueuedForUpdate"
	case TrackerUpdating:
		return "Updating"
	default:
		return "Inactive"
	}
}

var trackerStatusMapper = newEnumMapper("status", TrackerInactive, map[int64]TrackerStatus{
	0: TrackerInactive,
	1: TrackerWaitingForUpdate,
	2: TrackerQueuedForUpdate,
	3: TrackerUpdating,
})

// SeedRatioMode selects which seed ratio limit applies to a torrent.
type SeedRatioMode int64

const (
	SeedRatioGlobal SeedRatioMode = iota
	SeedRatioSingle
	SeedRatioUnlimited
)

// SeedIdleMode mirrors SeedRatioMode but for idle-seeding cutoffs.
type SeedIdleMode int64

const (
	SeedIdleGlobal SeedIdleMode = iota
	SeedIdleSingle
	SeedIdleUnlimited
)

// TorrentStatus is the daemon's torrent activity state (tr_torrent_activity).
type TorrentStatus int64

const (
	StatusStopped TorrentStatus = iota
	StatusCheckWait
	StatusChecking
	StatusDownloadWait
	StatusDownloading
	StatusSeedWait
	StatusSeeding
)

func (s TorrentStatus) String() string {
	switch s {
	case StatusCheckWait:
		return "CheckWait"
	case StatusChecking:
		return "Checking"
	case StatusDownloadWait:
		return "DownloadWait"
	case StatusDownloading:
		return "Downloading"
	case StatusSeedWait:
		return "SeedWait"
	case StatusSeeding:
		return "Seeding"
	default:
		return "Stopped"
	}
}
