package tremotesf

import (
	"encoding/json"
	"log/slog"

	"github.com/hekmon/cunits/v2"
)

// Torrent mirrors a single torrent-get entry. Its id is stable for the
// lifetime of the daemon's session; HashString is stable across sessions
// (spec.md §3). Files/Trackers/Peers are owned collections. Trackers and
// Peers are reconciled by the List Reconciler on their own identity (ID,
// Address); Files are not: each files sub-fetch rebuilds the list by
// position (updateFilesFromJSON) and reports only changed indexes, with no
// removed/added ranges.
type Torrent struct {
	ID         int64
	HashString string

	Name        string
	Status      TorrentStatus
	Error       int64
	ErrorString string

	ActivityDate      int64
	AddedDate         int64
	DoneDate          int64
	DateCreated       int64
	Comment           string
	Creator           string
	DownloadDir       string
	Eta               int64
	QueuePosition     int64
	BandwidthPriority int64
	HonorsSessionLimits bool
	PeerLimit         int64

	SizeWhenDone        cunits.Bytes
	TotalSize           cunits.Bytes
	HaveValid           cunits.Bytes
	LeftUntilDone       cunits.Bytes
	DownloadedEver      cunits.Bytes
	UploadedEver        cunits.Bytes
	PercentDone         float64
	MetadataPercentComplete float64
	RecheckProgress     float64
	UploadRatio         float64

	// RateDownload/RateUpload are bytes-per-second, using the teacher's
	// cunits.Bytes type so callers get .String() humanization for free.
	RateDownload cunits.Bytes
	RateUpload   cunits.Bytes

	DownloadLimit   int64
	DownloadLimited bool
	UploadLimit     int64
	UploadLimited   bool

	SeedRatioLimit float64
	SeedRatioMode  SeedRatioMode
	SeedIdleLimit  int64
	SeedIdleMode   SeedIdleMode

	PeersConnected      int64
	PeersGettingFromUs  int64
	PeersSendingToUs    int64

	// single-file torrents are detected lazily via the "checkSingleFile"
	// follow-up fetch of ["id","priorities"]; Unknown until that completes.
	SingleFile tristate

	FilesEnabled bool
	PeersEnabled bool

	Files    []TorrentFile
	Trackers []Tracker
	Peers    []Peer

	// updated tracks whether the latest full torrent-get snapshot has been
	// applied; sub-fetches are tracked with pendingFiles/pendingPeers so
	// IsUpdated can require both to have landed (spec.md §4.2, §4.4).
	updated      bool
	pendingFiles bool
	pendingPeers bool
}

type tristate int

const (
	tristateUnknown tristate = iota
	tristateTrue
	tristateFalse
)

// IsUpdated is true once the torrent's latest assigned snapshot has been
// applied and any pending sub-fetch (files/peers, if enabled) has completed
// for the current cycle.
func (t *Torrent) IsUpdated() bool {
	return t.updated && !t.pendingFiles && !t.pendingPeers
}

// IsFinished mirrors the daemon's notion of "nothing left to download".
func (t *Torrent) IsFinished() bool {
	return t.LeftUntilDone == 0 && t.MetadataPercentComplete >= 1
}

// MetadataComplete reports whether metadata (the .torrent structure itself,
// as opposed to file contents) has fully arrived — gates the checkSingleFile
// follow-up in spec.md §4.4.
func (t *Torrent) MetadataComplete() bool {
	return t.MetadataPercentComplete >= 1
}

type torrentWire struct {
	ID                      int64           `json:"id"`
	HashString              string          `json:"hashString"`
	Name                    string          `json:"name"`
	Status                  int64           `json:"status"`
	Error                   int64           `json:"error"`
	ErrorString             string          `json:"errorString"`
	ActivityDate            int64           `json:"activityDate"`
	AddedDate               int64           `json:"addedDate"`
	DoneDate                int64           `json:"doneDate"`
	DateCreated             int64           `json:"dateCreated"`
	Comment                 string          `json:"comment"`
	Creator                 string          `json:"creator"`
	DownloadDir             string          `json:"downloadDir"`
	Eta                     int64           `json:"eta"`
	QueuePosition           int64           `json:"queuePosition"`
	BandwidthPriority       int64           `json:"bandwidthPriority"`
	HonorsSessionLimits     bool            `json:"honorsSessionLimits"`
	PeerLimit               int64           `json:"peer-limit"`
	SizeWhenDone            float64         `json:"sizeWhenDone"`
	TotalSize               float64         `json:"totalSize"`
	HaveValid               float64         `json:"haveValid"`
	LeftUntilDone           float64         `json:"leftUntilDone"`
	DownloadedEver          float64         `json:"downloadedEver"`
	UploadedEver            float64         `json:"uploadedEver"`
	PercentDone             float64         `json:"percentDone"`
	MetadataPercentComplete float64         `json:"metadataPercentComplete"`
	RecheckProgress         float64         `json:"recheckProgress"`
	UploadRatio             float64         `json:"uploadRatio"`
	RateDownload            float64         `json:"rateDownload"`
	RateUpload              float64         `json:"rateUpload"`
	DownloadLimit           int64           `json:"downloadLimit"`
	DownloadLimited         bool            `json:"downloadLimited"`
	UploadLimit             int64           `json:"uploadLimit"`
	UploadLimited           bool            `json:"uploadLimited"`
	SeedRatioLimit          float64         `json:"seedRatioLimit"`
	SeedRatioMode           int64           `json:"seedRatioMode"`
	SeedIdleLimit           int64           `json:"seedIdleLimit"`
	SeedIdleMode            int64           `json:"seedIdleMode"`
	PeersConnected          int64           `json:"peersConnected"`
	PeersGettingFromUs      int64           `json:"peersGettingFromUs"`
	PeersSendingToUs        int64           `json:"peersSendingToUs"`
	TrackerStats            []trackerWire   `json:"trackerStats"`
	Priorities              []int64         `json:"priorities"`
}

// updateFromJSON applies a torrent-get entry to t, returning true iff any
// observable field changed (spec.md §4.2). Trackers present in trackerStats
// are reconciled via the List Reconciler using tracker_id identity.
func (t *Torrent) updateFromJSON(raw json.RawMessage, resolve SiteResolver, logger *slog.Logger) (bool, error) {
	var w torrentWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return false, err
	}
	changed := false
	assign := func(same bool) {
		if !same {
			changed = true
		}
	}

	assign(t.ID == w.ID)
	t.ID = w.ID
	assign(t.HashString == w.HashString)
	t.HashString = w.HashString
	assign(t.Name == w.Name)
	t.Name = w.Name
	newStatus := TorrentStatus(w.Status)
	assign(t.Status == newStatus)
	t.Status = newStatus
	assign(t.Error == w.Error)
	t.Error = w.Error
	assign(t.ErrorString == w.ErrorString)
	t.ErrorString = w.ErrorString
	assign(t.ActivityDate == w.ActivityDate)
	t.ActivityDate = w.ActivityDate
	assign(t.AddedDate == w.AddedDate)
	t.AddedDate = w.AddedDate
	assign(t.DoneDate == w.DoneDate)
	t.DoneDate = w.DoneDate
	assign(t.DateCreated == w.DateCreated)
	t.DateCreated = w.DateCreated
	assign(t.Comment == w.Comment)
	t.Comment = w.Comment
	assign(t.Creator == w.Creator)
	t.Creator = w.Creator
	assign(t.DownloadDir == w.DownloadDir)
	t.DownloadDir = w.DownloadDir
	assign(t.Eta == w.Eta)
	t.Eta = w.Eta
	assign(t.QueuePosition == w.QueuePosition)
	t.QueuePosition = w.QueuePosition
	assign(t.BandwidthPriority == w.BandwidthPriority)
	t.BandwidthPriority = w.BandwidthPriority
	assign(t.HonorsSessionLimits == w.HonorsSessionLimits)
	t.HonorsSessionLimits = w.HonorsSessionLimits
	assign(t.PeerLimit == w.PeerLimit)
	t.PeerLimit = w.PeerLimit

	newSizeWhenDone := cunits.ImportInByte(w.SizeWhenDone)
	assign(t.SizeWhenDone == newSizeWhenDone)
	t.SizeWhenDone = newSizeWhenDone
	newTotalSize := cunits.ImportInByte(w.TotalSize)
	assign(t.TotalSize == newTotalSize)
	t.TotalSize = newTotalSize
	newHaveValid := cunits.ImportInByte(w.HaveValid)
	assign(t.HaveValid == newHaveValid)
	t.HaveValid = newHaveValid
	newLeftUntilDone := cunits.ImportInByte(w.LeftUntilDone)
	assign(t.LeftUntilDone == newLeftUntilDone)
	t.LeftUntilDone = newLeftUntilDone
	newDownloadedEver := cunits.ImportInByte(w.DownloadedEver)
	assign(t.DownloadedEver == newDownloadedEver)
	t.DownloadedEver = newDownloadedEver
	newUploadedEver := cunits.ImportInByte(w.UploadedEver)
	assign(t.UploadedEver == newUploadedEver)
	t.UploadedEver = newUploadedEver

	assign(t.PercentDone == w.PercentDone)
	t.PercentDone = w.PercentDone
	assign(t.MetadataPercentComplete == w.MetadataPercentComplete)
	t.MetadataPercentComplete = w.MetadataPercentComplete
	assign(t.RecheckProgress == w.RecheckProgress)
	t.RecheckProgress = w.RecheckProgress
	assign(t.UploadRatio == w.UploadRatio)
	t.UploadRatio = w.UploadRatio

	newRateDown := cunits.ImportInByte(w.RateDownload)
	assign(t.RateDownload == newRateDown)
	t.RateDownload = newRateDown
	newRateUp := cunits.ImportInByte(w.RateUpload)
	assign(t.RateUpload == newRateUp)
	t.RateUpload = newRateUp

	assign(t.DownloadLimit == w.DownloadLimit)
	t.DownloadLimit = w.DownloadLimit
	assign(t.DownloadLimited == w.DownloadLimited)
	t.DownloadLimited = w.DownloadLimited
	assign(t.UploadLimit == w.UploadLimit)
	t.UploadLimit = w.UploadLimit
	assign(t.UploadLimited == w.UploadLimited)
	t.UploadLimited = w.UploadLimited

	assign(t.SeedRatioLimit == w.SeedRatioLimit)
	t.SeedRatioLimit = w.SeedRatioLimit
	newSeedRatioMode := SeedRatioMode(w.SeedRatioMode)
	assign(t.SeedRatioMode == newSeedRatioMode)
	t.SeedRatioMode = newSeedRatioMode
	assign(t.SeedIdleLimit == w.SeedIdleLimit)
	t.SeedIdleLimit = w.SeedIdleLimit
	newSeedIdleMode := SeedIdleMode(w.SeedIdleMode)
	assign(t.SeedIdleMode == newSeedIdleMode)
	t.SeedIdleMode = newSeedIdleMode

	assign(t.PeersConnected == w.PeersConnected)
	t.PeersConnected = w.PeersConnected
	assign(t.PeersGettingFromUs == w.PeersGettingFromUs)
	t.PeersGettingFromUs = w.PeersGettingFromUs
	assign(t.PeersSendingToUs == w.PeersSendingToUs)
	t.PeersSendingToUs = w.PeersSendingToUs

	if w.TrackerStats != nil {
		if reconcileTrackers(&t.Trackers, w.TrackerStats, resolve, logger) {
			changed = true
		}
	}

	if w.Priorities != nil {
		newSingle := tristateFalse
		if len(w.Priorities) == 1 {
			newSingle = tristateTrue
		}
		assign(t.SingleFile == newSingle)
		t.SingleFile = newSingle
	}

	t.updated = true
	return changed, nil
}
