package tremotesf

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

/*
	torrent-set mutator payload
	https://github.com/transmission/transmission/blob/4.0.3/docs/rpc-spec.md#32-torrent-mutator-torrent-set
*/

// compact drops adjacent duplicate tracker URLs, keeping the first of each
// run and the order of everything else, so a caller listing the same
// tracker twice doesn't produce a tracker-list with back-to-back repeats.
func compact(s []string) []string {
	if len(s) == 0 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// TorrentSetPayload contains all the mutators applicable to a list of
// torrents via torrent-set.
type TorrentSetPayload struct {
	BandwidthPriority   *int64         `json:"bandwidthPriority"`   // this torrent's bandwidth tr_priority_t
	DownloadLimit       *int64         `json:"downloadLimit"`       // maximum download speed (KBps)
	DownloadLimited     *bool          `json:"downloadLimited"`     // true if "downloadLimit" is honored
	FilesWanted         []int64        `json:"files-wanted"`        // indices of file(s) to download
	FilesUnwanted       []int64        `json:"files-unwanted"`      // indices of file(s) to not download
	HonorsSessionLimits *bool          `json:"honorsSessionLimits"` // true if session upload limits are honored
	IDs                 []int64        `json:"ids"`                 // torrent list
	Labels              []string       `json:"labels"`              // strings of user-defined labels
	Location            *string        `json:"location"`            // new location of the torrent's content
	PeerLimit           *int64         `json:"peer-limit"`          // maximum number of peers
	PriorityHigh        []int64        `json:"priority-high"`       // indices of high-priority file(s)
	PriorityLow         []int64        `json:"priority-low"`        // indices of low-priority file(s)
	PriorityNormal      []int64        `json:"priority-normal"`     // indices of normal-priority file(s)
	QueuePosition       *int64         `json:"queuePosition"`       // position of this torrent in its queue [0...n)
	SeedIdleLimit       *time.Duration `json:"-"`                   // torrent-level minutes of seeding inactivity
	SeedIdleMode        *SeedIdleMode  `json:"seedIdleMode"`        // which seeding inactivity cutoff to use
	SeedRatioLimit      *float64       `json:"seedRatioLimit"`      // torrent-level seeding ratio
	SeedRatioMode       *SeedRatioMode `json:"seedRatioMode"`       // which ratio mode to use
	TrackerList         []string       `json:"-"`                   // announce URLs, one per line, blank line between tiers
	UploadLimit         *int64         `json:"uploadLimit"`         // maximum upload speed (KBps)
	UploadLimited       *bool          `json:"uploadLimited"`       // true if "uploadLimit" is honored
}

// MarshalJSON writes only the fields the caller actually set. A plain
// 'omitempty' tag can't do this job here, since it would also drop
// legitimate zero values (0, false) a caller explicitly asked to send;
// pointer fields distinguish "unset" from "set to the zero value", so each
// one is added to the wire object only when non-nil.
func (tsp TorrentSetPayload) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 20)
	if tsp.BandwidthPriority != nil {
		m["bandwidthPriority"] = *tsp.BandwidthPriority
	}
	if tsp.DownloadLimit != nil {
		m["downloadLimit"] = *tsp.DownloadLimit
	}
	if tsp.DownloadLimited != nil {
		m["downloadLimited"] = *tsp.DownloadLimited
	}
	if tsp.FilesWanted != nil {
		m["files-wanted"] = tsp.FilesWanted
	}
	if tsp.FilesUnwanted != nil {
		m["files-unwanted"] = tsp.FilesUnwanted
	}
	if tsp.HonorsSessionLimits != nil {
		m["honorsSessionLimits"] = *tsp.HonorsSessionLimits
	}
	if tsp.IDs != nil {
		m["ids"] = tsp.IDs
	}
	if tsp.Labels != nil {
		m["labels"] = tsp.Labels
	}
	if tsp.Location != nil {
		m["location"] = *tsp.Location
	}
	if tsp.PeerLimit != nil {
		m["peer-limit"] = *tsp.PeerLimit
	}
	if tsp.PriorityHigh != nil {
		m["priority-high"] = tsp.PriorityHigh
	}
	if tsp.PriorityLow != nil {
		m["priority-low"] = tsp.PriorityLow
	}
	if tsp.PriorityNormal != nil {
		m["priority-normal"] = tsp.PriorityNormal
	}
	if tsp.QueuePosition != nil {
		m["queuePosition"] = *tsp.QueuePosition
	}
	if tsp.SeedIdleLimit != nil {
		m["seedIdleLimit"] = int64(*tsp.SeedIdleLimit / time.Minute)
	}
	if tsp.SeedIdleMode != nil {
		m["seedIdleMode"] = *tsp.SeedIdleMode
	}
	if tsp.SeedRatioLimit != nil {
		m["seedRatioLimit"] = *tsp.SeedRatioLimit
	}
	if tsp.SeedRatioMode != nil {
		m["seedRatioMode"] = *tsp.SeedRatioMode
	}
	if tsp.TrackerList != nil {
		m["trackerList"] = strings.Join(tsp.TrackerList, "\n")
	}
	if tsp.UploadLimit != nil {
		m["uploadLimit"] = *tsp.UploadLimit
	}
	if tsp.UploadLimited != nil {
		m["uploadLimited"] = *tsp.UploadLimited
	}
	return json.Marshal(m)
}

// TorrentSet applies a set of mutators to a list of torrent ids (spec.md
// §4.4). Like every write operation, it is issued Independent of the update
// cycle and, on success, triggers a resync via UpdateData.
func (c *Client) TorrentSet(payload TorrentSetPayload) error {
	if len(payload.IDs) == 0 {
		return errors.New("there must be at least one ID")
	}
	payload.TrackerList = compact(payload.TrackerList)
	c.postWrite("torrent-set", payload, true)
	return nil
}
