package tremotesf

import (
	"encoding/json"
	"fmt"
	"time"
)

const defaultUpdateInterval = 5 * time.Second

// fullTorrentFields is the exact field set requested on each full update,
// per spec.md §6.
var fullTorrentFields = []string{
	"activityDate", "addedDate", "bandwidthPriority", "comment", "creator",
	"dateCreated", "doneDate", "downloadDir", "downloadedEver", "downloadLimit",
	"downloadLimited", "error", "errorString", "eta", "hashString", "haveValid",
	"honorsSessionLimits", "id", "leftUntilDone", "metadataPercentComplete",
	"name", "peer-limit", "peersConnected", "peersGettingFromUs",
	"peersSendingToUs", "percentDone", "queuePosition", "rateDownload",
	"rateUpload", "recheckProgress", "seedIdleLimit", "seedIdleMode",
	"seedRatioLimit", "seedRatioMode", "sizeWhenDone", "status", "totalSize",
	"trackerStats", "uploadedEver", "uploadLimit", "uploadLimited", "uploadRatio",
}

type torrentGetArgs struct {
	Fields []string `json:"fields"`
	IDs    []int64  `json:"ids,omitempty"`
}

type torrentGetReply struct {
	Torrents []json.RawMessage `json:"torrents"`
}

type torrentIDOnly struct {
	ID int64 `json:"id"`
}

// UpdateData starts a new update cycle immediately instead of waiting for
// the timer, optionally skipping the session-get fetch (spec.md §4.4:
// "update_data(update_server_settings=false)").
func (c *Client) UpdateData(updateServerSettings bool) {
	c.post(func(c *Client) {
		if c.status.State == Disconnected {
			return
		}
		c.beginUpdateCycle(updateServerSettings)
	})
}

// beginUpdateCycle issues session-get (optional)/torrent-get/session-stats
// concurrently and stops the update timer until the cycle converges
// (spec.md §4.4).
func (c *Client) beginUpdateCycle(fetchSettings bool) {
	c.stopUpdateTimerLocked()
	c.updating = true
	c.serverSettingsReady = !fetchSettings
	c.torrentsReady = false
	c.statsReady = false
	for i := range c.torrents {
		c.torrents[i].updated = false
	}
	ctx := c.engineContext()

	if fetchSettings {
		c.transport.Post(ctx, "session-get", nil, DataUpdate, func(r Response) {
			c.post(func(c *Client) { c.handleSessionGet(r) })
		})
	}
	c.transport.Post(ctx, "torrent-get", torrentGetArgs{Fields: fullTorrentFields}, DataUpdate, func(r Response) {
		c.post(func(c *Client) { c.handleTorrentGet(r) })
	})
	c.transport.Post(ctx, "session-stats", nil, DataUpdate, func(r Response) {
		c.post(func(c *Client) { c.handleSessionStats(r) })
	})
}

func (c *Client) stopUpdateTimerLocked() {
	if c.updateTimer != nil {
		c.updateTimer.Stop()
		c.updateTimer = nil
	}
}

func (c *Client) handleSessionGet(r Response) {
	if c.status.State == Disconnected {
		return
	}
	c.serverSettingsReady = true
	if r.Success {
		if _, err := c.settings.updateFromJSON(r.Arguments); err != nil {
			c.logger.Warn("decoding session-get reply failed", "error", err)
		}
		if c.status.State == Connecting {
			if ok, kind := checkVersion(c.settings.RPCVersion, c.settings.MinimumRPCVersion); !ok {
				c.failConnection(kind, "incompatible Transmission RPC version",
					fmt.Sprintf("rpc-version=%d rpc-version-minimum=%d client-minimum=%d",
						c.settings.RPCVersion, c.settings.MinimumRPCVersion, clientMinimumRPCVersion))
				return
			}
		}
	}
	c.checkCycleConvergence()
}

func (c *Client) handleSessionStats(r Response) {
	if c.status.State == Disconnected {
		return
	}
	c.statsReady = true
	if r.Success {
		if _, err := c.stats.updateFromJSON(r.Arguments); err != nil {
			c.logger.Warn("decoding session-stats reply failed", "error", err)
		}
	}
	c.checkCycleConvergence()
}

func (c *Client) handleTorrentGet(r Response) {
	if c.status.State == Disconnected {
		return
	}
	c.torrentsReady = true
	if r.Success {
		if err := c.applyTorrentGet(r.Arguments); err != nil {
			c.logger.Warn("decoding torrent-get reply failed", "error", err)
		}
	}
	c.checkCycleConvergence()
}

func (c *Client) applyTorrentGet(raw json.RawMessage) error {
	var reply torrentGetReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return err
	}

	ids := make([]int64, len(reply.Torrents))
	for i, item := range reply.Torrents {
		var idOnly torrentIDOnly
		if err := json.Unmarshal(item, &idOnly); err != nil {
			return err
		}
		ids[i] = idOnly.ID
	}

	var removed, changedRanges []IndexRange
	var addedCount int
	notify := reconcileNotifier{
		Removed: func(first, last int) { removed = append(removed, IndexRange{first, last}) },
		Changed: func(first, last int) { changedRanges = append(changedRanges, IndexRange{first, last}) },
		Added:   func(count int) { addedCount = count },
	}

	var added []*Torrent
	reconcile(
		&c.torrents,
		ids,
		func(item Torrent) int {
			for i, id := range ids {
				if id == item.ID {
					return i
				}
			}
			return -1
		},
		func(item *Torrent, _ int64) bool {
			for i, id := range ids {
				if id == item.ID {
					wasFinished := item.IsFinished()
					wasMetadataComplete := item.MetadataComplete()
					changed, err := item.updateFromJSON(reply.Torrents[i], c.resolve, c.logger)
					if err != nil {
						c.logger.Warn("decoding torrent-get entry failed", "id", item.ID, "error", err)
						return false
					}
					c.scheduleSubFetchesLocked(item)
					if !wasMetadataComplete && item.MetadataComplete() {
						c.scheduleSingleFileCheckLocked(item)
					}
					if !wasFinished && item.IsFinished() {
						tCopy := *item
						c.TorrentFinished.emit(&tCopy)
					}
					return changed
				}
			}
			return false
		},
		func(id int64) Torrent {
			var t Torrent
			for i, rid := range ids {
				if rid == id {
					if _, err := t.updateFromJSON(reply.Torrents[i], c.resolve, c.logger); err != nil {
						c.logger.Warn("decoding new torrent-get entry failed", "id", id, "error", err)
					}
					break
				}
			}
			c.scheduleSubFetchesLocked(&t)
			if t.MetadataComplete() {
				c.scheduleSingleFileCheckLocked(&t)
			}
			added = append(added, &t)
			return t
		},
		notify,
	)

	c.TorrentsUpdatedSignal.emit(TorrentsUpdated{Removed: removed, Changed: changedRanges, Added: addedCount})
	for _, t := range added {
		tCopy := *t
		c.TorrentAdded.emit(&tCopy)
	}
	return nil
}

// scheduleSubFetchesLocked issues the per-torrent files/peers sub-fetches the
// update cycle triggers for torrents with the corresponding *Enabled flag set
// (spec.md §4.4), tracking completion via pendingFiles/pendingPeers so
// Torrent.IsUpdated waits for them.
func (c *Client) scheduleSubFetchesLocked(t *Torrent) {
	id := t.ID
	if t.FilesEnabled {
		t.pendingFiles = true
		ctx := c.engineContext()
		c.transport.Post(ctx, "torrent-get", torrentGetArgs{Fields: []string{"id", "files", "fileStats"}, IDs: []int64{id}}, DataUpdate, func(r Response) {
			c.post(func(c *Client) { c.handleFilesFetch(id, r) })
		})
	}
	if t.PeersEnabled {
		t.pendingPeers = true
		ctx := c.engineContext()
		c.transport.Post(ctx, "torrent-get", torrentGetArgs{Fields: []string{"id", "peers"}, IDs: []int64{id}}, DataUpdate, func(r Response) {
			c.post(func(c *Client) { c.handlePeersFetch(id, r) })
		})
	}
}

func (c *Client) scheduleSingleFileCheckLocked(t *Torrent) {
	id := t.ID
	ctx := c.engineContext()
	c.transport.Post(ctx, "torrent-get", torrentGetArgs{Fields: []string{"id", "priorities"}, IDs: []int64{id}}, DataUpdate, func(r Response) {
		c.post(func(c *Client) { c.handleSingleFileCheck(id, r) })
	})
}

type fileFetchReply struct {
	Torrents []struct {
		ID        int64          `json:"id"`
		Files     []fileWire     `json:"files"`
		FileStats []fileStatWire `json:"fileStats"`
	} `json:"torrents"`
}

func (c *Client) handleFilesFetch(id int64, r Response) {
	if c.status.State == Disconnected {
		return
	}
	t := c.findTorrentLocked(id)
	if t == nil {
		// Torrent was removed before this sub-fetch returned; spec.md §9
		// requires its effect be discarded.
		return
	}
	t.pendingFiles = false
	if !r.Success {
		return
	}
	var reply fileFetchReply
	if err := json.Unmarshal(r.Arguments, &reply); err != nil {
		c.logger.Warn("decoding files sub-fetch failed", "id", id, "error", err)
		return
	}
	for _, entry := range reply.Torrents {
		if entry.ID != id {
			continue
		}
		changedIdx := updateFilesFromJSON(&t.Files, entry.Files, entry.FileStats)
		tCopy := *t
		c.TorrentFilesUpdated.emit(TorrentFilesUpdated{Torrent: &tCopy, ChangedIndexes: changedIdx})
	}
	c.checkCycleConvergence()
}

type peerFetchReply struct {
	Torrents []struct {
		ID    int64      `json:"id"`
		Peers []peerWire `json:"peers"`
	} `json:"torrents"`
}

func (c *Client) handlePeersFetch(id int64, r Response) {
	if c.status.State == Disconnected {
		return
	}
	t := c.findTorrentLocked(id)
	if t == nil {
		return
	}
	t.pendingPeers = false
	if !r.Success {
		return
	}
	var reply peerFetchReply
	if err := json.Unmarshal(r.Arguments, &reply); err != nil {
		c.logger.Warn("decoding peers sub-fetch failed", "id", id, "error", err)
		return
	}
	for _, entry := range reply.Torrents {
		if entry.ID != id {
			continue
		}
		var removed, changedRanges []IndexRange
		var addedCount int
		notify := reconcileNotifier{
			Removed: func(first, last int) { removed = append(removed, IndexRange{first, last}) },
			Changed: func(first, last int) { changedRanges = append(changedRanges, IndexRange{first, last}) },
			Added:   func(count int) { addedCount = count },
		}
		reconcilePeers(&t.Peers, entry.Peers, notify)
		tCopy := *t
		c.TorrentPeersUpdated.emit(TorrentPeersUpdated{Torrent: &tCopy, Removed: removed, Changed: changedRanges, Added: addedCount})
	}
	c.checkCycleConvergence()
}

type singleFileReply struct {
	Torrents []struct {
		ID         int64   `json:"id"`
		Priorities []int64 `json:"priorities"`
	} `json:"torrents"`
}

func (c *Client) handleSingleFileCheck(id int64, r Response) {
	if c.status.State == Disconnected {
		return
	}
	t := c.findTorrentLocked(id)
	if t == nil || !r.Success {
		c.checkCycleConvergence()
		return
	}
	var reply singleFileReply
	if err := json.Unmarshal(r.Arguments, &reply); err != nil {
		c.logger.Warn("decoding single-file check failed", "id", id, "error", err)
		c.checkCycleConvergence()
		return
	}
	for _, entry := range reply.Torrents {
		if entry.ID == id {
			if len(entry.Priorities) == 1 {
				t.SingleFile = tristateTrue
			} else {
				t.SingleFile = tristateFalse
			}
		}
	}
	c.checkCycleConvergence()
}

// SetTorrentFilesEnabled toggles whether the per-cycle files/fileStats
// sub-fetch is scheduled for a torrent (spec.md §3: "files_enabled ... gate
// whether sub-updates are fetched each cycle") — callers flip this on while a
// torrent's file list is visible in the UI and off again once it isn't, to
// avoid paying for sub-fetches nobody is looking at.
func (c *Client) SetTorrentFilesEnabled(id int64, enabled bool) {
	c.post(func(c *Client) {
		if t := c.findTorrentLocked(id); t != nil {
			t.FilesEnabled = enabled
		}
	})
}

// SetTorrentPeersEnabled toggles whether the per-cycle peers sub-fetch is
// scheduled for a torrent, analogous to SetTorrentFilesEnabled.
func (c *Client) SetTorrentPeersEnabled(id int64, enabled bool) {
	c.post(func(c *Client) {
		if t := c.findTorrentLocked(id); t != nil {
			t.PeersEnabled = enabled
		}
	})
}

func (c *Client) findTorrentLocked(id int64) *Torrent {
	for i := range c.torrents {
		if c.torrents[i].ID == id {
			return &c.torrents[i]
		}
	}
	return nil
}

// checkCycleConvergence promotes Connecting->Connected and restarts the
// update timer once every base fetch and every torrent's sub-fetches have
// completed (spec.md §4.4).
func (c *Client) checkCycleConvergence() {
	if !(c.serverSettingsReady && c.torrentsReady && c.statsReady) {
		return
	}
	for i := range c.torrents {
		if !c.torrents[i].IsUpdated() {
			return
		}
	}
	if c.transport.HasPendingDataUpdateRequests() {
		return
	}

	if c.status.State == Connecting {
		c.setStatus(Status{State: Connected})
		c.ConnectedChanged.emit(true)
	}
	c.updating = false
	if c.status.State == Connected && !c.updateDisabled {
		c.scheduleNextUpdateLocked()
	}
}

func (c *Client) scheduleNextUpdateLocked() {
	interval := c.cfg.UpdateInterval
	if interval <= 0 {
		interval = defaultUpdateInterval
	}
	c.updateTimer = time.AfterFunc(interval, func() {
		c.post(func(c *Client) {
			if c.status.State != Connected {
				return
			}
			c.beginUpdateCycle(true)
		})
	})
}
