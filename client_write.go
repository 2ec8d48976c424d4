package tremotesf

import "encoding/json"

// postWrite issues method as an Independent request (spec.md §4.4: write
// operations never compete with the update cycle's DataUpdate budget) and,
// if it succeeds and resync is true, triggers a full UpdateData re-sync so
// observers see the effect of the mutation promptly rather than waiting for
// the next scheduled cycle.
func (c *Client) postWrite(method string, arguments interface{}, resync bool) {
	c.post(func(c *Client) {
		if c.status.State == Disconnected {
			return
		}
		ctx := c.engineContext()
		c.transport.Post(ctx, method, arguments, Independent, func(r Response) {
			if !r.Success {
				c.post(func(c *Client) {
					c.logger.Warn("write request failed", "method", method, "result", r.Result)
				})
				return
			}
			if resync {
				c.UpdateData(false)
			}
		})
	})
}

type torrentIDsArgs struct {
	IDs []int64 `json:"ids"`
}

// StartTorrents issues torrent-start for the given ids.
func (c *Client) StartTorrents(ids []int64) {
	c.postWrite("torrent-start", torrentIDsArgs{IDs: ids}, true)
}

// StartTorrentsNow issues torrent-start-now, which bypasses the queue.
func (c *Client) StartTorrentsNow(ids []int64) {
	c.postWrite("torrent-start-now", torrentIDsArgs{IDs: ids}, true)
}

// PauseTorrents issues torrent-stop for the given ids.
func (c *Client) PauseTorrents(ids []int64) {
	c.postWrite("torrent-stop", torrentIDsArgs{IDs: ids}, true)
}

type torrentRemoveArgs struct {
	IDs             []int64 `json:"ids"`
	DeleteLocalData bool    `json:"delete-local-data"`
}

// RemoveTorrents issues torrent-remove, optionally deleting the downloaded
// data alongside the torrent entry.
func (c *Client) RemoveTorrents(ids []int64, deleteLocalData bool) {
	c.postWrite("torrent-remove", torrentRemoveArgs{IDs: ids, DeleteLocalData: deleteLocalData}, true)
}

// TorrentVerify issues torrent-verify (rechecks on-disk data).
func (c *Client) TorrentVerify(ids []int64) {
	c.postWrite("torrent-verify", torrentIDsArgs{IDs: ids}, true)
}

// TorrentReannounce issues torrent-reannounce (forces a tracker announce).
func (c *Client) TorrentReannounce(ids []int64) {
	c.postWrite("torrent-reannounce", torrentIDsArgs{IDs: ids}, false)
}

type torrentSetLocationArgs struct {
	IDs      []int64 `json:"ids"`
	Location string  `json:"location"`
	Move     bool    `json:"move"`
}

// TorrentSetLocation issues torrent-set-location, optionally moving the
// existing data to the new location rather than just searching there.
func (c *Client) TorrentSetLocation(ids []int64, location string, move bool) {
	c.postWrite("torrent-set-location", torrentSetLocationArgs{IDs: ids, Location: location, Move: move}, true)
}

type torrentRenamePathArgs struct {
	IDs  []int64 `json:"ids"`
	Path string  `json:"path"`
	Name string  `json:"name"`
}

type torrentRenamePathReply struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
	Name string `json:"name"`
}

// TorrentRenamePath issues torrent-rename-path for a single torrent. On
// success it mutates the torrent's file path in place and emits
// TorrentFileRenamed, per spec.md §4.4's "file-rename responses additionally
// emit file_renamed and mutate the torrent's file path in place".
func (c *Client) TorrentRenamePath(id int64, path, newName string) {
	c.post(func(c *Client) {
		if c.status.State == Disconnected {
			return
		}
		ctx := c.engineContext()
		args := torrentRenamePathArgs{IDs: []int64{id}, Path: path, Name: newName}
		c.transport.Post(ctx, "torrent-rename-path", args, Independent, func(r Response) {
			c.post(func(c *Client) {
				if !r.Success {
					c.logger.Warn("torrent-rename-path failed", "id", id, "result", r.Result)
					return
				}
				var reply torrentRenamePathReply
				if err := json.Unmarshal(r.Arguments, &reply); err != nil {
					c.logger.Warn("decoding torrent-rename-path reply failed", "error", err)
					return
				}
				if t := c.findTorrentLocked(reply.ID); t != nil {
					applyRenamedPath(t, path, newName)
				}
				c.TorrentFileRenamed.emit(FileRenamed{TorrentID: reply.ID, Path: reply.Path, NewName: reply.Name})
			})
		})
	})
}

// applyRenamedPath mutates the in-memory file list so that the renamed
// file/directory's path component is updated without waiting on the next
// torrent-get cycle.
func applyRenamedPath(t *Torrent, path, newName string) {
	oldComponents := splitFilePath(path)
	if len(oldComponents) == 0 {
		return
	}
	depth := len(oldComponents)
	for i := range t.Files {
		f := &t.Files[i]
		if len(f.Path) < depth {
			continue
		}
		match := true
		for j := 0; j < depth; j++ {
			if f.Path[j] != oldComponents[j] {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		f.Path[depth-1] = newName
	}
}

type queueMoveArgs struct {
	IDs []int64 `json:"ids"`
}

// QueueMoveTop issues queue-move-top.
func (c *Client) QueueMoveTop(ids []int64) {
	c.postWrite("queue-move-top", queueMoveArgs{IDs: ids}, true)
}

// QueueMoveUp issues queue-move-up.
func (c *Client) QueueMoveUp(ids []int64) {
	c.postWrite("queue-move-up", queueMoveArgs{IDs: ids}, true)
}

// QueueMoveDown issues queue-move-down.
func (c *Client) QueueMoveDown(ids []int64) {
	c.postWrite("queue-move-down", queueMoveArgs{IDs: ids}, true)
}

// QueueMoveBottom issues queue-move-bottom.
func (c *Client) QueueMoveBottom(ids []int64) {
	c.postWrite("queue-move-bottom", queueMoveArgs{IDs: ids}, true)
}

// SessionSetPayload mirrors the subset of session-set mutators this engine
// exposes; nil fields are omitted from the wire payload.
type SessionSetPayload struct {
	DownloadDir           *string  `json:"download-dir,omitempty"`
	SpeedLimitDown        *int64   `json:"speed-limit-down,omitempty"`
	SpeedLimitDownEnabled *bool    `json:"speed-limit-down-enabled,omitempty"`
	SpeedLimitUp          *int64   `json:"speed-limit-up,omitempty"`
	SpeedLimitUpEnabled   *bool    `json:"speed-limit-up-enabled,omitempty"`
	AltSpeedDown          *int64   `json:"alt-speed-down,omitempty"`
	AltSpeedUp            *int64   `json:"alt-speed-up,omitempty"`
	AltSpeedEnabled       *bool    `json:"alt-speed-enabled,omitempty"`
	PeerLimitGlobal       *int64   `json:"peer-limit-global,omitempty"`
	PexEnabled            *bool    `json:"pex-enabled,omitempty"`
	DHTEnabled            *bool    `json:"dht-enabled,omitempty"`
	LPDEnabled            *bool    `json:"lpd-enabled,omitempty"`
	UTPEnabled            *bool    `json:"utp-enabled,omitempty"`
	DownloadQueueEnabled  *bool    `json:"download-queue-enabled,omitempty"`
	DownloadQueueSize     *int64   `json:"download-queue-size,omitempty"`
	SeedQueueEnabled      *bool    `json:"seed-queue-enabled,omitempty"`
	SeedQueueSize         *int64   `json:"seed-queue-size,omitempty"`
	SeedRatioLimited      *bool    `json:"seedRatioLimited,omitempty"`
	SeedRatioLimit        *float64 `json:"seedRatioLimit,omitempty"`
	PeerPort              *int64   `json:"peer-port,omitempty"`
	PeerPortRandomOnStart *bool    `json:"peer-port-random-on-start,omitempty"`
}

// SessionSet issues session-set with an optimistic local mirror update: the
// in-memory ServerSettings are mutated immediately rather than waiting for
// the next session-get, and are NOT rolled back if the request later fails
// (resolved Open Question, spec.md §9 — matches the reference client's
// behavior of trusting the local edit until the next poll corrects it).
func (c *Client) SessionSet(payload SessionSetPayload) {
	c.post(func(c *Client) {
		if c.status.State == Disconnected {
			return
		}
		applySessionSetOptimistically(&c.settings, payload)
		ctx := c.engineContext()
		c.transport.Post(ctx, "session-set", payload, Independent, func(r Response) {
			if !r.Success {
				c.post(func(c *Client) {
					c.logger.Warn("session-set failed", "result", r.Result)
				})
			}
		})
	})
}

func applySessionSetOptimistically(s *ServerSettings, p SessionSetPayload) {
	if p.DownloadDir != nil {
		s.DownloadDir = *p.DownloadDir
	}
	if p.SpeedLimitDown != nil {
		s.SpeedLimitDown = *p.SpeedLimitDown
	}
	if p.SpeedLimitDownEnabled != nil {
		s.SpeedLimitDownEnabled = *p.SpeedLimitDownEnabled
	}
	if p.SpeedLimitUp != nil {
		s.SpeedLimitUp = *p.SpeedLimitUp
	}
	if p.SpeedLimitUpEnabled != nil {
		s.SpeedLimitUpEnabled = *p.SpeedLimitUpEnabled
	}
	if p.AltSpeedDown != nil {
		s.AltSpeedDown = *p.AltSpeedDown
	}
	if p.AltSpeedUp != nil {
		s.AltSpeedUp = *p.AltSpeedUp
	}
	if p.AltSpeedEnabled != nil {
		s.AltSpeedEnabled = *p.AltSpeedEnabled
	}
	if p.PeerLimitGlobal != nil {
		s.PeerLimitGlobal = *p.PeerLimitGlobal
	}
	if p.PexEnabled != nil {
		s.PexEnabled = *p.PexEnabled
	}
	if p.DHTEnabled != nil {
		s.DHTEnabled = *p.DHTEnabled
	}
	if p.LPDEnabled != nil {
		s.LPDEnabled = *p.LPDEnabled
	}
	if p.UTPEnabled != nil {
		s.UTPEnabled = *p.UTPEnabled
	}
	if p.DownloadQueueEnabled != nil {
		s.DownloadQueueEnabled = *p.DownloadQueueEnabled
	}
	if p.DownloadQueueSize != nil {
		s.DownloadQueueSize = *p.DownloadQueueSize
	}
	if p.SeedQueueEnabled != nil {
		s.SeedQueueEnabled = *p.SeedQueueEnabled
	}
	if p.SeedQueueSize != nil {
		s.SeedQueueSize = *p.SeedQueueSize
	}
	if p.SeedRatioLimited != nil {
		s.SeedRatioLimited = *p.SeedRatioLimited
	}
	if p.SeedRatioLimit != nil {
		s.SeedRatioLimit = *p.SeedRatioLimit
	}
	if p.PeerPort != nil {
		s.PeerPort = *p.PeerPort
	}
	if p.PeerPortRandomOnStart != nil {
		s.PeerPortRandomOnStart = *p.PeerPortRandomOnStart
	}
}
