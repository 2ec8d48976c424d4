package tremotesf

import "encoding/json"

type downloadDirFreeSpaceReply struct {
	DownloadDirFreeSpace int64 `json:"download-dir-free-space"`
}

// GetDownloadDirFreeSpace issues session-get scoped to download-dir-free-space
// and delivers the result via GotDownloadDirFreeSpace (spec.md §4.4).
func (c *Client) GetDownloadDirFreeSpace() {
	c.post(func(c *Client) {
		if c.status.State == Disconnected {
			return
		}
		ctx := c.engineContext()
		c.transport.Post(ctx, "session-get", struct {
			Fields []string `json:"fields"`
		}{Fields: []string{"download-dir-free-space"}}, Independent, func(r Response) {
			c.post(func(c *Client) {
				if !r.Success {
					return
				}
				var reply downloadDirFreeSpaceReply
				if err := json.Unmarshal(r.Arguments, &reply); err != nil {
					c.logger.Warn("decoding download-dir-free-space reply failed", "error", err)
					return
				}
				c.GotDownloadDirFreeSpace.emit(reply.DownloadDirFreeSpace)
			})
		})
	})
}

type freeSpaceArgs struct {
	Path string `json:"path"`
}

type freeSpaceReply struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size-bytes"`
}

// GetFreeSpaceForPath issues free-space for an arbitrary server-side path;
// the result (success or not) is delivered via GotFreeSpaceForPath.
func (c *Client) GetFreeSpaceForPath(path string) {
	c.post(func(c *Client) {
		if c.status.State == Disconnected {
			return
		}
		ctx := c.engineContext()
		c.transport.Post(ctx, "free-space", freeSpaceArgs{Path: path}, Independent, func(r Response) {
			c.post(func(c *Client) {
				if !r.Success {
					c.GotFreeSpaceForPath.emit(FreeSpaceResult{Path: path, Success: false})
					return
				}
				var reply freeSpaceReply
				if err := json.Unmarshal(r.Arguments, &reply); err != nil {
					c.logger.Warn("decoding free-space reply failed", "error", err)
					c.GotFreeSpaceForPath.emit(FreeSpaceResult{Path: path, Success: false})
					return
				}
				c.GotFreeSpaceForPath.emit(FreeSpaceResult{Path: reply.Path, Success: true, Bytes: reply.SizeBytes})
			})
		})
	})
}
