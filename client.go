package tremotesf

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// action is one unit of work posted onto the engine's single run loop,
// mirroring the source's "engine thread" (spec.md §5): all mutation of the
// entity mirror and all signal emission happens while running an action,
// never concurrently with another action. Grounded on the event-loop shape
// used throughout the pack's torrent schedulers (e.g. uber/kraken's
// eventLoop), simplified from an interface to a plain closure since nothing
// here needs dynamic dispatch on the event's type.
type action func(*Client)

// Client is the Session Orchestrator (RPC Engine) of spec.md §4.4: it owns
// the Transport and the entity mirror, drives the update cycle, the version
// handshake, the connection lifecycle and auto-reconnect, and the
// per-torrent file/peer/single-file follow-ups.
type Client struct {
	logger    *slog.Logger
	transport *Transport
	resolve   SiteResolver

	actions chan action
	stop    chan struct{}
	stopped chan struct{}

	// --- engine-thread-only state below; touched only from run() ---

	cfg       ServerConfig
	hasConfig bool

	status Status

	settings ServerSettings
	stats    ServerStats
	torrents []Torrent

	serverIsLocal    bool
	serverLocalKnown bool

	updating            bool
	updateDisabled      bool
	serverSettingsReady bool
	torrentsReady       bool
	statsReady          bool
	cycleGeneration     uint64

	updateTimer *time.Timer
	updateCtx   context.Context
	updateStop  context.CancelFunc

	reconnectTimer *time.Timer

	// --- signals ---

	StatusChanged          signal[Status]
	ConnectedChanged        signal[bool]
	ErrorChanged            signal[ErrorKind]
	TorrentsUpdatedSignal   signal[TorrentsUpdated]
	TorrentFilesUpdated     signal[TorrentFilesUpdated]
	TorrentPeersUpdated     signal[TorrentPeersUpdated]
	TorrentAdded            signal[*Torrent]
	TorrentFinished         signal[*Torrent]
	TorrentAddDuplicate     signal[string]
	TorrentAddError         signal[string]
	TorrentFileRenamed      signal[FileRenamed]
	GotDownloadDirFreeSpace signal[int64]
	GotFreeSpaceForPath     signal[FreeSpaceResult]
	AboutToDisconnect       signal[struct{}]
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithLogger injects a structured logger; defaults to slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSiteResolver overrides the default public-suffix-list tracker site
// resolver (spec.md §1).
func WithSiteResolver(resolve SiteResolver) ClientOption {
	return func(c *Client) {
		c.resolve = resolve
	}
}

// NewClient builds a disconnected engine. Call Configure then Connect to
// start talking to a daemon.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		actions: make(chan action, 64),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.resolve == nil {
		c.resolve = DefaultSiteResolver
	}
	c.transport = NewTransport(c.logger)
	c.transport.OnFailure(c.onTransportFailure)
	go c.run()
	return c
}

// run is the engine's single-threaded cooperative loop (spec.md §5): every
// action, including response hop-backs from the transport and timer ticks,
// is executed here, one at a time.
func (c *Client) run() {
	defer close(c.stopped)
	for {
		select {
		case a := <-c.actions:
			a(c)
		case <-c.stop:
			return
		}
	}
}

// post enqueues a on the engine loop. Safe to call from any goroutine.
func (c *Client) post(a action) {
	select {
	case c.actions <- a:
	case <-c.stop:
	}
}

// Close stops the engine loop permanently; the Client must not be used
// afterwards.
func (c *Client) Close() {
	c.post(func(c *Client) {
		c.disconnectLocked(Status{}, false)
	})
	close(c.stop)
	<-c.stopped
}

// --- accessors: each hops onto the engine loop and back, so callers always
// observe a value that was consistent at some single instant (spec.md §4.5).

func (c *Client) Status() Status {
	return syncGet(c, func(c *Client) Status { return c.status })
}

func (c *Client) IsConnected() bool {
	return syncGet(c, func(c *Client) bool { return c.status.IsConnected() })
}

func (c *Client) IsLocal() (known, isLocal bool) {
	res := syncGet(c, func(c *Client) [2]bool { return [2]bool{c.serverLocalKnown, c.serverIsLocal} })
	return res[0], res[1]
}

func (c *Client) ServerSettings() ServerSettings {
	return syncGet(c, func(c *Client) ServerSettings { return c.settings })
}

func (c *Client) ServerStats() ServerStats {
	return syncGet(c, func(c *Client) ServerStats { return c.stats })
}

// Torrents returns a snapshot copy of the mirrored torrent list. Per spec.md
// §3, live borrowed references are only valid synchronously within a
// notification; this accessor hands the caller an independent copy instead,
// the safe equivalent in a language without borrow checking.
func (c *Client) Torrents() []Torrent {
	return syncGet(c, func(c *Client) []Torrent {
		out := make([]Torrent, len(c.torrents))
		copy(out, c.torrents)
		return out
	})
}

func (c *Client) TorrentByID(id int64) (Torrent, bool) {
	return syncGetOK(c, func(c *Client) (Torrent, bool) {
		for i := range c.torrents {
			if c.torrents[i].ID == id {
				return c.torrents[i], true
			}
		}
		return Torrent{}, false
	})
}

func (c *Client) TorrentByHash(hash string) (Torrent, bool) {
	return syncGetOK(c, func(c *Client) (Torrent, bool) {
		for i := range c.torrents {
			if c.torrents[i].HashString == hash {
				return c.torrents[i], true
			}
		}
		return Torrent{}, false
	})
}

func syncGet[T any](c *Client, f func(*Client) T) T {
	result := make(chan T, 1)
	c.post(func(c *Client) { result <- f(c) })
	return <-result
}

func syncGetOK[T any](c *Client, f func(*Client) (T, bool)) (T, bool) {
	type pair struct {
		v  T
		ok bool
	}
	result := make(chan pair, 1)
	c.post(func(c *Client) {
		v, ok := f(c)
		result <- pair{v, ok}
	})
	p := <-result
	return p.v, p.ok
}

// Configure replaces the server configuration. It does not itself connect;
// call Connect afterwards.
func (c *Client) Configure(cfg ServerConfig) error {
	if err := c.transport.Configure(cfg); err != nil {
		return err
	}
	c.post(func(c *Client) {
		c.cfg = cfg
		c.hasConfig = true
		c.serverLocalKnown = false
		c.detectLocalityAsync(cfg)
	})
	return nil
}

// SetUpdateDisabled enables or disables automatic scheduling of the next update
// cycle after the current one converges (callers that want manual polling
// set this true).
func (c *Client) SetUpdateDisabled(disabled bool) {
	c.post(func(c *Client) { c.updateDisabled = disabled })
}
