package tremotesf

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeDaemon is a minimal stand-in for a Transmission daemon's RPC endpoint,
// enough to drive the Client through a handshake and an update cycle.
type fakeDaemon struct {
	mu                sync.Mutex
	rpcVersion        int64
	rpcVersionMinimum int64
	torrents          []map[string]any
	sessionCloseCalls int
	srv               *httptest.Server
}

func newFakeDaemon(t *testing.T) *fakeDaemon {
	d := &fakeDaemon{rpcVersion: 17, rpcVersionMinimum: 1}
	d.srv = httptest.NewServer(http.HandlerFunc(d.handle))
	t.Cleanup(d.srv.Close)
	return d
}

func (d *fakeDaemon) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method    string `json:"method"`
		Arguments struct {
			Fields []string `json:"fields"`
			IDs    []int64  `json:"ids"`
		} `json:"arguments"`
		Tag uint64 `json:"tag"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	d.mu.Lock()
	defer d.mu.Unlock()

	var args any
	switch req.Method {
	case "session-get":
		args = map[string]any{
			"rpc-version":         d.rpcVersion,
			"rpc-version-minimum": d.rpcVersionMinimum,
			"version":              "4.0.0",
		}
	case "session-stats":
		args = map[string]any{}
	case "torrent-get":
		args = map[string]any{"torrents": d.torrents}
	case "session-close":
		d.sessionCloseCalls++
		args = map[string]any{}
	default:
		args = map[string]any{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"result":    "success",
		"arguments": args,
		"tag":       req.Tag,
	})
}

func (d *fakeDaemon) addr() (string, int) {
	u := d.srv.URL[len("http://"):]
	idx := strings.LastIndex(u, ":")
	port, _ := strconv.Atoi(u[idx+1:])
	return u[:idx], port
}

func newTestClient(t *testing.T, d *fakeDaemon) *Client {
	t.Helper()
	c := NewClient()
	t.Cleanup(c.Close)
	host, port := d.addr()
	require.NoError(t, c.Configure(ServerConfig{Address: host, Port: port, UpdateInterval: time.Hour}))
	return c
}

func waitForState(t *testing.T, c *Client, want ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Status().State == want
	}, 2*time.Second, 10*time.Millisecond, "expected state %s, got %s", want, c.Status().State)
}

func TestClientConnectsAndBecomesConnected(t *testing.T) {
	d := newFakeDaemon(t)
	c := newTestClient(t, d)

	c.Connect()
	waitForState(t, c, Connected)
	require.True(t, c.IsConnected())
	require.Equal(t, NoError, c.Status().Error)
}

func TestClientDisconnectsOnIncompatibleRPCVersion(t *testing.T) {
	// S1 in spec.md §8: server rpc-version below the client's minimum.
	d := newFakeDaemon(t)
	d.rpcVersion = 13
	c := newTestClient(t, d)

	c.Connect()
	waitForState(t, c, Disconnected)
	require.Equal(t, ServerIsTooOld, c.Status().Error)
}

func TestClientDisconnectClearsTorrentsWithSingleRemovalNotification(t *testing.T) {
	d := newFakeDaemon(t)
	d.torrents = []map[string]any{{"id": 1, "hashString": "abc", "name": "one"}}
	c := newTestClient(t, d)

	var notifications []TorrentsUpdated
	var mu sync.Mutex
	c.TorrentsUpdatedSignal.Connect(func(u TorrentsUpdated) {
		mu.Lock()
		notifications = append(notifications, u)
		mu.Unlock()
	})

	c.Connect()
	waitForState(t, c, Connected)
	require.Eventually(t, func() bool { return len(c.Torrents()) == 1 }, 2*time.Second, 10*time.Millisecond)

	c.Disconnect()
	waitForState(t, c, Disconnected)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, notifications)
	last := notifications[len(notifications)-1]
	require.Equal(t, []IndexRange{{First: 0, Last: 1}}, last.Removed)
	require.Empty(t, c.Torrents())
}

func TestClientTorrentByIDAndHash(t *testing.T) {
	d := newFakeDaemon(t)
	d.torrents = []map[string]any{{"id": 42, "hashString": "deadbeef", "name": "x"}}
	c := newTestClient(t, d)

	c.Connect()
	waitForState(t, c, Connected)
	require.Eventually(t, func() bool {
		_, ok := c.TorrentByID(42)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	tor, ok := c.TorrentByID(42)
	require.True(t, ok)
	require.Equal(t, "deadbeef", tor.HashString)

	tor2, ok := c.TorrentByHash("deadbeef")
	require.True(t, ok)
	require.Equal(t, int64(42), tor2.ID)

	_, ok = c.TorrentByID(999)
	require.False(t, ok)
}

func TestClientDisconnectSendsSessionClose(t *testing.T) {
	d := newFakeDaemon(t)
	c := newTestClient(t, d)

	c.Connect()
	waitForState(t, c, Connected)

	c.Disconnect()
	waitForState(t, c, Disconnected)

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.sessionCloseCalls == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClientVersionMismatchDoesNotSendSessionClose(t *testing.T) {
	// S1: the engine never reached Connected, so there is nothing to tell
	// the daemon is going away.
	d := newFakeDaemon(t)
	d.rpcVersion = 13
	c := newTestClient(t, d)

	c.Connect()
	waitForState(t, c, Disconnected)

	d.mu.Lock()
	defer d.mu.Unlock()
	require.Equal(t, 0, d.sessionCloseCalls)
}

func TestClientUsesConfiguredSiteResolverForTrackers(t *testing.T) {
	d := newFakeDaemon(t)
	d.torrents = []map[string]any{{
		"id": 1, "hashString": "abc", "name": "one",
		"trackerStats": []map[string]any{
			{"id": 5, "announce": "http://tracker.example.com/announce"},
		},
	}}

	c := NewClient(WithSiteResolver(func(host string) string { return "custom:" + host }))
	t.Cleanup(c.Close)
	host, port := d.addr()
	require.NoError(t, c.Configure(ServerConfig{Address: host, Port: port, UpdateInterval: time.Hour}))

	c.Connect()
	waitForState(t, c, Connected)

	require.Eventually(t, func() bool {
		tor, ok := c.TorrentByID(1)
		return ok && len(tor.Trackers) == 1
	}, 2*time.Second, 10*time.Millisecond)

	tor, ok := c.TorrentByID(1)
	require.True(t, ok)
	require.Equal(t, "custom:tracker.example.com", tor.Trackers[0].Site)
}

func TestClientStatusChangedEmitsOnEveryTransition(t *testing.T) {
	d := newFakeDaemon(t)
	c := newTestClient(t, d)

	var states []ConnectionState
	var mu sync.Mutex
	c.StatusChanged.Connect(func(s Status) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	c.Connect()
	waitForState(t, c, Connected)

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, states, Connecting)
	require.Contains(t, states, Connected)
}
