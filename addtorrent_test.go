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

// addTorrentDaemon fakes just enough of session-get/torrent-get/session-stats
// to let a Client reach Connected, plus a scriptable torrent-add reply.
type addTorrentDaemon struct {
	mu          sync.Mutex
	addReply    map[string]any
	addFail     bool
	addCalls    int
	lastAddArgs map[string]any
	renameCalls []map[string]any
	torrentGets int
	srv         *httptest.Server
}

func newAddTorrentDaemon(t *testing.T) *addTorrentDaemon {
	d := &addTorrentDaemon{}
	d.srv = httptest.NewServer(http.HandlerFunc(d.handle))
	t.Cleanup(d.srv.Close)
	return d
}

func (d *addTorrentDaemon) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method    string         `json:"method"`
		Arguments map[string]any `json:"arguments"`
		Tag       uint64         `json:"tag"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	d.mu.Lock()
	defer d.mu.Unlock()

	var args any
	result := "success"
	switch req.Method {
	case "session-get":
		args = map[string]any{"rpc-version": 17, "rpc-version-minimum": 1}
	case "session-stats":
		args = map[string]any{}
	case "torrent-get":
		d.torrentGets++
		args = map[string]any{"torrents": []map[string]any{}}
	case "torrent-add":
		d.addCalls++
		d.lastAddArgs = req.Arguments
		if d.addFail {
			result = "invalid or corrupt torrent file"
			args = map[string]any{}
		} else {
			args = d.addReply
		}
	case "torrent-rename-path":
		d.renameCalls = append(d.renameCalls, req.Arguments)
		ids, _ := req.Arguments["ids"].([]any)
		var id int64
		if len(ids) > 0 {
			if f, ok := ids[0].(float64); ok {
				id = int64(f)
			}
		}
		args = map[string]any{"id": id, "path": req.Arguments["path"], "name": req.Arguments["name"]}
	default:
		args = map[string]any{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"result": result, "arguments": args, "tag": req.Tag})
}

func (d *addTorrentDaemon) addr() (string, int) {
	u := d.srv.URL[len("http://"):]
	idx := strings.LastIndex(u, ":")
	port, _ := strconv.Atoi(u[idx+1:])
	return u[:idx], port
}

func newConnectedAddClient(t *testing.T, d *addTorrentDaemon) *Client {
	t.Helper()
	c := NewClient()
	t.Cleanup(c.Close)
	host, port := d.addr()
	require.NoError(t, c.Configure(ServerConfig{Address: host, Port: port, UpdateInterval: time.Hour}))
	c.Connect()
	require.Eventually(t, func() bool { return c.Status().State == Connected }, 2*time.Second, 10*time.Millisecond)
	return c
}

func TestAddTorrentLinkDuplicateEmitsDuplicateSignalWithoutResync(t *testing.T) {
	d := newAddTorrentDaemon(t)
	d.addReply = map[string]any{
		"torrent-duplicate": map[string]any{"id": 7, "hashString": "dupehash", "name": "dupe"},
	}
	c := newConnectedAddClient(t, d)

	duplicates := make(chan string, 1)
	c.TorrentAddDuplicate.Connect(func(hash string) { duplicates <- hash })
	added := make(chan *Torrent, 1)
	c.TorrentAdded.Connect(func(t *Torrent) { added <- t })

	c.AddTorrentLink("magnet:?xt=urn:btih:dupehash", AddTorrentParams{})

	select {
	case hash := <-duplicates:
		require.Equal(t, "dupehash", hash)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for TorrentAddDuplicate")
	}

	select {
	case <-added:
		t.Fatal("a duplicate must not also emit TorrentAdded via a resync")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestAddTorrentFileSuccessTriggersResync(t *testing.T) {
	d := newAddTorrentDaemon(t)
	d.addReply = map[string]any{
		"torrent-added": map[string]any{"id": 3, "hashString": "newhash", "name": "fresh"},
	}
	c := newConnectedAddClient(t, d)
	d.mu.Lock()
	getsBefore := d.torrentGets
	d.mu.Unlock()

	c.AddTorrentFile([]byte("fake torrent bytes"), AddTorrentParams{DownloadDir: "/downloads", Paused: true})

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.addCalls == 1
	}, 2*time.Second, 10*time.Millisecond)

	d.mu.Lock()
	metainfo, hasMetainfo := d.lastAddArgs["metainfo"]
	downloadDir := d.lastAddArgs["download-dir"]
	paused := d.lastAddArgs["paused"]
	d.mu.Unlock()
	require.True(t, hasMetainfo)
	require.NotEmpty(t, metainfo)
	require.Equal(t, "/downloads", downloadDir)
	require.Equal(t, true, paused)

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.torrentGets > getsBefore
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAddTorrentSuccessAppliesRenamedFilesBeforeResync(t *testing.T) {
	d := newAddTorrentDaemon(t)
	d.addReply = map[string]any{
		"torrent-added": map[string]any{
			"id":            9,
			"hashString":    "renamedhash",
			"name":          "renamed",
			"renamed_files": map[string]any{"old-name.txt": "new-name.txt"},
		},
	}
	c := newConnectedAddClient(t, d)

	c.AddTorrentLink("magnet:?xt=urn:btih:renamedhash", AddTorrentParams{})

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.renameCalls) == 1
	}, 2*time.Second, 10*time.Millisecond)

	d.mu.Lock()
	call := d.renameCalls[0]
	d.mu.Unlock()
	ids, _ := call["ids"].([]any)
	require.Len(t, ids, 1)
	require.Equal(t, float64(9), ids[0])
	require.Equal(t, "old-name.txt", call["path"])
	require.Equal(t, "new-name.txt", call["name"])
}

func TestAddTorrentErrorEmitsErrorSignal(t *testing.T) {
	d := newAddTorrentDaemon(t)
	d.addFail = true
	c := newConnectedAddClient(t, d)

	errs := make(chan string, 1)
	c.TorrentAddError.Connect(func(msg string) { errs <- msg })

	c.AddTorrentLink("magnet:?xt=urn:btih:badhash", AddTorrentParams{})

	select {
	case msg := <-errs:
		require.Equal(t, "invalid or corrupt torrent file", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for TorrentAddError")
	}
}
