package tremotesf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPeerUpdateFromJSONClampsProgress(t *testing.T) {
	var p Peer
	p.updateFromJSON(peerWire{Address: "1.2.3.4", Progress: 1.5})
	require.Equal(t, 1.0, p.Progress)

	p.updateFromJSON(peerWire{Address: "1.2.3.4", Progress: -0.5})
	require.Equal(t, 0.0, p.Progress)
}

func TestReconcilePeersUsesAddressIdentity(t *testing.T) {
	peers := []Peer{{Address: "1.1.1.1"}}
	wire := []peerWire{{Address: "1.1.1.1"}, {Address: "2.2.2.2"}}

	// A matched existing peer with unchanged fields is left untouched and a
	// new one is appended;
	// reconcilePeers' own "changed" result only reflects mutations applied to
	// already-present entries, not additions.
	changed := reconcilePeers(&peers, wire, reconcileNotifier{})
	require.False(t, changed)
	require.Len(t, peers, 2)
	require.Equal(t, "2.2.2.2", peers[1].Address)
}
