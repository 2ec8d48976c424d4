package tremotesf

import "github.com/hekmon/cunits/v2"

// Peer mirrors one entry of a torrent's peers array. Address is its identity
// (spec.md §3).
type Peer struct {
	Address      string
	Client       string
	DownloadSpeed cunits.Bytes
	UploadSpeed   cunits.Bytes
	Progress      float64
	Flags         string
}

type peerWire struct {
	Address         string  `json:"address"`
	ClientName      string  `json:"clientName"`
	RateToClient    float64 `json:"rateToClient"`
	RateToPeer      float64 `json:"rateToPeer"`
	Progress        float64 `json:"progress"`
	FlagStr         string  `json:"flagStr"`
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (p *Peer) updateFromJSON(w peerWire) bool {
	changed := false
	assign := func(same bool) {
		if !same {
			changed = true
		}
	}

	assign(p.Address == w.Address)
	p.Address = w.Address
	assign(p.Client == w.ClientName)
	p.Client = w.ClientName

	newDown := cunits.ImportInByte(w.RateToClient)
	assign(p.DownloadSpeed == newDown)
	p.DownloadSpeed = newDown
	newUp := cunits.ImportInByte(w.RateToPeer)
	assign(p.UploadSpeed == newUp)
	p.UploadSpeed = newUp

	newProgress := clampUnit(w.Progress)
	assign(p.Progress == newProgress)
	p.Progress = newProgress

	assign(p.Flags == w.FlagStr)
	p.Flags = w.FlagStr

	return changed
}

// reconcilePeers merges wire into peers using Address identity.
func reconcilePeers(peers *[]Peer, wire []peerWire, notify reconcileNotifier) bool {
	anyChanged := false
	reconcile(
		peers,
		wire,
		func(item Peer) int {
			for i, w := range wire {
				if w.Address == item.Address {
					return i
				}
			}
			return -1
		},
		func(item *Peer, w peerWire) bool {
			changed := item.updateFromJSON(w)
			if changed {
				anyChanged = true
			}
			return changed
		},
		func(w peerWire) Peer {
			var p Peer
			p.updateFromJSON(w)
			return p
		},
		notify,
	)
	return anyChanged
}
