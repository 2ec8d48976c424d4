package tremotesf

import (
	"log/slog"
	"net"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// SiteResolver derives a human-friendly tracker "site" label from an announce
// URL's host. It is pluggable (spec.md §1: "a pluggable pure function");
// DefaultSiteResolver uses the public suffix list.
type SiteResolver func(host string) string

// DefaultSiteResolver returns host unchanged for IP literals, and the
// registrable domain (per the public suffix list) otherwise, falling back to
// host verbatim when the PSL lookup fails (spec.md §3, law 8 in §8).
func DefaultSiteResolver(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// Tracker mirrors one entry of a torrent's trackerStats.
type Tracker struct {
	ID              int64
	Announce        string
	Site            string
	Status          TrackerStatus
	ErrorMessage    string
	NextUpdateTime  int64
	Peers           int64
	Seeders         int64
	Leechers        int64
}

type trackerWire struct {
	ID                     int64  `json:"id"`
	Announce               string `json:"announce"`
	AnnounceState          int64  `json:"announceState"`
	LastAnnounceSucceeded  bool   `json:"lastAnnounceSucceeded"`
	LastAnnounceTime       int64  `json:"lastAnnounceTime"`
	LastAnnounceResult     string `json:"lastAnnounceResult"`
	NextAnnounceTime       int64  `json:"nextAnnounceTime"`
	SeederCount            int64  `json:"seederCount"`
	LeecherCount           int64  `json:"leecherCount"`
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func trackerSite(resolve SiteResolver, announce string) string {
	if resolve == nil {
		resolve = DefaultSiteResolver
	}
	u, err := url.Parse(announce)
	if err != nil || u.Hostname() == "" {
		return announce
	}
	return resolve(u.Hostname())
}

// updateFromJSON applies a trackerStats wire entry, returning whether any
// observable field changed. The invariant on ErrorMessage (non-empty iff the
// last announce failed with a non-zero timestamp) is enforced here, not left
// to the caller.
func (t *Tracker) updateFromJSON(w trackerWire, resolve SiteResolver, logger *slog.Logger) bool {
	changed := false
	assign := func(same bool) {
		if !same {
			changed = true
		}
	}

	assign(t.ID == w.ID)
	t.ID = w.ID
	assign(t.Announce == w.Announce)
	t.Announce = w.Announce

	newSite := trackerSite(resolve, w.Announce)
	assign(t.Site == newSite)
	t.Site = newSite

	newStatus := trackerStatusMapper.fromWire(logger, w.AnnounceState)
	assign(t.Status == newStatus)
	t.Status = newStatus

	newErrorMessage := ""
	if !w.LastAnnounceSucceeded && w.LastAnnounceTime != 0 {
		newErrorMessage = w.LastAnnounceResult
	}
	assign(t.ErrorMessage == newErrorMessage)
	t.ErrorMessage = newErrorMessage

	assign(t.NextUpdateTime == w.NextAnnounceTime)
	t.NextUpdateTime = w.NextAnnounceTime

	newSeeders := clampNonNegative(w.SeederCount)
	assign(t.Seeders == newSeeders)
	t.Seeders = newSeeders
	newLeechers := clampNonNegative(w.LeecherCount)
	assign(t.Leechers == newLeechers)
	t.Leechers = newLeechers
	newPeers := newSeeders + newLeechers
	assign(t.Peers == newPeers)
	t.Peers = newPeers

	return changed
}

// reconcileTrackers merges wire into trackers using ID identity, via
// the shared List Reconciler (spec.md §4.2).
func reconcileTrackers(trackers *[]Tracker, wire []trackerWire, resolve SiteResolver, logger *slog.Logger) bool {
	anyChanged := false
	reconcile(
		trackers,
		wire,
		func(item Tracker) int {
			for i, w := range wire {
				if w.ID == item.ID {
					return i
				}
			}
			return -1
		},
		func(item *Tracker, w trackerWire) bool {
			changed := item.updateFromJSON(w, resolve, logger)
			if changed {
				anyChanged = true
			}
			return changed
		},
		func(w trackerWire) Tracker {
			var tr Tracker
			tr.updateFromJSON(w, resolve, logger)
			return tr
		},
		reconcileNotifier{},
	)
	return anyChanged
}
