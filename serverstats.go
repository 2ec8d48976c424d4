package tremotesf

import (
	"encoding/json"

	"github.com/hekmon/cunits/v2"
)

// StatsSnapshot is the shape shared by ServerStats' current-session and
// cumulative figures (spec.md §3).
type StatsSnapshot struct {
	DownloadedBytes cunits.Bytes
	UploadedBytes   cunits.Bytes
	DurationSeconds int64
	SessionCount    int64
}

// ServerStats mirrors session-stats.
type ServerStats struct {
	DownloadSpeed cunits.Bytes
	UploadSpeed   cunits.Bytes
	Current       StatsSnapshot
	Cumulative    StatsSnapshot
}

type statsSubWire struct {
	DownloadedBytes float64 `json:"downloadedBytes"`
	UploadedBytes   float64 `json:"uploadedBytes"`
	SecondsActive   int64   `json:"secondsActive"`
	SessionCount    int64   `json:"sessionCount"`
}

type serverStatsWire struct {
	DownloadSpeed float64      `json:"downloadSpeed"`
	UploadSpeed   float64      `json:"uploadSpeed"`
	CurrentStats  statsSubWire `json:"current-stats"`
	CumulativeStats statsSubWire `json:"cumulative-stats"`
}

func (s *ServerStats) updateFromJSON(raw json.RawMessage) (bool, error) {
	var w serverStatsWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return false, err
	}
	updated := ServerStats{
		DownloadSpeed: cunits.ImportInByte(w.DownloadSpeed),
		UploadSpeed:   cunits.ImportInByte(w.UploadSpeed),
		Current: StatsSnapshot{
			DownloadedBytes: cunits.ImportInByte(w.CurrentStats.DownloadedBytes),
			UploadedBytes:   cunits.ImportInByte(w.CurrentStats.UploadedBytes),
			DurationSeconds: w.CurrentStats.SecondsActive,
			SessionCount:    w.CurrentStats.SessionCount,
		},
		Cumulative: StatsSnapshot{
			DownloadedBytes: cunits.ImportInByte(w.CumulativeStats.DownloadedBytes),
			UploadedBytes:   cunits.ImportInByte(w.CumulativeStats.UploadedBytes),
			DurationSeconds: w.CumulativeStats.SecondsActive,
			SessionCount:    w.CumulativeStats.SessionCount,
		},
	}
	changed := updated != *s
	*s = updated
	return changed, nil
}
