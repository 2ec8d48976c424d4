package tremotesf

import "encoding/json"

// ServerSettings mirrors the daemon's session-get reply (spec.md §3). After
// every successful session-get the mirror equals the daemon's reply exactly;
// Client.SessionSet optimistically updates the local copy and then posts
// session-set, without rolling back on failure (open question in
// spec.md §9, resolved in DESIGN.md: no rollback, matching source behavior).
type ServerSettings struct {
	RPCVersion        int64
	MinimumRPCVersion int64
	Version           string

	DownloadDir          string
	IncompleteDir         string
	IncompleteDirEnabled  bool

	SpeedLimitDown        int64
	SpeedLimitDownEnabled bool
	SpeedLimitUp          int64
	SpeedLimitUpEnabled   bool
	AltSpeedDown          int64
	AltSpeedUp            int64
	AltSpeedEnabled       bool

	PeerLimitGlobal    int64
	PeerLimitPerTorrent int64

	PexEnabled         bool
	DHTEnabled         bool
	LPDEnabled         bool
	UTPEnabled         bool

	Encryption string

	DownloadQueueEnabled bool
	DownloadQueueSize    int64
	SeedQueueEnabled     bool
	SeedQueueSize        int64

	SeedRatioLimit  float64
	SeedRatioLimited bool

	PeerPort        int64
	PeerPortRandomOnStart bool
	PortForwardingEnabled bool
}

type serverSettingsWire struct {
	RPCVersion            int64   `json:"rpc-version"`
	MinimumRPCVersion     int64   `json:"rpc-version-minimum"`
	Version               string  `json:"version"`
	DownloadDir           string  `json:"download-dir"`
	IncompleteDir         string  `json:"incomplete-dir"`
	IncompleteDirEnabled  bool    `json:"incomplete-dir-enabled"`
	SpeedLimitDown        int64   `json:"speed-limit-down"`
	SpeedLimitDownEnabled bool    `json:"speed-limit-down-enabled"`
	SpeedLimitUp          int64   `json:"speed-limit-up"`
	SpeedLimitUpEnabled   bool    `json:"speed-limit-up-enabled"`
	AltSpeedDown          int64   `json:"alt-speed-down"`
	AltSpeedUp            int64   `json:"alt-speed-up"`
	AltSpeedEnabled       bool    `json:"alt-speed-enabled"`
	PeerLimitGlobal       int64   `json:"peer-limit-global"`
	PeerLimitPerTorrent   int64   `json:"peer-limit-per-torrent"`
	PexEnabled            bool    `json:"pex-enabled"`
	DHTEnabled            bool    `json:"dht-enabled"`
	LPDEnabled            bool    `json:"lpd-enabled"`
	UTPEnabled            bool    `json:"utp-enabled"`
	Encryption            string  `json:"encryption"`
	DownloadQueueEnabled  bool    `json:"download-queue-enabled"`
	DownloadQueueSize     int64   `json:"download-queue-size"`
	SeedQueueEnabled      bool    `json:"seed-queue-enabled"`
	SeedQueueSize         int64   `json:"seed-queue-size"`
	SeedRatioLimit        float64 `json:"seedRatioLimit"`
	SeedRatioLimited      bool    `json:"seedRatioLimited"`
	PeerPort              int64   `json:"peer-port"`
	PeerPortRandomOnStart bool    `json:"peer-port-random-on-start"`
	PortForwardingEnabled bool    `json:"port-forwarding-enabled"`
}

func (s *ServerSettings) updateFromJSON(raw json.RawMessage) (bool, error) {
	var w serverSettingsWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return false, err
	}
	updated := ServerSettings{
		RPCVersion: w.RPCVersion, MinimumRPCVersion: w.MinimumRPCVersion, Version: w.Version,
		DownloadDir: w.DownloadDir, IncompleteDir: w.IncompleteDir, IncompleteDirEnabled: w.IncompleteDirEnabled,
		SpeedLimitDown: w.SpeedLimitDown, SpeedLimitDownEnabled: w.SpeedLimitDownEnabled,
		SpeedLimitUp: w.SpeedLimitUp, SpeedLimitUpEnabled: w.SpeedLimitUpEnabled,
		AltSpeedDown: w.AltSpeedDown, AltSpeedUp: w.AltSpeedUp, AltSpeedEnabled: w.AltSpeedEnabled,
		PeerLimitGlobal: w.PeerLimitGlobal, PeerLimitPerTorrent: w.PeerLimitPerTorrent,
		PexEnabled: w.PexEnabled, DHTEnabled: w.DHTEnabled, LPDEnabled: w.LPDEnabled, UTPEnabled: w.UTPEnabled,
		Encryption: w.Encryption,
		DownloadQueueEnabled: w.DownloadQueueEnabled, DownloadQueueSize: w.DownloadQueueSize,
		SeedQueueEnabled: w.SeedQueueEnabled, SeedQueueSize: w.SeedQueueSize,
		SeedRatioLimit: w.SeedRatioLimit, SeedRatioLimited: w.SeedRatioLimited,
		PeerPort: w.PeerPort, PeerPortRandomOnStart: w.PeerPortRandomOnStart,
		PortForwardingEnabled: w.PortForwardingEnabled,
	}
	changed := updated != *s
	*s = updated
	return changed, nil
}
