package tremotesf

import (
	"net"
	"os"
)

// detectLocalityAsync resolves whether the configured server address is
// local (spec.md §4.4): exact loopback, one of the host's own interface
// addresses, or equal to the host's own hostname. It runs off the engine
// loop because DNS/interface lookups can block; the result is hopped back
// via post so IsLocal only becomes valid once serverLocalKnown flips true,
// matching spec.md's "the engine may begin connecting before it completes".
func (c *Client) detectLocalityAsync(cfg ServerConfig) {
	address := cfg.Address
	go func() {
		local := resolveIsLocal(address)
		c.post(func(c *Client) {
			if c.cfg.Address != address {
				return // superseded by a newer Configure call
			}
			c.serverIsLocal = local
			c.serverLocalKnown = true
		})
	}()
}

func resolveIsLocal(address string) bool {
	if ip := net.ParseIP(address); ip != nil {
		if ip.IsLoopback() {
			return true
		}
		return hostOwnsAddress(ip)
	}
	if hostname, err := os.Hostname(); err == nil && hostname == address {
		return true
	}
	ips, err := net.LookupHost(address)
	if err != nil {
		return false
	}
	for _, raw := range ips {
		ip := net.ParseIP(raw)
		if ip == nil {
			continue
		}
		if ip.IsLoopback() || hostOwnsAddress(ip) {
			return true
		}
	}
	return false
}

func hostOwnsAddress(ip net.IP) bool {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return false
	}
	for _, a := range addrs {
		var candidate net.IP
		switch v := a.(type) {
		case *net.IPNet:
			candidate = v.IP
		case *net.IPAddr:
			candidate = v.IP
		}
		if candidate != nil && candidate.Equal(ip) {
			return true
		}
	}
	return false
}
