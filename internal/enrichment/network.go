package enrichment

import "net/netip"

const (
	NetworkLoopback  = "loopback"
	NetworkPrivate   = "private"
	NetworkLinkLocal = "link_local"
	NetworkPublic    = "public"
	NetworkUnknown   = "unknown"
)

// ClassifyIP buckets a client address so audit queries can separate
// internal traffic from the internet.
func ClassifyIP(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return NetworkUnknown
	}
	addr = addr.Unmap()

	switch {
	case addr.IsLoopback():
		return NetworkLoopback
	case addr.IsPrivate():
		return NetworkPrivate
	case addr.IsLinkLocalUnicast():
		return NetworkLinkLocal
	case addr.IsGlobalUnicast():
		return NetworkPublic
	default:
		return NetworkUnknown
	}
}
