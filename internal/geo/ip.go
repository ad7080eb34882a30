// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package geo

import "net/netip"

var (
	broadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

	documentation = []netip.Prefix{
		netip.MustParsePrefix("192.0.2.0/24"),
		netip.MustParsePrefix("198.51.100.0/24"),
		netip.MustParsePrefix("203.0.113.0/24"),
	}
)

// IsSpecialPurpose reports whether ip can never carry a meaningful
// geolocation: private, loopback, link-local, multicast, broadcast,
// documentation or unspecified. An invalid address is not special purpose.
func IsSpecialPurpose(ip netip.Addr) bool {
	if !ip.IsValid() {
		return false
	}
	ip = ip.Unmap()
	if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsMulticast() || ip.IsUnspecified() || ip == broadcast {
		return true
	}
	for _, p := range documentation {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// IPv4ToUint32 converts an IPv4 address to its big-endian integer form, the
// key used by the range tables and the cache.
func IPv4ToUint32(ip netip.Addr) (uint32, bool) {
	ip = ip.Unmap()
	if !ip.Is4() {
		return 0, false
	}
	b := ip.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), true
}

// Uint32ToIPv4 is the inverse of IPv4ToUint32.
func Uint32ToIPv4(v uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}
