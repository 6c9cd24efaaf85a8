package discovery

import (
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/backkem/dacgate/pkg/crypto"
)

// InstancePrefix starts every default instance name.
const InstancePrefix = "dacgate-"

// MaxInstanceNameLength is the DNS label limit for an instance name.
const MaxInstanceNameLength = 63

// InstanceName returns the default instance name for a gateway identity:
// InstancePrefix followed by the short fingerprint.
func InstanceName(identityPublic []byte) string {
	return InstancePrefix + crypto.ShortFingerprint(identityPublic)
}

// ValidateInstanceName checks an instance name.
func ValidateInstanceName(name string) error {
	if name == "" || len(name) > MaxInstanceNameLength || strings.ContainsAny(name, ".\x00") {
		return ErrInvalidInstanceName
	}
	return nil
}

// SortIPsByPreference returns ips ordered for dialing.
// Priority order (highest to lowest):
//  1. Global unicast addresses
//  2. Private addresses (RFC 1918, ULA fc00::/7)
//  3. IPv6 link-local addresses, which need a zone to be dialed
//  4. Loopback
//
// IPv4 sorts before IPv6 within a class.
func SortIPsByPreference(ips []net.IP) []net.IP {
	if len(ips) <= 1 {
		return ips
	}

	sorted := make([]net.IP, len(ips))
	copy(sorted, ips)

	sort.SliceStable(sorted, func(i, j int) bool {
		return ipPriority(sorted[i]) < ipPriority(sorted[j])
	})
	return sorted
}

// ipPriority returns the priority of an IP address (lower is better).
func ipPriority(ip net.IP) int {
	if ip.To16() == nil {
		return 99
	}
	v6 := 0
	if ip.To4() == nil {
		v6 = 1
	}

	switch {
	case ip.IsLoopback():
		return 80 + v6
	case ip.IsMulticast(), ip.IsUnspecified():
		return 90 + v6
	case ip.IsPrivate():
		return 10 + v6
	case ip.IsLinkLocalUnicast():
		return 20 + v6
	case ip.IsGlobalUnicast():
		return 0 + v6
	default:
		return 50 + v6
	}
}

// FilterIPv6 returns only the IPv6 addresses.
func FilterIPv6(ips []net.IP) []net.IP {
	var result []net.IP
	for _, ip := range ips {
		if ip.To4() == nil && ip.To16() != nil {
			result = append(result, ip)
		}
	}
	return result
}

// FilterIPv4 returns only the IPv4 addresses.
func FilterIPv4(ips []net.IP) []net.IP {
	var result []net.IP
	for _, ip := range ips {
		if ip.To4() != nil {
			result = append(result, ip)
		}
	}
	return result
}

// JoinHostPort formats ip and port for net.Dial.
func JoinHostPort(ip net.IP, port int) string {
	return net.JoinHostPort(ip.String(), strconv.Itoa(port))
}
