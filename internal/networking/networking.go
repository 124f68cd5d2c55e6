// Package networking provides target-resolution primitives: CIDR-ish subnet
// expansion and hostname resolution checks.
package networking

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// CanResolve reports whether target resolves to at least one address.
func CanResolve(target string) bool {
	addrs, err := net.LookupHost(target)
	return err == nil && len(addrs) > 0
}

// IPsInSubnet expands a subnet descriptor into its member addresses.
//
// The descriptor is either A.B.C.D/N (prefix length 0-32) or A.B.C.D/E.F.G.H
// (dotted mask). Malformed input returns nil rather than an error; callers
// treat nil as "not a subnet". A /32 (or all-ones mask) yields the address
// itself. Otherwise the network and broadcast addresses are excluded and the
// remaining members are returned in ascending numeric order.
func IPsInSubnet(subnet string) []string {
	parts := strings.Split(subnet, "/")
	if len(parts) != 2 {
		return nil
	}

	addr, ok := parseQuad(parts[0])
	if !ok {
		return nil
	}

	prefix, ok := parsePrefix(parts[1])
	if !ok {
		return nil
	}

	if prefix == 32 {
		return []string{formatQuad(addr)}
	}

	network := addr &^ (uint32(1)<<(32-prefix) - 1)
	if prefix == 31 {
		return []string{formatQuad(network), formatQuad(network | 1)}
	}

	hostBits := 32 - prefix
	members := make([]string, 0, uint64(1)<<hostBits-2)
	for suffix := uint64(1); suffix < uint64(1)<<hostBits-1; suffix++ {
		members = append(members, formatQuad(network|uint32(suffix)))
	}
	return members
}

// parseQuad converts a dotted quad to its 32 bit value.
func parseQuad(quad string) (uint32, bool) {
	octets := strings.Split(quad, ".")
	if len(octets) != 4 {
		return 0, false
	}

	var value uint32
	for _, octet := range octets {
		n, err := strconv.Atoi(octet)
		if err != nil || n < 0 || n > 255 {
			return 0, false
		}
		value = value<<8 | uint32(n)
	}
	return value, true
}

// parsePrefix accepts either a numeric prefix length or a dotted mask. A
// dotted mask must be contiguous ones followed by zeros.
func parsePrefix(mask string) (int, bool) {
	if strings.Contains(mask, ".") {
		bits, ok := parseQuad(mask)
		if !ok {
			return 0, false
		}

		prefix := 32
		for i := 0; i < 32; i++ {
			if bits&(1<<(31-i)) == 0 {
				prefix = i
				break
			}
		}

		// reject non-contiguous masks like 255.0.255.0
		if bits != 0 && bits != ^uint32(0)<<(32-prefix) {
			return 0, false
		}
		return prefix, true
	}

	prefix, err := strconv.Atoi(mask)
	if err != nil || prefix < 0 || prefix > 32 {
		return 0, false
	}
	return prefix, true
}

func formatQuad(value uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", value>>24, value>>16&0xff, value>>8&0xff, value&0xff)
}
