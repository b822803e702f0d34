// Package ads implements the Beckhoff ADS/AMS protocol for communicating
// with TwinCAT automation runtimes over TCP.
package ads

import (
	"fmt"
	"strconv"
	"strings"
)

// AmsNetId represents a 6-byte AMS Network ID.
// Format: "a.b.c.d.e.f" where each component is 0-255.
type AmsNetId [6]byte

// LoopbackNetId is the well-known local-router AMS Net ID.
var LoopbackNetId = AmsNetId{127, 0, 0, 1, 1, 1}

// DefaultRouterAddress is the default local router TCP address.
const DefaultRouterAddress = "127.0.0.1"

// DefaultTCPPort is the default AMS/TCP port.
const DefaultTCPPort uint16 = 48898

// ParseAmsNetId parses an AMS Net ID string (e.g., "192.168.1.100.1.1").
func ParseAmsNetId(s string) (AmsNetId, error) {
	var netId AmsNetId

	if s == "" {
		return netId, fmt.Errorf("empty AMS Net ID")
	}

	parts := strings.Split(s, ".")
	if len(parts) != 6 {
		return netId, fmt.Errorf("invalid AMS Net ID format: %q (expected a.b.c.d.e.f)", s)
	}

	for i, part := range parts {
		val, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return netId, fmt.Errorf("invalid AMS Net ID component %q: %w", part, err)
		}
		netId[i] = byte(val)
	}

	return netId, nil
}

// String returns the dotted-decimal representation of the AMS Net ID.
func (n AmsNetId) String() string {
	return fmt.Sprintf("%d.%d.%d.%d.%d.%d", n[0], n[1], n[2], n[3], n[4], n[5])
}

// IsZero returns true if the Net ID is all zeros.
func (n AmsNetId) IsZero() bool {
	return n == AmsNetId{}
}

// Equal reports whether two Net IDs address the same endpoint.
func (n AmsNetId) Equal(other AmsNetId) bool {
	return n == other
}

// AmsNetIdFromIP derives an AMS Net ID from an IPv4 address using the
// common `ip.1.1` convention (e.g., 192.168.1.100 -> 192.168.1.100.1.1).
func AmsNetIdFromIP(ip string) (AmsNetId, error) {
	var netId AmsNetId

	if idx := strings.Index(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	if ip == "localhost" {
		return LoopbackNetId, nil
	}

	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return netId, fmt.Errorf("invalid IPv4 address: %q", ip)
	}

	for i, part := range parts {
		val, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return netId, fmt.Errorf("invalid IP address component: %w", err)
		}
		netId[i] = byte(val)
	}

	netId[4] = 1
	netId[5] = 1

	return netId, nil
}

// AmsAddress combines an AMS Net ID and a port number into a routable
// endpoint.
type AmsAddress struct {
	NetId AmsNetId
	Port  uint16
}

// String returns "netid:port".
func (a AmsAddress) String() string {
	return fmt.Sprintf("%s:%d", a.NetId, a.Port)
}

// IsLoopback reports whether the address targets the local router.
func (a AmsAddress) IsLoopback() bool {
	return a.NetId.Equal(LoopbackNetId)
}
