// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package datatypes

import (
	"fmt"
	"net/netip"
)

// InetAddress is a validated IPv4 or IPv6 address for inet columns.
type InetAddress struct {
	addr netip.Addr
}

// ParseInetAddress parses a textual IPv4/IPv6 address. Zones and CIDR
// suffixes are rejected.
func ParseInetAddress(s string) (InetAddress, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return InetAddress{}, fmt.Errorf("inet: %w", err)
	}
	if addr.Zone() != "" {
		return InetAddress{}, fmt.Errorf("inet: zoned address %q not supported", s)
	}
	return InetAddress{addr: addr}, nil
}

// InetAddressOf wraps a netip.Addr.
func InetAddressOf(addr netip.Addr) InetAddress {
	return InetAddress{addr: addr}
}

// IsV4 reports whether the address is IPv4 (including 4-in-6 mapped forms).
func (a InetAddress) IsV4() bool {
	return a.addr.Is4() || a.addr.Is4In6()
}

// Addr returns the underlying netip.Addr.
func (a InetAddress) Addr() netip.Addr { return a.addr }

// Equal reports address equality; a 4-in-6 mapped address equals its IPv4 form.
func (a InetAddress) Equal(other InetAddress) bool {
	return a.addr.Unmap() == other.addr.Unmap()
}

// Compare orders addresses bytewise, IPv4 before IPv6.
func (a InetAddress) Compare(other InetAddress) int {
	return a.addr.Compare(other.addr)
}

// String returns the canonical textual form.
func (a InetAddress) String() string {
	return a.addr.String()
}
