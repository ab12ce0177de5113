// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tcpip holds the types shared by the layers of the dumbo network
// stack: addresses and protocol numbers. The stack itself is a thin
// user-space implementation that serves a single guest-facing endpoint, so
// there is no notion of NICs, routes or endpoints here.
package tcpip

import (
	"fmt"
	"net"
)

// AddressLength is the length in bytes of an Address.
const AddressLength = 4

// Address is an IPv4 address.
//
// Address is comparable and can be used as a map key.
type Address struct {
	addr [AddressLength]byte
}

// AddrFrom4 returns an Address from its four bytes.
func AddrFrom4(addr [4]byte) Address {
	return Address{addr: addr}
}

// AddrFrom4Slice returns an Address based on the first four bytes of addr.
// It panics if len(addr) < 4.
func AddrFrom4Slice(addr []byte) Address {
	if len(addr) < AddressLength {
		panic(fmt.Sprintf("address must be at least %d bytes, got %d", AddressLength, len(addr)))
	}
	var a Address
	copy(a.addr[:], addr)
	return a
}

// ParseAddress parses a dotted-quad IPv4 address.
func ParseAddress(s string) (Address, error) {
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return Address{}, fmt.Errorf("invalid IPv4 address %q", s)
	}
	return AddrFrom4Slice(ip), nil
}

// As4 returns the address as a four byte array.
func (a Address) As4() [4]byte {
	return a.addr
}

// AsSlice returns a slice holding a copy of the address bytes.
func (a Address) AsSlice() []byte {
	b := a.addr
	return b[:]
}

// Len returns the length of the address in bytes.
func (a Address) Len() int {
	return AddressLength
}

// Unspecified returns true if the address is 0.0.0.0.
func (a Address) Unspecified() bool {
	return a.addr == [AddressLength]byte{}
}

// String implements the fmt.Stringer interface.
func (a Address) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", int(a.addr[0]), int(a.addr[1]), int(a.addr[2]), int(a.addr[3]))
}

// TransportProtocolNumber is the number of a transport protocol, as carried
// in the IPv4 protocol field and the checksum pseudo-header.
type TransportProtocolNumber uint8

// String implements the fmt.Stringer interface.
func (p TransportProtocolNumber) String() string {
	switch p {
	case 6:
		return "tcp"
	case 17:
		return "udp"
	default:
		return fmt.Sprintf("proto(%d)", uint8(p))
	}
}
