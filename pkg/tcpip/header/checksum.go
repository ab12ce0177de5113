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

// Package header provides the implementation of the encoding and decoding of
// network protocol headers.
package header

import (
	"encoding/binary"

	"github.com/dumbo-net/dumbo/pkg/tcpip"
	"github.com/dumbo-net/dumbo/pkg/tcpip/checksum"
)

// AddressPair holds the source and destination addresses of the enclosing
// IPv4 packet. Transport checksums cover them through the pseudo-header.
type AddressPair struct {
	Src tcpip.Address
	Dst tcpip.Address
}

// PseudoHeaderChecksum calculates the checksum of the IPv4 pseudo-header for
// the given transport protocol, addresses and transport segment length.
//
// The pseudo-header is 12 bytes long: source address, destination address, a
// zero byte, the protocol number and the 16-bit segment length.
func PseudoHeaderChecksum(protocol tcpip.TransportProtocolNumber, srcAddr, dstAddr tcpip.Address, totalLen uint16) uint16 {
	src, dst := srcAddr.As4(), dstAddr.As4()
	xsum := checksum.Checksum(src[:], 0)
	xsum = checksum.Checksum(dst[:], xsum)

	var tail [4]byte
	tail[1] = uint8(protocol)
	binary.BigEndian.PutUint16(tail[2:], totalLen)
	return checksum.Checksum(tail[:], xsum)
}

// TransportChecksum computes the checksum of a whole transport segment b
// (header, options and payload) preceded by its pseudo-header.
//
// When the checksum field inside b holds zero the result is the value to
// store in that field. When b is a segment as received, the result is zero
// iff its checksum is correct.
func TransportChecksum(protocol tcpip.TransportProtocolNumber, srcAddr, dstAddr tcpip.Address, b []byte) uint16 {
	l := len(b)
	if l > 0xffff {
		l = 0xffff
	}
	xsum := PseudoHeaderChecksum(protocol, srcAddr, dstAddr, uint16(l))
	return ^checksum.Checksum(b, xsum)
}
