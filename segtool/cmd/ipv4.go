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

package cmd

import (
	"fmt"

	"github.com/dumbo-net/dumbo/pkg/tcpip"
	"github.com/dumbo-net/dumbo/pkg/tcpip/header"
	"golang.org/x/net/ipv4"
)

// splitIPv4 parses b as an IPv4 packet carrying TCP. It returns the addresses
// of the packet, for the checksum pseudo-header, and the segment it carries.
func splitIPv4(b []byte) (*header.AddressPair, []byte, error) {
	h, err := ipv4.ParseHeader(b)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid IPv4 header: %w", err)
	}
	if h.Version != ipv4.Version {
		return nil, nil, fmt.Errorf("invalid IPv4 header: version %d", h.Version)
	}
	if h.Protocol != int(header.TCPProtocolNumber) {
		return nil, nil, fmt.Errorf("IPv4 packet carries %s, not tcp", tcpip.TransportProtocolNumber(h.Protocol))
	}

	// Trailing link-layer padding is not part of the segment.
	end := len(b)
	if h.TotalLen >= h.Len && h.TotalLen <= len(b) {
		end = h.TotalLen
	}
	pair := &header.AddressPair{
		Src: tcpip.AddrFrom4Slice(h.Src.To4()),
		Dst: tcpip.AddrFrom4Slice(h.Dst.To4()),
	}
	return pair, b[h.Len:end], nil
}
