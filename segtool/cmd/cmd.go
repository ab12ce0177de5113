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

// Package cmd holds implementations of the segtool commands.
package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dumbo-net/dumbo/pkg/tcpip/header"
	"github.com/dumbo-net/dumbo/segtool/config"
)

// flagLetters are the letters accepted by tcpFlags, in TCPFlags bit order.
const flagLetters = "FSRPAUECN"

// tcpFlags is a flag.Value holding TCP flags. It accepts letters from
// flagLetters in any order and case (e.g. "SA"), or a number (e.g. "0x12").
type tcpFlags header.TCPFlags

// String implements flag.Value.
func (f *tcpFlags) String() string {
	var sb strings.Builder
	for i := range flagLetters {
		if header.TCPFlags(*f)&(1<<uint(i)) != 0 {
			sb.WriteByte(flagLetters[i])
		}
	}
	return sb.String()
}

// Get implements flag.Getter.
func (f *tcpFlags) Get() any {
	return header.TCPFlags(*f)
}

// Set implements flag.Value.
func (f *tcpFlags) Set(s string) error {
	if v, err := strconv.ParseUint(s, 0, 9); err == nil {
		*f = tcpFlags(v)
		return nil
	}
	var flags header.TCPFlags
	for _, c := range strings.ToUpper(s) {
		i := strings.IndexRune(flagLetters, c)
		if i < 0 {
			return fmt.Errorf("invalid TCP flag %q in %q, must be one of %q or a number below 0x200", c, s, flagLetters)
		}
		flags |= 1 << uint(i)
	}
	*f = tcpFlags(flags)
	return nil
}

// parseHex decodes a hex-encoded segment. Whitespace and colons are ignored
// so that dumps from other tools can be pasted as is.
func parseHex(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':':
			return -1
		}
		return r
	}, s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex segment: %w", err)
	}
	return b, nil
}

// confFromArgs returns the configuration passed to Execute.
func confFromArgs(args []any) *config.Config {
	return args[0].(*config.Config)
}

// describe writes a human readable summary of a valid segment to w. verified
// tells whether the checksum was verified.
func describe(w io.Writer, tcp header.TCP, verified bool) {
	flags := tcp.Flags()
	xsum := fmt.Sprintf("0x%04x", tcp.Checksum())
	if verified {
		xsum += " (verified)"
	}
	fmt.Fprintf(w, "  ports:    %d -> %d\n", tcp.SourcePort(), tcp.DestinationPort())
	fmt.Fprintf(w, "  seq:      %d\n", tcp.SequenceNumber())
	fmt.Fprintf(w, "  ack:      %d\n", tcp.AckNumber())
	fmt.Fprintf(w, "  flags:    0x%03x [%s]\n", uint16(flags), flags)
	fmt.Fprintf(w, "  window:   %d\n", tcp.WindowSize())
	fmt.Fprintf(w, "  checksum: %s\n", xsum)
	fmt.Fprintf(w, "  urgent:   %d\n", tcp.UrgentPointer())
	fmt.Fprintf(w, "  header:   %d bytes\n", tcp.HeaderLen())
	switch mss, ok, err := tcp.ParseMSSOption(); {
	case err != nil:
		fmt.Fprintf(w, "  mss:      %v\n", err)
	case ok:
		fmt.Fprintf(w, "  mss:      %d\n", mss)
	}
	fmt.Fprintf(w, "  payload:  %d bytes\n", tcp.PayloadLen())
}
