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

// Package sniffer logs TCP segments as they cross the stack. It is meant for
// debugging: every segment is decoded and summarized on a single log line.
//
// Segments come from the guest and are untrusted, so the default target is
// rate limited to keep a misbehaving guest from flooding the log.
package sniffer

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dumbo-net/dumbo/pkg/log"
	"github.com/dumbo-net/dumbo/pkg/tcpip"
	"github.com/dumbo-net/dumbo/pkg/tcpip/header"
)

// LogPackets is a flag used to enable or disable packet logging via the log
// package. Valid values are 0 or 1.
//
// LogPackets must be accessed atomically.
var LogPackets uint32 = 1

// DefaultRate is the interval between two segments logged by the package
// level LogSegment.
const DefaultRate = 10 * time.Millisecond

// Sniffer logs segments to a Logger.
type Sniffer struct {
	logger log.Logger
}

// New returns a Sniffer that logs every segment to logger.
func New(logger log.Logger) *Sniffer {
	return &Sniffer{logger: logger}
}

var defaultSniffer = New(log.BasicRateLimitedLogger(DefaultRate))

// LogSegment logs b through the global logger, no more often than
// DefaultRate.
func LogSegment(prefix string, src, dst tcpip.Address, b []byte) {
	defaultSniffer.LogSegment(prefix, src, dst, b)
}

// LogSegment decodes b as a TCP segment sent from src to dst and logs a
// summary of it prefixed by prefix. Malformed segments are logged with the
// reason they were rejected.
//
// The checksum is only checked, and reported, when both addresses are
// specified.
func (s *Sniffer) LogSegment(prefix string, src, dst tcpip.Address, b []byte) {
	if atomic.LoadUint32(&LogPackets) != 1 || !s.logger.IsLogging(log.Info) {
		return
	}

	tcp, err := header.TCPFromBytes(b, nil)
	if err != nil {
		s.logger.Infof("%s tcp %s -> %s len:%d invalid segment: %v", prefix, src, dst, len(b), err)
		return
	}

	flags := tcp.Flags()
	details := fmt.Sprintf("flags:0x%03x (%s) seqnum: %d ack: %d win: %d xsum:0x%x", uint16(flags), flags, tcp.SequenceNumber(), tcp.AckNumber(), tcp.WindowSize(), tcp.Checksum())
	if !src.Unspecified() && !dst.Unspecified() {
		if tcp.ComputeChecksum(src, dst) == 0 {
			details += " (ok)"
		} else {
			details += " (bad)"
		}
	}
	switch mss, ok, err := tcp.ParseMSSOption(); {
	case err != nil:
		details += fmt.Sprintf(" options: %v", err)
	case ok:
		details += fmt.Sprintf(" options: mss:%d", mss)
	}
	details += fmt.Sprintf(" payload:%d", tcp.PayloadLen())

	s.logger.Infof("%s tcp %s:%d -> %s:%d len:%d %s", prefix, src, tcp.SourcePort(), dst, tcp.DestinationPort(), tcp.Len(), details)
}
