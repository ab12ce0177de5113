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

package sniffer_test

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/dumbo-net/dumbo/pkg/log"
	"github.com/dumbo-net/dumbo/pkg/tcpip"
	"github.com/dumbo-net/dumbo/pkg/tcpip/buffer"
	"github.com/dumbo-net/dumbo/pkg/tcpip/header"
	"github.com/dumbo-net/dumbo/pkg/tcpip/sniffer"
	"github.com/dumbo-net/dumbo/pkg/tcpip/testutil"
	"github.com/google/go-cmp/cmp"
)

type recorder struct {
	lines []string
}

func (r *recorder) Logf(format string, v ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

var (
	guest = testutil.MustParse4("10.0.0.1")
	mmds  = testutil.MustParse4("169.254.169.254")
)

func segment(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, 100)
	tcp, err := header.WriteTCP(buf, 80, 45000, header.TCPFields{
		SeqNum:       1000,
		AckNum:       2000,
		Flags:        header.TCPFlagSyn | header.TCPFlagAck,
		WindowSize:   512,
		MSS:          1460,
		MSSRemaining: 1460,
		Payload:      &header.TCPPayload{Buf: buffer.View("ok"), MaxBytes: 2},
	}, &header.AddressPair{Src: mmds, Dst: guest})
	if err != nil {
		t.Fatalf("header.WriteTCP(...) = %s", err)
	}
	return tcp.View()
}

func TestLogSegment(t *testing.T) {
	seg := segment(t)
	xsum := header.TCPFromBytesUnchecked(seg).Checksum()

	for _, tc := range []struct {
		name     string
		src, dst tcpip.Address
		b        []byte
		want     string
	}{
		{
			name: "verified",
			src:  mmds,
			dst:  guest,
			b:    seg,
			want: fmt.Sprintf("send tcp 169.254.169.254:80 -> 10.0.0.1:45000 len:26 flags:0x012 ( S  A    ) seqnum: 1000 ack: 2000 win: 512 xsum:0x%x (ok) options: mss:1460 payload:2", xsum),
		},
		{
			name: "wrong addresses",
			src:  guest,
			dst:  guest,
			b:    seg,
			want: fmt.Sprintf("send tcp 10.0.0.1:80 -> 10.0.0.1:45000 len:26 flags:0x012 ( S  A    ) seqnum: 1000 ack: 2000 win: 512 xsum:0x%x (bad) options: mss:1460 payload:2", xsum),
		},
		{
			name: "addresses unknown",
			b:    seg,
			want: fmt.Sprintf("send tcp 0.0.0.0:80 -> 0.0.0.0:45000 len:26 flags:0x012 ( S  A    ) seqnum: 1000 ack: 2000 win: 512 xsum:0x%x options: mss:1460 payload:2", xsum),
		},
		{
			name: "too short",
			src:  mmds,
			dst:  guest,
			b:    seg[:10],
			want: "send tcp 169.254.169.254 -> 10.0.0.1 len:10 invalid segment: " + header.ErrTCPSliceTooShort.Error(),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := &recorder{}
			s := sniffer.New(&log.BasicLogger{Level: log.Info, Emitter: &log.TestEmitter{TestLogger: r}})
			s.LogSegment("send", tc.src, tc.dst, tc.b)
			if diff := cmp.Diff([]string{tc.want}, r.lines); diff != "" {
				t.Errorf("logged lines mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLogSegmentInvalidMSS(t *testing.T) {
	b := make([]byte, 24)
	tcp := header.TCPFromBytesUnchecked(b)
	tcp.SetHeaderLenNS(24, true)
	copy(b[header.TCPOptionsOffset:], []byte{header.TCPOptionMSS, header.TCPOptionMSSLength, 0, 50})

	r := &recorder{}
	sniffer.New(&log.BasicLogger{Level: log.Info, Emitter: &log.TestEmitter{TestLogger: r}}).LogSegment("recv", tcpip.Address{}, tcpip.Address{}, b)
	want := "recv tcp 0.0.0.0:0 -> 0.0.0.0:0 len:24 flags:0x100 (        N) seqnum: 0 ack: 0 win: 0 xsum:0x0 options: " + header.ErrTCPMSSOption.Error() + " payload:0"
	if diff := cmp.Diff([]string{want}, r.lines); diff != "" {
		t.Errorf("logged lines mismatch (-want +got):\n%s", diff)
	}
}

func TestLogSegmentDisabled(t *testing.T) {
	atomic.StoreUint32(&sniffer.LogPackets, 0)
	defer atomic.StoreUint32(&sniffer.LogPackets, 1)

	r := &recorder{}
	sniffer.New(&log.BasicLogger{Level: log.Debug, Emitter: &log.TestEmitter{TestLogger: r}}).LogSegment("send", mmds, guest, segment(t))
	if len(r.lines) != 0 {
		t.Errorf("logged %q with packet logging disabled", r.lines)
	}
}

func TestLogSegmentBelowLevel(t *testing.T) {
	r := &recorder{}
	sniffer.New(&log.BasicLogger{Level: log.Warning, Emitter: &log.TestEmitter{TestLogger: r}}).LogSegment("send", mmds, guest, segment(t))
	if len(r.lines) != 0 {
		t.Errorf("logged %q at level Warning", r.lines)
	}
}
