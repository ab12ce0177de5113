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
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/dumbo-net/dumbo/pkg/log"
	"github.com/dumbo-net/dumbo/pkg/tcpip"
	"github.com/dumbo-net/dumbo/pkg/tcpip/buffer"
	"github.com/dumbo-net/dumbo/pkg/tcpip/header"
	"github.com/dumbo-net/dumbo/pkg/tcpip/sniffer"
	"github.com/dumbo-net/dumbo/segtool/cmd/util"
	"github.com/dumbo-net/dumbo/segtool/config"
	"github.com/google/subcommands"
)

// Encode implements subcommands.Command for the "encode" command.
type Encode struct {
	srcPort    uint
	dstPort    uint
	seq        uint64
	ack        uint64
	flags      tcpFlags
	payload    string
	payloadHex string
	maxPayload int

	// out is where the segment is printed. Defaults to stdout.
	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Encode) Name() string {
	return "encode"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Encode) Synopsis() string {
	return "Build a TCP segment and print it as hex."
}

// Usage implements subcommands.Command.Usage.
func (*Encode) Usage() string {
	return `encode [flags] - Build a TCP segment and print it as hex.

Window size, MSS option, MSS budget and buffer size come from the global
configuration. The checksum is computed when --src and --dst are set and left
as zero otherwise.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (e *Encode) SetFlags(f *flag.FlagSet) {
	f.UintVar(&e.srcPort, "sport", 0, "source port.")
	f.UintVar(&e.dstPort, "dport", 0, "destination port.")
	f.Uint64Var(&e.seq, "seq", 0, "sequence number.")
	f.Uint64Var(&e.ack, "ack", 0, "acknowledgement number.")
	f.Var(&e.flags, "flags", `TCP flags, as letters from "FSRPAUECN" (e.g. "SA") or a number. NS is never written.`)
	f.StringVar(&e.payload, "payload", "", "payload, as a string.")
	f.StringVar(&e.payloadHex, "payload-hex", "", "payload, hex encoded.")
	f.IntVar(&e.maxPayload, "max-payload", -1, "maximum number of payload bytes to write; negative means all of them.")
}

// Execute implements subcommands.Command.Execute.
func (e *Encode) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := confFromArgs(args)

	b, err := e.encode(conf)
	if err != nil {
		return util.Errorf("encode: %v", err)
	}
	out := e.out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintln(out, hex.EncodeToString(b))
	return subcommands.ExitSuccess
}

func (e *Encode) encode(conf *config.Config) ([]byte, error) {
	if e.srcPort > math.MaxUint16 || e.dstPort > math.MaxUint16 {
		return nil, fmt.Errorf("ports must fit in 16 bits, got %d and %d", e.srcPort, e.dstPort)
	}
	if e.seq > math.MaxUint32 || e.ack > math.MaxUint32 {
		return nil, fmt.Errorf("sequence and acknowledgement numbers must fit in 32 bits, got %d and %d", e.seq, e.ack)
	}

	payload := []byte(e.payload)
	if e.payloadHex != "" {
		if e.payload != "" {
			return nil, fmt.Errorf("--payload and --payload-hex are mutually exclusive")
		}
		var err error
		if payload, err = parseHex(e.payloadHex); err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
	}

	fields := conf.Fields()
	fields.SeqNum = uint32(e.seq)
	fields.AckNum = uint32(e.ack)
	fields.Flags = header.TCPFlags(e.flags)
	if len(payload) > 0 {
		maxBytes := e.maxPayload
		if maxBytes < 0 {
			maxBytes = len(payload)
		}
		fields.Payload = &header.TCPPayload{Buf: buffer.NewViewFromBytes(payload), MaxBytes: maxBytes}
	}

	pair, err := conf.Addresses()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, conf.Segment.BufferSize)
	s, err := header.WriteIncompleteTCP(buf, fields)
	if err != nil {
		return nil, fmt.Errorf("writing segment: %w", err)
	}
	log.Debugf("Wrote %d bytes of a %d byte buffer, %d payload bytes available", s.Len(), len(buf), len(payload))

	var src, dst tcpip.Address
	if pair != nil {
		src, dst = pair.Src, pair.Dst
	} else {
		log.Infof("No addresses configured, checksum left as zero")
	}
	tcp := s.Finalize(uint16(e.srcPort), uint16(e.dstPort), pair)
	if conf.LogPackets {
		sniffer.LogSegment("encode", src, dst, tcp.View())
	}
	return tcp.View(), nil
}
