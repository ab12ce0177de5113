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
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/dumbo-net/dumbo/pkg/log"
	"github.com/dumbo-net/dumbo/pkg/tcpip"
	"github.com/dumbo-net/dumbo/pkg/tcpip/header"
	"github.com/dumbo-net/dumbo/pkg/tcpip/sniffer"
	"github.com/dumbo-net/dumbo/segtool/cmd/util"
	"github.com/dumbo-net/dumbo/segtool/config"
	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
)

// maxLineLen bounds the length of a line in a segment file: the hex encoding
// of the largest segment an IPv4 packet can carry, plus some room for
// whitespace.
const maxLineLen = 2*65535 + 1024

// Decode implements subcommands.Command for the "decode" command.
type Decode struct {
	files bool
	ipv4  bool
	jobs  int

	// out is where the decoded segments are printed. Defaults to stdout.
	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Decode) Name() string {
	return "decode"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Decode) Synopsis() string {
	return "Decode and validate hex-encoded TCP segments."
}

// Usage implements subcommands.Command.Usage.
func (*Decode) Usage() string {
	return `decode [flags] <segment>... - Decode and validate hex-encoded TCP segments.
decode -f [flags] <file>... - Decode every segment in the given files, one per line.

Lines that are empty or start with '#' are skipped. The checksum is verified
when --src and --dst are set, or against the addresses of the enclosing packet
with -ipv4.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (d *Decode) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&d.files, "f", false, "arguments are files holding one hex-encoded segment per line.")
	f.BoolVar(&d.ipv4, "ipv4", false, "segments are wrapped in an IPv4 header, whose addresses are used to verify the checksum.")
	f.IntVar(&d.jobs, "j", runtime.GOMAXPROCS(0), "number of files decoded concurrently.")
}

// Execute implements subcommands.Command.Execute.
func (d *Decode) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := confFromArgs(args)

	results, err := d.decode(ctx, conf, f.Args())
	if err != nil {
		return util.Errorf("decode: %v", err)
	}
	out := d.out
	if out == nil {
		out = os.Stdout
	}
	if failed := printResults(out, results); failed > 0 {
		return util.Errorf("decode: %d of %d segments are invalid", failed, len(results))
	}
	return subcommands.ExitSuccess
}

// result is the outcome of decoding one segment.
type result struct {
	// name identifies the segment in the output.
	name string

	// tcp is valid iff err is nil.
	tcp      header.TCP
	verified bool
	err      error
}

// decode decodes every segment named by args, in order.
func (d *Decode) decode(ctx context.Context, conf *config.Config, args []string) ([]result, error) {
	pair, err := conf.Addresses()
	if err != nil {
		return nil, err
	}
	dec := decoder{pair: pair, ipv4: d.ipv4, logPackets: conf.LogPackets}

	if !d.files {
		results := make([]result, 0, len(args))
		for i, arg := range args {
			results = append(results, dec.decodeHex(fmt.Sprintf("segment %d", i+1), arg))
		}
		return results, nil
	}

	// Each file fills its own slot, so results come out in argument order
	// regardless of which file finishes first.
	perFile := make([][]result, len(args))
	g, ctx := errgroup.WithContext(ctx)
	if d.jobs > 0 {
		g.SetLimit(d.jobs)
	}
	for i, path := range args {
		g.Go(func() error {
			rs, err := dec.decodeFile(ctx, path)
			if err != nil {
				return err
			}
			perFile[i] = rs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []result
	for _, rs := range perFile {
		results = append(results, rs...)
	}
	return results, nil
}

// decoder decodes segments. It is safe for concurrent use.
type decoder struct {
	pair       *header.AddressPair
	ipv4       bool
	logPackets bool
}

func (dec decoder) decodeFile(ctx context.Context, path string) ([]result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading segments: %w", err)
	}
	log.Debugf("Decoding %q (%d bytes)", path, len(data))

	var results []result
	s := bufio.NewScanner(bytes.NewReader(data))
	s.Buffer(nil, maxLineLen)
	for line := 1; s.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := strings.TrimSpace(s.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		results = append(results, dec.decodeHex(fmt.Sprintf("%s:%d", path, line), text))
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	return results, nil
}

func (dec decoder) decodeHex(name, s string) result {
	b, err := parseHex(s)
	if err != nil {
		return result{name: name, err: err}
	}
	pair := dec.pair
	if dec.ipv4 {
		if pair, b, err = splitIPv4(b); err != nil {
			return result{name: name, err: err}
		}
	}
	if dec.logPackets {
		var src, dst tcpip.Address
		if pair != nil {
			src, dst = pair.Src, pair.Dst
		}
		sniffer.LogSegment(name, src, dst, b)
	}
	tcp, err := header.TCPFromBytes(b, pair)
	if err != nil {
		return result{name: name, err: err}
	}
	return result{name: name, tcp: tcp, verified: pair != nil}
}

// printResults prints every result to w and returns how many segments were
// invalid.
func printResults(w io.Writer, results []result) int {
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(w, "%s: invalid: %v\n", r.name, r.err)
			continue
		}
		fmt.Fprintf(w, "%s: %d bytes\n", r.name, r.tcp.Len())
		describe(w, r.tcp, r.verified)
	}
	return failed
}
