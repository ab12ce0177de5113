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
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dumbo-net/dumbo/pkg/tcpip/header"
	"github.com/dumbo-net/dumbo/segtool/cmd/util"
	"github.com/dumbo-net/dumbo/segtool/config"
	"github.com/google/subcommands"
)

// Checksum implements subcommands.Command for the "checksum" command.
type Checksum struct {
	// out is where the checksums are printed. Defaults to stdout.
	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Checksum) Name() string {
	return "checksum"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Checksum) Synopsis() string {
	return "Compute the checksum of hex-encoded TCP segments."
}

// Usage implements subcommands.Command.Usage.
func (*Checksum) Usage() string {
	return `checksum --src <addr> --dst <addr> <segment>... - Compute the checksum of hex-encoded TCP segments.

For each segment, prints the checksum the segment should carry and whether the
checksum it carries is valid.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Checksum) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (c *Checksum) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := confFromArgs(args)

	out := c.out
	if out == nil {
		out = os.Stdout
	}
	invalid, err := checksums(out, conf, f.Args())
	if err != nil {
		return util.Errorf("checksum: %v", err)
	}
	if invalid > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// checksumResult describes the checksum of a single segment.
type checksumResult struct {
	want  uint16
	got   uint16
	valid bool
}

func (r checksumResult) String() string {
	status := "valid"
	if !r.valid {
		status = "invalid"
	}
	return fmt.Sprintf("checksum 0x%04x, carried 0x%04x, %s", r.want, r.got, status)
}

// segmentChecksum computes the checksum b should carry. b is not modified.
func segmentChecksum(b []byte, pair *header.AddressPair) (checksumResult, error) {
	if _, err := header.TCPFromBytes(b, nil); err != nil {
		return checksumResult{}, err
	}
	tcp := header.TCPFromBytesUnchecked(append([]byte(nil), b...))
	r := checksumResult{
		got:   tcp.Checksum(),
		valid: tcp.ComputeChecksum(pair.Src, pair.Dst) == 0,
	}
	tcp.SetChecksum(0)
	r.want = tcp.ComputeChecksum(pair.Src, pair.Dst)
	return r, nil
}

// checksums prints the checksum of every segment in args and returns how many
// of them carry an invalid one.
func checksums(w io.Writer, conf *config.Config, args []string) (int, error) {
	pair, err := conf.Addresses()
	if err != nil {
		return 0, err
	}
	if pair == nil {
		return 0, fmt.Errorf("--src and --dst are required")
	}

	invalid := 0
	for i, arg := range args {
		name := fmt.Sprintf("segment %d", i+1)
		b, err := parseHex(arg)
		if err != nil {
			return invalid, fmt.Errorf("%s: %w", name, err)
		}
		r, err := segmentChecksum(b, pair)
		if err != nil {
			return invalid, fmt.Errorf("%s: %w", name, err)
		}
		if !r.valid {
			invalid++
		}
		fmt.Fprintf(w, "%s: %s\n", name, r)
	}
	return invalid, nil
}
