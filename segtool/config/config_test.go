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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dumbo-net/dumbo/pkg/tcpip"
	"github.com/dumbo-net/dumbo/pkg/tcpip/header"
	"github.com/google/go-cmp/cmp"
)

func newFlagSet(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	if err := testFlags.Parse(args); err != nil {
		t.Fatalf("Parse(%q): %v", args, err)
	}
	return testFlags
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	return writeConfigAs(t, "segtool.toml", contents)
}

func writeConfigAs(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile(%q): %v", path, err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t))
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		LogFormat: "text",
		Segment: Segment{
			BufferSize:   1500,
			WindowSize:   65535,
			MSSRemaining: 1460,
		},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("default config mismatch (-want +got):\n%s", diff)
	}

	// All defaults doesn't require setting flags.
	if flags := c.ToFlags(); len(flags) > 0 {
		t.Errorf("default flags not set correctly for: %s", flags)
	}
	if pair, err := c.Addresses(); pair != nil || err != nil {
		t.Errorf("c.Addresses() = (%v, %v), want = (nil, nil)", pair, err)
	}
}

func TestFromFlags(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t, "--debug", "--src=10.0.0.1", "--dst=169.254.169.254", "--mss=1460", "--log-format=json"))
	if err != nil {
		t.Fatal(err)
	}
	if want := true; c.Debug != want {
		t.Errorf("Debug=%v, want: %v", c.Debug, want)
	}
	if want := "json"; c.LogFormat != want {
		t.Errorf("LogFormat=%v, want: %v", c.LogFormat, want)
	}
	if want := uint(1460); c.Segment.MSS != want {
		t.Errorf("Segment.MSS=%v, want: %v", c.Segment.MSS, want)
	}

	pair, err := c.Addresses()
	if err != nil {
		t.Fatalf("c.Addresses(): %v", err)
	}
	want := &header.AddressPair{
		Src: tcpip.AddrFrom4([4]byte{10, 0, 0, 1}),
		Dst: tcpip.AddrFrom4([4]byte{169, 254, 169, 254}),
	}
	if *pair != *want {
		t.Errorf("c.Addresses() = %+v, want = %+v", pair, want)
	}

	if diff := cmp.Diff(header.TCPFields{WindowSize: 65535, MSS: 1460, MSSRemaining: 1460}, c.Fields()); diff != "" {
		t.Errorf("c.Fields() mismatch (-want +got):\n%s", diff)
	}
}

func TestToFlagsFromFlags(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t, "--debug=true", "--log-packets=false", "--window-size=1024", "--src=1.2.3.4", "--dst=5.6.7.8"))
	if err != nil {
		t.Fatal(err)
	}
	// --log-packets matches its default and is omitted.
	want := []string{"--debug=true", "--src=1.2.3.4", "--dst=5.6.7.8", "--window-size=1024"}
	if diff := cmp.Diff(want, c.ToFlags()); diff != "" {
		t.Errorf("c.ToFlags() mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFile(t *testing.T) {
	path := writeConfig(t, `
debug = true
log_format = "json-k8s"
log_packets = true
src_addr = "10.0.0.2"
dst_addr = "10.0.0.1"

[segment]
buffer_size = 9000
mss = 536
`)

	t.Run("file only", func(t *testing.T) {
		c, err := NewFromFlags(newFlagSet(t, "--config="+path))
		if err != nil {
			t.Fatal(err)
		}
		want := &Config{
			ConfigFile: path,
			LogFormat:  "json-k8s",
			Debug:      true,
			LogPackets: true,
			SrcAddr:    "10.0.0.2",
			DstAddr:    "10.0.0.1",
			Segment: Segment{
				BufferSize:   9000,
				WindowSize:   65535,
				MSS:          536,
				MSSRemaining: 1460,
			},
		}
		if diff := cmp.Diff(want, c); diff != "" {
			t.Errorf("config mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("flags override file", func(t *testing.T) {
		c, err := NewFromFlags(newFlagSet(t, "--config="+path, "--debug=false", "--mss=1460", "--log-format=text"))
		if err != nil {
			t.Fatal(err)
		}
		if c.Debug {
			t.Errorf("Debug=true, want: false")
		}
		if want := uint(1460); c.Segment.MSS != want {
			t.Errorf("Segment.MSS=%v, want: %v", c.Segment.MSS, want)
		}
		if want := "text"; c.LogFormat != want {
			t.Errorf("LogFormat=%v, want: %v", c.LogFormat, want)
		}
		// Not overridden.
		if want := uint(9000); c.Segment.BufferSize != want {
			t.Errorf("Segment.BufferSize=%v, want: %v", c.Segment.BufferSize, want)
		}
	})
}

func TestConfigFileYAML(t *testing.T) {
	path := writeConfigAs(t, "segtool.yaml", `
log_format: json
src_addr: 10.0.0.2
dst_addr: 10.0.0.1
segment:
  window_size: 1024
  mss: 536
`)
	c, err := NewFromFlags(newFlagSet(t, "--config="+path, "--mss=1400"))
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		ConfigFile: path,
		LogFormat:  "json",
		SrcAddr:    "10.0.0.2",
		DstAddr:    "10.0.0.1",
		Segment: Segment{
			BufferSize:   1500,
			WindowSize:   1024,
			MSS:          1400,
			MSSRemaining: 1460,
		},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	for _, tc := range []struct {
		name     string
		file     string
		contents string
		wantErr  string
	}{
		{
			name:     "empty",
			file:     "empty.yml",
			contents: "",
		},
		{
			name:     "unknown key",
			file:     "segtool.yml",
			contents: "debgu: true\n",
			wantErr:  "unknown keys",
		},
		{
			name:     "wrong type",
			file:     "segtool.yaml",
			contents: "segment:\n  mss: lots\n",
			wantErr:  "error reading config file",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFromFlags(newFlagSet(t, "--config="+writeConfigAs(t, tc.file, tc.contents)))
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("NewFromFlags() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("NewFromFlags() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestConfigFileErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		contents string
		wantErr  string
	}{
		{
			name:     "unknown key",
			contents: "debgu = true\n",
			wantErr:  "unknown keys",
		},
		{
			name:     "unknown segment key",
			contents: "[segment]\nwindow = 10\n",
			wantErr:  "segment.window",
		},
		{
			name:     "malformed",
			contents: "debug = \n",
			wantErr:  "error reading config file",
		},
		{
			name:     "wrong type",
			contents: "debug = \"yes\"\n",
			wantErr:  "error reading config file",
		},
		{
			name:     "invalid value",
			contents: "[segment]\nmss = 70000\n",
			wantErr:  "does not fit in 16 bits",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFromFlags(newFlagSet(t, "--config="+writeConfig(t, tc.contents)))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("NewFromFlags() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}

	if _, err := NewFromFlags(newFlagSet(t, "--config=/nonexistent/segtool.toml")); err == nil {
		t.Errorf("NewFromFlags() with a missing config file succeeded")
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
	}{
		{"log format", []string{"--log-format=xml"}},
		{"src without dst", []string{"--src=10.0.0.1"}},
		{"dst without src", []string{"--dst=10.0.0.1"}},
		{"bad src", []string{"--src=10.0.0", "--dst=10.0.0.1"}},
		{"ipv6 dst", []string{"--src=10.0.0.1", "--dst=fe80::1"}},
		{"buffer too small", []string{"--buffer-size=19"}},
		{"buffer too large", []string{"--buffer-size=65536"}},
		{"window too large", []string{"--window-size=65536"}},
		{"mss remaining too large", []string{"--mss-remaining=65536"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewFromFlags(newFlagSet(t, tc.args...)); err == nil {
				t.Errorf("NewFromFlags(%q) succeeded, want error", tc.args)
			}
		})
	}
}
