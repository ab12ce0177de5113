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

package tcpip

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseAddress(t *testing.T) {
	for _, tc := range []struct {
		s       string
		want    Address
		wantErr bool
	}{
		{s: "10.0.0.1", want: AddrFrom4([4]byte{10, 0, 0, 1})},
		{s: "169.254.169.254", want: AddrFrom4([4]byte{169, 254, 169, 254})},
		{s: "0.0.0.0", want: Address{}},
		{s: "::ffff:1.2.3.4", want: AddrFrom4([4]byte{1, 2, 3, 4})},
		{s: "fe80::1", wantErr: true},
		{s: "1.2.3", wantErr: true},
		{s: "", wantErr: true},
	} {
		got, err := ParseAddress(tc.s)
		if gotErr := err != nil; gotErr != tc.wantErr {
			t.Errorf("ParseAddress(%q) = (_, %v), want error = %t", tc.s, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseAddress(%q) = %s, want = %s", tc.s, got, tc.want)
		}
	}
}

func TestAddress(t *testing.T) {
	a := AddrFrom4Slice([]byte{192, 168, 0, 1, 99})
	if got, want := a.String(), "192.168.0.1"; got != want {
		t.Errorf("a.String() = %q, want = %q", got, want)
	}
	if got, want := a.Len(), 4; got != want {
		t.Errorf("a.Len() = %d, want = %d", got, want)
	}
	if diff := cmp.Diff([]byte{192, 168, 0, 1}, a.AsSlice()); diff != "" {
		t.Errorf("a.AsSlice() mismatch (-want +got):\n%s", diff)
	}
	// AsSlice hands out a copy.
	a.AsSlice()[0] = 1
	if got, want := a.As4(), [4]byte{192, 168, 0, 1}; got != want {
		t.Errorf("a.As4() = %v, want = %v", got, want)
	}
	if a.Unspecified() {
		t.Errorf("%s.Unspecified() = true", a)
	}
	if !(Address{}).Unspecified() {
		t.Errorf("0.0.0.0.Unspecified() = false")
	}
}

func TestAddrFrom4SliceShortPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("AddrFrom4Slice with 3 bytes did not panic")
		}
	}()
	AddrFrom4Slice([]byte{1, 2, 3})
}

func TestTransportProtocolNumberString(t *testing.T) {
	for _, tc := range []struct {
		p    TransportProtocolNumber
		want string
	}{
		{6, "tcp"},
		{17, "udp"},
		{1, "proto(1)"},
	} {
		if got := tc.p.String(); got != tc.want {
			t.Errorf("TransportProtocolNumber(%d).String() = %q, want = %q", uint8(tc.p), got, tc.want)
		}
	}
}
