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

// Package buffer provides a byte-order view over borrowed packet memory.
package buffer

import (
	"encoding/binary"
	"fmt"
)

// View is a non-owning view over a contiguous region of packet memory.
//
// The length of a View is its logical length. It may be narrowed with Shrink
// once the final size of a packet is known, but never widened.
//
// The multi-byte accessors are unchecked: callers must make sure the field
// lies within the view, usually by validating a header length first. An
// out-of-range access panics; it never reads or writes past the view.
type View []byte

// NewViewFromBytes returns a view over b. The bytes are not copied.
func NewViewFromBytes(b []byte) View {
	return View(b)
}

// Size returns the logical length of the view.
func (v View) Size() int {
	return len(v)
}

// Ntohs reads the big-endian 16-bit value at offset off.
func (v View) Ntohs(off int) uint16 {
	return binary.BigEndian.Uint16(v[off : off+2])
}

// Ntohl reads the big-endian 32-bit value at offset off.
func (v View) Ntohl(off int) uint32 {
	return binary.BigEndian.Uint32(v[off : off+4])
}

// Htons writes value at offset off in big-endian order.
func (v View) Htons(off int, value uint16) {
	binary.BigEndian.PutUint16(v[off:off+2], value)
}

// Htonl writes value at offset off in big-endian order.
func (v View) Htonl(off int, value uint32) {
	binary.BigEndian.PutUint32(v[off:off+4], value)
}

// Slice returns the sub-view [from, to). Unlike a plain slice expression it
// reports an out-of-range request instead of panicking.
func (v View) Slice(from, to int) (View, bool) {
	if from < 0 || from > to || to > len(v) {
		return nil, false
	}
	return v[from:to], true
}

// Shrink narrows the logical length of the view to n bytes.
//
// Precondition: n <= v.Size().
func (v *View) Shrink(n int) {
	if n < 0 || n > len(*v) {
		panic(fmt.Sprintf("buffer.View.Shrink: new length %d outside [0, %d]", n, len(*v)))
	}
	*v = (*v)[:n]
}

// ReadToSlice implements Readable.ReadToSlice.
func (v View) ReadToSlice(off int, dst []byte) {
	copy(dst, v[off:off+len(dst)])
}

// Readable is a source of bytes with a known available length, such as the
// buffer holding data that waits to be sent as TCP payload.
type Readable interface {
	// Size returns the number of bytes available for reading.
	Size() int

	// ReadToSlice copies len(dst) bytes starting at off into dst.
	//
	// Precondition: off+len(dst) <= Size().
	ReadToSlice(off int, dst []byte)
}

var _ Readable = View(nil)
