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

package header

import (
	"errors"
	"math"

	"github.com/dumbo-net/dumbo/pkg/tcpip"
	"github.com/dumbo-net/dumbo/pkg/tcpip/buffer"
)

// Offsets of the fixed TCP header fields.
const (
	tcpSrcPort    = 0
	tcpDstPort    = 2
	tcpSeqNum     = 4
	tcpAckNum     = 8
	tcpDataOffset = 12
	tcpFlags      = 13
	tcpWinSize    = 14
	tcpChecksum   = 16
	tcpUrgentPtr  = 18
)

const (
	// TCPMinimumSize is the minimum size of a valid TCP packet.
	TCPMinimumSize = 20

	// TCPOptionsOffset is the offset of the first option byte.
	TCPOptionsOffset = TCPMinimumSize

	// TCPHeaderMaximumSize is the maximum header size of a TCP packet: a
	// 4-bit data offset counting 32-bit words.
	TCPHeaderMaximumSize = 60

	// TCPProtocolNumber is TCP's transport protocol number.
	TCPProtocolNumber tcpip.TransportProtocolNumber = 6

	// UDPProtocolNumber is UDP's transport protocol number. UDP segments
	// are checksummed with the same pseudo-header scheme.
	UDPProtocolNumber tcpip.TransportProtocolNumber = 17

	// TCPMinimumMSS is the smallest MSS option value accepted when parsing.
	// Anything below it is treated as a malformed option.
	TCPMinimumMSS = 100
)

// Options that may be present in a TCP segment.
const (
	TCPOptionEOL = 0
	TCPOptionNOP = 1
	TCPOptionMSS = 2
)

// TCPOptionMSSLength is the length of the MSS option, kind and length bytes
// included.
const TCPOptionMSSLength = 4

// TCPFlags is the set of TCP header flags.
//
// The low byte holds the flags in their wire order (FIN is bit 0, CWR is bit
// 7). NS lives in a different header byte on the wire and is carried here as
// bit 8; it is only split off when reading or writing the header.
type TCPFlags uint16

// Flags that may be set in a TCP segment.
const (
	TCPFlagFin TCPFlags = 1 << iota
	TCPFlagSyn
	TCPFlagRst
	TCPFlagPsh
	TCPFlagAck
	TCPFlagUrg
	TCPFlagEce
	TCPFlagCwr
	TCPFlagNs
)

// Intersects returns true iff there are flags common to both f and o.
func (f TCPFlags) Intersects(o TCPFlags) bool {
	return f&o != 0
}

// Contains returns true iff all the flags in o are contained within f.
func (f TCPFlags) Contains(o TCPFlags) bool {
	return f&o == o
}

// String implements Stringer.String.
func (f TCPFlags) String() string {
	flagsStr := []byte("FSRPAUECN")
	for i := range flagsStr {
		if f&(1<<uint(i)) == 0 {
			flagsStr[i] = ' '
		}
	}
	return string(flagsStr)
}

// Errors returned while parsing or writing TCP segments. None of them is
// fatal; the caller decides whether to drop the packet or abandon the write.
var (
	// ErrTCPChecksum is returned when checksum verification fails.
	ErrTCPChecksum = errors.New("tcp: invalid checksum")

	// ErrTCPEmptyPayload is returned when a payload was requested but no
	// payload byte fits in the segment.
	ErrTCPEmptyPayload = errors.New("tcp: payload requested but there is no room for it")

	// ErrTCPHeaderLen is returned when the data offset field describes a
	// header shorter than 20 bytes or longer than min(60, segment length).
	ErrTCPHeaderLen = errors.New("tcp: invalid header length")

	// ErrTCPMSSOption is returned when the MSS option holds a value below
	// TCPMinimumMSS.
	ErrTCPMSSOption = errors.New("tcp: invalid MSS option value")

	// ErrTCPMSSRemaining is returned when the MSS budget cannot even
	// accommodate the MSS option.
	ErrTCPMSSRemaining = errors.New("tcp: remaining segment length cannot accommodate the MSS option")

	// ErrTCPSliceTooShort is returned when a buffer is shorter than the
	// minimum header, or than the minimum segment being written.
	ErrTCPSliceTooShort = errors.New("tcp: buffer too short")
)

// TCP is a view of a TCP segment (header, options and payload) stored in a
// byte slice. It owns nothing: the bytes belong to the caller's buffer.
//
// A TCP obtained from TCPFromBytes or from the write path has a header
// length within bounds, and every accessor is safe to call. A TCP obtained
// from TCPFromBytesUnchecked carries no such guarantee and its fixed-field
// accessors panic if the buffer is shorter than TCPMinimumSize.
type TCP struct {
	b buffer.View
}

// TCPFromBytesUnchecked interprets b as a TCP segment without validating it.
func TCPFromBytesUnchecked(b []byte) TCP {
	return TCP{b: buffer.NewViewFromBytes(b)}
}

// TCPFromBytes interprets b as a TCP segment and validates its header
// length. When verify is not nil, the checksum is also verified against the
// addresses of the enclosing IPv4 packet.
//
// Reserved bits, the urgent pointer and the options are not validated.
func TCPFromBytes(b []byte, verify *AddressPair) (TCP, error) {
	if len(b) < TCPMinimumSize {
		return TCP{}, ErrTCPSliceTooShort
	}

	t := TCPFromBytesUnchecked(b)

	hl := int(t.HeaderLen())
	if hl < TCPMinimumSize || hl > min(TCPHeaderMaximumSize, len(b)) {
		return TCP{}, ErrTCPHeaderLen
	}

	if verify != nil && t.ComputeChecksum(verify.Src, verify.Dst) != 0 {
		return TCP{}, ErrTCPChecksum
	}

	return t, nil
}

// View returns the bytes of the segment.
func (t TCP) View() buffer.View {
	return t.b
}

// SourcePort returns the "source port" field of the tcp header.
func (t TCP) SourcePort() uint16 {
	return t.b.Ntohs(tcpSrcPort)
}

// DestinationPort returns the "destination port" field of the tcp header.
func (t TCP) DestinationPort() uint16 {
	return t.b.Ntohs(tcpDstPort)
}

// SequenceNumber returns the "sequence number" field of the tcp header.
func (t TCP) SequenceNumber() uint32 {
	return t.b.Ntohl(tcpSeqNum)
}

// AckNumber returns the "ack number" field of the tcp header. It is only
// meaningful when the ACK flag is set.
func (t TCP) AckNumber() uint32 {
	return t.b.Ntohl(tcpAckNum)
}

// HeaderLen returns the header length in bytes, derived from the data offset
// field.
func (t TCP) HeaderLen() uint8 {
	return (t.b[tcpDataOffset] >> 4) * 4
}

// Reserved returns the three reserved bits that sit between the data offset
// and the NS flag. They are returned in place, that is, masked with 0x0e and
// not shifted.
func (t TCP) Reserved() uint8 {
	return t.b[tcpDataOffset] & 0x0e
}

// NS returns whether the NS flag is set.
func (t TCP) NS() bool {
	return t.b[tcpDataOffset]&1 != 0
}

// FlagsAfterNS returns the flags stored in the flags byte, that is, every
// flag but NS.
func (t TCP) FlagsAfterNS() TCPFlags {
	return TCPFlags(t.b[tcpFlags])
}

// Flags returns all the flags of the segment, NS included.
func (t TCP) Flags() TCPFlags {
	f := t.FlagsAfterNS()
	if t.NS() {
		f |= TCPFlagNs
	}
	return f
}

// WindowSize returns the "window size" field of the tcp header.
func (t TCP) WindowSize() uint16 {
	return t.b.Ntohs(tcpWinSize)
}

// Checksum returns the "checksum" field of the tcp header.
func (t TCP) Checksum() uint16 {
	return t.b.Ntohs(tcpChecksum)
}

// UrgentPointer returns the "urgent pointer" field of the tcp header. It is
// only meaningful when the URG flag is set.
func (t TCP) UrgentPointer() uint16 {
	return t.b.Ntohs(tcpUrgentPtr)
}

// Len returns the length of the segment. Segments always travel inside an
// IPv4 packet, so the length saturates at math.MaxUint16.
func (t TCP) Len() uint16 {
	if len(t.b) > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(len(t.b))
}

// PayloadLen returns the length of the payload.
func (t TCP) PayloadLen() uint16 {
	l, hl := t.Len(), uint16(t.HeaderLen())
	if hl > l {
		return 0
	}
	return l - hl
}

// OptionsUnchecked returns the options area of a segment whose header length
// is headerLen. headerLen must be the validated header length; any other
// value yields a meaningless, but in-bounds, result.
func (t TCP) OptionsUnchecked(headerLen int) buffer.View {
	start := min(TCPOptionsOffset, len(t.b))
	end := max(start, min(headerLen, len(t.b)))
	return t.b[start:end]
}

// Options returns the options area of the segment.
func (t TCP) Options() buffer.View {
	return t.OptionsUnchecked(int(t.HeaderLen()))
}

// PayloadUnchecked returns the payload of a segment whose header length is
// headerLen. As with OptionsUnchecked, a wrong headerLen gives a meaningless
// result but never an out-of-bounds access.
func (t TCP) PayloadUnchecked(headerLen int) buffer.View {
	return t.b[max(0, min(headerLen, len(t.b))):]
}

// Payload returns the data in the tcp packet.
func (t TCP) Payload() buffer.View {
	return t.PayloadUnchecked(int(t.HeaderLen()))
}

// ComputeChecksum computes the checksum of the segment over the IPv4
// pseudo-header built from srcAddr and dstAddr.
//
// A received segment has a valid checksum iff the result is zero.
func (t TCP) ComputeChecksum(srcAddr, dstAddr tcpip.Address) uint16 {
	return TransportChecksum(TCPProtocolNumber, srcAddr, dstAddr, t.b)
}

// ParseMSSOptionUnchecked scans the options of a segment whose header length
// is headerLen and returns the value of the first MSS option, if any.
//
// The scan is lenient: option lengths other than that of MSS are trusted
// without validation, anything after an EOL is ignored, and the scan stops as
// soon as fewer than TCPOptionMSSLength bytes are left. A zero option length
// cannot advance the scan and ends it as well.
func (t TCP) ParseMSSOptionUnchecked(headerLen int) (mss uint16, ok bool, err error) {
	b := t.OptionsUnchecked(headerLen)
	for i := 0; i+TCPOptionMSSLength <= len(b); {
		switch b[i] {
		case TCPOptionEOL:
			return 0, false, nil
		case TCPOptionNOP:
			i++
		case TCPOptionMSS:
			// The length byte is not checked.
			v := b.Ntohs(i + 2)
			if v < TCPMinimumMSS {
				return 0, false, ErrTCPMSSOption
			}
			return v, true, nil
		default:
			l := int(b[i+1])
			if l == 0 {
				return 0, false, nil
			}
			i += l
		}
	}
	return 0, false, nil
}

// ParseMSSOption is ParseMSSOptionUnchecked over the segment's own header
// length.
func (t TCP) ParseMSSOption() (mss uint16, ok bool, err error) {
	return t.ParseMSSOptionUnchecked(int(t.HeaderLen()))
}

// SetSourcePort sets the "source port" field of the tcp header.
func (t TCP) SetSourcePort(port uint16) {
	t.b.Htons(tcpSrcPort, port)
}

// SetDestinationPort sets the "destination port" field of the tcp header.
func (t TCP) SetDestinationPort(port uint16) {
	t.b.Htons(tcpDstPort, port)
}

// SetSequenceNumber sets the "sequence number" field of the tcp header.
func (t TCP) SetSequenceNumber(seqNum uint32) {
	t.b.Htonl(tcpSeqNum, seqNum)
}

// SetAckNumber sets the "ack number" field of the tcp header.
func (t TCP) SetAckNumber(ackNum uint32) {
	t.b.Htonl(tcpAckNum, ackNum)
}

// SetHeaderLenNS sets the data offset from headerLen, clears the reserved
// bits and sets the NS flag to ns.
//
// headerLen must be a multiple of 4; values above 60 do not fit the 4-bit
// data offset and wrap around.
func (t TCP) SetHeaderLenNS(headerLen uint8, ns bool) {
	v := (headerLen / 4) << 4
	if ns {
		v |= 1
	}
	t.b[tcpDataOffset] = v
}

// SetFlags sets every flag of the segment. NS is written to the data offset
// byte, the rest to the flags byte.
func (t TCP) SetFlags(flags TCPFlags) {
	t.b[tcpFlags] = uint8(flags)
	v := t.b[tcpDataOffset] &^ 1
	if flags&TCPFlagNs != 0 {
		v |= 1
	}
	t.b[tcpDataOffset] = v
}

// SetWindowSize sets the "window size" field of the tcp header.
func (t TCP) SetWindowSize(rcvwnd uint16) {
	t.b.Htons(tcpWinSize, rcvwnd)
}

// SetChecksum sets the checksum field of the tcp header.
func (t TCP) SetChecksum(xsum uint16) {
	t.b.Htons(tcpChecksum, xsum)
}

// SetUrgentPointer sets the "urgent pointer" field of the tcp header.
func (t TCP) SetUrgentPointer(urgentPointer uint16) {
	t.b.Htons(tcpUrgentPtr, urgentPointer)
}

// TCPPayload describes where the payload of an outgoing segment comes from.
type TCPPayload struct {
	// Buf holds the payload data. It must not be nil.
	Buf buffer.Readable

	// MaxBytes is the maximum number of bytes to read from Buf.
	MaxBytes int
}

// TCPFields contains the fields of an outgoing TCP segment that the TCP
// layer itself knows. Ports and checksum are supplied on Finalize.
type TCPFields struct {
	// SeqNum is the "sequence number" field of a TCP packet.
	SeqNum uint32

	// AckNum is the "acknowledgement number" field of a TCP packet.
	AckNum uint32

	// Flags is the flags of the segment. NS is always written as zero.
	Flags TCPFlags

	// WindowSize is the "window size" field of a TCP packet.
	WindowSize uint16

	// MSS, when not zero, is advertised through an MSS option.
	MSS uint16

	// MSSRemaining is an upper bound on the number of bytes that follow the
	// fixed header: options and payload. Whatever the layers below need
	// (IP options, for instance) must already be subtracted.
	MSSRemaining uint16

	// Payload is the segment payload, or nil for a segment without one.
	Payload *TCPPayload
}

// IncompleteTCP is a segment whose ports and checksum are still unset. It
// turns into a TCP only through Finalize, so a half-written segment cannot be
// used as a finished one.
type IncompleteTCP struct {
	tcp TCP
}

// Len returns the length of the segment being built.
func (s IncompleteTCP) Len() int {
	return len(s.tcp.b)
}

// Finalize sets the ports and, when xsum is not nil, computes the checksum
// over the pseudo-header built from its addresses. It returns the finished
// segment.
func (s IncompleteTCP) Finalize(srcPort, dstPort uint16, xsum *AddressPair) TCP {
	t := s.tcp
	t.SetSourcePort(srcPort)
	t.SetDestinationPort(dstPort)
	if xsum != nil {
		t.SetChecksum(0)
		t.SetChecksum(t.ComputeChecksum(xsum.Src, xsum.Dst))
	}
	return t
}

// WriteIncompleteTCP writes a segment to buf, leaving the ports and checksum
// untouched. The urgent pointer and NS flag are written as zero, and the
// only option ever written is MSS.
//
// As many payload bytes are copied as fit under all of buf's length,
// f.MSSRemaining, f.Payload.MaxBytes and the payload available. The returned
// segment is narrowed to the bytes actually written.
func WriteIncompleteTCP(buf []byte, f TCPFields) (IncompleteTCP, error) {
	optionsLen := 0
	if f.MSS != 0 {
		optionsLen = TCPOptionMSSLength
	}
	segLen := TCPMinimumSize + optionsLen
	if len(buf) < segLen {
		return IncompleteTCP{}, ErrTCPSliceTooShort
	}

	mssLeft := int(f.MSSRemaining)
	if optionsLen > mssLeft {
		return IncompleteTCP{}, ErrTCPMSSRemaining
	}
	mssLeft -= optionsLen

	t := TCPFromBytesUnchecked(buf)
	t.SetSequenceNumber(f.SeqNum)
	t.SetAckNumber(f.AckNum)
	t.SetHeaderLenNS(uint8(segLen), false)
	t.SetFlags(f.Flags &^ TCPFlagNs)
	t.SetWindowSize(f.WindowSize)
	t.SetUrgentPointer(0)

	if optionsLen != 0 {
		t.b[TCPOptionsOffset] = TCPOptionMSS
		t.b[TCPOptionsOffset+1] = TCPOptionMSSLength
		t.b.Htons(TCPOptionsOffset+2, f.MSS)
	}

	if p := f.Payload; p != nil {
		room := min(len(buf)-segLen, mssLeft, p.Buf.Size(), p.MaxBytes)
		if room <= 0 {
			return IncompleteTCP{}, ErrTCPEmptyPayload
		}
		p.Buf.ReadToSlice(0, t.b[segLen:segLen+room])
		segLen += room
	}

	t.b.Shrink(segLen)
	return IncompleteTCP{tcp: t}, nil
}

// WriteTCP writes a complete segment to buf. It is WriteIncompleteTCP
// followed by Finalize, for callers that know the ports and addresses up
// front.
func WriteTCP(buf []byte, srcPort, dstPort uint16, f TCPFields, xsum *AddressPair) (TCP, error) {
	s, err := WriteIncompleteTCP(buf, f)
	if err != nil {
		return TCP{}, err
	}
	return s.Finalize(srcPort, dstPort, xsum), nil
}
