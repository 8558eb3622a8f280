// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrt

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

/*
 * Packet header word (big-endian):
 *
 *  [31:28] packet type
 *  [27]    class identifier present
 *  [26]    trailer present (data packets only)
 *  [25:24] reserved
 *  [23:22] TSI (integer timestamp type)
 *  [21:20] TSF (fractional timestamp type)
 *  [19:16] packet count (mod 16)
 *  [15:0]  packet size, in 32-bit words
 */
const (
	headerTypeShift   = 28
	headerClassIDBit  = 1 << 27
	headerTrailerBit  = 1 << 26
	headerTSIShift    = 22
	headerTSFShift    = 20
	headerCountShift  = 16
	headerCountMask   = 0x000F0000
	headerSizeMask    = 0x0000FFFF
	headerTimeMask    = 0x3
	packetCountModulo = 16
)

const (
	// HeaderLength is the length, in octets, of the fixed VRT header word.
	HeaderLength = 4

	// MaxPacketLength is the largest packet length, in octets, that the header's
	// 16-bit size field can describe.
	MaxPacketLength = headerSizeMask * 4
)

var (
	// ErrReadOnly is returned when a mutation is attempted on a read-only
	// packet.
	ErrReadOnly = errors.New("packet is read-only")

	// ErrTruncated is returned when a packet's buffer is too short to contain
	// the field being read.
	ErrTruncated = errors.New("packet is truncated")
)

// PacketType is the VRT packet type, stored in the top nibble of the header.
type PacketType uint8

const (
	// IFDataNoStreamID is an IF data packet without a stream identifier.
	IFDataNoStreamID PacketType = 0
	// IFData is an IF data packet with a stream identifier.
	IFData PacketType = 1
	// ExtDataNoStreamID is an extension data packet without a stream
	// identifier.
	ExtDataNoStreamID PacketType = 2
	// ExtData is an extension data packet with a stream identifier.
	ExtData PacketType = 3
	// IFContext is an IF context packet.
	IFContext PacketType = 4
	// ExtContext is an extension context packet.
	ExtContext PacketType = 5
)

func (t PacketType) String() string {
	switch t {
	case IFDataNoStreamID:
		return "IF_DATA_NO_SID"
	case IFData:
		return "IF_DATA"
	case ExtDataNoStreamID:
		return "EXT_DATA_NO_SID"
	case ExtData:
		return "EXT_DATA"
	case IFContext:
		return "IF_CONTEXT"
	case ExtContext:
		return "EXT_CONTEXT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// IsData returns true if t is one of the data packet types.
func (t PacketType) IsData() bool { return t <= ExtData }

// IsContext returns true if t is one of the context packet types.
func (t PacketType) IsContext() bool { return t == IFContext || t == ExtContext }

// HasStreamID returns true if packets of type t carry a stream identifier.
func (t PacketType) HasStreamID() bool { return t != IFDataNoStreamID && t != ExtDataNoStreamID }

// LengthAt returns the packet length, in octets, declared by the VRT header
// word that begins at buf[off].
//
// LengthAt only reads the size field; it does not check that the packet is
// otherwise well-formed.
func LengthAt(buf []byte, off int) (int, error) {
	if off < 0 || off+HeaderLength > len(buf) {
		return 0, errors.Errorf("no packet header at offset %d (buffer is %d bytes)", off, len(buf))
	}
	return LengthFromHeader(binary.BigEndian.Uint32(buf[off:])), nil
}

// LengthFromHeader returns the packet length, in octets, declared by the VRT
// header word hdr.
func LengthFromHeader(hdr uint32) int { return int(hdr&headerSizeMask) * 4 }

// Packet is a single VRT packet.
//
// Packet is the view of a packet that the framing layer needs: its declared
// length, its raw bytes, and a validity check.
type Packet interface {
	// Len returns the length of the packet, in octets.
	Len() int

	// Bytes returns the packet's raw bytes. The returned slice may reference
	// the packet's underlying buffer.
	Bytes() []byte

	// Valid returns nil if the packet is well-formed, or an error describing
	// why it isn't. If strict is true, additional structural checks are
	// applied.
	Valid(strict bool) error
}

// Raw is a VRT packet backed by a byte slice.
//
// Raw references its buffer directly; it does not copy it.
type Raw struct {
	data     []byte
	readOnly bool
}

var _ Packet = (*Raw)(nil)

// NewRaw returns a Raw packet that references data.
//
// data should begin with the packet's header word and contain exactly the
// packet's declared length.
func NewRaw(data []byte, readOnly bool) *Raw {
	return &Raw{
		data:     data,
		readOnly: readOnly,
	}
}

// CopyRaw returns a writable Raw packet backed by a copy of data.
func CopyRaw(data []byte) *Raw {
	return NewRaw(append([]byte(nil), data...), false)
}

// Len implements Packet.
func (p *Raw) Len() int { return len(p.data) }

// Bytes implements Packet.
func (p *Raw) Bytes() []byte { return p.data }

// IsReadOnly returns true if mutations to p are forbidden.
func (p *Raw) IsReadOnly() bool { return p.readOnly }

// Header returns the packet's header word, or 0 if the packet is too short to
// contain one.
func (p *Raw) Header() uint32 {
	if len(p.data) < HeaderLength {
		return 0
	}
	return binary.BigEndian.Uint32(p.data)
}

// Type returns the packet type.
func (p *Raw) Type() PacketType { return PacketType(p.Header() >> headerTypeShift) }

// HasClassID returns true if the packet carries a class identifier.
func (p *Raw) HasClassID() bool { return p.Header()&headerClassIDBit != 0 }

// HasTrailer returns true if the packet carries a trailer word.
//
// Only data packets may carry a trailer.
func (p *Raw) HasTrailer() bool { return p.Type().IsData() && p.Header()&headerTrailerBit != 0 }

// TSI returns the integer timestamp type (0 means absent).
func (p *Raw) TSI() int { return int(p.Header()>>headerTSIShift) & headerTimeMask }

// TSF returns the fractional timestamp type (0 means absent).
func (p *Raw) TSF() int { return int(p.Header()>>headerTSFShift) & headerTimeMask }

// PacketCount returns the 4-bit packet sequence count.
func (p *Raw) PacketCount() int { return int(p.Header()&headerCountMask) >> headerCountShift }

// SetPacketCount sets the 4-bit packet sequence count.
func (p *Raw) SetPacketCount(c int) error {
	switch {
	case p.readOnly:
		return ErrReadOnly
	case len(p.data) < HeaderLength:
		return ErrTruncated
	case c < 0 || c >= packetCountModulo:
		return errors.Errorf("packet count %d is out of range [0, %d)", c, packetCountModulo)
	}

	hdr := (p.Header() &^ headerCountMask) | uint32(c)<<headerCountShift
	binary.BigEndian.PutUint32(p.data, hdr)
	return nil
}

// PrologueLength returns the length, in octets, of the packet's header and
// optional prologue fields.
func (p *Raw) PrologueLength() int {
	n := HeaderLength
	if p.Type().HasStreamID() {
		n += 4
	}
	if p.HasClassID() {
		n += classIDLength
	}
	if p.TSI() != 0 {
		n += 4
	}
	if p.TSF() != 0 {
		n += 8
	}
	return n
}

func (p *Raw) trailerLength() int {
	if p.HasTrailer() {
		return 4
	}
	return 0
}

// StreamID returns the packet's stream identifier. If the packet type does not
// carry a stream identifier, ok will be false.
func (p *Raw) StreamID() (id uint32, ok bool) {
	if !p.Type().HasStreamID() || len(p.data) < HeaderLength+4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(p.data[HeaderLength:]), true
}

// Payload returns the section of the packet between its prologue and its
// trailer. The returned slice references the packet's buffer.
func (p *Raw) Payload() ([]byte, error) {
	start, end := p.PrologueLength(), len(p.data)-p.trailerLength()
	if start > end {
		return nil, ErrTruncated
	}
	return p.data[start:end], nil
}

// Valid implements Packet.
func (p *Raw) Valid(strict bool) error {
	if len(p.data) < HeaderLength {
		return errors.Errorf("packet length %d is shorter than its header", len(p.data))
	}

	if declared := LengthFromHeader(p.Header()); declared != len(p.data) {
		return errors.Errorf("declared packet length %d does not match buffer length %d", declared, len(p.data))
	}

	t := p.Type()
	if !t.IsData() && !t.IsContext() {
		return errors.Errorf("unsupported packet type %s", t)
	}

	if n := p.PrologueLength() + p.trailerLength(); n > len(p.data) {
		return errors.Errorf("prologue and trailer (%d bytes) exceed packet length %d", n, len(p.data))
	}

	if strict {
		// The trailer bit is reserved in context packets.
		if t.IsContext() && p.Header()&headerTrailerBit != 0 {
			return errors.New("context packet sets reserved trailer bit")
		}
		if t.IsContext() && len(p.data) < p.PrologueLength()+4 {
			return errors.New("context packet is missing its context indicator field")
		}
	}
	return nil
}

func (p *Raw) String() string {
	sid, _ := p.StreamID()
	return fmt.Sprintf("%s{StreamID=0x%08X, Count=%d, Length=%d}", p.Type(), sid, p.PacketCount(), len(p.data))
}

// DataPacket is a resolved VRT data packet.
type DataPacket struct {
	*Raw
}

// ContextPacket is a resolved VRT context packet.
type ContextPacket struct {
	*Raw
}

// Indicator returns the context indicator field (CIF0).
func (p *ContextPacket) Indicator() (uint32, error) {
	off := p.PrologueLength()
	if off+4 > len(p.data) {
		return 0, ErrTruncated
	}
	return binary.BigEndian.Uint32(p.data[off:]), nil
}

// IsChange returns true if the context field change indicator bit is set.
func (p *ContextPacket) IsChange() bool {
	cif, err := p.Indicator()
	return err == nil && cif&(1<<31) != 0
}

// Resolve returns the concrete packet type for p: a *DataPacket or
// *ContextPacket. Packets of unknown type are returned as-is.
func Resolve(p *Raw) Packet {
	switch t := p.Type(); {
	case t.IsData():
		return &DataPacket{p}
	case t.IsContext():
		return &ContextPacket{p}
	default:
		return p
	}
}
