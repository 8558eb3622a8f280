// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrt

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

const classIDLength = 8

// ClassID is the optional packet class identifier.
//
// /**
//  * Class ID format:
//  * uint8_t  reserved;
//  * uint8_t  oui[3];
//  * uint16_t information_class_code;
//  * uint16_t packet_class_code;
//  */
type ClassID struct {
	// OUI is the 24-bit organizationally unique identifier. The top 8 bits are
	// reserved and always zero.
	OUI              uint32
	InformationClass uint16
	PacketClass      uint16
}

// ClassID returns the packet's class identifier. If the packet does not carry
// one, ok will be false.
func (p *Raw) ClassID() (cid ClassID, ok bool, err error) {
	if !p.HasClassID() {
		return
	}

	off := HeaderLength
	if p.Type().HasStreamID() {
		off += 4
	}
	if off+classIDLength > len(p.data) {
		err = ErrTruncated
		return
	}

	if err = struc.Unpack(bytes.NewReader(p.data[off:off+classIDLength]), &cid); err != nil {
		err = errors.Wrap(err, "could not unpack class ID")
		return
	}
	cid.OUI &= 0x00FFFFFF
	ok = true
	return
}

// Timestamp is a packet's timestamp fields. Either field is only meaningful
// when its corresponding TSI/TSF type is non-zero.
type Timestamp struct {
	Integer    uint32
	Fractional uint64
}

// Timestamp returns the packet's timestamp fields.
func (p *Raw) Timestamp() (ts Timestamp, err error) {
	off := HeaderLength
	if p.Type().HasStreamID() {
		off += 4
	}
	if p.HasClassID() {
		off += classIDLength
	}

	if p.TSI() != 0 {
		if off+4 > len(p.data) {
			return ts, ErrTruncated
		}
		ts.Integer = binary.BigEndian.Uint32(p.data[off:])
		off += 4
	}
	if p.TSF() != 0 {
		if off+8 > len(p.data) {
			return ts, ErrTruncated
		}
		ts.Fractional = binary.BigEndian.Uint64(p.data[off:])
	}
	return ts, nil
}

// prologue is the fixed leading section of the packets built by this package.
type prologue struct {
	Header   uint32
	StreamID uint32
}

func buildPacket(t PacketType, streamID uint32, body ...[]byte) (*Raw, error) {
	size := HeaderLength
	if t.HasStreamID() {
		size += 4
	}
	for _, b := range body {
		size += (len(b) + 3) &^ 3
	}
	if size > MaxPacketLength {
		return nil, errors.Errorf("packet length %d exceeds maximum %d", size, MaxPacketLength)
	}

	var buf bytes.Buffer
	buf.Grow(size)

	pro := prologue{
		Header:   uint32(t)<<headerTypeShift | uint32(size/4),
		StreamID: streamID,
	}
	if t.HasStreamID() {
		if err := struc.Pack(&buf, &pro); err != nil {
			return nil, errors.Wrap(err, "could not pack prologue")
		}
	} else {
		if err := binary.Write(&buf, binary.BigEndian, pro.Header); err != nil {
			return nil, err
		}
	}

	// Each body section is padded out to a 32-bit boundary.
	for _, b := range body {
		buf.Write(b)
		if pad := (4 - len(b)%4) % 4; pad > 0 {
			buf.Write(make([]byte, pad))
		}
	}
	return NewRaw(buf.Bytes(), false), nil
}

// NewDataPacket builds a data packet of type t carrying payload. The payload
// is zero-padded to a 32-bit boundary.
func NewDataPacket(t PacketType, streamID uint32, payload []byte) (*DataPacket, error) {
	if !t.IsData() {
		return nil, errors.Errorf("%s is not a data packet type", t)
	}
	p, err := buildPacket(t, streamID, payload)
	if err != nil {
		return nil, err
	}
	return &DataPacket{p}, nil
}

// NewContextPacket builds an IF context packet with the supplied context
// indicator field followed by fields.
func NewContextPacket(streamID, indicator uint32, fields []byte) (*ContextPacket, error) {
	var cif [4]byte
	binary.BigEndian.PutUint32(cif[:], indicator)

	p, err := buildPacket(IFContext, streamID, cif[:], fields)
	if err != nil {
		return nil, err
	}
	return &ContextPacket{p}, nil
}
