// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrl

import (
	"encoding/binary"
	"math/bits"

	"github.com/pkg/errors"
)

// crcPolynomial is the bit-reversed CRC-32 polynomial.
const crcPolynomial uint32 = 0xEDB88320

// CRC computes the VRL CRC-32 of body.
//
// The CRC is accumulated one bit at a time, least-significant bit first, from
// an initial value of zero with no final XOR. The result is then bit-reversed.
// This differs from the common IEEE CRC-32 and is part of the wire format.
func CRC(body []byte) uint32 {
	var crc uint32
	for _, b := range body {
		v := uint32(b)
		for i := 0; i < 8; i++ {
			crc = (crc >> 1) ^ (crcPolynomial & -((crc ^ v) & 1))
			v >>= 1
		}
	}
	return bits.Reverse32(crc)
}

// trailerOffset returns the buffer offset of the CRC trailer, or -1 if the
// frame's length is not consistent with its buffer.
func (f *Frame) trailerOffset() int {
	n := f.FrameLength()
	if n < MinFrameLength || n > f.avail() {
		return -1
	}
	return f.off + n - TrailerLength
}

// CRC returns the value stored in the frame's trailer. This is NoCRC if the
// frame carries no CRC, and 0 if the frame has no valid trailer.
func (f *Frame) CRC() uint32 {
	pos := f.trailerOffset()
	if pos < 0 {
		return 0
	}
	return binary.BigEndian.Uint32(f.buf[pos:])
}

// ComputeCRC computes the CRC of the frame's body, the octets between its
// header and its trailer.
func (f *Frame) ComputeCRC() uint32 {
	pos := f.trailerOffset()
	if pos < 0 {
		return 0
	}
	return CRC(f.buf[f.off+HeaderLength : pos])
}

// IsCRCValid returns true if the frame's trailer is NoCRC, or if it matches the
// frame's computed CRC.
func (f *Frame) IsCRCValid() bool {
	if f.trailerOffset() < 0 {
		return false
	}
	switch crc := f.CRC(); crc {
	case NoCRC:
		return true
	default:
		return crc == f.ComputeCRC()
	}
}

// UpdateCRC computes the frame's CRC and stores it in the trailer.
func (f *Frame) UpdateCRC() error {
	if err := f.checkWritable(); err != nil {
		return err
	}

	pos := f.trailerOffset()
	if pos < 0 {
		return errors.Wrapf(ErrInvalidLength, "frame length %d does not fit its %d byte buffer",
			f.FrameLength(), f.avail())
	}
	binary.BigEndian.PutUint32(f.buf[pos:], f.ComputeCRC())
	return nil
}

// clearCRC sets the trailer to NoCRC. It is called whenever frame content
// changes, so that a stale CRC is never mistaken for a valid one.
func (f *Frame) clearCRC() {
	if pos := f.trailerOffset(); pos >= 0 {
		binary.BigEndian.PutUint32(f.buf[pos:], NoCRC)
	}
}
