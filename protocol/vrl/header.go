// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrl

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// IsVRL returns true if the four octets at buf[off] are the frame alignment
// word.
//
// This is the only test used to distinguish a VRL frame from a bare VRT
// packet.
func IsVRL(buf []byte, off int) bool {
	if off < 0 || off+4 > len(buf) {
		return false
	}
	return binary.BigEndian.Uint32(buf[off:]) == FrameAlignmentWord
}

// headerWord returns the frame's second header word, or 0 if the buffer is too
// short to hold one.
func (f *Frame) headerWord() uint32 {
	if f.avail() < HeaderLength {
		return 0
	}
	return binary.BigEndian.Uint32(f.buf[f.off+4:])
}

func (f *Frame) putHeader(count, length int) {
	binary.BigEndian.PutUint32(f.buf[f.off:], FrameAlignmentWord)
	binary.BigEndian.PutUint32(f.buf[f.off+4:], uint32(count)<<frameCountShift|uint32(length/4))
}

// FrameLength returns the frame length, in octets, as declared by the header.
func (f *Frame) FrameLength() int { return int(f.headerWord()&frameLengthMask) * 4 }

// FrameCount returns the frame's 12-bit sequence count.
func (f *Frame) FrameCount() int { return int(f.headerWord() >> frameCountShift) }

func checkFrameLength(n int) error {
	switch {
	case n < MinFrameLength:
		return errors.Wrapf(ErrInvalidLength, "frame length %d is less than minimum %d", n, MinFrameLength)
	case n > MaxFrameLength:
		return errors.Wrapf(ErrBounds, "frame length %d exceeds maximum %d", n, MaxFrameLength)
	case n%4 != 0:
		return errors.Wrapf(ErrInvalidLength, "frame length %d is not a multiple of 4", n)
	default:
		return nil
	}
}

// SetFrameLength sets the frame length, in octets.
//
// The frame's buffer is resized to hold n octets and the CRC trailer is
// cleared, since any previously computed CRC is now stale. Call UpdateCRC to
// stamp a new one.
func (f *Frame) SetFrameLength(n int) error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	if err := checkFrameLength(n); err != nil {
		return err
	}

	count := f.FrameCount()
	if err := f.resize(n, true); err != nil {
		return err
	}
	f.putHeader(count, n)
	f.clearCRC()
	return nil
}

// SetFrameCount sets the frame's sequence count, which must be in
// [0, MaxFrameCount]. Setting the count clears the CRC trailer.
func (f *Frame) SetFrameCount(c int) error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	if c < 0 || c > MaxFrameCount {
		return errors.Wrapf(ErrInvalidCount, "frame count %d is outside [0, %d]", c, MaxFrameCount)
	}

	n := f.FrameLength()
	if err := checkFrameLength(n); err != nil {
		return err
	}
	if n > f.avail() {
		return errors.Wrapf(ErrBounds, "frame length %d exceeds the %d bytes available", n, f.avail())
	}
	f.putHeader(c, n)
	f.clearCRC()
	return nil
}
