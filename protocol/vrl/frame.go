// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/pkg/errors"
)

const (
	// FrameAlignmentWord is the constant that begins every VRL frame ("VRLP").
	FrameAlignmentWord uint32 = 0x56524C50

	// NoCRC is the trailer value indicating that a frame carries no CRC
	// ("VEND").
	NoCRC uint32 = 0x56454E44

	// HeaderLength is the length of the frame header, in octets.
	HeaderLength = 8
	// TrailerLength is the length of the frame trailer, in octets.
	TrailerLength = 4

	// MinFrameLength is the length of a frame containing no packets.
	MinFrameLength = HeaderLength + TrailerLength
	// MaxFrameLength is the largest frame length that the 20-bit length field
	// can describe, in octets.
	MaxFrameLength = frameLengthMask * 4

	// MaxFrameCount is the largest frame count. Frame counts wrap to 0 after
	// MaxFrameCount.
	MaxFrameCount = 0xFFF

	frameLengthMask = 0x000FFFFF
	frameCountShift = 20

	// shrinkSlack is the amount of excess capacity, in octets, that an owned
	// buffer may carry before it is reallocated on shrink.
	shrinkSlack = 4096
)

var (
	// ErrReadOnly is returned when a mutation is attempted on a read-only frame.
	ErrReadOnly = errors.New("frame is read-only")

	// ErrBounds is returned when an operation would exceed a direct frame's
	// buffer, the protocol's limits, or an argument's allowed range.
	ErrBounds = errors.New("out of bounds")

	// ErrInvalidLength is returned when a frame length is malformed.
	ErrInvalidLength = errors.New("invalid frame length")

	// ErrInvalidCount is returned when a frame count is out of range.
	ErrInvalidCount = errors.New("invalid frame count")

	// ErrNotVRL is returned when a buffer does not begin with the frame
	// alignment word.
	ErrNotVRL = errors.New("missing frame alignment word")

	// ErrCRC is returned when a frame's CRC does not match its content.
	ErrCRC = errors.New("CRC mismatch")

	// ErrCorruptFrame is returned when the packets embedded in a frame are
	// inconsistent with the frame's length.
	ErrCorruptFrame = errors.New("corrupt frame")

	// ErrCapacity is returned when a set of packets does not fit within the
	// requested maximum frame length.
	ErrCapacity = errors.New("packets exceed maximum frame length")

	// ErrInvalidPacket is returned when an invalid packet is supplied to a
	// frame.
	ErrInvalidPacket = errors.New("invalid packet")

	// ErrIteratorDone is returned when a PacketIterator is advanced past the
	// last packet in its frame.
	ErrIteratorDone = errors.New("no more packets in frame")
)

// Frame is a single VRL frame.
//
// The zero value is not a valid Frame; use New, FromBytes, or Direct.
type Frame struct {
	// buf is the backing buffer. In copy mode, buf is owned by the Frame and off
	// is always 0. In direct mode, buf belongs to the caller and the frame
	// begins at off.
	buf []byte
	off int

	direct   bool
	readOnly bool
}

// New returns a new, empty frame in copy mode.
//
// The frame contains no packets, has a frame count of 0, and carries no CRC.
func New() *Frame {
	f := Frame{
		buf: make([]byte, MinFrameLength),
	}
	binary.BigEndian.PutUint32(f.buf[0:], FrameAlignmentWord)
	binary.BigEndian.PutUint32(f.buf[4:], MinFrameLength/4)
	binary.BigEndian.PutUint32(f.buf[MinFrameLength-TrailerLength:], NoCRC)
	return &f
}

// FromBytes returns a copy-mode frame initialized with a copy of data.
//
// data is not validated; use Validate to check the resulting frame.
func FromBytes(data []byte, readOnly bool) (*Frame, error) {
	if data == nil {
		return nil, errors.New("no frame data")
	}
	return &Frame{
		buf:      append([]byte(nil), data...),
		readOnly: readOnly,
	}, nil
}

// Direct returns a direct-mode frame that begins at buf[off].
//
// The frame reads and writes buf in place. It will never grow past the end of
// buf, and must not be used after buf is reused for other purposes.
func Direct(buf []byte, off int, readOnly bool) (*Frame, error) {
	switch {
	case buf == nil:
		return nil, errors.New("no frame buffer")
	case off < 0 || off > len(buf):
		return nil, errors.Wrapf(ErrBounds, "offset %d is outside buffer of %d bytes", off, len(buf))
	}
	return &Frame{
		buf:      buf,
		off:      off,
		direct:   true,
		readOnly: readOnly,
	}, nil
}

// IsDirect returns true if f operates directly on a caller-supplied buffer.
func (f *Frame) IsDirect() bool { return f.direct }

// IsReadOnly returns true if f forbids mutation.
func (f *Frame) IsReadOnly() bool { return f.readOnly }

// avail returns the number of buffer bytes available to the frame.
func (f *Frame) avail() int { return len(f.buf) - f.off }

func (f *Frame) checkWritable() error {
	if f.readOnly {
		return ErrReadOnly
	}
	return nil
}

// resize makes room for a frame of n octets.
//
// Owned buffers grow by reallocation. If allowShrink is true, an owned buffer
// with more than shrinkSlack spare capacity is reallocated, rounded up to the
// next shrinkSlack boundary.
//
// Direct buffers are never reallocated; if n exceeds the space remaining in a
// direct buffer, resize returns ErrBounds and leaves the buffer untouched.
func (f *Frame) resize(n int, allowShrink bool) error {
	if f.direct {
		if n > f.avail() {
			return errors.Wrapf(ErrBounds, "frame length %d exceeds the %d bytes remaining in direct buffer",
				n, f.avail())
		}
		return nil
	}

	switch size := len(f.buf); {
	case n > cap(f.buf):
		nb := make([]byte, n)
		copy(nb, f.buf)
		f.buf = nb

	case n > size:
		// Reclaim capacity that a previous shrink left behind. It may hold stale
		// data.
		f.buf = f.buf[:n]
		for i := size; i < n; i++ {
			f.buf[i] = 0
		}

	case allowShrink && cap(f.buf)-n > shrinkSlack:
		nb := make([]byte, n, (n+shrinkSlack-1)/shrinkSlack*shrinkSlack)
		copy(nb, f.buf)
		f.buf = nb

	default:
		f.buf = f.buf[:n]
	}
	return nil
}

// Bytes returns the frame's bytes, as described by its length field.
//
// The returned slice references f's buffer. If the length field describes more
// data than the buffer holds, Bytes returns as much as is available.
func (f *Frame) Bytes() []byte {
	n := f.FrameLength()
	if a := f.avail(); n > a {
		n = a
	}
	return f.buf[f.off : f.off+n : f.off+n]
}

// Copy returns a writable, copy-mode clone of f.
func (f *Frame) Copy() *Frame {
	return &Frame{
		buf: append([]byte(nil), f.Bytes()...),
	}
}

// Equal returns true if f and other contain the same frame bytes.
func (f *Frame) Equal(other *Frame) bool {
	if f == nil || other == nil {
		return f == other
	}
	return bytes.Equal(f.Bytes(), other.Bytes())
}

// Hash returns a hash of the frame's bytes. Frames that are Equal have the same
// Hash.
func (f *Frame) Hash() uint32 {
	h := fnv.New32a()
	_, _ = h.Write(f.Bytes())
	return h.Sum32()
}

func (f *Frame) String() string {
	return fmt.Sprintf("VRLFrame{Count=%d, Length=%d, CRC=0x%08X, Direct=%t, ReadOnly=%t}",
		f.FrameCount(), f.FrameLength(), f.CRC(), f.direct, f.readOnly)
}
