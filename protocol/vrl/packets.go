// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrl

import (
	"github.com/danjacques/govita/protocol/vrt"

	"github.com/pkg/errors"
)

// FromPackets returns a new copy-mode frame containing packets.
func FromPackets(packets ...vrt.Packet) (*Frame, error) {
	f := New()
	if _, err := f.SetPackets(false, MaxFrameLength, packets...); err != nil {
		return nil, err
	}
	return f, nil
}

// SetPackets replaces the frame's content with packets.
//
// Every packet must be valid; an invalid packet fails the whole call.
// maxFrameLength must be in [MinFrameLength, MaxFrameLength].
//
// If the packets would produce a frame longer than maxFrameLength and fit is
// false, SetPackets returns ErrCapacity. If fit is true, SetPackets instead
// includes the longest prefix of packets that fits.
//
// On success, SetPackets returns the number of packets included. The frame's
// CRC is cleared; call UpdateCRC before transmission.
//
// packets must not reference f's own buffer.
func (f *Frame) SetPackets(fit bool, maxFrameLength int, packets ...vrt.Packet) (int, error) {
	if err := f.checkWritable(); err != nil {
		return 0, err
	}
	if maxFrameLength < MinFrameLength || maxFrameLength > MaxFrameLength {
		return 0, errors.Wrapf(ErrBounds, "maximum frame length %d is outside [%d, %d]",
			maxFrameLength, MinFrameLength, MaxFrameLength)
	}

	length, count := MinFrameLength, 0
	for i, p := range packets {
		if err := p.Valid(false); err != nil {
			return 0, errors.Wrapf(ErrInvalidPacket, "packet #%d: %s", i, err)
		}

		if length+p.Len() > maxFrameLength {
			if fit {
				break
			}
			return 0, errors.Wrapf(ErrCapacity, "packet #%d would grow frame to %d bytes (maximum %d)",
				i, length+p.Len(), maxFrameLength)
		}
		length += p.Len()
		count++
	}

	// All bounds checks happen in SetFrameLength, before any packet data is
	// written.
	if err := f.SetFrameLength(length); err != nil {
		return 0, err
	}

	pos := f.off + HeaderLength
	for _, p := range packets[:count] {
		pos += copy(f.buf[pos:], p.Bytes())
	}
	return count, nil
}

// SetPacket replaces the frame's content with a single packet.
//
// It is equivalent to SetPackets(false, MaxFrameLength, p).
func (f *Frame) SetPacket(p vrt.Packet) error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	if err := p.Valid(false); err != nil {
		return errors.Wrapf(ErrInvalidPacket, "packet #0: %s", err)
	}

	// A valid packet is at most vrt.MaxPacketLength, which always fits.
	if err := f.SetFrameLength(MinFrameLength + p.Len()); err != nil {
		return err
	}
	copy(f.buf[f.off+HeaderLength:], p.Bytes())
	return nil
}

// PacketCount returns the number of packets in the frame.
//
// PacketCount walks every packet header in the frame.
func (f *Frame) PacketCount() (int, error) {
	count := 0
	for it := f.Iterator(); it.HasNext(); count++ {
		if err := it.Skip(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Packets returns all of the packets in the frame.
//
// The returned packets reference f's buffer, and are read-only if f is.
func (f *Frame) Packets() ([]vrt.Packet, error) {
	var packets []vrt.Packet
	for it := f.Iterator(); it.HasNext(); {
		p, err := it.Next()
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
	}
	return packets, nil
}

// PacketIterator walks the packets embedded in a frame.
//
// PacketIterator is forward-only and single-pass. The frame that it iterates
// must not be mutated while the PacketIterator is in use.
type PacketIterator struct {
	// AlwaysCopy, if true, causes Next to return packets backed by a copy of the
	// frame's data instead of references into the frame's buffer.
	AlwaysCopy bool

	// ReadOnly, if true, causes Next to return read-only packets. Packets that
	// reference a read-only frame's buffer are always read-only.
	ReadOnly bool

	// Resolve, if true, causes Next to resolve packets into their concrete
	// type (see vrt.Resolve).
	Resolve bool

	f *Frame

	// pos is the iterator's offset from the start of the frame. It always
	// points to a packet header or to end.
	pos int
	end int
}

// Iterator returns a PacketIterator positioned at the frame's first packet.
func (f *Frame) Iterator() *PacketIterator {
	n := f.FrameLength()
	if a := f.avail(); n > a {
		n = a
	}
	return &PacketIterator{
		f:   f,
		pos: HeaderLength,
		end: n - TrailerLength,
	}
}

// Offset returns the iterator's current offset from the start of the frame.
func (it *PacketIterator) Offset() int { return it.pos }

// HasNext returns true if another packet follows the iterator's position.
func (it *PacketIterator) HasNext() bool { return it.pos >= HeaderLength && it.pos < it.end }

// span returns the buffer offset and length of the next packet.
func (it *PacketIterator) span() (int, int, error) {
	if !it.HasNext() {
		return 0, 0, ErrIteratorDone
	}

	if it.pos+vrt.HeaderLength > it.end {
		return 0, 0, errors.Wrapf(ErrCorruptFrame, "%d trailing bytes at offset %d are not a packet",
			it.end-it.pos, it.pos)
	}

	start := it.f.off + it.pos
	n, err := vrt.LengthAt(it.f.buf, start)
	switch {
	case err != nil:
		return 0, 0, errors.Wrapf(ErrCorruptFrame, "reading packet length at offset %d: %s", it.pos, err)
	case n < vrt.HeaderLength:
		return 0, 0, errors.Wrapf(ErrCorruptFrame, "packet at offset %d has invalid length %d", it.pos, n)
	case it.pos+n > it.end:
		return 0, 0, errors.Wrapf(ErrCorruptFrame, "packet at offset %d (length %d) overruns frame body ending at %d",
			it.pos, n, it.end)
	}
	return start, n, nil
}

// Next returns the next packet and advances the iterator.
//
// It is an error to call Next when HasNext returns false.
func (it *PacketIterator) Next() (vrt.Packet, error) {
	start, n, err := it.span()
	if err != nil {
		return nil, err
	}
	it.pos += n

	data := it.f.buf[start : start+n : start+n]
	readOnly := it.ReadOnly
	if it.AlwaysCopy {
		data = append([]byte(nil), data...)
	} else if it.f.readOnly {
		readOnly = true
	}

	raw := vrt.NewRaw(data, readOnly)
	if it.Resolve {
		return vrt.Resolve(raw), nil
	}
	return raw, nil
}

// Skip advances the iterator past the next packet without materializing it.
func (it *PacketIterator) Skip() error {
	_, n, err := it.span()
	if err != nil {
		return err
	}
	it.pos += n
	return nil
}
