// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrl

import (
	"encoding/binary"
	"io"

	"github.com/danjacques/govita/protocol/vrt"
	"github.com/danjacques/govita/support/dataio"
	"github.com/danjacques/govita/support/logging"

	"github.com/pkg/errors"
)

// ReadFrameFrom reads a single frame from r into f.
//
// If the stream holds a bare VRT packet instead of a VRL frame, the packet is
// read and wrapped in a synthesized frame with a frame count of 0 and no CRC.
// The two cases are told apart by the frame alignment word.
//
// If prefix is not nil, it must contain the first four octets of the frame (or
// packet), which have already been consumed from r.
//
// ReadFrameFrom returns the length of the VRL frame that was read. For a bare
// packet, it returns the length of the VRT packet, not that of the synthesized
// frame.
//
// If r is exhausted before any octet is read, ReadFrameFrom returns io.EOF. If
// it is exhausted part of the way through a frame, ReadFrameFrom returns an
// error whose cause is io.ErrUnexpectedEOF, and f no longer holds a valid
// frame. A frame that does not fit a direct buffer fails with ErrBounds before
// the buffer is modified.
func (f *Frame) ReadFrameFrom(r io.Reader, prefix []byte) (int, error) {
	if err := f.checkWritable(); err != nil {
		return 0, err
	}

	var hdr [HeaderLength]byte
	if prefix != nil {
		if len(prefix) != 4 {
			return 0, errors.Errorf("prefix must be 4 bytes, not %d", len(prefix))
		}
		copy(hdr[:4], prefix)
	} else {
		if _, err := dataio.ReadFull(r, hdr[:4]); err != nil {
			if err == io.EOF {
				return 0, err
			}
			return 0, errors.Wrap(err, "reading frame header")
		}
	}

	return f.readFrameOrPacket(r, hdr[:])
}

func (f *Frame) readFrameOrPacket(r io.Reader, hdr []byte) (int, error) {
	if IsVRL(hdr, 0) {
		if err := readMore(r, hdr[4:HeaderLength], "frame header"); err != nil {
			return 0, err
		}

		n := int(binary.BigEndian.Uint32(hdr[4:])&frameLengthMask) * 4
		if err := checkFrameLength(n); err != nil {
			return 0, err
		}
		if err := f.resize(n, true); err != nil {
			return 0, err
		}

		base := f.buf[f.off : f.off+n]
		copy(base, hdr)
		if err := readMore(r, base[HeaderLength:], "frame body"); err != nil {
			f.invalidate()
			return 0, err
		}
		return n, nil
	}

	// This is a bare VRT packet. Its header word sits where the frame alignment
	// word would be; move it past a synthesized frame header.
	pn := vrt.LengthFromHeader(binary.BigEndian.Uint32(hdr))
	if pn < vrt.HeaderLength {
		return 0, errors.Wrapf(ErrCorruptFrame, "bare packet declares invalid length %d", pn)
	}

	n := MinFrameLength + pn
	if err := f.resize(n, true); err != nil {
		return 0, err
	}

	base := f.buf[f.off : f.off+n]
	copy(base[HeaderLength:], hdr[:vrt.HeaderLength])
	f.putHeader(0, n)
	binary.BigEndian.PutUint32(base[n-TrailerLength:], NoCRC)

	if err := readMore(r, base[HeaderLength+vrt.HeaderLength:n-TrailerLength], "packet body"); err != nil {
		f.invalidate()
		return 0, err
	}
	return pn, nil
}

// readMore reads a mandatory section of a frame. Any EOF is premature.
func readMore(r io.Reader, buf []byte, what string) error {
	if _, err := dataio.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return errors.Wrapf(err, "reading %s", what)
	}
	return nil
}

// invalidate clears the frame alignment word so that a partially-read frame
// is never mistaken for a valid one.
func (f *Frame) invalidate() {
	if f.avail() >= 4 {
		binary.BigEndian.PutUint32(f.buf[f.off:], 0)
	}
}

// WriteTo writes the frame's FrameLength octets to w.
//
// WriteTo implements io.WriterTo.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	n := f.FrameLength()
	if n < MinFrameLength || n > f.avail() {
		return 0, errors.Wrapf(ErrInvalidLength, "frame length %d does not fit its %d byte buffer", n, f.avail())
	}

	amt, err := w.Write(f.buf[f.off : f.off+n])
	return int64(amt), err
}

// Reader reads a sequence of frames from a stream.
//
// Reader is not safe for concurrent use.
type Reader struct {
	// Logger, if not nil, is the Logger to log stream status to.
	Logger logging.L

	// Validate, if true, causes each frame to be validated after it is read.
	// Invalid frames are reported as errors.
	Validate bool
	// Strict, if true, applies strict validation when Validate is true.
	Strict bool

	r io.Reader

	// frames is the number of frames read so far.
	frames int64
	// bare is the number of bare VRT packets read so far.
	bare int64
}

// NewReader returns a Reader that reads frames from r.
//
// The Reader reads exactly as many octets as each frame requires. Supplying a
// buffered reader is recommended.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadFrame reads the next frame into f.
//
// If the next element of the stream is a bare VRT packet, it is wrapped in a
// frame and bare is true.
//
// At a clean end of stream, ReadFrame returns io.EOF.
func (rd *Reader) ReadFrame(f *Frame) (bare bool, err error) {
	n, err := f.ReadFrameFrom(rd.r, nil)
	if err != nil {
		return false, err
	}

	bare = n != f.FrameLength()
	rd.frames++
	if bare {
		rd.bare++
	}

	if rd.Validate {
		if err := f.Validate(rd.Strict, -1); err != nil {
			logging.Must(rd.Logger).Warnf("Read invalid frame #%d: %s", rd.frames, err)
			return bare, err
		}
	}
	return bare, nil
}

// Frames returns the number of frames read, including wrapped bare packets.
func (rd *Reader) Frames() int64 { return rd.frames }

// BarePackets returns the number of bare VRT packets read.
func (rd *Reader) BarePackets() int64 { return rd.bare }
