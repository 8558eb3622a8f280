// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package transport carries VRL frames over datagram connections.
package transport

import (
	"github.com/danjacques/govita/protocol/vrl"
	"github.com/danjacques/govita/protocol/vrt"
	"github.com/danjacques/govita/support/fmtutil"
	"github.com/danjacques/govita/support/logging"
	"github.com/danjacques/govita/support/network"

	"github.com/pkg/errors"
)

// ErrPacketTooLarge is returned when a single packet cannot fit in a frame of
// the sender's maximum frame length.
var ErrPacketTooLarge = errors.New("packet is too large for a frame")

// FrameSender packs VRT packets into VRL frames and sends each frame as a
// datagram.
//
// Packets are enqueued until the next packet would grow the frame past its
// maximum length, at which point the enqueued packets are sent. Each frame is
// stamped with the next frame count, and with a CRC unless OmitCRC is set.
//
// FrameSender is not safe for concurrent use.
type FrameSender struct {
	// MaxFrameLength, if >0, is the maximum length of a sent frame. It is
	// further limited by the DatagramSender's maximum datagram size.
	MaxFrameLength int

	// NextCount is the frame count to assign to the next frame. It wraps to 0
	// after vrl.MaxFrameCount.
	NextCount int

	// OmitCRC, if true, sends frames with the no-CRC trailer instead of a
	// computed CRC.
	OmitCRC bool

	// Logger, if not nil, is the Logger to log sender status to.
	Logger logging.L

	frame *vrl.Frame

	// stage holds the bytes of the enqueued packets, back to back. sizes holds
	// the length of each.
	stage []byte
	sizes []int
}

// maxFrameLength returns the effective maximum frame length for ds.
func (fs *FrameSender) maxFrameLength(ds network.DatagramSender) int {
	n := fs.MaxFrameLength
	if mds := ds.MaxDatagramSize(); mds > 0 && (n <= 0 || mds < n) {
		n = mds
	}
	n &^= 3

	switch {
	case n <= 0 || n > vrl.MaxFrameLength:
		return vrl.MaxFrameLength
	case n < vrl.MinFrameLength:
		return vrl.MinFrameLength
	default:
		return n
	}
}

// Pending returns the number of enqueued packets.
func (fs *FrameSender) Pending() int { return len(fs.sizes) }

// Send enqueues each of packets, sending frames as they fill.
func (fs *FrameSender) Send(ds network.DatagramSender, packets ...vrt.Packet) error {
	for _, p := range packets {
		if err := fs.SendOrEnqueue(ds, p); err != nil {
			return err
		}
	}
	return nil
}

// SendOrEnqueue enqueues p to be sent.
//
// Enqueueing a packet may cause the previously-enqueued packets to be sent in
// order to make room for it. At most one send operation will occur per call,
// and that error value will be returned.
//
// p is copied, and may be reused once SendOrEnqueue returns.
func (fs *FrameSender) SendOrEnqueue(ds network.DatagramSender, p vrt.Packet) error {
	if err := p.Valid(false); err != nil {
		return errors.Wrapf(vrl.ErrInvalidPacket, "%s", err)
	}

	mfl := fs.maxFrameLength(ds)
	if vrl.MinFrameLength+p.Len() > mfl {
		return errors.Wrapf(ErrPacketTooLarge, "%d byte packet exceeds %d byte frame", p.Len(), mfl)
	}

	if vrl.MinFrameLength+len(fs.stage)+p.Len() > mfl {
		if err := fs.Flush(ds); err != nil {
			return err
		}
	}

	fs.stage = append(fs.stage, p.Bytes()...)
	fs.sizes = append(fs.sizes, p.Len())
	return nil
}

// Flush sends any enqueued packets as a single frame.
//
// The enqueued packets are discarded whether or not the send succeeds.
func (fs *FrameSender) Flush(ds network.DatagramSender) error {
	if len(fs.sizes) == 0 {
		return nil
	}
	defer func() {
		fs.stage, fs.sizes = fs.stage[:0], fs.sizes[:0]
	}()

	packets := make([]vrt.Packet, len(fs.sizes))
	for i, off := 0, 0; i < len(fs.sizes); i++ {
		packets[i] = vrt.NewRaw(fs.stage[off:off+fs.sizes[i]], true)
		off += fs.sizes[i]
	}

	if fs.frame == nil {
		fs.frame = vrl.New()
	}
	if _, err := fs.frame.SetPackets(false, fs.maxFrameLength(ds), packets...); err != nil {
		return errors.Wrap(err, "building frame")
	}
	return fs.send(ds, fs.frame, len(packets))
}

// SendFrame sends f as-is, after any enqueued packets.
//
// f's frame count and CRC are not modified, and NextCount is not advanced.
func (fs *FrameSender) SendFrame(ds network.DatagramSender, f *vrl.Frame) error {
	if err := fs.Flush(ds); err != nil {
		return err
	}

	if err := f.Validate(false, -1); err != nil {
		return errors.Wrap(err, "refusing to send invalid frame")
	}
	if n, mds := f.FrameLength(), ds.MaxDatagramSize(); mds > 0 && n > mds {
		return errors.Wrapf(ErrPacketTooLarge, "%d byte frame exceeds %d byte datagram", n, mds)
	}

	count, err := f.PacketCount()
	if err != nil {
		return err
	}
	return fs.transmit(ds, f, count)
}

// send stamps f with the next frame count and CRC, and transmits it.
func (fs *FrameSender) send(ds network.DatagramSender, f *vrl.Frame, packets int) error {
	if err := f.SetFrameCount(fs.NextCount); err != nil {
		return err
	}
	fs.NextCount = (fs.NextCount + 1) & vrl.MaxFrameCount

	if !fs.OmitCRC {
		if err := f.UpdateCRC(); err != nil {
			return err
		}
	}
	return fs.transmit(ds, f, packets)
}

func (fs *FrameSender) transmit(ds network.DatagramSender, f *vrl.Frame, packets int) error {
	logger := logging.Must(fs.Logger)
	logger.Debugf("Sending %s with %d packet(s):\n%s", f, packets, fmtutil.Words(f.Bytes()))

	data := f.Bytes()
	if err := ds.SendDatagram(data); err != nil {
		senderErrors.Inc()
		logger.Warnf("Failed to send %d byte frame: %s", len(data), err)
		return errors.Wrap(err, "sending frame")
	}

	senderFrames.Inc()
	senderPackets.Add(float64(packets))
	senderBytes.Add(float64(len(data)))
	return nil
}
