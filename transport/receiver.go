// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package transport

import (
	"context"
	"net"

	"github.com/danjacques/govita/protocol/vrl"
	"github.com/danjacques/govita/protocol/vrt"
	"github.com/danjacques/govita/support/bufferpool"
	"github.com/danjacques/govita/support/fmtutil"
	"github.com/danjacques/govita/support/logging"
	"github.com/danjacques/govita/support/network"

	"github.com/pkg/errors"
)

// Datagram is a single frame received by a Receiver.
//
// The Frame is a read-only, direct frame over a pooled buffer. It must not be
// used after Release is called.
type Datagram struct {
	// Frame is the received frame.
	Frame *vrl.Frame

	// Addr is the address that the datagram was received from.
	Addr net.Addr

	// Bare is true if the datagram held bare VRT packets, which were wrapped
	// in a synthesized frame.
	Bare bool

	buf *bufferpool.Buffer
}

// Release returns the Datagram's buffer to its pool.
func (d *Datagram) Release() {
	if d.buf != nil {
		d.buf.Release()
		d.buf = nil
	}
	d.Frame = nil
}

type receiveResult struct {
	buf  *bufferpool.Buffer
	size int
	addr net.Addr
	err  error
}

// Receiver receives VRL frames from a DatagramReceiver.
//
// Each datagram is expected to hold exactly one frame. A datagram that does not
// begin with the frame alignment word is treated as a sequence of bare VRT
// packets and wrapped in a frame with a count of 0 and no CRC. Datagrams that
// do not hold a valid frame are counted, logged, and discarded.
//
// When a user is finished with Receiver, they should call Close to release its
// resources.
//
// Receiver is not safe for concurrent use.
type Receiver struct {
	// Logger, if not nil, is the Logger to log Receiver status to.
	Logger logging.L

	// Strict, if true, validates the packet structure of each received frame in
	// addition to its header and CRC. Bare datagrams always have their packet
	// structure validated.
	Strict bool

	// MaxDatagramSize, if >0, is the largest datagram that will be received.
	// Larger datagrams are truncated, and so discarded as invalid. If 0,
	// network.MaxUDPSize is used.
	MaxDatagramSize int

	conn   network.DatagramReceiver
	logger logging.L
	pool   bufferpool.Pool

	requestC chan struct{}
	resultC  chan receiveResult

	// outstanding is true if a receive request has been issued whose result
	// has not yet been consumed.
	outstanding bool
}

// Start starts the Receiver receiving on conn.
//
// Start will transfer ownership of conn to Receiver regardless of success.
func (r *Receiver) Start(conn network.DatagramReceiver) error {
	if r.conn != nil {
		_ = conn.Close()
		return errors.New("already started")
	}

	r.logger = logging.Must(r.Logger)
	r.logger.Infof("Receiving VRL frames on %s...", conn.LocalAddr())

	mds := r.MaxDatagramSize
	if mds <= 0 {
		mds = network.MaxUDPSize
	}

	// Datagrams are read past room for a frame header, so a bare datagram can
	// be wrapped in place. The extra trailing room holds its trailer.
	r.pool.Size = vrl.HeaderLength + mds + vrl.TrailerLength

	r.conn = conn
	r.requestC = make(chan struct{})
	r.resultC = make(chan receiveResult, 1)
	r.outstanding = false

	go func() {
		for range r.requestC {
			buf := r.pool.Get()
			size, addr, err := conn.ReceiveDatagram(buf.Bytes()[vrl.HeaderLength : vrl.HeaderLength+mds])
			r.resultC <- receiveResult{
				buf:  buf,
				size: size,
				addr: addr,
				err:  err,
			}
		}
	}()

	return nil
}

// Close closes the Receiver, interrupting any current operations and releasing
// its resources.
func (r *Receiver) Close() error {
	if r.conn == nil {
		return nil
	}

	close(r.requestC)
	err := r.conn.Close()
	r.conn = nil
	return err
}

// Receive blocks until a valid frame is received.
//
// The caller must Release the returned Datagram when finished with it.
func (r *Receiver) Receive(c context.Context) (*Datagram, error) {
	if r.conn == nil {
		return nil, errors.New("the Receiver is not active")
	}

	for {
		switch d, err := r.receiveOnce(c); {
		case err != nil:
			return nil, err
		case d != nil:
			return d, nil
		}
	}
}

// receiveOnce receives a single datagram.
//
// An error is only returned for an operation-level (not data-level) failure.
// If the datagram is invalid, it is logged and both return values are nil.
func (r *Receiver) receiveOnce(c context.Context) (*Datagram, error) {
	// A request left over from a cancelled Receive is still pending; its
	// result is the next datagram.
	if !r.outstanding {
		select {
		case r.requestC <- struct{}{}:
			r.outstanding = true
		case <-c.Done():
			return nil, c.Err()
		}
	}

	select {
	case res := <-r.resultC:
		r.outstanding = false
		if res.err != nil {
			res.buf.Release()
			receiverErrors.Inc()
			return nil, res.err
		}
		return r.frameFor(&res), nil

	case <-c.Done():
		return nil, c.Err()
	}
}

// frameFor wraps a received datagram in a Datagram, or returns nil if it does
// not hold a valid frame.
func (r *Receiver) frameFor(res *receiveResult) *Datagram {
	receiverDatagrams.Inc()
	receiverBytes.Add(float64(res.size))

	d := Datagram{
		Addr: res.addr,
		buf:  res.buf,
	}

	var (
		expected int
		strict   = r.Strict
		err      error
	)
	if vrl.IsVRL(res.buf.Bytes()[:vrl.HeaderLength+res.size], vrl.HeaderLength) {
		res.buf.Truncate(vrl.HeaderLength + res.size)
		expected = res.size
		d.Frame, err = vrl.Direct(res.buf.Bytes(), vrl.HeaderLength, true)
	} else {
		// A synthesized header and trailer vouch for nothing, so the packets of a
		// bare datagram are always walked.
		d.Bare = true
		expected = vrl.MinFrameLength + res.size
		strict = true
		d.Frame, err = wrapBare(res.buf, res.size)
	}
	if err == nil {
		err = d.Frame.Validate(strict, expected)
	}

	if err != nil {
		receiverInvalid.Inc()
		r.logger.Warnf("Discarding invalid %d byte datagram from %s: %s", res.size, res.addr, err)
		r.logger.Debugf("Invalid datagram content:\n%s",
			fmtutil.Hex(res.buf.Bytes()[vrl.HeaderLength:vrl.HeaderLength+res.size]))
		d.Release()
		return nil
	}

	if d.Bare {
		receiverFrames.WithLabelValues("bare").Inc()
	} else {
		receiverFrames.WithLabelValues("vrl").Inc()
	}
	return &d
}

// wrapBare synthesizes a frame around the size octets of bare packet data at
// buf[vrl.HeaderLength:], in place.
func wrapBare(buf *bufferpool.Buffer, size int) (*vrl.Frame, error) {
	if size < vrt.HeaderLength || size%4 != 0 {
		return nil, errors.Wrapf(vrl.ErrCorruptFrame, "%d byte datagram cannot hold VRT packets", size)
	}

	n := vrl.MinFrameLength + size
	buf.Truncate(n)
	data := buf.Bytes()
	for i := 0; i < vrl.HeaderLength; i++ {
		data[i] = 0
	}

	f, err := vrl.Direct(data, 0, false)
	if err != nil {
		return nil, err
	}
	if err := f.SetFrameLength(n); err != nil {
		return nil, err
	}
	return vrl.Direct(data, 0, true)
}
