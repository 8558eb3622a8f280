// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package transport

import (
	"context"
	"time"

	"github.com/danjacques/govita/protocol/vrl"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Receiver", func() {
	var conn *mockDatagramReceiver
	var r *Receiver
	BeforeEach(func() {
		conn = &mockDatagramReceiver{
			DataC: make(chan []byte, 8),
		}
		r = &Receiver{Strict: true}
		Expect(r.Start(conn)).To(Succeed())
	})

	AfterEach(func() {
		if r != nil {
			_ = r.Close()
		}
	})

	validFrame := func() []byte {
		f, err := vrl.FromPackets(dataPacket(0xA, 28), dataPacket(0xB, 16))
		Expect(err).ToNot(HaveOccurred())
		Expect(f.SetFrameCount(42)).To(Succeed())
		Expect(f.UpdateCRC()).To(Succeed())
		return f.Bytes()
	}

	It("can close immediately", func() {
		Expect(r.Close()).To(Succeed())
		Expect(conn.closed).To(BeTrue())
		r = nil
	})

	It("refuses to start twice", func() {
		other := &mockDatagramReceiver{DataC: make(chan []byte)}
		Expect(r.Start(other)).ToNot(Succeed())
		Expect(other.closed).To(BeTrue())
	})

	It("receives a VRL frame as a read-only direct frame", func(done Done) {
		defer close(done)

		data := validFrame()
		conn.DataC <- data

		d, err := r.Receive(context.Background())
		Expect(err).ToNot(HaveOccurred())
		defer d.Release()

		Expect(d.Bare).To(BeFalse())
		Expect(d.Addr.String()).To(Equal("127.0.0.2:2468"))
		Expect(d.Frame.IsDirect()).To(BeTrue())
		Expect(d.Frame.IsReadOnly()).To(BeTrue())
		Expect(d.Frame.Bytes()).To(Equal(data))
		Expect(d.Frame.FrameCount()).To(Equal(42))
		Expect(d.Frame.SetFrameCount(1)).To(MatchError(vrl.ErrReadOnly))
	}, 1)

	It("wraps bare VRT packets", func(done Done) {
		defer close(done)

		a, b := dataPacket(0xA, 28), dataPacket(0xB, 16)
		conn.DataC <- append(append([]byte(nil), a.Bytes()...), b.Bytes()...)

		d, err := r.Receive(context.Background())
		Expect(err).ToNot(HaveOccurred())
		defer d.Release()

		expected, err := vrl.FromPackets(a, b)
		Expect(err).ToNot(HaveOccurred())

		Expect(d.Bare).To(BeTrue())
		Expect(d.Frame.Bytes()).To(Equal(expected.Bytes()))
		Expect(d.Frame.IsReadOnly()).To(BeTrue())
	}, 1)

	It("discards invalid datagrams", func(done Done) {
		defer close(done)

		corrupt := validFrame()
		corrupt[vrl.HeaderLength+3] ^= 0x80
		conn.DataC <- corrupt

		conn.DataC <- append(validFrame(), 0, 0, 0, 0)
		conn.DataC <- []byte{0x01, 0x02, 0x03}

		good := validFrame()
		conn.DataC <- good

		d, err := r.Receive(context.Background())
		Expect(err).ToNot(HaveOccurred())
		defer d.Release()
		Expect(d.Frame.Bytes()).To(Equal(good))
	}, 1)

	It("reuses released buffers for later datagrams", func(done Done) {
		defer close(done)

		for i := 0; i < 3; i++ {
			conn.DataC <- validFrame()
			d, err := r.Receive(context.Background())
			Expect(err).ToNot(HaveOccurred())
			d.Release()
			Expect(d.Frame).To(BeNil())
		}
	}, 1)

	It("will cancel a receive if the Context is cancelled", func(done Done) {
		defer close(done)

		c, cancelFunc := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancelFunc()

		_, err := r.Receive(c)
		Expect(err).To(Equal(context.DeadlineExceeded))

		By("delivering the next datagram to the following receive")
		data := validFrame()
		conn.DataC <- data
		d, err := r.Receive(context.Background())
		Expect(err).ToNot(HaveOccurred())
		defer d.Release()
		Expect(d.Frame.Bytes()).To(Equal(data))
	}, 1)

	It("returns connection errors", func(done Done) {
		defer close(done)

		Expect(r.Close()).To(Succeed())
		r = nil

		conn = &mockDatagramReceiver{
			DataC: make(chan []byte),
			err:   errors.New("test error"),
		}
		r = &Receiver{}
		Expect(r.Start(conn)).To(Succeed())

		_, err := r.Receive(context.Background())
		Expect(err).To(MatchError("test error"))
	}, 1)

	Context("without strict validation", func() {
		BeforeEach(func() {
			Expect(r.Close()).To(Succeed())

			conn = &mockDatagramReceiver{
				DataC: make(chan []byte, 8),
			}
			r = &Receiver{MaxDatagramSize: 32}
			Expect(r.Start(conn)).To(Succeed())
		})

		It("still walks the packets of bare datagrams", func(done Done) {
			defer close(done)

			// Truncated to 32 bytes by MaxDatagramSize.
			conn.DataC <- dataPacket(0xA, 48).Bytes()
			conn.DataC <- make([]byte, 8)

			good := dataPacket(0xB, 16)
			conn.DataC <- good.Bytes()

			d, err := r.Receive(context.Background())
			Expect(err).ToNot(HaveOccurred())
			defer d.Release()

			Expect(d.Bare).To(BeTrue())
			count, err := d.Frame.PacketCount()
			Expect(err).ToNot(HaveOccurred())
			Expect(count).To(Equal(1))
			Expect(d.Frame.IsValid(true, -1)).To(BeTrue())
			Expect(d.Frame.Bytes()[vrl.HeaderLength : vrl.HeaderLength+16]).To(Equal(good.Bytes()))
		}, 1)

		It("accepts VRL frames without walking their packets", func(done Done) {
			defer close(done)

			// A frame whose CRC covers a body that is not a packet.
			f, err := vrl.FromPackets(dataPacket(0xA, 16))
			Expect(err).ToNot(HaveOccurred())
			data := f.Bytes()
			data[vrl.HeaderLength] = 0
			data[vrl.HeaderLength+1] = 0
			data[vrl.HeaderLength+2] = 0
			data[vrl.HeaderLength+3] = 0
			conn.DataC <- data

			d, err := r.Receive(context.Background())
			Expect(err).ToNot(HaveOccurred())
			defer d.Release()
			Expect(d.Bare).To(BeFalse())
			Expect(d.Frame.IsValid(true, -1)).To(BeFalse())
		}, 1)
	})

	It("fails when not started", func() {
		_, err := (&Receiver{}).Receive(context.Background())
		Expect(err).To(HaveOccurred())
	})
})
