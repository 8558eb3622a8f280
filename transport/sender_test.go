// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package transport

import (
	"github.com/danjacques/govita/protocol/vrl"
	"github.com/danjacques/govita/protocol/vrt"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// decode parses a sent datagram back into a frame.
func decode(d []byte) *vrl.Frame {
	f, err := vrl.FromBytes(d, true)
	Expect(err).ToNot(HaveOccurred())
	Expect(f.Validate(true, len(d))).To(Succeed())
	return f
}

var _ = Describe("FrameSender", func() {
	var ds *mockDatagramSender
	var fs *FrameSender
	BeforeEach(func() {
		ds = &mockDatagramSender{MaxSize: 1500}
		fs = &FrameSender{}
	})

	It("packs packets until the frame is full", func() {
		fs.MaxFrameLength = vrl.MinFrameLength + 3*100

		for i := 0; i < 7; i++ {
			Expect(fs.SendOrEnqueue(ds, dataPacket(uint32(i), 100))).To(Succeed())
		}
		Expect(ds.Datagrams).To(HaveLen(2))
		Expect(fs.Pending()).To(Equal(1))

		Expect(fs.Flush(ds)).To(Succeed())
		Expect(fs.Pending()).To(Equal(0))
		Expect(ds.Datagrams).To(HaveLen(3))

		var counts []int
		for i, d := range ds.Datagrams {
			f := decode(d)
			Expect(f.FrameCount()).To(Equal(i))
			Expect(f.CRC()).ToNot(Equal(vrl.NoCRC))
			Expect(f.IsCRCValid()).To(BeTrue())

			n, err := f.PacketCount()
			Expect(err).ToNot(HaveOccurred())
			counts = append(counts, n)
		}
		Expect(counts).To(Equal([]int{3, 3, 1}))
	})

	It("preserves packet content and order", func() {
		a, b := dataPacket(0xA, 28), dataPacket(0xB, 16)
		Expect(fs.Send(ds, a, b)).To(Succeed())
		Expect(fs.Flush(ds)).To(Succeed())

		packets, err := decode(ds.Datagrams[0]).Packets()
		Expect(err).ToNot(HaveOccurred())
		Expect(packets).To(HaveLen(2))
		Expect(packets[0].Bytes()).To(Equal(a.Bytes()))
		Expect(packets[1].Bytes()).To(Equal(b.Bytes()))
	})

	It("copies enqueued packets", func() {
		p := dataPacket(0xA, 16)
		orig := append([]byte(nil), p.Bytes()...)
		Expect(fs.SendOrEnqueue(ds, p)).To(Succeed())
		p.Bytes()[12] ^= 0xFF

		Expect(fs.Flush(ds)).To(Succeed())
		packets, err := decode(ds.Datagrams[0]).Packets()
		Expect(err).ToNot(HaveOccurred())
		Expect(packets[0].Bytes()).To(Equal(orig))
	})

	It("limits frames to the datagram size", func() {
		ds.MaxSize = vrl.MinFrameLength + 2*40 + 3
		Expect(fs.Send(ds, dataPacket(1, 40), dataPacket(2, 40), dataPacket(3, 40))).To(Succeed())
		Expect(ds.Datagrams).To(HaveLen(1))
		Expect(ds.Datagrams[0]).To(HaveLen(vrl.MinFrameLength + 2*40))
	})

	It("wraps the frame count", func() {
		fs.NextCount = vrl.MaxFrameCount
		for i := 0; i < 2; i++ {
			Expect(fs.Send(ds, dataPacket(1, 16))).To(Succeed())
			Expect(fs.Flush(ds)).To(Succeed())
		}
		Expect(decode(ds.Datagrams[0]).FrameCount()).To(Equal(vrl.MaxFrameCount))
		Expect(decode(ds.Datagrams[1]).FrameCount()).To(Equal(0))
		Expect(fs.NextCount).To(Equal(1))
	})

	It("can omit the CRC", func() {
		fs.OmitCRC = true
		Expect(fs.Send(ds, dataPacket(1, 16))).To(Succeed())
		Expect(fs.Flush(ds)).To(Succeed())
		Expect(decode(ds.Datagrams[0]).CRC()).To(Equal(vrl.NoCRC))
	})

	It("does nothing when flushing an empty queue", func() {
		Expect(fs.Flush(ds)).To(Succeed())
		Expect(ds.Datagrams).To(BeEmpty())
	})

	It("rejects packets that cannot fit in any frame", func() {
		ds.MaxSize = 64
		err := fs.SendOrEnqueue(ds, dataPacket(1, 64))
		Expect(errors.Cause(err)).To(Equal(ErrPacketTooLarge))
		Expect(fs.Pending()).To(Equal(0))
	})

	It("rejects invalid packets", func() {
		bad := vrt.NewRaw([]byte{0x10, 0x00, 0x00, 0x07, 0, 0, 0, 0}, true)
		err := fs.SendOrEnqueue(ds, bad)
		Expect(errors.Cause(err)).To(Equal(vrl.ErrInvalidPacket))
	})

	It("discards enqueued packets when a send fails", func() {
		Expect(fs.Send(ds, dataPacket(1, 16))).To(Succeed())

		ds.err = errors.New("test error")
		Expect(errors.Cause(fs.Flush(ds))).To(MatchError("test error"))
		Expect(fs.Pending()).To(Equal(0))
		Expect(fs.NextCount).To(Equal(1))
	})

	Context("SendFrame", func() {
		It("sends a frame as-is after flushing", func() {
			Expect(fs.Send(ds, dataPacket(1, 16))).To(Succeed())

			f, err := vrl.FromPackets(dataPacket(2, 20))
			Expect(err).ToNot(HaveOccurred())
			Expect(f.SetFrameCount(77)).To(Succeed())

			Expect(fs.SendFrame(ds, f)).To(Succeed())
			Expect(ds.Datagrams).To(HaveLen(2))
			Expect(ds.Datagrams[1]).To(Equal(f.Bytes()))
			Expect(fs.NextCount).To(Equal(1))
		})

		It("refuses invalid frames", func() {
			f, err := vrl.FromPackets(dataPacket(2, 20))
			Expect(err).ToNot(HaveOccurred())
			Expect(f.UpdateCRC()).To(Succeed())
			f.Bytes()[vrl.HeaderLength+5] ^= 0x01

			Expect(errors.Cause(fs.SendFrame(ds, f))).To(Equal(vrl.ErrCRC))
			Expect(ds.Datagrams).To(BeEmpty())
		})

		It("refuses frames larger than a datagram", func() {
			ds.MaxSize = 32
			f, err := vrl.FromPackets(dataPacket(2, 40))
			Expect(err).ToNot(HaveOccurred())
			Expect(errors.Cause(fs.SendFrame(ds, f))).To(Equal(ErrPacketTooLarge))
		})
	})
})
