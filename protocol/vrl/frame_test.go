// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrl

import (
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Frame", func() {
	Context("New", func() {
		It("is a minimal valid frame", func() {
			f := New()
			Expect(f.Bytes()).To(Equal([]byte{
				0x56, 0x52, 0x4C, 0x50,
				0x00, 0x00, 0x00, 0x03,
				0x56, 0x45, 0x4E, 0x44,
			}))
			Expect(f.FrameLength()).To(Equal(MinFrameLength))
			Expect(f.FrameCount()).To(Equal(0))
			Expect(f.CRC()).To(Equal(NoCRC))
			Expect(f.Validate(true, MinFrameLength)).To(Succeed())
			Expect(f.PacketCount()).To(Equal(0))
			Expect(f.IsDirect()).To(BeFalse())
			Expect(f.IsReadOnly()).To(BeFalse())
		})
	})

	Context("constructors", func() {
		It("FromBytes rejects nil data", func() {
			_, err := FromBytes(nil, false)
			Expect(err).To(HaveOccurred())
		})

		It("FromBytes copies its data", func() {
			data := New().Bytes()
			f, err := FromBytes(data, false)
			Expect(err).ToNot(HaveOccurred())
			Expect(f.SetFrameCount(9)).To(Succeed())
			Expect(data[4]).To(Equal(byte(0)))
		})

		It("Direct rejects a nil buffer", func() {
			_, err := Direct(nil, 0, false)
			Expect(err).To(HaveOccurred())
		})

		It("Direct rejects offsets outside the buffer", func() {
			buf := make([]byte, 16)

			_, err := Direct(buf, -1, false)
			Expect(errors.Cause(err)).To(Equal(ErrBounds))

			_, err = Direct(buf, 17, false)
			Expect(errors.Cause(err)).To(Equal(ErrBounds))

			f, err := Direct(buf, 16, false)
			Expect(err).ToNot(HaveOccurred())
			Expect(f.IsValid(false, -1)).To(BeFalse())
		})

		It("Direct operates on the supplied buffer", func() {
			buf := make([]byte, 32)
			copy(buf[4:], New().Bytes())

			f, err := Direct(buf, 4, false)
			Expect(err).ToNot(HaveOccurred())
			Expect(f.IsDirect()).To(BeTrue())
			Expect(f.Validate(true, -1)).To(Succeed())

			Expect(f.SetFrameCount(0xABC)).To(Succeed())
			Expect(buf[8:12]).To(Equal([]byte{0xAB, 0xC0, 0x00, 0x03}))
			Expect(&f.Bytes()[0]).To(BeIdenticalTo(&buf[4]))
		})
	})

	Context("frame length", func() {
		var f *Frame
		BeforeEach(func() {
			f = New()
		})

		DescribeTable("rejects invalid lengths",
			func(n int, cause error) {
				err := f.SetFrameLength(n)
				Expect(errors.Cause(err)).To(Equal(cause))
				Expect(f.FrameLength()).To(Equal(MinFrameLength))
			},
			Entry("zero", 0, ErrInvalidLength),
			Entry("below minimum", MinFrameLength-4, ErrInvalidLength),
			Entry("not a multiple of 4", MinFrameLength+2, ErrInvalidLength),
			Entry("above maximum", MaxFrameLength+4, ErrBounds),
		)

		DescribeTable("accepts valid lengths",
			func(n int) {
				Expect(f.SetFrameLength(n)).To(Succeed())
				Expect(f.FrameLength()).To(Equal(n))
				Expect(f.Bytes()).To(HaveLen(n))
				Expect(f.CRC()).To(Equal(NoCRC))
			},
			Entry("minimum", MinFrameLength),
			Entry("small", 64),
			Entry("maximum", MaxFrameLength),
		)

		It("clears the CRC when the length changes", func() {
			Expect(f.SetFrameLength(32)).To(Succeed())
			Expect(f.UpdateCRC()).To(Succeed())
			Expect(f.CRC()).ToNot(Equal(NoCRC))

			Expect(f.SetFrameLength(36)).To(Succeed())
			Expect(f.CRC()).To(Equal(NoCRC))
		})

		It("reclaims capacity after a large shrink", func() {
			Expect(f.SetFrameLength(64 * 1024)).To(Succeed())
			Expect(f.SetFrameLength(5000)).To(Succeed())
			Expect(cap(f.buf)).To(Equal(8192))

			By("not reallocating within the slack threshold")
			Expect(f.SetFrameLength(4096)).To(Succeed())
			Expect(cap(f.buf)).To(Equal(8192))
		})

		It("zeroes reclaimed capacity on growth", func() {
			Expect(f.SetFrameLength(64)).To(Succeed())
			for i := HeaderLength; i < 60; i++ {
				f.buf[i] = 0xFF
			}
			Expect(f.SetFrameLength(16)).To(Succeed())
			Expect(f.SetFrameLength(64)).To(Succeed())
			Expect(f.buf[16:60]).To(Equal(make([]byte, 44)))
		})

		It("refuses to grow past a direct buffer", func() {
			buf := make([]byte, 20)
			copy(buf, New().Bytes())
			d, err := Direct(buf, 0, false)
			Expect(err).ToNot(HaveOccurred())

			Expect(d.SetFrameLength(20)).To(Succeed())
			Expect(errors.Cause(d.SetFrameLength(24))).To(Equal(ErrBounds))
			Expect(d.FrameLength()).To(Equal(20))
			Expect(buf).To(HaveLen(20))
		})
	})

	Context("frame count", func() {
		It("accepts the full 12-bit range without disturbing the length", func() {
			f := New()
			Expect(f.SetFrameLength(0xFFFFF * 4)).To(Succeed())

			Expect(f.SetFrameCount(MaxFrameCount)).To(Succeed())
			Expect(f.FrameCount()).To(Equal(4095))
			Expect(f.FrameLength()).To(Equal(0xFFFFF * 4))

			Expect(f.SetFrameLength(MinFrameLength)).To(Succeed())
			Expect(f.FrameCount()).To(Equal(4095))
		})

		It("rejects out-of-range counts", func() {
			f := New()
			Expect(errors.Cause(f.SetFrameCount(4096))).To(Equal(ErrInvalidCount))
			Expect(errors.Cause(f.SetFrameCount(-1))).To(Equal(ErrInvalidCount))
			Expect(f.FrameCount()).To(Equal(0))
		})

		It("clears the CRC", func() {
			f := New()
			Expect(f.UpdateCRC()).To(Succeed())
			Expect(f.SetFrameCount(1)).To(Succeed())
			Expect(f.CRC()).To(Equal(NoCRC))
		})
	})

	Context("read-only frames", func() {
		var f *Frame
		BeforeEach(func() {
			var err error
			f, err = FromBytes(New().Bytes(), true)
			Expect(err).ToNot(HaveOccurred())
		})

		It("refuses every mutation", func() {
			Expect(f.SetFrameLength(16)).To(MatchError(ErrReadOnly))
			Expect(f.SetFrameCount(1)).To(MatchError(ErrReadOnly))
			Expect(f.UpdateCRC()).To(MatchError(ErrReadOnly))

			_, err := f.SetPackets(false, MaxFrameLength, mustDataPacket(1, 16))
			Expect(err).To(MatchError(ErrReadOnly))

			Expect(f.Bytes()).To(Equal(New().Bytes()))
		})

		It("produces writable copies", func() {
			c := f.Copy()
			Expect(c.IsReadOnly()).To(BeFalse())
			Expect(c.SetFrameCount(3)).To(Succeed())
		})
	})

	Context("equality", func() {
		It("compares frame bytes", func() {
			a, err := FromPackets(mustDataPacket(1, 16))
			Expect(err).ToNot(HaveOccurred())

			b := a.Copy()
			Expect(a.Equal(b)).To(BeTrue())
			Expect(a.Hash()).To(Equal(b.Hash()))

			Expect(b.SetFrameCount(1)).To(Succeed())
			Expect(a.Equal(b)).To(BeFalse())
		})

		It("ignores buffer content beyond the frame", func() {
			buf := append(New().Bytes(), 0xDE, 0xAD, 0xBE, 0xEF)
			d, err := Direct(buf, 0, true)
			Expect(err).ToNot(HaveOccurred())
			Expect(d.Equal(New())).To(BeTrue())
		})

		It("handles nil frames", func() {
			var nf *Frame
			Expect(nf.Equal(nil)).To(BeTrue())
			Expect(New().Equal(nil)).To(BeFalse())
		})
	})

	It("renders a summary string", func() {
		Expect(New().String()).To(Equal(
			"VRLFrame{Count=0, Length=12, CRC=0x56454E44, Direct=false, ReadOnly=false}"))
	})
})
