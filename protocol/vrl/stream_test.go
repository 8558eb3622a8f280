// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrl

import (
	"bytes"
	"io"
	"testing/iotest"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Stream I/O", func() {
	var frame *Frame
	BeforeEach(func() {
		var err error
		frame, err = FromPackets(mustDataPacket(0x10, 28), mustDataPacket(0x20, 16))
		Expect(err).ToNot(HaveOccurred())
		Expect(frame.SetFrameCount(17)).To(Succeed())
		Expect(frame.UpdateCRC()).To(Succeed())
	})

	It("writes exactly the frame's octets", func() {
		var buf bytes.Buffer
		n, err := frame.WriteTo(&buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(int64(56)))
		Expect(buf.Bytes()).To(Equal(frame.Bytes()))
	})

	It("refuses to write a frame whose length exceeds its buffer", func() {
		f, err := FromBytes(frame.Bytes()[:24], false)
		Expect(err).ToNot(HaveOccurred())

		_, err = f.WriteTo(&bytes.Buffer{})
		Expect(errors.Cause(err)).To(Equal(ErrInvalidLength))
	})

	It("reads a VRL frame", func() {
		f := New()
		n, err := f.ReadFrameFrom(iotest.OneByteReader(bytes.NewReader(frame.Bytes())), nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(56))
		Expect(f.Equal(frame)).To(BeTrue())
		Expect(f.IsValid(true, 56)).To(BeTrue())
	})

	It("reads a frame whose first word was already consumed", func() {
		data := frame.Bytes()
		f := New()
		n, err := f.ReadFrameFrom(bytes.NewReader(data[4:]), data[:4])
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(56))
		Expect(f.Equal(frame)).To(BeTrue())

		_, err = f.ReadFrameFrom(bytes.NewReader(data[4:]), data[:3])
		Expect(err).To(HaveOccurred())
	})

	It("wraps a bare VRT packet", func() {
		p := mustDataPacket(0x30, 20)

		f := New()
		n, err := f.ReadFrameFrom(bytes.NewReader(p.Bytes()), nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(20))

		expected, err := FromPackets(p)
		Expect(err).ToNot(HaveOccurred())
		Expect(f.Bytes()).To(Equal(expected.Bytes()))
		Expect(f.FrameCount()).To(Equal(0))
		Expect(f.CRC()).To(Equal(NoCRC))
	})

	It("wraps a bare VRT packet whose first word was already consumed", func() {
		p := mustDataPacket(0x30, 20)
		data := p.Bytes()

		f := New()
		n, err := f.ReadFrameFrom(bytes.NewReader(data[4:]), data[:4])
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(20))

		packets, err := f.Packets()
		Expect(err).ToNot(HaveOccurred())
		Expect(packets).To(HaveLen(1))
		Expect(packets[0].Bytes()).To(Equal(data))
	})

	It("returns io.EOF at a clean end of stream", func() {
		_, err := New().ReadFrameFrom(bytes.NewReader(nil), nil)
		Expect(err).To(Equal(io.EOF))
	})

	It("reports a premature end of stream", func() {
		data := frame.Bytes()
		for _, n := range []int{2, 6, 30} {
			f := New()
			_, err := f.ReadFrameFrom(bytes.NewReader(data[:n]), nil)
			Expect(errors.Cause(err)).To(Equal(io.ErrUnexpectedEOF), "truncated at %d", n)
			if n > HeaderLength {
				Expect(f.IsValid(false, -1)).To(BeFalse())
			}
		}
	})

	It("rejects a frame with an invalid length", func() {
		data := append([]byte(nil), frame.Bytes()...)
		data[7] = 0x02
		_, err := New().ReadFrameFrom(bytes.NewReader(data), nil)
		Expect(errors.Cause(err)).To(Equal(ErrInvalidLength))
	})

	Context("direct mode", func() {
		It("reads a frame in place at an offset", func() {
			buf := make([]byte, 128)
			f, err := Direct(buf, 16, false)
			Expect(err).ToNot(HaveOccurred())

			n, err := f.ReadFrameFrom(bytes.NewReader(frame.Bytes()), nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(56))
			Expect(buf[16 : 16+56]).To(Equal(frame.Bytes()))
		})

		It("fails without modifying a buffer that is too small", func() {
			buf := bytes.Repeat([]byte{0xEE}, 40)
			f, err := Direct(buf, 0, false)
			Expect(err).ToNot(HaveOccurred())

			_, err = f.ReadFrameFrom(bytes.NewReader(frame.Bytes()), nil)
			Expect(errors.Cause(err)).To(Equal(ErrBounds))
			Expect(buf).To(Equal(bytes.Repeat([]byte{0xEE}, 40)))
		})

		It("refuses to read into a read-only frame", func() {
			f, err := Direct(make([]byte, 128), 0, true)
			Expect(err).ToNot(HaveOccurred())

			_, err = f.ReadFrameFrom(bytes.NewReader(frame.Bytes()), nil)
			Expect(err).To(MatchError(ErrReadOnly))
		})
	})

	Context("Reader", func() {
		It("reads a mixed stream of frames and bare packets", func() {
			bare := mustDataPacket(0x40, 12)

			var stream bytes.Buffer
			_, _ = frame.WriteTo(&stream)
			stream.Write(bare.Bytes())
			_, _ = frame.WriteTo(&stream)

			rd := NewReader(&stream)
			rd.Validate = true
			rd.Strict = true

			f := New()
			var bares []bool
			for {
				isBare, err := rd.ReadFrame(f)
				if err == io.EOF {
					break
				}
				Expect(err).ToNot(HaveOccurred())
				bares = append(bares, isBare)
			}

			Expect(bares).To(Equal([]bool{false, true, false}))
			Expect(rd.Frames()).To(Equal(int64(3)))
			Expect(rd.BarePackets()).To(Equal(int64(1)))
		})

		It("reports invalid frames when validating", func() {
			data := append([]byte(nil), frame.Bytes()...)
			data[HeaderLength+2] ^= 0xFF

			rd := NewReader(bytes.NewReader(data))
			_, err := rd.ReadFrame(New())
			Expect(err).ToNot(HaveOccurred())

			rd = NewReader(bytes.NewReader(data))
			rd.Validate = true
			_, err = rd.ReadFrame(New())
			Expect(errors.Cause(err)).To(Equal(ErrCRC))
		})
	})
})
