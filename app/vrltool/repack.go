// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrltool

import (
	"context"
	"io"

	"github.com/danjacques/govita/protocol/vrl"
	"github.com/danjacques/govita/support/network"
	"github.com/danjacques/govita/transport"
	"github.com/danjacques/govita/vrlfile"

	"github.com/pkg/errors"
)

var repackCommand = &command{
	usage: "[flags] INPUT OUTPUT",
	help:  "Rebuild the frames of a file under a new maximum frame length and compression.",
	setup: func(fs *flagSet) runFunc {
		fs.addFrameFlags()
		fs.addFileFlags()

		return func(c context.Context, e *env, args []string) error {
			if len(args) != 2 {
				return errors.New("expected INPUT and OUTPUT files")
			}
			return repack(c, e, args[0], args[1])
		}
	},
}

// frameFileSender is a network.DatagramSender that writes each datagram, a
// complete frame, to a vrlfile.Writer.
type frameFileSender struct {
	w       *vrlfile.Writer
	maxSize int
}

var _ network.DatagramSender = (*frameFileSender)(nil)

func (ffs *frameFileSender) SendDatagram(b []byte) error {
	f, err := vrl.Direct(b, 0, true)
	if err != nil {
		return err
	}
	return ffs.w.WriteFrame(f)
}

func (ffs *frameFileSender) MaxDatagramSize() int { return ffs.maxSize }
func (ffs *frameFileSender) Close() error         { return ffs.w.Close() }

func repack(c context.Context, e *env, input, output string) error {
	rcfg := vrlfile.ReaderConfig{
		Logger:   e.logger,
		Validate: true,
		Strict:   true,
	}
	r, err := rcfg.Open(input)
	if err != nil {
		return err
	}
	defer r.Close()

	wcfg := vrlfile.WriterConfig{
		Compression:      e.cfg.Compression,
		CompressionLevel: e.cfg.CompressionLevel,
	}
	w, err := wcfg.Create(output)
	if err != nil {
		return err
	}
	ds := frameFileSender{
		w:       w,
		maxSize: e.cfg.MaxFrameLength,
	}
	defer func() {
		if ds.w != nil {
			_ = ds.Close()
		}
	}()

	fs := transport.FrameSender{
		MaxFrameLength: e.cfg.MaxFrameLength,
		OmitCRC:        e.cfg.OmitCRC,
		Logger:         e.logger,
	}

	f := vrl.New()
	var packets int64
	for {
		if err := c.Err(); err != nil {
			return err
		}

		_, err := r.ReadFrame(f)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		for it := f.Iterator(); it.HasNext(); packets++ {
			p, err := it.Next()
			if err != nil {
				return err
			}
			if err := fs.SendOrEnqueue(&ds, p); err != nil {
				return errors.Wrapf(err, "packet #%d", packets)
			}
		}
	}
	if err := fs.Flush(&ds); err != nil {
		return err
	}

	frames, octets := w.NumFrames(), w.NumBytes()
	err = ds.Close()
	ds.w = nil
	if err != nil {
		return errors.Wrap(err, "closing output")
	}

	e.logger.Infof("Repacked %d frame(s) holding %d packet(s) into %d frame(s) (%d octet(s), %s) at %q.",
		r.NumFrames(), packets, frames, octets, e.cfg.Compression, output)
	return nil
}
