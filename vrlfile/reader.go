// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrlfile

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"

	"github.com/danjacques/govita/protocol/vrl"
	"github.com/danjacques/govita/support/logging"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// ReaderConfig is a configuration for reading VRL files.
type ReaderConfig struct {
	// Logger, if not nil, is the Logger to log file status to.
	Logger logging.L

	// Validate, if true, causes each frame to be validated as it is read.
	Validate bool
	// Strict, if true, applies strict validation when Validate is true.
	Strict bool
}

// Reader reads frames from a VRL file.
//
// Reader is not safe for concurrent use.
type Reader struct {
	fr *vrl.Reader

	closer      io.Closer
	compression Compression
}

// Open opens the VRL file at path for reading.
func (cfg *ReaderConfig) Open(path string) (*Reader, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}

	r, err := cfg.NewReader(fd)
	if err != nil {
		_ = fd.Close()
		return nil, err
	}
	return r, nil
}

// NewReader creates a Reader that reads a VRL stream from base. The stream's
// compression is detected from its leading octets.
//
// The Reader takes ownership of base, and closes it when it is closed.
func (cfg *ReaderConfig) NewReader(base io.ReadCloser) (*Reader, error) {
	br := bufio.NewReaderSize(base, largeBufferSize)

	prefix, err := br.Peek(detectLength)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "reading file header")
	}

	r := Reader{
		closer:      base,
		compression: DetectCompression(prefix),
	}

	var src io.Reader
	switch r.compression {
	case CompressionSnappy:
		src = snappy.NewReader(br)

	case CompressionGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "creating gzip reader")
		}
		src = gz

	default:
		src = br
	}

	r.fr = vrl.NewReader(src)
	r.fr.Logger = cfg.Logger
	r.fr.Validate = cfg.Validate
	r.fr.Strict = cfg.Strict
	return &r, nil
}

// Compression returns the detected compression of the file.
func (r *Reader) Compression() Compression { return r.compression }

// ReadFrame reads the next frame in the file into f.
//
// If the file holds a bare VRT packet, it is wrapped in a frame and bare is
// true. At the end of the file, ReadFrame returns io.EOF.
func (r *Reader) ReadFrame(f *vrl.Frame) (bare bool, err error) {
	bare, err = r.fr.ReadFrame(f)
	switch {
	case err == io.EOF:
		return false, err
	case err != nil:
		fileErrors.WithLabelValues("read").Inc()
		return bare, errors.Wrapf(err, "reading frame #%d", r.fr.Frames())
	case bare:
		readerFrames.WithLabelValues("bare").Inc()
	default:
		readerFrames.WithLabelValues("vrl").Inc()
	}
	return bare, nil
}

// NumFrames returns the number of frames read so far, including wrapped bare
// packets.
func (r *Reader) NumFrames() int64 { return r.fr.Frames() }

// NumBarePackets returns the number of bare VRT packets read so far.
func (r *Reader) NumBarePackets() int64 { return r.fr.BarePackets() }

// Close closes the Reader and its underlying file.
func (r *Reader) Close() error { return r.closer.Close() }
