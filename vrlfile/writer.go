// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrlfile

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/danjacques/govita/protocol/vrl"
	"github.com/danjacques/govita/support/dataio"
	"github.com/danjacques/govita/support/stagingdir"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

const (
	// Large buffer size (4MB), good for streaming frames to and from files.
	largeBufferSize = 1024 * 1024 * 4

	// stagedFileName is the name of the file being built in a staging
	// directory.
	stagedFileName = "frames.vrl"
	// stagedMetadataName is the name of the metadata file being built in a
	// staging directory.
	stagedMetadataName = "frames.meta"
)

// WriterConfig is a configuration for writing VRL files.
type WriterConfig struct {
	// Compression is the compression to use when writing a file.
	Compression Compression
	// CompressionLevel is the compression level to apply to Compression, if
	// applicable. If <=0, the default level is used. An uncompressed file is
	// written with CompressionNone, not a zero level.
	CompressionLevel int

	// TempDir is the directory to stage files in. If empty, files are staged
	// alongside their destination.
	TempDir string

	// Metadata, if true, records Metadata while writing. A Writer made by
	// Create writes it next to the file (see MetadataPath).
	Metadata bool
	// Source describes where the frames came from. It is recorded in Metadata.
	Source string

	// Now, if not nil, returns the current time. Otherwise, time.Now is used.
	Now func() time.Time
}

func (cfg *WriterConfig) now() time.Time {
	if cfg.Now != nil {
		return cfg.Now()
	}
	return time.Now()
}

// Writer writes frames to a VRL file.
//
// Writer is not safe for concurrent use.
type Writer struct {
	// out counts the uncompressed bytes written.
	out dataio.CountingWriter

	closer  io.Closer
	bw      *bufio.Writer
	snappyW *snappy.Writer
	gzipW   *gzip.Writer

	frames int64

	// md, if not nil, is the Metadata being recorded.
	md  *Metadata
	now func() time.Time

	// stagingDir, if not nil, holds the file being written until it is
	// committed to destPath.
	stagingDir *stagingdir.D
	destPath   string
}

// Create creates a Writer that writes a VRL file at path.
//
// The file is built in a staging directory and moved to path when the Writer
// is closed. If no frames were written, no file is created.
func (cfg *WriterConfig) Create(path string) (*Writer, error) {
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = filepath.Dir(path)
	}

	stagingDir, err := stagingdir.New(tempDir, "."+filepath.Base(path))
	if err != nil {
		return nil, errors.Wrap(err, "creating staging directory")
	}
	defer func() {
		if stagingDir != nil {
			_ = stagingDir.Destroy()
		}
	}()

	fd, err := os.Create(stagingDir.Path(stagedFileName))
	if err != nil {
		return nil, errors.Wrap(err, "creating staged file")
	}

	w, err := cfg.NewWriter(fd)
	if err != nil {
		_ = fd.Close()
		return nil, err
	}
	w.stagingDir, w.destPath = stagingDir, path

	stagingDir = nil // Owned by w.
	return w, nil
}

// NewWriter creates a Writer that writes a VRL stream to base.
//
// The Writer takes ownership of base, and closes it when it is closed.
func (cfg *WriterConfig) NewWriter(base io.WriteCloser) (*Writer, error) {
	w := Writer{
		bw:     bufio.NewWriterSize(base, largeBufferSize),
		closer: base,
		now:    cfg.now,
	}
	if cfg.Metadata {
		w.md = &Metadata{
			Source:      cfg.Source,
			Created:     cfg.now(),
			Compression: cfg.Compression,
		}
	}

	switch cfg.Compression {
	case CompressionSnappy:
		w.snappyW = snappy.NewBufferedWriter(w.bw)
		w.out.W = w.snappyW

	case CompressionGzip:
		level := cfg.CompressionLevel
		if level <= 0 {
			level = gzip.DefaultCompression
		}

		gw, err := gzip.NewWriterLevel(w.bw, level)
		if err != nil {
			return nil, errors.Wrap(err, "creating gzip writer")
		}
		w.gzipW = gw
		w.out.W = w.gzipW

	case CompressionNone:
		w.out.W = w.bw

	default:
		return nil, errors.Errorf("unknown compression: %s", cfg.Compression)
	}
	return &w, nil
}

// Path returns the path of the file being written, or an empty string if the
// Writer was not created by Create.
//
// Path returns the destination path, not the staging path used to build it.
func (w *Writer) Path() string { return w.destPath }

// NumFrames is the number of frames that have been written so far.
func (w *Writer) NumFrames() int64 { return w.frames }

// NumBytes is the number of uncompressed bytes that have been written so far.
func (w *Writer) NumBytes() int64 { return w.out.Count }

// Metadata returns the Metadata recorded so far, or nil if the Writer is not
// recording Metadata.
func (w *Writer) Metadata() *Metadata {
	if w.md == nil {
		return nil
	}
	md := *w.md
	md.NumFrames, md.NumBytes = w.frames, w.out.Count
	md.Offsets = append([]time.Duration(nil), w.md.Offsets...)
	return &md
}

// WriteFrame writes f to the file.
//
// f is written exactly as it is, and must be valid.
func (w *Writer) WriteFrame(f *vrl.Frame) error {
	if err := f.Validate(false, -1); err != nil {
		fileErrors.WithLabelValues("write").Inc()
		return errors.Wrap(err, "refusing to write invalid frame")
	}

	amt, err := f.WriteTo(&w.out)
	if err != nil {
		fileErrors.WithLabelValues("write").Inc()
		return errors.Wrapf(err, "writing frame #%d", w.frames)
	}

	w.frames++
	if w.md != nil {
		offset := w.now().Sub(w.md.Created)
		if offset < 0 {
			offset = 0
		}
		w.md.Offsets = append(w.md.Offsets, offset)
	}
	writerFrames.Inc()
	writerBytes.Add(float64(amt))
	return nil
}

// Close flushes the file and closes the Writer, releasing its resources.
//
// If the Writer was created by Create and at least one frame was written, the
// file is moved into place, along with its metadata file if Metadata is being
// recorded.
func (w *Writer) Close() error {
	if w.stagingDir != nil {
		// Always delete our staging directory. If it's been committed, this will
		// be a no-op.
		defer func() {
			_ = w.stagingDir.Destroy()
		}()
	}

	if err := w.closeStream(); err != nil {
		fileErrors.WithLabelValues("close").Inc()
		return err
	}

	if w.stagingDir == nil || w.frames == 0 {
		return nil
	}
	files := make([]stagingdir.File, 0, 2)
	if md := w.Metadata(); md != nil {
		if err := writeMetadataFile(w.stagingDir.Path(stagedMetadataName), md); err != nil {
			fileErrors.WithLabelValues("close").Inc()
			return err
		}
		files = append(files, stagingdir.File{Name: stagedMetadataName, Dest: MetadataPath(w.destPath)})
	}
	files = append(files, stagingdir.File{Name: stagedFileName, Dest: w.destPath})

	if err := w.stagingDir.Commit(files...); err != nil {
		fileErrors.WithLabelValues("close").Inc()
		return errors.Wrap(err, "committing file")
	}
	return nil
}

func (w *Writer) closeStream() (err error) {
	// Always close our underlying base.
	defer func() {
		closeErr := w.closer.Close()
		if err == nil {
			err = closeErr
		}
	}()

	if w.snappyW != nil {
		if err = w.snappyW.Close(); err != nil {
			return
		}
	}
	if w.gzipW != nil {
		if err = w.gzipW.Close(); err != nil {
			return
		}
	}
	err = w.bw.Flush()
	return
}

func writeMetadataFile(path string, md *Metadata) (err error) {
	fd, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating metadata file")
	}
	defer func() {
		if closeErr := fd.Close(); err == nil && closeErr != nil {
			err = errors.Wrap(closeErr, "closing metadata file")
		}
	}()

	return md.Write(fd)
}
