// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrlfile

import (
	"bufio"
	"io"
	"os"
	"time"

	"github.com/danjacques/govita/support/protostream"

	"github.com/golang/protobuf/ptypes"
	"github.com/golang/protobuf/ptypes/duration"
	"github.com/golang/protobuf/ptypes/struct"
	"github.com/golang/protobuf/ptypes/timestamp"
	"github.com/pkg/errors"
)

const (
	// MetadataSuffix is appended to a VRL file's path to name its metadata
	// file.
	MetadataSuffix = ".meta"

	// metadataVersion is a compatibility version value for the metadata file.
	metadataVersion = 1
)

// Metadata describes how a VRL file was recorded.
//
// A metadata file is a protostream holding a header Struct, the creation
// Timestamp, and then one Duration per frame.
type Metadata struct {
	// Source describes where the frames came from.
	Source string
	// Created is the time the file was created.
	Created time.Time
	// Compression is the compression of the VRL file.
	Compression Compression

	// NumFrames is the number of frames in the file.
	NumFrames int64
	// NumBytes is the number of uncompressed bytes in the file.
	NumBytes int64

	// Offsets holds, for each frame, the time that it was written relative to
	// Created.
	Offsets []time.Duration
}

// MetadataPath returns the path of the metadata file for the VRL file at path.
func MetadataPath(path string) string { return path + MetadataSuffix }

// Duration returns the offset of the last frame, or zero if there are no
// frames.
func (md *Metadata) Duration() time.Duration {
	if len(md.Offsets) == 0 {
		return 0
	}
	return md.Offsets[len(md.Offsets)-1]
}

// Write writes md to w.
func (md *Metadata) Write(w io.Writer) error {
	if int64(len(md.Offsets)) != md.NumFrames {
		return errors.Errorf("metadata has %d offset(s) for %d frame(s)", len(md.Offsets), md.NumFrames)
	}

	created, err := ptypes.TimestampProto(md.Created)
	if err != nil {
		return errors.Wrap(err, "creating timestamp proto")
	}

	header := structpb.Struct{
		Fields: map[string]*structpb.Value{
			"version":     numberValue(metadataVersion),
			"source":      stringValue(md.Source),
			"compression": stringValue(md.Compression.String()),
			"frames":      numberValue(float64(md.NumFrames)),
			"bytes":       numberValue(float64(md.NumBytes)),
		},
	}

	bw := bufio.NewWriter(w)
	var enc protostream.Encoder
	if _, err := enc.Write(bw, &header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	if _, err := enc.Write(bw, created); err != nil {
		return errors.Wrap(err, "writing creation time")
	}
	for i, offset := range md.Offsets {
		if _, err := enc.Write(bw, ptypes.DurationProto(offset)); err != nil {
			return errors.Wrapf(err, "writing offset #%d", i)
		}
	}
	return bw.Flush()
}

// ReadMetadata reads Metadata written by Metadata.Write from r.
func ReadMetadata(r io.Reader) (*Metadata, error) {
	br := bufio.NewReader(r)
	var dec protostream.Decoder

	var header structpb.Struct
	if _, err := dec.Read(br, &header); err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	if v := header.Fields["version"].GetNumberValue(); v != metadataVersion {
		return nil, errors.Errorf("unsupported metadata version %v", v)
	}

	comp, err := ParseCompression(header.Fields["compression"].GetStringValue())
	if err != nil {
		return nil, err
	}
	md := Metadata{
		Source:      header.Fields["source"].GetStringValue(),
		Compression: comp,
		NumFrames:   int64(header.Fields["frames"].GetNumberValue()),
		NumBytes:    int64(header.Fields["bytes"].GetNumberValue()),
	}
	if md.NumFrames < 0 {
		return nil, errors.Errorf("invalid frame count %d", md.NumFrames)
	}

	var created timestamp.Timestamp
	if _, err := dec.Read(br, &created); err != nil {
		return nil, errors.Wrap(err, "reading creation time")
	}
	if md.Created, err = ptypes.Timestamp(&created); err != nil {
		return nil, errors.Wrap(err, "decoding creation time")
	}

	var offset duration.Duration
	for i := int64(0); ; i++ {
		_, err := dec.Read(br, &offset)
		switch {
		case err == io.EOF:
			if i != md.NumFrames {
				return nil, errors.Errorf("metadata has %d offset(s) for %d frame(s)", i, md.NumFrames)
			}
			return &md, nil
		case err != nil:
			return nil, errors.Wrapf(err, "reading offset #%d", i)
		}

		d, err := ptypes.Duration(&offset)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding offset #%d", i)
		}
		md.Offsets = append(md.Offsets, d)
	}
}

// LoadMetadata loads the metadata file of the VRL file at path.
//
// If the file has no metadata, the returned error's cause satisfies
// os.IsNotExist.
func LoadMetadata(path string) (*Metadata, error) {
	fd, err := os.Open(MetadataPath(path))
	if err != nil {
		return nil, errors.Wrap(err, "opening metadata")
	}
	defer fd.Close()

	md, err := ReadMetadata(fd)
	if err != nil {
		return nil, errors.Wrapf(err, "loading metadata for %q", path)
	}
	return md, nil
}

func numberValue(v float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: v}}
}

func stringValue(v string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: v}}
}
