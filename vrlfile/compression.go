// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrlfile

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Compression is the compression applied to a VRL file.
type Compression int32

const (
	// CompressionNone stores frames uncompressed.
	CompressionNone Compression = iota
	// CompressionSnappy compresses frames with the Snappy framing format.
	CompressionSnappy
	// CompressionGzip compresses frames with gzip.
	CompressionGzip
)

// compressionNames maps Compression values to their names.
var compressionNames = map[Compression]string{
	CompressionNone:   "NONE",
	CompressionSnappy: "SNAPPY",
	CompressionGzip:   "GZIP",
}

// compressionValues maps Compression names to their values.
var compressionValues = map[string]Compression{
	"NONE":   CompressionNone,
	"SNAPPY": CompressionSnappy,
	"GZIP":   CompressionGzip,
}

func (c Compression) String() string {
	if name, ok := compressionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Compression(%d)", int32(c))
}

// ParseCompression parses a compression name. Names are case-insensitive.
func ParseCompression(v string) (Compression, error) {
	if c, ok := compressionValues[strings.ToUpper(v)]; ok {
		return c, nil
	}
	return 0, errors.Errorf("unknown compression type: %q", v)
}

// UnmarshalText implements encoding.TextUnmarshaler, so a Compression can be
// read from a configuration file.
func (c *Compression) UnmarshalText(v []byte) error {
	cv, err := ParseCompression(string(v))
	if err != nil {
		return err
	}
	*c = cv
	return nil
}

var (
	// gzipMagic begins every gzip stream.
	gzipMagic = []byte{0x1F, 0x8B}
	// snappyMagic is the Snappy framing format's stream identifier chunk.
	snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")

	// detectLength is the number of leading octets needed by
	// DetectCompression.
	detectLength = len(snappyMagic)
)

// DetectCompression identifies the compression of a file from its leading
// octets. Anything that is not recognized as compressed is CompressionNone.
func DetectCompression(prefix []byte) Compression {
	switch {
	case bytes.HasPrefix(prefix, snappyMagic):
		return CompressionSnappy
	case bytes.HasPrefix(prefix, gzipMagic):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// CompressionFlag is a pflag.Value implementation that stores a compression
// value.
type CompressionFlag Compression

var _ pflag.Value = (*CompressionFlag)(nil)

func (cf *CompressionFlag) String() string { return Compression(*cf).String() }

// Set implements pflag.Value.
func (cf *CompressionFlag) Set(v string) error {
	c, err := ParseCompression(v)
	if err != nil {
		return err
	}
	*cf = CompressionFlag(c)
	return nil
}

// Type implements pflag.Value.
func (cf *CompressionFlag) Type() string { return "vrlfile.Compression" }

// Value returns the compression value held by this flag.
func (cf CompressionFlag) Value() Compression { return Compression(cf) }

// CompressionFlagValues returns the list of possible values for a
// CompressionFlag.
func CompressionFlagValues() string {
	values := make([]Compression, 0, len(compressionNames))
	for value := range compressionNames {
		values = append(values, value)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	opts := make([]string, len(values))
	for i, v := range values {
		opts[i] = v.String()
	}
	return strings.Join(opts, ", ")
}
