// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package vrlfile stores streams of VRL frames in files.
//
// A VRL file is the concatenation of its frames, exactly as they appear on the
// wire, optionally compressed as a whole:
//
//	- NONE stores frames uncompressed. The file is a plain VRL stream, and may
//	  also hold bare VRT packets, which are wrapped in frames when read.
//	- SNAPPY uses the Snappy framing format for CPU-friendly reads and writes
//	  with a decent compression ratio.
//	- GZIP is more CPU intensive but also more efficient than SNAPPY.
//
// The compression of a file is detected from its leading octets when it is
// read, so no separate metadata is stored.
//
// Files are built in a staging directory and atomically moved into place when
// they are closed.
package vrlfile
