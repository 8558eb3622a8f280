// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package vrl implements the VITA Radio Link (VRL) framing layer.
//
// A VRL frame wraps one or more VRT packets in a fixed header and a CRC
// trailer:
//
//	+--------------------------------------+
//	| Frame Alignment Word ("VRLP")         |  4 octets
//	| Frame Count [31:20] | Length [19:0]  |  4 octets, length in 32-bit words
//	| VRT packet                            |
//	| ...                                   |
//	| CRC-32, or "VEND" if no CRC present   |  4 octets
//	+--------------------------------------+
//
// All fields are big-endian.
//
// A Frame either owns its buffer (copy mode), or operates directly on a
// section of a caller-supplied buffer (direct mode). Direct frames never
// reallocate: an operation that would grow a direct frame past the end of its
// buffer fails with ErrBounds. Direct frames must not outlive the buffer that
// they reference.
//
// Frames are parsed lazily. Header fields are read from the buffer on demand,
// and embedded packets are exposed through a forward-only PacketIterator.
//
// Neither Frame nor PacketIterator is safe for concurrent use. A Frame must not
// be mutated while one of its PacketIterators is in use.
package vrl
