// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package fmtutil contains formatting helpers.
package fmtutil

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Hex is a byte slice that renders as a hex-dumped string.
//
// It can be used for easy lazy hex dumping.
type Hex []byte

func (h Hex) String() string { return hex.Dump([]byte(h)) }

// Words is a byte slice that renders as a sequence of big-endian 32-bit words,
// four to a line, each line prefixed with its octet offset. Trailing octets
// that do not fill a word are rendered individually.
//
// Output as:
//
//	0000: 0x56524C50 0x0000000E 0x1000000A 0x0000000A
//	0010: 0x56454E44
//
// It can be used for easy lazy dumping of frames and packets.
type Words []byte

func (w Words) String() string {
	var sb bytes.Buffer
	sb.Grow((len(w)/4)*11 + (len(w)/16+1)*6)

	for off := 0; off+4 <= len(w); off += 4 {
		switch {
		case off == 0:
			fmt.Fprintf(&sb, "%04X:", off)
		case off%16 == 0:
			fmt.Fprintf(&sb, "\n%04X:", off)
		}
		fmt.Fprintf(&sb, " 0x%08X", binary.BigEndian.Uint32(w[off:]))
	}

	if rem := len(w) % 4; rem > 0 {
		if len(w) > 4 {
			sb.WriteByte(' ')
		}
		for i, b := range w[len(w)-rem:] {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "0x%02X", b)
		}
	}
	return sb.String()
}
