// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package dataio contains stream helpers for reading and writing whole
// records.
package dataio

import (
	"io"
)

// ReadFull reads from r until buf is full, or until an error is encountered.
//
// This accommodates the fact that io.Reader is allowed to return less than the
// full buffer size without erroring.
//
// If r is exhausted before any data is read, ReadFull returns io.EOF. If r is
// exhausted after some, but not all, of buf is filled, ReadFull returns
// io.ErrUnexpectedEOF. ReadFull never reports io.EOF for a full read.
func ReadFull(r io.Reader, buf []byte) (int, error) {
	total := 0
	for remaining := buf; len(remaining) > 0; {
		amt, err := r.Read(remaining)
		remaining, total = remaining[amt:], total+amt
		if err != nil {
			switch {
			case err != io.EOF:
				return total, err
			case len(remaining) == 0:
				// Finished read and returned EOF.
				return total, nil
			case total == 0:
				return total, io.EOF
			default:
				return total, io.ErrUnexpectedEOF
			}
		}
	}
	return total, nil
}

// CountingWriter is an io.Writer that counts the bytes written through it.
type CountingWriter struct {
	// W is the underlying Writer.
	W io.Writer

	// Count is the number of bytes that have been successfully written.
	Count int64
}

var _ io.Writer = (*CountingWriter)(nil)

func (cw *CountingWriter) Write(b []byte) (int, error) {
	amt, err := cw.W.Write(b)
	cw.Count += int64(amt)
	return amt, err
}
