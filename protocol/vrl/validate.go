// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrl

import (
	"github.com/pkg/errors"
)

// Validate checks that f holds a well-formed frame. It returns nil if the frame
// is valid, or an error describing the first problem found.
//
// Validate checks the frame alignment word, the frame length, and the CRC. If
// strict is true, Validate also walks every embedded packet to confirm that
// their lengths are consistent with the frame.
//
// If expectedLength is not negative, the frame's length must equal it.
func (f *Frame) Validate(strict bool, expectedLength int) error {
	if a := f.avail(); a < MinFrameLength {
		return errors.Wrapf(ErrInvalidLength, "buffer holds %d bytes, fewer than the minimum frame length %d",
			a, MinFrameLength)
	}
	if !IsVRL(f.buf, f.off) {
		return ErrNotVRL
	}

	n := f.FrameLength()
	if n < MinFrameLength {
		return errors.Wrapf(ErrInvalidLength, "frame length %d is less than minimum %d", n, MinFrameLength)
	}
	if n > f.avail() {
		return errors.Wrapf(ErrInvalidLength, "frame length %d exceeds the %d bytes available", n, f.avail())
	}
	if expectedLength >= 0 && n != expectedLength {
		return errors.Wrapf(ErrInvalidLength, "frame length %d does not match expected length %d", n, expectedLength)
	}

	if !f.IsCRCValid() {
		return errors.Wrapf(ErrCRC, "trailer 0x%08X, computed 0x%08X", f.CRC(), f.ComputeCRC())
	}

	if strict {
		for it := f.Iterator(); it.HasNext(); {
			if err := it.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsValid returns true if Validate returns nil.
func (f *Frame) IsValid(strict bool, expectedLength int) bool {
	return f.Validate(strict, expectedLength) == nil
}
