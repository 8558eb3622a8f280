// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package vrt offers a thin view of VITA-49 (VRT) packets.
//
// VRT packets are self-describing: the first 32-bit word of every packet
// carries its type, the presence of its optional prologue fields, and its
// total length in 32-bit words. This package exposes exactly enough of that
// structure for packets to be carried, validated, and classified by the
// framing layer in the vrl package. Payload interpretation is left to the
// user.
package vrt
