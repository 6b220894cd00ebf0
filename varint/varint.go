/*
NAME
  varint.go

DESCRIPTION
  varint.go implements the variable-byte integer primitives used throughout
  the blackbox binary data section: unsigned variable-byte decoding, the
  zig-zag signed variant, and arbitrary-width sign extension.

AUTHORS
  Mia Calder <mia@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package varint implements the little-endian base-128 variable-byte integer
// primitives used by the blackbox binary data section, and zig-zag/sign
// extension helpers used by the group decoders and predictor engine.
package varint

import "github.com/ausocean/blackbox/cursor"

// maxBytes is the most continuation bytes a well-formed variable-byte
// integer may use to represent a 32-bit value.
const maxBytes = 5

// ReadUnsigned reads a little-endian base-128 variable-byte integer from c.
// Each byte contributes its low 7 bits; the top bit is a continuation flag.
// If a sixth continuation byte would be required the encoding is malformed
// and ReadUnsigned returns 0 without consuming further bytes; the caller
// relies on frame-length/consistency checks to subsequently reject the
// enclosing frame as corrupt. Hitting end-of-data mid-primitive also yields
// 0; the cursor's latched EOF flag is what the orchestrator checks to tell
// a truncated frame from a short but complete one.
func ReadUnsigned(c *cursor.Cursor) uint32 {
	var result uint32
	for i := 0; i < maxBytes; i++ {
		b, ok := c.Read()
		if !ok {
			return 0
		}
		result |= uint32(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			return result
		}
	}
	// A fifth byte with its continuation bit still set means a sixth byte
	// would be required: malformed.
	return 0
}

// ReadSigned reads an unsigned variable-byte integer and zig-zag decodes it.
func ReadSigned(c *cursor.Cursor) int32 {
	return ZigZagDecode(ReadUnsigned(c))
}

// ZigZagDecode maps a zig-zag encoded unsigned value back to its signed
// value: (u>>1) XOR -(u&1), evaluated in 32-bit two's-complement.
func ZigZagDecode(u uint32) int32 {
	return int32(u>>1) ^ -int32(u&1)
}

// ZigZagEncode is the inverse of ZigZagDecode, provided for round-trip
// testing and for any caller wishing to re-encode a value.
func ZigZagEncode(v int32) uint32 {
	return uint32((v << 1) ^ (v >> 31))
}

// SignExtend interprets the low `bits` bits of value as a signed integer of
// that width and sign-extends it to a full int32, using the highest bit of
// the width as the sign bit. bits must be in [1,32].
func SignExtend(value uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(value<<shift) >> shift
}
