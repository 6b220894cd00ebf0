/*
NAME
  group.go

DESCRIPTION
  group.go implements the three bit-packed group encodings used by blackbox
  main/GPS frames: TAG2_3S32, the two TAG8_4S16 dialects, and TAG8_8SVB.

AUTHORS
  Mia Calder <mia@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package group implements the bit-packed, multi-value group encodings of
// the blackbox data section. Each decoder consumes exactly the number of
// bytes its selector describes and produces a fixed-size slice of signed
// 32-bit values.
package group

import (
	"github.com/pkg/errors"

	"github.com/ausocean/blackbox/cursor"
	"github.com/ausocean/blackbox/varint"
)

// ErrTruncated is returned by a group decoder when the cursor ran out of
// data partway through the group; the caller (the frame parser) leaves the
// resulting values undefined and relies on the orchestrator's premature-EOF
// handling to reject the enclosing frame.
var ErrTruncated = errors.New("group: truncated group")

func readByte(c *cursor.Cursor) (byte, error) {
	b, ok := c.Read()
	if !ok {
		return 0, ErrTruncated
	}
	return b, nil
}

// DecodeTag2S32 decodes the TAG2_3S32 group: one lead byte whose top two
// bits select a field width applied to all three values.
func DecodeTag2S32(c *cursor.Cursor) ([3]int32, error) {
	var out [3]int32

	lead, err := readByte(c)
	if err != nil {
		return out, err
	}

	switch lead >> 6 {
	case 0x0: // Three 2-bit signed fields in the low 6 bits of lead.
		out[0] = varint.SignExtend(uint32(lead)&0x3, 2)
		out[1] = varint.SignExtend((uint32(lead)>>2)&0x3, 2)
		out[2] = varint.SignExtend((uint32(lead)>>4)&0x3, 2)

	case 0x1: // Three 4-bit signed fields: value 0 in lead's low nibble, 1/2
		// in the high/low nibbles of the next byte.
		next, err := readByte(c)
		if err != nil {
			return out, err
		}
		out[0] = varint.SignExtend(uint32(lead)&0xf, 4)
		out[1] = varint.SignExtend(uint32(next)>>4, 4)
		out[2] = varint.SignExtend(uint32(next)&0xf, 4)

	case 0x2: // Three 6-bit signed fields in the low 6 bits of three bytes,
		// the first of which is lead.
		out[0] = varint.SignExtend(uint32(lead)&0x3f, 6)
		for i := 1; i < 3; i++ {
			b, err := readByte(c)
			if err != nil {
				return out, err
			}
			out[i] = varint.SignExtend(uint32(b)&0x3f, 6)
		}

	case 0x3: // Per-field width selected by three 2-bit sub-selectors (LSB
		// first) packed into the low 6 bits of lead.
		for i := 0; i < 3; i++ {
			sel := (lead >> uint(2*i)) & 0x3
			var bits uint
			switch sel {
			case 0x0:
				bits = 8
			case 0x1:
				bits = 16
			case 0x2:
				bits = 24
			case 0x3:
				bits = 32
			}
			v, err := readLittleEndian(c, bits/8)
			if err != nil {
				return out, err
			}
			out[i] = varint.SignExtend(v, bits)
		}
	}

	return out, nil
}

// readLittleEndian reads n bytes from c, least-significant byte first, and
// returns them as the low bits of a uint32.
func readLittleEndian(c *cursor.Cursor, n uint) (uint32, error) {
	var v uint32
	for i := uint(0); i < n; i++ {
		b, err := readByte(c)
		if err != nil {
			return 0, err
		}
		v |= uint32(b) << (8 * i)
	}
	return v, nil
}

// tag84Code is one of the four 2-bit selector codes used by TAG8_4S16.
type tag84Code byte

const (
	tag84Zero tag84Code = iota
	tag84Bit4
	tag84Bit8
	tag84Bit16
)

// DecodeTag8_4S16 decodes the TAG8_4S16 group: a selector byte carrying four
// 2-bit codes (LSB first), followed by the value bytes they describe. v2
// selects the dataVersion>=2 sliding-nibble dialect; v2=false selects the
// dataVersion<2 dialect.
func DecodeTag8_4S16(c *cursor.Cursor, v2 bool) ([4]int32, error) {
	if v2 {
		return decodeTag84V2(c)
	}
	return decodeTag84V1(c)
}

func decodeTag84V1(c *cursor.Cursor) ([4]int32, error) {
	var out [4]int32

	sel, err := readByte(c)
	if err != nil {
		return out, err
	}
	codes := [4]tag84Code{
		tag84Code(sel & 0x3),
		tag84Code((sel >> 2) & 0x3),
		tag84Code((sel >> 4) & 0x3),
		tag84Code((sel >> 6) & 0x3),
	}

	for i := 0; i < 4; i++ {
		switch codes[i] {
		case tag84Zero:
			out[i] = 0
		case tag84Bit4:
			b, err := readByte(c)
			if err != nil {
				return out, err
			}
			out[i] = varint.SignExtend(uint32(b)&0xf, 4)
			// The byte just read also supplies the NEXT 4-bit value (if
			// any); that code is then skipped in the selector.
			if i+1 < 4 && codes[i+1] == tag84Bit4 {
				out[i+1] = varint.SignExtend(uint32(b)>>4, 4)
				i++
			}
		case tag84Bit8:
			b, err := readByte(c)
			if err != nil {
				return out, err
			}
			out[i] = varint.SignExtend(uint32(b), 8)
		case tag84Bit16:
			v, err := readLittleEndian(c, 2)
			if err != nil {
				return out, err
			}
			out[i] = varint.SignExtend(v, 16)
		}
	}
	return out, nil
}

func decodeTag84V2(c *cursor.Cursor) ([4]int32, error) {
	var out [4]int32

	sel, err := readByte(c)
	if err != nil {
		return out, err
	}
	codes := [4]tag84Code{
		tag84Code(sel & 0x3),
		tag84Code((sel >> 2) & 0x3),
		tag84Code((sel >> 4) & 0x3),
		tag84Code((sel >> 6) & 0x3),
	}

	var nibbleIndex int // 0 or 1
	var buf byte        // last byte read, holding a spare low nibble when nibbleIndex==1

	for i, code := range codes {
		switch code {
		case tag84Zero:
			// Value 0; sliding-nibble buffer unchanged.

		case tag84Bit4:
			if nibbleIndex == 0 {
				b, err := readByte(c)
				if err != nil {
					return out, err
				}
				out[i] = varint.SignExtend(uint32(b)>>4, 4)
				buf = b
				nibbleIndex = 1
			} else {
				out[i] = varint.SignExtend(uint32(buf)&0xf, 4)
				nibbleIndex = 0
			}

		case tag84Bit8:
			if nibbleIndex == 0 {
				b, err := readByte(c)
				if err != nil {
					return out, err
				}
				out[i] = varint.SignExtend(uint32(b), 8)
			} else {
				nb, err := readByte(c)
				if err != nil {
					return out, err
				}
				v := (uint32(buf)&0xf)<<4 | uint32(nb)>>4
				out[i] = varint.SignExtend(v, 8)
				buf = nb
				// nibbleIndex remains 1.
			}

		case tag84Bit16:
			if nibbleIndex == 0 {
				v, err := readBigEndian(c, 2)
				if err != nil {
					return out, err
				}
				out[i] = varint.SignExtend(v, 16)
			} else {
				b1, err := readByte(c)
				if err != nil {
					return out, err
				}
				b2, err := readByte(c)
				if err != nil {
					return out, err
				}
				v := (uint32(buf)&0xf)<<12 | uint32(b1)<<4 | uint32(b2)>>4
				out[i] = varint.SignExtend(v, 16)
				buf = b2
				// nibbleIndex remains 1.
			}
		}
	}
	return out, nil
}

// readBigEndian reads n bytes from c, most-significant byte first.
func readBigEndian(c *cursor.Cursor, n uint) (uint32, error) {
	var v uint32
	for i := uint(0); i < n; i++ {
		b, err := readByte(c)
		if err != nil {
			return 0, err
		}
		v = v<<8 | uint32(b)
	}
	return v, nil
}

// DecodeTag8_8SVB decodes the TAG8_8SVB group for a group of n values
// (1<=n<=8), as determined by the caller from consecutive field encodings.
// With n==1 a single SIGNED_VB is read directly; otherwise a presence
// bitmap byte (LSB = value 0) precedes up to n SIGNED_VB values, with unset
// bits yielding 0.
func DecodeTag8_8SVB(c *cursor.Cursor, n int) ([]int32, error) {
	out := make([]int32, n)
	if n == 1 {
		out[0] = varint.ReadSigned(c)
		return out, nil
	}

	bitmap, err := readByte(c)
	if err != nil {
		return out, err
	}
	for i := 0; i < n; i++ {
		if bitmap&(1<<uint(i)) != 0 {
			out[i] = varint.ReadSigned(c)
		}
	}
	return out, nil
}
