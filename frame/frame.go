/*
NAME
  frame.go

DESCRIPTION
  frame.go decodes one data-section frame: it walks a frame type's declared
  fields, applying the INC shortcut and the group encodings to recover each
  field's residual, then runs the residual through the predictor engine to
  produce the field's absolute value.

AUTHORS
  Mia Calder <mia@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package frame decodes the fields making up one data-section frame,
// combining the group package's bit-packed reads with the predictor
// package's prediction rules to produce each field's absolute value.
package frame

import (
	"github.com/pkg/errors"

	"github.com/ausocean/blackbox/cursor"
	"github.com/ausocean/blackbox/group"
	"github.com/ausocean/blackbox/header"
	"github.com/ausocean/blackbox/predictor"
	"github.com/ausocean/blackbox/varint"
)

// Marker identifies a data-section frame type by its leading byte.
type Marker byte

const (
	MarkerMain  Marker = 'I'
	MarkerInter Marker = 'P'
	MarkerGPS   Marker = 'G'
	MarkerHome  Marker = 'H'
	MarkerEvent Marker = 'E'
)

// IsKnownMarker reports whether b is one of the five recognised frame
// markers. Any other byte encountered where a marker is expected is a
// desync signal to the orchestrator.
func IsKnownMarker(b byte) bool {
	switch Marker(b) {
	case MarkerMain, MarkerInter, MarkerGPS, MarkerHome, MarkerEvent:
		return true
	}
	return false
}

// maxGroupRun bounds a single TAG8_8SVB run, matching the group's 8-bit
// presence bitmap.
const maxGroupRun = 8

// ErrUnknownEncoding is returned when a field declares an encoding code this
// decoder does not recognise.
var ErrUnknownEncoding = errors.New("frame: unknown field encoding")

// Context carries everything DecodeFrame needs beyond the field
// definitions themselves: the in-progress target buffer (written in place,
// field by field, so that an already-decoded field such as motor[0] is
// visible to a later MOTOR_0 predictor in the same frame), the history
// slices used by PREVIOUS/STRAIGHT_LINE/AVERAGE_2 (nil is treated as an
// all-zero "no history yet" slice), the GPS-home reference used by
// HOME_COORD/HOME_COORD_1 (nil outside of G frames), the tuning constants,
// the skipped-frame count feeding INC, and the raw-mode override.
type Context struct {
	Target    []int32
	Previous  []int32
	Previous2 []int32
	Home      []int32
	Signed    []bool

	Tuning         header.Tuning
	MotorZeroIndex int
	SkippedFrames  int32
	Raw            bool
	DataVersion    int32
}

// ErrMotorZeroIndexAbsent is returned when a field's predictor is MOTOR_0
// but the header never declared a "motor[0]" field.
var ErrMotorZeroIndexAbsent = errors.New("frame: motor[0] predictor reference is unavailable")

// ErrHomeReferenceAbsent is returned when a field's predictor is HOME_COORD
// or HOME_COORD_1 but no GPS-home reference was supplied.
var ErrHomeReferenceAbsent = errors.New("frame: GPS-home predictor reference is unavailable")

// DecodeFrame decodes every field named by def from c into ctx.Target,
// combining each field's group-decoded residual with its predictor's
// output. It returns an error if the cursor runs out of data inside a
// group's lead, selector or fixed-width value bytes, a group overruns the
// field count, an unrecognised encoding is declared, or a MOTOR_0/HOME_COORD
// predictor's reference value is unavailable. A variable-byte value cut off
// by the end of data decodes as 0 with no error; the cursor's latched EOF
// flag records that case.
func DecodeFrame(c *cursor.Cursor, def *header.FieldDef, ctx Context) error {
	n := len(def.Names)

	for i := 0; i < n; {
		if !ctx.Raw && def.Predictor[i] == header.PredInc {
			prev := at(ctx.Previous, i)
			ctx.Target[i] = add32(add32(ctx.SkippedFrames, 1), prev)
			i++
			continue
		}

		residuals, run, err := decodeResidualRun(c, def, i, ctx.DataVersion)
		if err != nil {
			return err
		}
		for j := 0; j < run; j++ {
			idx := i + j
			var predicted int32
			if !ctx.Raw {
				p, err := applyPredictor(def.Predictor[idx], idx, ctx)
				if err != nil {
					return err
				}
				predicted = p
			}
			ctx.Target[idx] = add32(predicted, residuals[j])
		}
		i += run
	}

	return nil
}

// DecodeValues decodes the raw, un-predicted residual for every field named
// by def: equivalent to calling DecodeFrame with raw=true, but without
// requiring a Context. Exposed for callers that only need the wire-level
// residuals (diagnostics, scenario tests).
func DecodeValues(c *cursor.Cursor, def *header.FieldDef, dataVersion int32) ([]int32, error) {
	n := len(def.Names)
	out := make([]int32, n)
	for i := 0; i < n; {
		residuals, run, err := decodeResidualRun(c, def, i, dataVersion)
		if err != nil {
			return out, err
		}
		copy(out[i:i+run], residuals)
		i += run
	}
	return out, nil
}

// decodeResidualRun decodes the group (or single scalar) of residuals that
// starts at field index i, returning the values and how many fields they
// span.
func decodeResidualRun(c *cursor.Cursor, def *header.FieldDef, i int, dataVersion int32) ([]int32, int, error) {
	enc := def.Encoding[i]
	switch enc {
	case header.EncSignedVB:
		return []int32{varint.ReadSigned(c)}, 1, nil

	case header.EncUnsignedVB:
		return []int32{int32(varint.ReadUnsigned(c))}, 1, nil

	case header.EncNeg14Bit:
		raw := varint.ReadUnsigned(c)
		se := varint.SignExtend(raw, 14)
		return []int32{int32(-uint32(se))}, 1, nil

	case header.EncNull:
		return []int32{0}, 1, nil

	case header.EncTag2_3S32:
		if i+3 > len(def.Names) {
			return nil, 0, errors.Wrap(group.ErrTruncated, "frame: TAG2_3S32 group overruns field count")
		}
		vals, err := group.DecodeTag2S32(c)
		if err != nil {
			return nil, 0, err
		}
		return vals[:], 3, nil

	case header.EncTag8_4S16:
		if i+4 > len(def.Names) {
			return nil, 0, errors.Wrap(group.ErrTruncated, "frame: TAG8_4S16 group overruns field count")
		}
		vals, err := group.DecodeTag8_4S16(c, dataVersion >= 2)
		if err != nil {
			return nil, 0, err
		}
		return vals[:], 4, nil

	case header.EncTag8_8SVB:
		run := contiguousRun(def.Encoding, i, header.EncTag8_8SVB)
		vals, err := group.DecodeTag8_8SVB(c, run)
		if err != nil {
			return nil, 0, err
		}
		return vals, run, nil

	default:
		return nil, 0, ErrUnknownEncoding
	}
}

// applyPredictor resolves field idx's predictor into its predicted value. It
// resolves MOTOR_0 and HOME_COORD/HOME_COORD_1 references itself (they
// depend on frame-local state the predictor package has no access to), then
// defers the actual arithmetic to predictor.Apply in every case.
func applyPredictor(p header.Predictor, idx int, ctx Context) (int32, error) {
	pc := predictor.Context{
		Previous:    at(ctx.Previous, idx),
		Previous2:   at(ctx.Previous2, idx),
		Signed:      idx < len(ctx.Signed) && ctx.Signed[idx],
		MinThrottle: ctx.Tuning.MinThrottle,
		VbatRef:     ctx.Tuning.VbatRef,
	}

	switch p {
	case header.PredMotor0:
		if ctx.MotorZeroIndex < 0 || ctx.MotorZeroIndex >= len(ctx.Target) {
			return 0, ErrMotorZeroIndexAbsent
		}
		pc.Motor0 = ctx.Target[ctx.MotorZeroIndex]

	case header.PredHomeCoord, header.PredHomeCoord1:
		if ctx.Home == nil || idx >= len(ctx.Home) {
			return 0, ErrHomeReferenceAbsent
		}
		pc.Home = ctx.Home[idx]
	}

	return predictor.Apply(p, pc), nil
}

// at returns s[i], or 0 if s is nil or too short (the "no history yet"
// case for PREVIOUS/STRAIGHT_LINE/AVERAGE_2, and the "not a GPS frame"
// case for Previous2 on G/H).
func at(s []int32, i int) int32 {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

// add32 performs a+b as unsigned 32-bit wraparound arithmetic, returned as
// a signed result.
func add32(a, b int32) int32 {
	return int32(uint32(a) + uint32(b))
}

// contiguousRun counts how many fields starting at i share encoding enc, up
// to maxGroupRun (the width of the TAG8_8SVB presence bitmap).
func contiguousRun(encodings []header.Encoding, i int, enc header.Encoding) int {
	n := 0
	for i+n < len(encodings) && encodings[i+n] == enc && n < maxGroupRun {
		n++
	}
	return n
}

// ShouldHaveFrame reports whether the P-frame cadence declared by t implies
// a P frame ought to exist at the given main-frame iteration count:
// (iteration mod frameIntervalI + frameIntervalPNum - 1) mod
// frameIntervalPDenom < frameIntervalPNum.
func ShouldHaveFrame(iteration int32, t header.Tuning) bool {
	i := t.FrameIntervalI
	if i <= 0 {
		i = 1
	}
	num := t.FrameIntervalPNum
	den := t.FrameIntervalPDenom
	if den <= 0 {
		den = 1
	}
	return mod32(mod32(iteration, i)+num-1, den) < num
}

// SkippedFrames returns how many logical iterations after previousIteration
// are rate-limited away (ShouldHaveFrame false) before the next one that
// should carry a frame; this feeds both the INC predictor and the
// intentionally-absent-iterations statistic.
func SkippedFrames(previousIteration int32, t header.Tuning) int32 {
	var count int32
	idx := previousIteration + 1
	for !ShouldHaveFrame(idx, t) {
		count++
		idx++
	}
	return count
}

// mod32 is the non-negative modulus of a by b (b>0), matching C's
// truncating % on these always-non-negative iteration counters.
func mod32(a, b int32) int32 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
