/*
NAME
  predictor.go

DESCRIPTION
  predictor.go implements the blackbox prediction rules: the arithmetic that
  turns a frame's decoded residual into an absolute field value.

AUTHORS
  Mia Calder <mia@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package predictor applies the blackbox predictor rules that recover a
// field's absolute value from its decoded residual. All arithmetic is
// carried out on unsigned 32-bit operands with natural wraparound and is
// only cast to a signed result at the very end, matching the firmware's own
// integer behaviour; callers must not "fix" overflow before calling Apply.
package predictor

import "github.com/ausocean/blackbox/header"

// Context carries the history and tuning values a predictor may consult.
// Fields irrelevant to a given predictor are simply ignored.
type Context struct {
	// Previous and Previous2 are this field's two most recently decoded
	// absolute values (the current frame's history slots 1 and 2).
	Previous  int32
	Previous2 int32

	// Signed reports whether this field is declared signed in the main
	// frame's "Field I signed" header line; it changes how AVERAGE_2 divides.
	Signed bool

	MinThrottle int32
	VbatRef     int32
	Motor0      int32
	Home        int32
}

// Apply returns the predicted value for the given predictor and context; the
// caller adds the frame's decoded residual to the result. MOTOR_0 and
// HOME_COORD/HOME_COORD_1 rely on the caller (the frame package) having
// filled ctx.Motor0/ctx.Home for the field being decoded; Apply itself does
// no validation of them.
func Apply(p header.Predictor, ctx Context) int32 {
	switch p {
	case header.PredZero:
		return 0

	case header.PredPrevious:
		return ctx.Previous

	case header.PredStraightLine:
		return straightLine(ctx.Previous, ctx.Previous2)

	case header.PredAverage2:
		return average2(ctx.Previous, ctx.Previous2, ctx.Signed)

	case header.PredMinThrottle:
		return ctx.MinThrottle

	case header.PredMotor0:
		return ctx.Motor0

	case header.PredInc:
		return add32(ctx.Previous, 1)

	case header.PredHomeCoord, header.PredHomeCoord1:
		return ctx.Home

	case header.Pred1500:
		return 1500

	case header.PredVbatRef:
		return ctx.VbatRef

	default:
		return 0
	}
}

// add32 performs a+b as unsigned 32-bit wraparound arithmetic, returned as a
// signed result, matching the firmware's use of plain C int addition.
func add32(a, b int32) int32 {
	return int32(uint32(a) + uint32(b))
}

// straightLine extrapolates one step past previous assuming the same delta
// as between previous2 and previous: 2*previous - previous2.
func straightLine(previous, previous2 int32) int32 {
	doubled := uint32(previous) + uint32(previous)
	return int32(doubled - uint32(previous2))
}

// average2 returns the arithmetic mean of previous and previous2. For
// unsigned fields the sum is shifted logically; for signed fields the
// division must round consistently with the firmware's signed right shift,
// which truncates toward negative infinity for a negative sum rather than
// toward zero.
func average2(previous, previous2 int32, signed bool) int32 {
	if signed {
		sum := int32(uint32(previous) + uint32(previous2))
		return sum >> 1
	}
	sum := uint32(previous) + uint32(previous2)
	return int32(sum >> 1)
}
