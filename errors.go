/*
NAME
  errors.go

DESCRIPTION
  errors.go defines the fatal-error taxonomy that can abort a Parse call at
  the HEADER→DATA transition.

AUTHORS
  Mia Calder <mia@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package blackbox

import "github.com/pkg/errors"

// Fatal errors abort the current Parse call entirely; they reflect a log
// whose header is structurally inconsistent with its data, not ordinary
// frame-level corruption (which is recoverable per-frame, see §4.7/§4.8 of
// the design and the corrupt-frame callback).
var (
	// ErrEmptyInput is returned by New when given a zero-length buffer.
	ErrEmptyInput = errors.New("blackbox: empty input")

	// ErrMissingMainFields is returned when the data section begins before
	// any "Field I name" header line has been seen.
	ErrMissingMainFields = errors.New("blackbox: missing main field definitions")

	// ErrMissingMotorZeroIndex is returned when a field's predictor is
	// MOTOR_0 but no "motor[0]" field was ever named.
	ErrMissingMotorZeroIndex = errors.New("blackbox: MOTOR_0 predictor used without a motor[0] field")

	// ErrMissingHomeIndex is returned when a GPS field's predictor is
	// HOME_COORD/HOME_COORD_1 but the header never named both GPS_home
	// coordinate fields.
	ErrMissingHomeIndex = errors.New("blackbox: HOME_COORD predictor used without GPS_home fields")

	// ErrUnknownPredictor is returned when a field-definition table names a
	// predictor code this decoder does not recognise.
	ErrUnknownPredictor = errors.New("blackbox: unknown predictor code in field definition")

	// ErrUnknownEncoding is returned when a field-definition table names an
	// encoding code this decoder does not recognise.
	ErrUnknownEncoding = errors.New("blackbox: unknown encoding code in field definition")
)

// errMissingFrameDef marks a frame whose type has no usable header
// definition as corrupt (§9 open question), rather than attempting to
// decode it with zero fields.
var errMissingFrameDef = errors.New("blackbox: no field definition for frame type")
