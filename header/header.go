/*
NAME
  header.go

DESCRIPTION
  header.go implements the line-oriented blackbox header section: field
  name/predictor/encoding/signedness tables and the global tuning constants.

AUTHORS
  Mia Calder <mia@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package header parses the textual blackbox header section into per-frame
// field tables and the log's global tuning constants.
package header

import (
	"math"
	"strconv"
	"strings"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/blackbox/cursor"
)

// MaxFields is the field-count bound of the firmware's field tables. The
// parser does not enforce it: a frame type may declare more fields.
const MaxFields = 128

// maxLineLen is the fixed header-line buffer size; lines exceeding it, or
// lacking a colon, or containing a NUL byte, are silently dropped.
const maxLineLen = 1024

// AbsentIndex is the sentinel stored in MotorZeroIndex/Home0Index/Home1Index
// until the corresponding field name has been observed in the header.
const AbsentIndex = -1

// Predictor is the closed set of prediction rules a field may declare.
type Predictor int

// The predictor enumeration. Values mirror the numeric codes the firmware
// itself assigns to each predictor in its field-definition header lines.
const (
	PredZero         Predictor = 0
	PredPrevious     Predictor = 1
	PredStraightLine Predictor = 2
	PredAverage2     Predictor = 3
	PredMinThrottle  Predictor = 4
	PredMotor0       Predictor = 5
	PredInc          Predictor = 6
	PredHomeCoord    Predictor = 7
	Pred1500         Predictor = 8
	PredVbatRef      Predictor = 9
	// PredHomeCoord1 is never present in the header; the orchestrator
	// rewrites the second of two adjacent PredHomeCoord entries in a GPS
	// frame's predictor array to this value (see the HOME_COORD pair
	// fix-up in the root package).
	PredHomeCoord1 Predictor = 100
)

// Encoding is the closed set of wire encodings a field may declare.
type Encoding int

// The encoding enumeration. Values mirror the firmware's own numeric codes;
// gaps (2, 4, 5) correspond to encodings that exist in the firmware but are
// never emitted by any field this decoder supports, and are therefore
// unreachable here.
const (
	EncSignedVB   Encoding = 0
	EncUnsignedVB Encoding = 1
	EncNeg14Bit   Encoding = 3
	EncTag8_4S16  Encoding = 6
	EncTag2_3S32  Encoding = 7
	EncTag8_8SVB  Encoding = 8
	EncNull       Encoding = 9
)

// KnownPredictor reports whether p is one that the header parser may
// legitimately assign to a field (PredHomeCoord1 is assigned only by the
// orchestrator's fix-up pass, never read from the header itself).
func KnownPredictor(p Predictor) bool {
	switch p {
	case PredZero, PredPrevious, PredStraightLine, PredAverage2, PredMinThrottle,
		PredMotor0, PredInc, PredHomeCoord, Pred1500, PredVbatRef:
		return true
	}
	return false
}

// KnownEncoding reports whether e is a recognised encoding.
func KnownEncoding(e Encoding) bool {
	switch e {
	case EncSignedVB, EncUnsignedVB, EncNeg14Bit, EncTag8_4S16, EncTag2_3S32, EncTag8_8SVB, EncNull:
		return true
	}
	return false
}

// FieldDef holds the per-field declarations for one frame marker.
type FieldDef struct {
	Names     []string
	Predictor []Predictor
	Encoding  []Encoding
	Signed    []bool // populated only for the main ('I') frame definitions.
}

// FirmwareType distinguishes the two gyro-scale conversion conventions.
type FirmwareType int

const (
	FirmwareBaseflight FirmwareType = iota
	FirmwareCleanflight
)

// Tuning holds the global constants a log's header may declare.
type Tuning struct {
	MinThrottle            int32
	MaxThrottle            int32
	RcRate                 int32
	VbatScale              int32
	VbatRef                int32
	VbatMinCellVoltage     int32
	VbatWarningCellVoltage int32
	VbatMaxCellVoltage     int32
	GyroScale              float32
	Acc1G                  int32
	FrameIntervalI         int32
	FrameIntervalPNum      int32
	FrameIntervalPDenom    int32
	DataVersion            int32
	FirmwareType           FirmwareType
}

// defaultTuning returns the tuning constants' documented defaults.
func defaultTuning() Tuning {
	return Tuning{
		FrameIntervalI:      32,
		FrameIntervalPNum:   1,
		FrameIntervalPDenom: 1,
	}
}

// Tables is the sparse, 256-entry field-definition table, indexed by frame
// marker byte. An entry is created for any marker named in a "Field X
// predictor/encoding" line; the decoder reads only 'I', 'P', 'G' and 'H'.
type Tables struct {
	Defs [256]*FieldDef

	// MotorZeroIndex, Home0Index and Home1Index index into the main and
	// GPS-home field tables respectively; AbsentIndex until the relevant
	// field name is observed.
	MotorZeroIndex int
	Home0Index     int
	Home1Index     int

	// IterationIndex and TimeIndex locate the main frame's "iteration" and
	// "time" fields, used by the orchestrator for monotonicity checks and
	// skipped-frame accounting.
	IterationIndex int
	TimeIndex      int
}

func newTables() *Tables {
	return &Tables{
		MotorZeroIndex: AbsentIndex,
		Home0Index:     AbsentIndex,
		Home1Index:     AbsentIndex,
		IterationIndex: AbsentIndex,
		TimeIndex:      AbsentIndex,
	}
}

func (t *Tables) def(marker byte) *FieldDef {
	d := t.Defs[marker]
	if d == nil {
		d = &FieldDef{}
		t.Defs[marker] = d
	}
	return d
}

// Parser accumulates Tables and Tuning across a sequence of header lines.
type Parser struct {
	Tables *Tables
	Tuning Tuning
	log    logging.Logger
}

// NewParser returns a Parser with the documented tuning defaults. log may be
// nil; if set, unrecognised keys are traced at debug level. Lines that
// ReadLine drops are not logged.
func NewParser(log logging.Logger) *Parser {
	return &Parser{
		Tables: newTables(),
		Tuning: defaultTuning(),
		log:    log,
	}
}

// ReadLine reads one header line from c — everything after the leading "H"
// frame marker the caller has already consumed, up to and including the
// terminating '\n' — and splits it into a key and value. ok is false (with
// err nil) for a line that must be silently dropped: it lacks a leading
// space, lacks a colon, contains a NUL byte, or exceeds maxLineLen bytes.
// err is non-nil only if the cursor hits end-of-data before a newline.
func ReadLine(c *cursor.Cursor) (key, value string, ok bool, err error) {
	var buf [maxLineLen]byte
	n := 0
	overflow := false
	for {
		b, readOK := c.Read()
		if !readOK {
			return "", "", false, errEOFInHeader
		}
		if b == '\n' {
			break
		}
		if n < maxLineLen {
			buf[n] = b
			n++
		} else {
			overflow = true
		}
	}
	if overflow {
		return "", "", false, nil
	}
	line := buf[:n]
	for _, b := range line {
		if b == 0 {
			return "", "", false, nil
		}
	}
	if len(line) == 0 || line[0] != ' ' {
		return "", "", false, nil
	}
	rest := string(line[1:])
	i := strings.IndexByte(rest, ':')
	if i < 0 {
		return "", "", false, nil
	}
	return rest[:i], rest[i+1:], true, nil
}

// errEOFInHeader is a sentinel distinguishing "ran out of data mid-line" from
// "line was malformed"; the orchestrator treats it identically to any other
// EOF while in the HEADER state (a truncated header with no data at all).
var errEOFInHeader = errHeaderEOF{}

type errHeaderEOF struct{}

func (errHeaderEOF) Error() string { return "header: unexpected end of data" }

// Apply updates p's Tables/Tuning according to one parsed key/value pair.
// Unknown keys are silently ignored, matching the header's overall
// best-effort parsing policy.
func (p *Parser) Apply(key, value string) {
	switch {
	case key == "Field I name":
		names := splitCSV(value)
		d := p.Tables.def('I')
		d.Names = names
		for i, n := range names {
			if n == "motor[0]" {
				p.Tables.MotorZeroIndex = i
			}
			if n == "iteration" || n == "loopIteration" {
				p.Tables.IterationIndex = i
			}
			if n == "time" {
				p.Tables.TimeIndex = i
			}
		}

	case key == "Field P name":
		// Informational only: main field names and count come from "Field I
		// name"; this is accepted but not otherwise used.

	case key == "Field G name":
		p.Tables.def('G').Names = splitCSV(value)

	case key == "Field H name":
		names := splitCSV(value)
		d := p.Tables.def('H')
		d.Names = names
		for i, n := range names {
			switch n {
			case "GPS_home[0]":
				p.Tables.Home0Index = i
			case "GPS_home[1]":
				p.Tables.Home1Index = i
			}
		}

	case key == "Field I signed":
		p.Tables.def('I').Signed = splitBoolCSV(value)

	case strings.HasPrefix(key, "Field ") && strings.HasSuffix(key, " predictor"):
		marker := fieldMarker(key, " predictor")
		if marker != 0 {
			p.Tables.def(marker).Predictor = splitPredictorCSV(value)
		}

	case strings.HasPrefix(key, "Field ") && strings.HasSuffix(key, " encoding"):
		marker := fieldMarker(key, " encoding")
		if marker != 0 {
			p.Tables.def(marker).Encoding = splitEncodingCSV(value)
		}

	case key == "I interval":
		if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			if v < 1 {
				v = 1
			}
			p.Tuning.FrameIntervalI = int32(v)
		}

	case key == "P interval":
		num, den, ok := splitRatio(value)
		if ok {
			p.Tuning.FrameIntervalPNum = num
			p.Tuning.FrameIntervalPDenom = den
		}

	case key == "Data version":
		if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			p.Tuning.DataVersion = int32(v)
		}

	case key == "Firmware type":
		if strings.EqualFold(strings.TrimSpace(value), "Cleanflight") {
			p.Tuning.FirmwareType = FirmwareCleanflight
		} else {
			p.Tuning.FirmwareType = FirmwareBaseflight
		}

	case key == "minthrottle":
		setInt32(&p.Tuning.MinThrottle, value)
	case key == "maxthrottle":
		setInt32(&p.Tuning.MaxThrottle, value)
	case key == "rcRate":
		setInt32(&p.Tuning.RcRate, value)
	case key == "vbatscale":
		setInt32(&p.Tuning.VbatScale, value)
	case key == "vbatref":
		setInt32(&p.Tuning.VbatRef, value)
	case key == "acc_1G":
		setInt32(&p.Tuning.Acc1G, value)

	case key == "vbatcellvoltage":
		parts := splitCSV(value)
		if len(parts) == 3 {
			setInt32(&p.Tuning.VbatMinCellVoltage, parts[0])
			setInt32(&p.Tuning.VbatWarningCellVoltage, parts[1])
			setInt32(&p.Tuning.VbatMaxCellVoltage, parts[2])
		}

	case key == "gyro.scale":
		if bits, err := strconv.ParseUint(strings.TrimSpace(value), 16, 32); err == nil {
			f := math.Float32frombits(uint32(bits))
			if p.Tuning.FirmwareType == FirmwareCleanflight {
				f *= float32(3.14159265358979 / 180 * 1e-6)
			}
			p.Tuning.GyroScale = f
		}

	default:
		if p.log != nil {
			p.log.Log(int8(logging.Debug), "ignoring unrecognised header key", "key", key)
		}
	}
}

func setInt32(dst *int32, value string) {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		*dst = int32(v)
	}
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func splitBoolCSV(value string) []bool {
	parts := splitCSV(value)
	out := make([]bool, len(parts))
	for i, p := range parts {
		out[i] = p == "1"
	}
	return out
}

func splitPredictorCSV(value string) []Predictor {
	parts := splitCSV(value)
	out := make([]Predictor, len(parts))
	for i, p := range parts {
		if v, err := strconv.Atoi(p); err == nil {
			out[i] = Predictor(v)
		} else {
			out[i] = Predictor(-1) // deliberately unknown; caught at validation.
		}
	}
	return out
}

func splitEncodingCSV(value string) []Encoding {
	parts := splitCSV(value)
	out := make([]Encoding, len(parts))
	for i, p := range parts {
		if v, err := strconv.Atoi(p); err == nil {
			out[i] = Encoding(v)
		} else {
			out[i] = Encoding(-1)
		}
	}
	return out
}

func splitRatio(value string) (num, den int32, ok bool) {
	i := strings.IndexByte(value, '/')
	if i < 0 {
		return 0, 0, false
	}
	n, err1 := strconv.Atoi(strings.TrimSpace(value[:i]))
	d, err2 := strconv.Atoi(strings.TrimSpace(value[i+1:]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return int32(n), int32(d), true
}

// fieldMarker extracts the single literal marker byte from a "Field X
// <suffix>" key, e.g. "Field I predictor" with suffix " predictor" yields
// 'I'. It returns 0 if the key doesn't have exactly one marker character.
func fieldMarker(key, suffix string) byte {
	const prefix = "Field "
	mid := strings.TrimSuffix(strings.TrimPrefix(key, prefix), suffix)
	if len(mid) != 1 {
		return 0
	}
	return mid[0]
}
