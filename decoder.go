/*
NAME
  decoder.go

DESCRIPTION
  decoder.go implements the top-level blackbox decoder: the sub-log scan,
  the HEADER/DATA state machine, the one-frame-lookahead corruption
  detector, and the per-type completion rules that drive history rotation
  and callback dispatch.

AUTHORS
  Mia Calder <mia@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package blackbox decodes flight-controller blackbox logs: a concatenation
// of one or more sub-logs, each an ASCII header section followed by a
// binary data section of I/P/G/H/E frames. See cursor, varint, group,
// header, predictor, frame, sublog and stats for the pieces this package
// orchestrates.
package blackbox

import (
	"github.com/ausocean/utils/logging"

	"github.com/ausocean/blackbox/cursor"
	"github.com/ausocean/blackbox/frame"
	"github.com/ausocean/blackbox/header"
	"github.com/ausocean/blackbox/stats"
	"github.com/ausocean/blackbox/sublog"
)

// MaxFrameLength is the hard cap on a single frame's on-wire byte length;
// anything longer is rejected as corrupt regardless of its contents.
const MaxFrameLength = 256

// Callbacks are the optional hooks a Parse call invokes synchronously, in
// file order, from the calling goroutine.
type Callbacks struct {
	// OnMetadataReady fires exactly once, after headers parse and before
	// the first data frame.
	OnMetadataReady func(d *Decoder)

	// OnFrameReady fires once per frame attempt, valid or corrupt. For a
	// corrupt frame, values is nil and fieldCount is 0. fileOffset is the
	// frame's byte offset from the start of the sub-log being parsed, not
	// from the start of the whole capture.
	OnFrameReady func(d *Decoder, valid bool, values []int32, frameType byte, fieldCount int, fileOffset int, frameSize int)

	// OnEvent fires once per 'E' frame.
	OnEvent func(d *Decoder, ev Event)
}

// Decoder parses one blackbox capture, which may concatenate several
// sub-logs. It is not safe for concurrent use, and callbacks must not
// re-enter Parse on the same instance (§5 of the design this follows).
type Decoder struct {
	data []byte
	logs *sublog.Index
	log  logging.Logger

	// Per-parse state, reset at the start of every Parse call.
	hdr *header.Parser
	cur *cursor.Cursor
	raw bool

	main      mainRing
	homeSlot0 []int32
	homeSlot1 []int32

	mainValid    bool
	gpsHomeValid bool
	prematureEOF bool

	retainSamples bool
	lastEvent     Event

	// Stats accumulates decode statistics for the sub-log currently (or
	// most recently) parsed.
	Stats *stats.Collector
}

// New returns a Decoder over data, which may concatenate several sub-logs;
// log may be nil. It fails only if data is empty.
func New(data []byte, log logging.Logger) (*Decoder, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	return &Decoder{data: data, logs: sublog.Build(data), log: log}, nil
}

// LogCount returns the number of sub-logs found in the capture.
func (d *Decoder) LogCount() int {
	return d.logs.Count()
}

// RetainFieldSamples controls whether subsequent Parse calls keep every
// decoded sample for stats.FieldStats.Summary's mean/stddev, rather than only
// the live min/max/count §4.10 requires unconditionally. Off by default.
func (d *Decoder) RetainFieldSamples(enable bool) {
	d.retainSamples = enable
}

// Tuning returns the tuning constants parsed from the current sub-log's
// header. Valid only after a Parse call has fired OnMetadataReady or
// returned.
func (d *Decoder) Tuning() header.Tuning {
	return d.hdr.Tuning
}

// VbatMillivolts converts a raw vbat ADC reading using the current
// sub-log's declared scale.
func (d *Decoder) VbatMillivolts(vbat int32) int32 {
	return vbatToMillivolts(vbat, d.hdr.Tuning.VbatScale)
}

// EstimateNumCells estimates the pack's cell count from the current
// sub-log's vbatref and vbatmaxcellvoltage.
func (d *Decoder) EstimateNumCells() int {
	return estimateNumCells(d.hdr.Tuning.VbatRef, d.hdr.Tuning.VbatScale, d.hdr.Tuning.VbatMaxCellVoltage)
}

// LastEvent returns the most recently decoded event record.
func (d *Decoder) LastEvent() Event {
	return d.lastEvent
}

// Parse decodes sub-log logIndex, invoking cb's hooks as frames are
// encountered. raw disables predictor application: every field's value is
// exactly what the stream encodes (testable property 7). It returns false
// if logIndex is out of range, the sub-log is empty, or the header is
// structurally inconsistent with the data that follows (a fatal error, see
// errors.go); in the latter case, whatever OnFrameReady/OnEvent calls
// already fired stand.
func (d *Decoder) Parse(logIndex int, cb Callbacks, raw bool) bool {
	if logIndex < 0 || logIndex >= d.logs.Count() {
		return false
	}
	start, end := d.logs.Bounds(logIndex)
	buf := d.data[start:end]
	if len(buf) == 0 {
		return false
	}

	d.hdr = header.NewParser(d.log)
	d.cur = cursor.New(buf)
	d.raw = raw
	d.main = mainRing{}
	d.homeSlot0, d.homeSlot1 = nil, nil
	d.mainValid = false
	d.gpsHomeValid = false
	d.prematureEOF = false
	d.lastEvent = Event{}
	d.Stats = stats.NewCollector(0)

	if !d.runHeader(cb) {
		return false
	}
	d.runData(cb)
	return true
}

// runHeader drives the HEADER state (§4.7) until a data frame marker is
// seen, returning false if EOF is reached with no data at all, or if the
// header is structurally invalid for the data section that follows.
func (d *Decoder) runHeader(cb Callbacks) bool {
	for {
		b, ok := d.cur.Read()
		if !ok {
			return false
		}
		if b == 'H' {
			d.readHeaderLine()
			continue
		}
		if frame.IsKnownMarker(b) {
			d.cur.Unread()
			if err := d.prepareForData(); err != nil {
				if d.log != nil {
					d.log.Log(logging.Error, err.Error())
				}
				return false
			}
			if cb.OnMetadataReady != nil {
				cb.OnMetadataReady(d)
			}
			return true
		}
		// Any other byte is garbage preceding the first frame; ignored.
	}
}

func (d *Decoder) readHeaderLine() {
	key, value, ok, err := header.ReadLine(d.cur)
	if err != nil || !ok {
		return
	}
	d.hdr.Apply(key, value)
}

// prepareForData validates the parsed header against the fatal-error
// taxonomy, applies the GPS predictor pair fix-up, and allocates the
// per-parse field-history state.
func (d *Decoder) prepareForData() error {
	mainDef := d.hdr.Tables.Defs['I']
	if mainDef == nil || len(mainDef.Names) == 0 {
		return ErrMissingMainFields
	}

	fixupGPSPredictorPairs(d.hdr.Tables.Defs['G'])

	for _, marker := range [...]byte{'I', 'P', 'G', 'H'} {
		def := d.hdr.Tables.Defs[marker]
		if def == nil {
			continue
		}
		for _, p := range def.Predictor {
			if !header.KnownPredictor(p) && p != header.PredHomeCoord1 {
				return ErrUnknownPredictor
			}
		}
		for _, e := range def.Encoding {
			if !header.KnownEncoding(e) {
				return ErrUnknownEncoding
			}
		}
	}

	if (usesMotor0(mainDef) || usesMotor0(d.hdr.Tables.Defs['P'])) && d.hdr.Tables.MotorZeroIndex == header.AbsentIndex {
		return ErrMissingMotorZeroIndex
	}
	if gpsDef := d.hdr.Tables.Defs['G']; usesHomeCoord(gpsDef) {
		if d.hdr.Tables.Home0Index == header.AbsentIndex || d.hdr.Tables.Home1Index == header.AbsentIndex {
			return ErrMissingHomeIndex
		}
	}

	d.main = newMainRing(len(mainDef.Names))
	d.Stats = stats.NewCollector(len(mainDef.Names))
	d.Stats.Retain(d.retainSamples)
	for i, signed := range mainDef.Signed {
		if i < len(d.Stats.Fields) {
			d.Stats.Fields[i].Signed = signed
		}
	}

	if homeDef := d.hdr.Tables.Defs['H']; homeDef != nil {
		d.homeSlot0 = make([]int32, len(homeDef.Names))
		d.homeSlot1 = make([]int32, len(homeDef.Names))
	}

	return nil
}

func usesMotor0(def *header.FieldDef) bool {
	if def == nil {
		return false
	}
	for _, p := range def.Predictor {
		if p == header.PredMotor0 {
			return true
		}
	}
	return false
}

func usesHomeCoord(def *header.FieldDef) bool {
	if def == nil {
		return false
	}
	for _, p := range def.Predictor {
		if p == header.PredHomeCoord || p == header.PredHomeCoord1 {
			return true
		}
	}
	return false
}

// fixupGPSPredictorPairs walks def's predictor array and changes the
// second of any two adjacent HOME_COORD predictors to HOME_COORD_1, so the
// predictor engine can tell latitude from longitude (§4.7).
func fixupGPSPredictorPairs(def *header.FieldDef) {
	if def == nil {
		return
	}
	for i := 0; i+1 < len(def.Predictor); i++ {
		if def.Predictor[i] == header.PredHomeCoord && def.Predictor[i+1] == header.PredHomeCoord {
			def.Predictor[i+1] = header.PredHomeCoord1
		}
	}
}

// pendingFrame is the frame awaiting the next loop iteration's lookahead
// byte before it can be judged complete (§4.7 DATA state).
type pendingFrame struct {
	frameType     byte
	start         int
	values        []int32 // I/P: the ring's current slot; H: the home slot 0; G: a fresh slice; nil for E or after a decode error.
	event         Event
	hasEvent      bool
	decodeErr     error
	skippedFrames int32 // set for I/P frames; see computeSkippedFrames.
}

// runData drives the one-frame-lookahead DATA state machine (§4.7).
func (d *Decoder) runData(cb Callbacks) {
	var pending *pendingFrame

	for {
		offsetBeforeRead := d.cur.Offset()
		b, ok := d.cur.Read()

		if pending != nil {
			length := offsetBeforeRead - pending.start
			complete := length <= MaxFrameLength && !d.prematureEOF && (!ok || frame.IsKnownMarker(b))
			if complete {
				d.completeFrame(cb, pending, length)
			} else {
				d.corruptFrame(cb, pending, length)
				d.cur.Seek(pending.start + 1)
				pending = nil
				d.prematureEOF = false
				continue
			}
			pending = nil
			d.prematureEOF = false
		}

		if !ok {
			return
		}

		if !frame.IsKnownMarker(b) {
			d.mainValid = false
			continue
		}

		pf := &pendingFrame{frameType: b, start: offsetBeforeRead}
		def := d.effectiveDef(b)
		if def == nil && b != 'E' {
			// §9 open question: a frame type with no header definition is
			// treated as corrupt rather than decoded with zero fields.
			pf.decodeErr = errMissingFrameDef
		} else {
			d.parseFrame(pf, def)
		}
		if d.cur.EOF() {
			d.prematureEOF = true
		}
		pending = pf
	}
}

// parseFrame decodes one frame's payload into pf, using def for I/P/G/H or
// the fixed event layout for E.
func (d *Decoder) parseFrame(pf *pendingFrame, def *header.FieldDef) {
	switch pf.frameType {
	case 'E':
		ev, err := decodeEvent(d.cur)
		pf.event, pf.hasEvent, pf.decodeErr = ev, true, err
	case 'I', 'P':
		pf.skippedFrames = d.computeSkippedFrames()
		target := d.main.current()
		ctx := frame.Context{
			Target:         target,
			Previous:       d.main.previous(),
			Previous2:      d.main.previous2(),
			Signed:         def.Signed,
			Tuning:         d.hdr.Tuning,
			MotorZeroIndex: d.hdr.Tables.MotorZeroIndex,
			SkippedFrames:  pf.skippedFrames,
			Raw:            d.raw,
			DataVersion:    d.hdr.Tuning.DataVersion,
		}
		pf.decodeErr = frame.DecodeFrame(d.cur, def, ctx)
		if pf.decodeErr == nil {
			pf.values = target
		}
	case 'G':
		target := make([]int32, len(def.Names))
		ctx := frame.Context{
			Target:      target,
			Home:        d.homeSlot1,
			Tuning:      d.hdr.Tuning,
			Raw:         d.raw,
			DataVersion: d.hdr.Tuning.DataVersion,
		}
		pf.decodeErr = frame.DecodeFrame(d.cur, def, ctx)
		if pf.decodeErr == nil {
			pf.values = target
		}
	case 'H':
		ctx := frame.Context{
			Target:      d.homeSlot0,
			Tuning:      d.hdr.Tuning,
			Raw:         d.raw,
			DataVersion: d.hdr.Tuning.DataVersion,
		}
		pf.decodeErr = frame.DecodeFrame(d.cur, def, ctx)
		if pf.decodeErr == nil {
			pf.values = d.homeSlot0
		}
	}
}

// computeSkippedFrames implements the main-frame skipped-iteration count
// from §4.6, using the previous main frame's recorded iteration value.
func (d *Decoder) computeSkippedFrames() int32 {
	idx := int32(0)
	ii := d.hdr.Tables.IterationIndex
	if d.main.haveHistory && ii != header.AbsentIndex && ii < len(d.main.previous()) {
		idx = d.main.previous()[ii] + 1
	}
	return frame.SkippedFrames(idx-1, d.hdr.Tuning)
}

// effectiveDef returns the field definition to use for decoding marker,
// folding the "Field P predictor/encoding" declarations onto the main
// frame's names (the header only ever declares names once, under "Field I
// name"). It returns nil if no usable definition exists for marker, which
// the caller treats as a lookup failure (§4.7, §9 open question).
func (d *Decoder) effectiveDef(marker byte) *header.FieldDef {
	switch marker {
	case 'I', 'G', 'H':
		def := d.hdr.Tables.Defs[marker]
		if def == nil || len(def.Predictor) != len(def.Names) || len(def.Encoding) != len(def.Names) {
			return nil
		}
		return def
	case 'P':
		main := d.hdr.Tables.Defs['I']
		p := d.hdr.Tables.Defs['P']
		if main == nil || p == nil || len(p.Predictor) != len(main.Names) || len(p.Encoding) != len(main.Names) {
			return nil
		}
		return &header.FieldDef{Names: main.Names, Predictor: p.Predictor, Encoding: p.Encoding, Signed: main.Signed}
	default:
		return nil
	}
}

// completeFrame applies §4.8's per-type completion rules to a frame that
// passed the lookahead validity check, then fires OnFrameReady (and
// OnEvent for 'E').
func (d *Decoder) completeFrame(cb Callbacks, pf *pendingFrame, length int) {
	ft := d.Stats.FrameType(pf.frameType)

	valid := pf.decodeErr == nil
	var values []int32

	switch pf.frameType {
	case 'I':
		valid = valid && d.acceptMain()
		if valid {
			values = copyValues(pf.values)
			d.recordFieldStats(values)
			d.main.commitIntra()
		}
	case 'P':
		valid = valid && d.mainValid
		if valid {
			values = copyValues(pf.values)
			d.recordFieldStats(values)
			d.Stats.IntentionallyAbsentIterations += int64(pf.skippedFrames)
			d.main.commitInter()
		} else {
			ft.Desync++
		}
	case 'H':
		if valid {
			copy(d.homeSlot1, d.homeSlot0)
			d.gpsHomeValid = true
			values = copyValues(d.homeSlot0)
		}
	case 'G':
		// §7: a GPS frame decoded before any H frame is still emitted with
		// its field values, but marked invalid for lack of a home reference.
		if valid {
			values = copyValues(pf.values)
		}
		valid = valid && d.gpsHomeValid
	case 'E':
		if valid && pf.hasEvent {
			d.lastEvent = pf.event
			if cb.OnEvent != nil {
				cb.OnEvent(d, pf.event)
			}
		} else {
			valid = false
		}
	}

	if valid {
		ft.RecordValid(length)
	} else {
		ft.RecordCorrupt(length)
		d.mainValid = d.mainValid && pf.frameType != 'I' && pf.frameType != 'P'
	}

	if cb.OnFrameReady != nil {
		fieldCount := len(values)
		cb.OnFrameReady(d, valid, values, pf.frameType, fieldCount, pf.start, length)
	}
}

// acceptMain implements the 'I' frame acceptance rule: iteration and time
// must be non-decreasing relative to the maxima recorded in d.Stats for
// accepted main frames (or raw mode is active), matching testable property 4.
func (d *Decoder) acceptMain() bool {
	if d.raw {
		d.mainValid = true
		return true
	}
	ii, ti := d.hdr.Tables.IterationIndex, d.hdr.Tables.TimeIndex
	if !d.main.haveHistory || ii == header.AbsentIndex || ti == header.AbsentIndex {
		d.mainValid = true
		return true
	}
	cur := d.main.current()
	if cur[ii] < d.Stats.Fields[ii].Max || cur[ti] < d.Stats.Fields[ti].Max {
		return false
	}
	d.mainValid = true
	return true
}

// recordFieldStats folds an accepted main frame's values into the running
// per-field min/max statistics (§4.10, testable property 4).
func (d *Decoder) recordFieldStats(values []int32) {
	for i, v := range values {
		if i < len(d.Stats.Fields) {
			d.Stats.Fields[i].Observe(v)
		}
	}
}

// corruptFrame fires the corrupt-frame callback and updates statistics for
// a frame that failed the lookahead validity check (§4.7 step 4, §7).
func (d *Decoder) corruptFrame(cb Callbacks, pf *pendingFrame, length int) {
	d.mainValid = false
	ft := d.Stats.FrameType(pf.frameType)
	ft.RecordCorrupt(length)
	if cb.OnFrameReady != nil {
		cb.OnFrameReady(d, false, nil, pf.frameType, 0, pf.start, length)
	}
}

func copyValues(src []int32) []int32 {
	out := make([]int32, len(src))
	copy(out, src)
	return out
}
