/*
NAME
  decoder_test.go

DESCRIPTION
  decoder_test.go exercises the orchestrator end to end: the scenarios are
  taken from the decoder's documented worked examples, expressed as literal
  byte sequences.

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

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/blackbox/header"
)

const logMarker = "H Product:Blackbox flight data recorder by Nicholas Sherlock\n"

// hline formats one header key/value pair as the on-wire "H <key>:<value>\n"
// line the orchestrator expects.
func hline(kv string) string {
	return "H " + kv + "\n"
}

// buildLog assembles a sub-log: the marker line, the given header lines (as
// "key:value" pairs, without the "H " wrapper), then raw data bytes.
func buildLog(headers []string, data []byte) []byte {
	var b strings.Builder
	b.WriteString(logMarker)
	for _, h := range headers {
		b.WriteString(hline(h))
	}
	out := []byte(b.String())
	return append(out, data...)
}

// minimalMainHeaders declares a single main field so that prepareForData
// accepts the header; callers needing more fields pass their own headers.
var minimalMainHeaders = []string{
	"Field I name:dummy",
	"Field I signed:0",
	"Field I predictor:0",
	"Field I encoding:1",
}

type recorded struct {
	valid      bool
	values     []int32
	frameType  byte
	fieldCount int
	offset     int
	size       int
}

func TestParseSyncBeep(t *testing.T) {
	data := []byte{'E', 0x00, 0x04}
	buf := buildLog(minimalMainHeaders, data)

	d, err := New(buf, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var events []Event
	ok := d.Parse(0, Callbacks{
		OnEvent: func(_ *Decoder, ev Event) { events = append(events, ev) },
	}, false)
	if !ok {
		t.Fatal("Parse returned false")
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != EventSyncBeep || events[0].Time != 4 {
		t.Errorf("got %+v, want {Type:SyncBeep Time:4}", events[0])
	}
}

func TestParseSingleIFrame(t *testing.T) {
	headers := []string{
		"Field I name:iteration,time",
		"Field I signed:0,0",
		"Field I predictor:0,0",
		"Field I encoding:1,1",
	}
	data := []byte{'I', 0x00, 0xE8, 0x07} // iteration=0, time=1000
	buf := buildLog(headers, data)

	d, err := New(buf, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var frames []recorded
	ok := d.Parse(0, Callbacks{
		OnFrameReady: func(_ *Decoder, valid bool, values []int32, ft byte, fc, off, sz int) {
			frames = append(frames, recorded{valid, values, ft, fc, off, sz})
		},
	}, false)
	if !ok {
		t.Fatal("Parse returned false")
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	f := frames[0]
	if !f.valid || f.frameType != 'I' {
		t.Fatalf("got %+v, want a valid I frame", f)
	}
	if diff := cmp.Diff([]int32{0, 1000}, f.values); diff != "" {
		t.Errorf("field values mismatch (-want +got):\n%s", diff)
	}
	if d.Stats.FrameType('I').Valid != 1 {
		t.Errorf("got validCount %d, want 1", d.Stats.FrameType('I').Valid)
	}
}

func TestParseIntraInterPrevious(t *testing.T) {
	headers := []string{
		"Field I name:iteration,time",
		"Field I signed:0,0",
		"Field I predictor:0,0",
		"Field I encoding:1,1",
		"Field P predictor:1,1",
		"Field P encoding:1,1",
	}
	data := []byte{
		'I', 0x00, 0x0A, // iteration=0, time=10
		'P', 0x02, 0x04, // delta iteration+=2, time+=4 via PREVIOUS
	}
	buf := buildLog(headers, data)

	d, err := New(buf, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var frames []recorded
	ok := d.Parse(0, Callbacks{
		OnFrameReady: func(_ *Decoder, valid bool, values []int32, ft byte, fc, off, sz int) {
			frames = append(frames, recorded{valid, values, ft, fc, off, sz})
		},
	}, false)
	if !ok {
		t.Fatal("Parse returned false")
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if !frames[0].valid || !frames[1].valid {
		t.Fatalf("both frames should be valid: %+v", frames)
	}
	if diff := cmp.Diff([]int32{0, 10}, frames[0].values); diff != "" {
		t.Errorf("frame 1 mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int32{2, 14}, frames[1].values); diff != "" {
		t.Errorf("frame 2 mismatch (-want +got):\n%s", diff)
	}
}

func TestParseOversizedFrameIsCorrupt(t *testing.T) {
	const nFields = 300 // > MaxFrameLength bytes of single-byte fields.
	names := make([]string, nFields)
	preds := make([]string, nFields)
	encs := make([]string, nFields)
	signed := make([]string, nFields)
	for i := range names {
		names[i] = "f"
		preds[i] = "0"
		encs[i] = "1"
		signed[i] = "0"
	}
	headers := []string{
		"Field I name:" + strings.Join(names, ","),
		"Field I signed:" + strings.Join(signed, ","),
		"Field I predictor:" + strings.Join(preds, ","),
		"Field I encoding:" + strings.Join(encs, ","),
	}
	data := make([]byte, 1+nFields) // marker + one zero byte per field.
	data[0] = 'I'
	buf := buildLog(headers, data)

	d, err := New(buf, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var frames []recorded
	ok := d.Parse(0, Callbacks{
		OnFrameReady: func(_ *Decoder, valid bool, values []int32, ft byte, fc, off, sz int) {
			frames = append(frames, recorded{valid, values, ft, fc, off, sz})
		},
	}, false)
	if !ok {
		t.Fatal("Parse returned false")
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frame callbacks, want 1", len(frames))
	}
	if frames[0].valid {
		t.Error("oversized frame reported valid")
	}
	if frames[0].values != nil {
		t.Errorf("corrupt frame carried values: %v", frames[0].values)
	}
	if d.mainValid {
		t.Error("main stream should be invalid after an oversized frame")
	}
}

func TestGPSPredictorPairFixup(t *testing.T) {
	headers := append(append([]string{}, minimalMainHeaders...),
		"Field H name:GPS_home[0],GPS_home[1]",
		"Field G name:a,b,c,d",
		"Field G predictor:0,7,7,0",
		"Field G encoding:1,1,1,1",
	)
	buf := buildLog(headers, []byte{'I', 0x00})

	d, err := New(buf, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ok := d.Parse(0, Callbacks{}, false)
	if !ok {
		t.Fatal("Parse returned false")
	}

	got := d.hdr.Tables.Defs['G'].Predictor
	want := []header.Predictor{0, header.PredHomeCoord, header.PredHomeCoord1, 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GPS predictor array mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryRotationIntra(t *testing.T) {
	headers := []string{
		"Field I name:x",
		"Field I signed:0",
		"Field I predictor:0",
		"Field I encoding:1",
	}
	buf := buildLog(headers, []byte{'I', 0x05})

	d, err := New(buf, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if ok := d.Parse(0, Callbacks{}, false); !ok {
		t.Fatal("Parse returned false")
	}
	if d.main.previous()[0] != d.main.previous2()[0] {
		t.Errorf("slot1=%d slot2=%d, want equal after an accepted I frame", d.main.previous()[0], d.main.previous2()[0])
	}
}

func TestRawModeBypassesPrediction(t *testing.T) {
	headers := []string{
		"Field I name:iteration,time",
		"Field I signed:0,0",
		"Field I predictor:6,1", // INC, PREVIOUS — INC would normally add history.
		"Field I encoding:1,1",
	}
	data := []byte{'I', 0x05, 0x0A}
	buf := buildLog(headers, data)

	d, err := New(buf, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var got []int32
	ok := d.Parse(0, Callbacks{
		OnFrameReady: func(_ *Decoder, valid bool, values []int32, ft byte, fc, off, sz int) {
			got = values
		},
	}, true)
	if !ok {
		t.Fatal("Parse returned false")
	}
	if diff := cmp.Diff([]int32{5, 10}, got); diff != "" {
		t.Errorf("raw-mode values mismatch (-want +got):\n%s", diff)
	}
}

func TestParseInvalidLogIndex(t *testing.T) {
	buf := buildLog(minimalMainHeaders, []byte{'I', 0x00})
	d, err := New(buf, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Parse(1, Callbacks{}, false) {
		t.Error("Parse should fail for an out-of-range sub-log index")
	}
}

func TestNewRejectsEmptyInput(t *testing.T) {
	if _, err := New(nil, nil); err != ErrEmptyInput {
		t.Errorf("got %v, want ErrEmptyInput", err)
	}
}

func TestMissingMainFieldsFailsParse(t *testing.T) {
	buf := buildLog(nil, []byte{'I', 0x00})
	d, err := New(buf, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Parse(0, Callbacks{}, false) {
		t.Error("Parse should fail when the header never declares main fields")
	}
}

func TestGPSFrameBeforeHomeIsEmittedInvalid(t *testing.T) {
	headers := append(append([]string{}, minimalMainHeaders...),
		"Field H name:GPS_home[0],GPS_home[1]",
		"Field G name:a,b",
		"Field G predictor:0,0",
		"Field G encoding:1,1",
	)
	data := []byte{'G', 0x01, 0x02}
	buf := buildLog(headers, data)

	d, err := New(buf, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var frames []recorded
	ok := d.Parse(0, Callbacks{
		OnFrameReady: func(_ *Decoder, valid bool, values []int32, ft byte, fc, off, sz int) {
			frames = append(frames, recorded{valid, values, ft, fc, off, sz})
		},
	}, false)
	if !ok {
		t.Fatal("Parse returned false")
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].valid {
		t.Error("GPS frame before any H frame should be marked invalid")
	}
	if diff := cmp.Diff([]int32{1, 2}, frames[0].values); diff != "" {
		t.Errorf("GPS frame should still carry its decoded values (-want +got):\n%s", diff)
	}
}

func TestResyncAfterSingleByteCorruption(t *testing.T) {
	headers := []string{
		"Field I name:iteration,time",
		"Field I signed:0,0",
		"Field I predictor:0,0",
		"Field I encoding:1,1",
		"Field P predictor:1,1",
		"Field P encoding:1,1",
	}
	data := []byte{
		'I', 0x00, 0x0A, // iteration=0, time=10 (valid keyframe)
		'P', 0x02, 0x04, // intended delta iteration+=2, time+=4
		0xFF,            // one stray byte injected right after the P frame
		'I', 0x0A, 0x32, // iteration=10, time=50: the re-synchronising keyframe
	}
	buf := buildLog(headers, data)

	d, err := New(buf, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var frames []recorded
	ok := d.Parse(0, Callbacks{
		OnFrameReady: func(_ *Decoder, valid bool, values []int32, ft byte, fc, off, sz int) {
			frames = append(frames, recorded{valid, values, ft, fc, off, sz})
		},
	}, false)
	if !ok {
		t.Fatal("Parse returned false")
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frame callbacks, want 3 (I, corrupted P, resync I)", len(frames))
	}

	var invalidCount int
	for _, f := range frames {
		if !f.valid {
			invalidCount++
		}
	}
	if invalidCount != 1 {
		t.Errorf("got %d invalid callbacks, want exactly 1", invalidCount)
	}

	if !frames[0].valid || frames[0].frameType != 'I' {
		t.Fatalf("frame 0 = %+v, want a valid I frame", frames[0])
	}
	if frames[1].valid || frames[1].frameType != 'P' || frames[1].values != nil {
		t.Fatalf("frame 1 = %+v, want the corrupt P frame with nil values", frames[1])
	}
	if !frames[2].valid || frames[2].frameType != 'I' {
		t.Fatalf("frame 2 = %+v, want the re-synchronising I frame to be valid", frames[2])
	}
	if diff := cmp.Diff([]int32{10, 50}, frames[2].values); diff != "" {
		t.Errorf("resynced I frame values mismatch (-want +got):\n%s", diff)
	}
	if !d.mainValid {
		t.Error("mainValid should be true again after the resynchronising I frame")
	}
}

func TestEstimateNumCellsAndVbatMillivolts(t *testing.T) {
	d := &Decoder{hdr: &header.Parser{Tuning: header.Tuning{
		VbatScale:          110,
		VbatRef:            420,
		VbatMaxCellVoltage: 430,
	}}}
	mv := d.VbatMillivolts(420)
	if mv != vbatToMillivolts(420, 110) {
		t.Errorf("got %d, want %d", mv, vbatToMillivolts(420, 110))
	}
	n := d.EstimateNumCells()
	if n != estimateNumCells(420, 110, 430) {
		t.Errorf("got %d, want %d", n, estimateNumCells(420, 110, 430))
	}
}
