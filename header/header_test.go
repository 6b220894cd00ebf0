package header

import (
	"testing"

	"github.com/ausocean/blackbox/cursor"
)

func newLineCursor(s string) *cursor.Cursor {
	return cursor.New([]byte(s))
}

func TestReadLineBasic(t *testing.T) {
	c := newLineCursor(" Field I name:loopIteration,time,motor[0]\n")
	key, value, ok, err := ReadLine(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if key != "Field I name" {
		t.Errorf("key = %q, want %q", key, "Field I name")
	}
	if value != "loopIteration,time,motor[0]" {
		t.Errorf("value = %q", value)
	}
}

func TestReadLineDroppedNoLeadingSpace(t *testing.T) {
	c := newLineCursor("Field I name:x\n")
	_, _, ok, err := ReadLine(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected line without leading space to be dropped")
	}
}

func TestReadLineDroppedNoColon(t *testing.T) {
	c := newLineCursor(" no colon here\n")
	_, _, ok, err := ReadLine(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected line without colon to be dropped")
	}
}

func TestReadLineDroppedNUL(t *testing.T) {
	c := newLineCursor(" Field I name:a\x00b\n")
	_, _, ok, err := ReadLine(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected line with NUL byte to be dropped")
	}
}

func TestReadLineTruncated(t *testing.T) {
	c := newLineCursor(" Field I name:x") // no trailing newline
	_, _, _, err := ReadLine(c)
	if err == nil {
		t.Fatal("expected error for truncated header line")
	}
}

func TestApplyFieldINameIndices(t *testing.T) {
	p := NewParser(nil)
	p.Apply("Field I name", "loopIteration,time,motor[0],throttle")
	if p.Tables.IterationIndex != 0 {
		t.Errorf("IterationIndex = %d, want 0", p.Tables.IterationIndex)
	}
	if p.Tables.TimeIndex != 1 {
		t.Errorf("TimeIndex = %d, want 1", p.Tables.TimeIndex)
	}
	if p.Tables.MotorZeroIndex != 2 {
		t.Errorf("MotorZeroIndex = %d, want 2", p.Tables.MotorZeroIndex)
	}
	names := p.Tables.Defs['I'].Names
	want := []string{"loopIteration", "time", "motor[0]", "throttle"}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("name[%d] = %q, want %q", i, names[i], n)
		}
	}
}

func TestApplyFieldHNameHomeIndices(t *testing.T) {
	p := NewParser(nil)
	p.Apply("Field H name", "GPS_home[0],GPS_home[1]")
	if p.Tables.Home0Index != 0 {
		t.Errorf("Home0Index = %d, want 0", p.Tables.Home0Index)
	}
	if p.Tables.Home1Index != 1 {
		t.Errorf("Home1Index = %d, want 1", p.Tables.Home1Index)
	}
}

func TestApplyPredictorAndEncoding(t *testing.T) {
	p := NewParser(nil)
	p.Apply("Field I predictor", "0,1,5,6")
	p.Apply("Field I encoding", "1,0,0,8")
	d := p.Tables.Defs['I']
	wantPred := []Predictor{PredZero, PredPrevious, PredMotor0, PredInc}
	for i, pr := range wantPred {
		if d.Predictor[i] != pr {
			t.Errorf("predictor[%d] = %v, want %v", i, d.Predictor[i], pr)
		}
	}
	wantEnc := []Encoding{EncUnsignedVB, EncSignedVB, EncSignedVB, EncTag8_8SVB}
	for i, e := range wantEnc {
		if d.Encoding[i] != e {
			t.Errorf("encoding[%d] = %v, want %v", i, d.Encoding[i], e)
		}
	}
}

func TestApplyIntervalsAndDataVersion(t *testing.T) {
	p := NewParser(nil)
	p.Apply("I interval", "32")
	p.Apply("P interval", "1/3")
	p.Apply("Data version", "2")
	if p.Tuning.FrameIntervalI != 32 {
		t.Errorf("FrameIntervalI = %d, want 32", p.Tuning.FrameIntervalI)
	}
	if p.Tuning.FrameIntervalPNum != 1 || p.Tuning.FrameIntervalPDenom != 3 {
		t.Errorf("P interval = %d/%d, want 1/3", p.Tuning.FrameIntervalPNum, p.Tuning.FrameIntervalPDenom)
	}
	if p.Tuning.DataVersion != 2 {
		t.Errorf("DataVersion = %d, want 2", p.Tuning.DataVersion)
	}
}

func TestApplyTuningConstants(t *testing.T) {
	p := NewParser(nil)
	p.Apply("minthrottle", "1150")
	p.Apply("maxthrottle", "1850")
	p.Apply("vbatref", "415")
	p.Apply("vbatcellvoltage", "33,35,43")
	if p.Tuning.MinThrottle != 1150 || p.Tuning.MaxThrottle != 1850 {
		t.Errorf("throttle range = [%d,%d]", p.Tuning.MinThrottle, p.Tuning.MaxThrottle)
	}
	if p.Tuning.VbatRef != 415 {
		t.Errorf("VbatRef = %d, want 415", p.Tuning.VbatRef)
	}
	if p.Tuning.VbatMinCellVoltage != 33 || p.Tuning.VbatWarningCellVoltage != 35 || p.Tuning.VbatMaxCellVoltage != 43 {
		t.Errorf("cell voltages = [%d,%d,%d]", p.Tuning.VbatMinCellVoltage, p.Tuning.VbatWarningCellVoltage, p.Tuning.VbatMaxCellVoltage)
	}
}

func TestApplyUnknownKeyIgnored(t *testing.T) {
	p := NewParser(nil)
	p.Apply("Some Unrelated Key", "whatever")
	// No panic, no field mutated: nothing to assert beyond completion.
}

func TestDefaultTuningIntervals(t *testing.T) {
	p := NewParser(nil)
	if p.Tuning.FrameIntervalI != 32 || p.Tuning.FrameIntervalPNum != 1 || p.Tuning.FrameIntervalPDenom != 1 {
		t.Errorf("unexpected defaults: %+v", p.Tuning)
	}
}

func TestAbsentIndicesByDefault(t *testing.T) {
	tb := newTables()
	if tb.MotorZeroIndex != AbsentIndex || tb.Home0Index != AbsentIndex ||
		tb.Home1Index != AbsentIndex || tb.IterationIndex != AbsentIndex || tb.TimeIndex != AbsentIndex {
		t.Error("expected all indices absent by default")
	}
}
