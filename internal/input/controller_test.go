package input

import (
	"reflect"
	"testing"

	"pokecon/internal/pad"
	"pokecon/internal/transport/transporttest"
)

func TestPressAndRelease(t *testing.T) {
	rec := transporttest.NewRecorder()
	c := New(rec)

	c.Press(pad.A)
	c.PressEnd(pad.A)
	c.Press(pad.UP, pad.HAT_LEFT)
	c.PressEnd(pad.UP, pad.HAT_LEFT)

	want := []string{
		"0x0010 8",
		"0x0000 8",
		"0x0002 6 80 0",
		"0x0002 8 80 80",
	}
	if got := rec.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestHoldSurvivesTap(t *testing.T) {
	rec := transporttest.NewRecorder()
	c := New(rec)

	if !c.Hold(pad.ZL) {
		t.Fatal("Hold refused a fresh control")
	}
	c.Press(pad.A)
	c.PressEnd(pad.A)

	st := c.State()
	if !st.Buttons.Has(pad.ZL) || st.Buttons.Has(pad.A) {
		t.Errorf("after tap buttons = %v, want ZL only", st.Buttons)
	}

	// the tap frame carried both
	lines := rec.Lines()
	if lines[1] != "0x0110 8" {
		t.Errorf("tap frame = %q, want ZL|A", lines[1])
	}

	c.HoldEnd(pad.ZL)
	if c.State().Buttons != 0 {
		t.Errorf("after HoldEnd buttons = %v", c.State().Buttons)
	}
	if len(c.Holding()) != 0 {
		t.Errorf("holding = %v", c.Holding())
	}
}

func TestHoldTwiceRefused(t *testing.T) {
	rec := transporttest.NewRecorder()
	c := New(rec)

	c.Hold(pad.B)
	n := len(rec.Lines())
	if c.Hold(pad.A, pad.B) {
		t.Fatal("second Hold of B accepted")
	}
	if len(rec.Lines()) != n {
		t.Error("refused hold wrote a frame")
	}
	if h := c.Holding(); len(h) != 1 || h[0] != pad.B {
		t.Errorf("holding = %v, want [B]", h)
	}
}

func TestHoldRepeatedControlRefused(t *testing.T) {
	rec := transporttest.NewRecorder()
	c := New(rec)

	if c.Hold(pad.A, pad.A) {
		t.Fatal("Hold(A, A) accepted")
	}
	if len(rec.Lines()) != 0 || len(c.Holding()) != 0 {
		t.Errorf("refused hold left lines %q holding %v", rec.Lines(), c.Holding())
	}

	c.Hold(pad.A)
	c.HoldEnd(pad.A)
	if len(c.Holding()) != 0 || c.State().Buttons.Has(pad.A) {
		t.Errorf("A still held: %v", c.Holding())
	}
}

func TestHoldDirectionKeepsStickAcrossPress(t *testing.T) {
	rec := transporttest.NewRecorder()
	c := New(rec)

	c.Hold(pad.RIGHT)
	c.Press(pad.A)
	// stick unchanged, so no pair in the tap frame
	if got := rec.Last(); got != "0x0010 8" {
		t.Errorf("tap frame = %q", got)
	}
	c.PressEnd(pad.A)
	if st := c.State(); st.LeftX != pad.AXIS_MAX {
		t.Errorf("held stick moved: %v", &st)
	}
}

func TestEnd(t *testing.T) {
	rec := transporttest.NewRecorder()
	c := New(rec)
	c.Press(pad.A)
	c.End()
	c.End()
	c.Press(pad.B)

	if got := rec.Count(pad.END_LINE); got != 1 {
		t.Errorf("end written %d times", got)
	}
	if got := rec.Last(); got != pad.END_LINE {
		t.Errorf("write after End reached the transport: %q", got)
	}
}
