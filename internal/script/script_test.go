package script

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"pokecon/internal/capture"
	"pokecon/internal/command"
	"pokecon/internal/pad"
	"pokecon/internal/transport/transporttest"
	"pokecon/internal/vision"
)

func run(t *testing.T, def command.Definition, opts ...command.Option) []string {
	t.Helper()
	opts = append(opts, command.WithSleep(func(time.Duration) {}))
	c, err := command.New(def, opts...)
	if err != nil {
		t.Fatal(err)
	}
	rec := transporttest.NewRecorder()
	if err := c.Start(rec, nil); err != nil {
		t.Fatal(err)
	}
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("%s did not finish", def.Name)
	}
	return rec.Lines()
}

func checkLines(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("lines = %q\nwant    %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseAndRun(t *testing.T) {
	src := `
# presses
name "two step"
press A 0.05 0.05
repeat 2 {
    press_rep B 2
}
hold ZR   # keep it
hold_end ZR
log done with it
`
	def, err := Parse("two.pcs", strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if def.Name != "two step" {
		t.Errorf("name = %q", def.Name)
	}
	if def.Kind != command.Plain {
		t.Errorf("kind = %v, want plain", def.Kind)
	}

	b := []string{"0x0008 8", "0x0000 8"}
	want := []string{"0x0010 8", "0x0000 8"}
	for i := 0; i < 4; i++ {
		want = append(want, b...)
	}
	want = append(want, "0x0200 8", "0x0000 8", pad.END_LINE)
	checkLines(t, run(t, def), want)
}

func TestLoopFinish(t *testing.T) {
	def, err := Parse("loop.pcs", strings.NewReader(`name loop
loop {
    press UP+A
    finish
}
press B
`))
	if err != nil {
		t.Fatal(err)
	}
	checkLines(t, run(t, def), []string{"0x0012 8 80 0", "0x0002 8 80 80", pad.END_LINE})
}

func TestLoopWithoutPrimitivesStops(t *testing.T) {
	def, err := Parse("idle.pcs", strings.NewReader(`name idle
loop {
    repeat 0 {
    }
}
`))
	if err != nil {
		t.Fatal(err)
	}
	c, err := command.New(def)
	if err != nil {
		t.Fatal(err)
	}
	rec := transporttest.NewRecorder()
	c.Start(rec, nil)
	time.Sleep(20 * time.Millisecond)
	c.SendStopRequest()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatalf("still %v a second after the stop request", c.State())
	}
	checkLines(t, rec.Lines(), []string{pad.END_LINE})
}

func TestIfTemplate(t *testing.T) {
	dir := t.TempDir()
	frame := vision.NewFrame(40, 30, 3)
	frame.Fill(10, 120, 200)
	tmpl, _ := frame.Crop(vision.Region{X0: 5, X1: 20, Y0: 5, Y1: 20})
	if err := vision.SavePNG(tmpl, filepath.Join(dir, "mark.png")); err != nil {
		t.Fatal(err)
	}
	frames := capture.NewLatest()
	frames.Push(frame)

	def, err := Parse("if.pcs", strings.NewReader(`name check
if template mark.png 0.8 {
    press A
} else {
    press B
}
if not template mark.png {
    press X
}
`))
	if err != nil {
		t.Fatal(err)
	}
	if def.Kind != command.ImageAware {
		t.Fatalf("kind = %v, want image-aware", def.Kind)
	}
	lines := run(t, def, command.WithFrames(frames), command.WithTemplates(dir))
	checkLines(t, lines, []string{"0x0010 8", "0x0000 8", pad.END_LINE})
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"no name":         "press A\n",
		"unknown stmt":    "name x\njump A\n",
		"unknown control": "name x\npress TURBO\n",
		"bad time":        "name x\nwait soon\n",
		"negative time":   "name x\nwait -1\n",
		"too many times":  "name x\npress A 1 1 1\n",
		"unclosed":        "name x\nloop {\npress A\n",
		"stray brace":     "name x\n}\n",
		"block on press":  "name x\npress A {\n}\n",
		"repeat no count": "name x\nrepeat {\n}\n",
		"bad if":          "name x\nif image mark.png {\n}\n",
		"junk after }":    "name x\nrepeat 2 {\n} again\n",
		"unterminated":    "name \"x\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("bad.pcs", strings.NewReader(src))
			if !errors.Is(err, ErrSyntax) {
				t.Errorf("err = %v, want a syntax error", err)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	toks, err := tokenize(`name "A連打 fast" # comment`)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 2 || toks[1] != "A連打 fast" {
		t.Errorf("tokens = %q", toks)
	}
}
