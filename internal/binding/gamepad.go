package binding

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/0xcafed00d/joystick"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"pokecon/internal/pad"
)

const (
	POLL_RATE_HZ     = 33 // ~30ms between reads
	DEFAULT_DEADZONE = 0.3
)

// Axis layout of an xinput style pad under the joystick driver.
const (
	AXIS_LX = iota
	AXIS_LY
	AXIS_RX
	AXIS_RY
	AXIS_LT
	AXIS_RT
	AXIS_DPAD_X
	AXIS_DPAD_Y
)

// Driver button bits to Switch buttons, by position: south is B, east
// is A.
var buttonMap = []pad.Button{
	pad.B,       // south
	pad.A,       // east
	pad.Y,       // west
	pad.X,       // north
	pad.L,       // left bumper
	pad.R,       // right bumper
	pad.MINUS,   // select
	pad.PLUS,    // start
	pad.L_CLICK, // left stick
	pad.R_CLICK, // right stick
	pad.HOME,    // guide
}

var compass = [8]struct{ left, right pad.Direction }{
	{pad.RIGHT, pad.R_RIGHT},
	{pad.UP_RIGHT, pad.R_UP_RIGHT},
	{pad.UP, pad.R_UP},
	{pad.UP_LEFT, pad.R_UP_LEFT},
	{pad.LEFT, pad.R_LEFT},
	{pad.DOWN_LEFT, pad.R_DOWN_LEFT},
	{pad.DOWN, pad.R_DOWN},
	{pad.DOWN_RIGHT, pad.R_DOWN_RIGHT},
}

// padSnapshot is a joystick reading reduced to pad controls.
type padSnapshot struct {
	buttons pad.Button
	hat     pad.Hat
	sticks  [2]*pad.Direction
}

func (s padSnapshot) controls() []pad.Control {
	var out []pad.Control
	for _, b := range buttonMap {
		if s.buttons.Has(b) {
			out = append(out, b)
		}
	}
	if s.buttons.Has(pad.ZL) {
		out = append(out, pad.ZL)
	}
	if s.buttons.Has(pad.ZR) {
		out = append(out, pad.ZR)
	}
	if s.hat != pad.HAT_CENTER {
		out = append(out, s.hat)
	}
	for _, d := range s.sticks {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}

// Gamepad mirrors a physical pad onto an input session.
type Gamepad struct {
	in       Inputter
	js       joystick.Joystick
	deadzone float64

	mu        sync.Mutex
	last      padSnapshot
	suspended bool
}

// OpenGamepad opens joystick number index.
func OpenGamepad(in Inputter, index int, deadzone float64) (*Gamepad, error) {
	js, err := joystick.Open(index)
	if err != nil {
		return nil, errors.Wrapf(err, "open joystick %d", index)
	}
	if deadzone <= 0 || deadzone >= 1 {
		deadzone = DEFAULT_DEADZONE
	}
	log.Info().Str("name", js.Name()).
		Int("axes", js.AxisCount()).
		Int("buttons", js.ButtonCount()).
		Msg("joystick opened")
	return &Gamepad{in: in, js: js, deadzone: deadzone, last: padSnapshot{hat: pad.HAT_CENTER}}, nil
}

// Run polls the pad until ctx is done or a read fails.
func (g *Gamepad) Run(ctx context.Context) error {
	defer g.js.Close()
	ticker := time.NewTicker(time.Second / POLL_RATE_HZ)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		st, err := g.js.Read()
		if err != nil {
			return errors.Wrap(err, "reading joystick")
		}
		g.update(snapshot(st, g.deadzone))
	}
}

// Suspend releases what the pad holds and ignores it until Resume.
func (g *Gamepad) Suspend() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.suspended = true
	if held := g.last.controls(); len(held) > 0 {
		g.in.PressEnd(held...)
	}
	g.last = padSnapshot{hat: pad.HAT_CENTER}
}

// Resume picks the pad up again; controls still held are pressed on the
// next poll.
func (g *Gamepad) Resume() {
	g.mu.Lock()
	g.suspended = false
	g.mu.Unlock()
}

// update sends the difference between the last reading and cur: one
// release of what went away, then one press of everything still active.
func (g *Gamepad) update(cur padSnapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.suspended {
		return
	}
	prev := g.last
	g.last = cur
	if prev.buttons == cur.buttons && prev.hat == cur.hat && sameStick(prev, cur, 0) && sameStick(prev, cur, 1) {
		return
	}

	var released []pad.Control
	for b := pad.Button(1); b != 0 && b <= pad.CAPTURE; b <<= 1 {
		if prev.buttons.Has(b) && !cur.buttons.Has(b) {
			released = append(released, b)
		}
	}
	if prev.hat != pad.HAT_CENTER && cur.hat != prev.hat {
		released = append(released, prev.hat)
	}
	for i, d := range prev.sticks {
		if d != nil && cur.sticks[i] == nil {
			released = append(released, *d)
		}
	}
	if len(released) > 0 {
		g.in.PressEnd(released...)
	}

	if active := cur.controls(); len(active) > 0 {
		g.in.Press(active...)
	}
}

func sameStick(a, b padSnapshot, i int) bool {
	x, y := a.sticks[i], b.sticks[i]
	if x == nil || y == nil {
		return x == y
	}
	return *x == *y
}

func snapshot(st joystick.State, deadzone float64) padSnapshot {
	s := padSnapshot{hat: pad.HAT_CENTER}
	for i, b := range buttonMap {
		if st.Buttons&(1<<uint(i)) != 0 {
			s.buttons |= b
		}
	}
	if axis(st, AXIS_LT) > 0 {
		s.buttons |= pad.ZL
	}
	if axis(st, AXIS_RT) > 0 {
		s.buttons |= pad.ZR
	}
	s.hat = hatFrom(axis(st, AXIS_DPAD_X), axis(st, AXIS_DPAD_Y))
	s.sticks[0] = stickFrom(axis(st, AXIS_LX), axis(st, AXIS_LY), deadzone, false)
	s.sticks[1] = stickFrom(axis(st, AXIS_RX), axis(st, AXIS_RY), deadzone, true)
	return s
}

// axis returns the axis scaled to [-1, 1]; missing axes read as rest.
// Triggers rest at -1; they read 0 until pulled three quarters.
func axis(st joystick.State, i int) float64 {
	if i >= len(st.AxisData) {
		return 0
	}
	v := float64(st.AxisData[i]) / 32767
	if i == AXIS_LT || i == AXIS_RT {
		v = (v + 1) / 2
		if v < 0.75 {
			return 0
		}
	}
	return math.Max(-1, math.Min(1, v))
}

// stickFrom snaps a stick outside the dead zone to the nearest of the
// eight compass directions. The driver's y axis grows downward.
func stickFrom(x, y, deadzone float64, right bool) *pad.Direction {
	if math.Hypot(x, y) < deadzone {
		return nil
	}
	deg := math.Atan2(-y, x) * 180 / math.Pi
	sector := int(math.Round(deg/45)+8) % 8
	d := compass[sector].left
	if right {
		d = compass[sector].right
	}
	return &d
}

func hatFrom(x, y float64) pad.Hat {
	const on = 0.5
	up, down := y < -on, y > on
	left, right := x < -on, x > on
	switch {
	case up && right:
		return pad.HAT_TOP_RIGHT
	case down && right:
		return pad.HAT_BTM_RIGHT
	case down && left:
		return pad.HAT_BTM_LEFT
	case up && left:
		return pad.HAT_TOP_LEFT
	case up:
		return pad.HAT_TOP
	case right:
		return pad.HAT_RIGHT
	case down:
		return pad.HAT_BTM
	case left:
		return pad.HAT_LEFT
	}
	return pad.HAT_CENTER
}
