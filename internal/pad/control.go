package pad

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Stick axis values, 0-255 with the rest position in the middle
const (
	AXIS_MIN    = 0
	AXIS_CENTER = 128
	AXIS_MAX    = 255
)

// ErrUnknownControl is returned by ParseControl for names outside the layout.
var ErrUnknownControl = errors.New("unknown control")

// Control is anything that can be pressed: a Button, a Hat or a Direction.
type Control interface {
	String() string
	isControl()
}

// Button is a bit in the button field. Any number may be held at once.
type Button uint16

const (
	Y Button = 1 << iota
	B
	A
	X
	L
	R
	ZL
	ZR
	MINUS
	PLUS
	L_CLICK
	R_CLICK
	HOME
	CAPTURE
)

var buttonNames = []struct {
	b    Button
	name string
}{
	{Y, "Y"}, {B, "B"}, {A, "A"}, {X, "X"},
	{L, "L"}, {R, "R"}, {ZL, "ZL"}, {ZR, "ZR"},
	{MINUS, "MINUS"}, {PLUS, "PLUS"},
	{L_CLICK, "L_CLICK"}, {R_CLICK, "R_CLICK"},
	{HOME, "HOME"}, {CAPTURE, "CAPTURE"},
}

func (b Button) isControl() {}

// Has reports whether every bit of o is set in b.
func (b Button) Has(o Button) bool {
	return b&o == o
}

func (b Button) String() string {
	if b == 0 {
		return "NONE"
	}
	var names []string
	for _, n := range buttonNames {
		if b&n.b != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// Hat is the digital pad. Only one value is active at a time.
type Hat uint8

const (
	HAT_TOP Hat = iota
	HAT_TOP_RIGHT
	HAT_RIGHT
	HAT_BTM_RIGHT
	HAT_BTM
	HAT_BTM_LEFT
	HAT_LEFT
	HAT_TOP_LEFT
	HAT_CENTER
)

var hatNames = [...]string{
	"HAT_TOP", "HAT_TOP_RIGHT", "HAT_RIGHT", "HAT_BTM_RIGHT",
	"HAT_BTM", "HAT_BTM_LEFT", "HAT_LEFT", "HAT_TOP_LEFT", "HAT_CENTER",
}

func (h Hat) isControl() {}

func (h Hat) String() string {
	if int(h) < len(hatNames) {
		return hatNames[h]
	}
	return "HAT_?"
}

// Stick selects one of the two analog sticks.
type Stick uint8

const (
	LEFT_STICK Stick = iota
	RIGHT_STICK
)

func (s Stick) String() string {
	if s == RIGHT_STICK {
		return "RIGHT_STICK"
	}
	return "LEFT_STICK"
}

// Tilt is the coarse deflection of a stick, used to pick which axis to
// neutralize on release.
type Tilt uint8

const (
	TILT_UP Tilt = iota
	TILT_RIGHT
	TILT_DOWN
	TILT_LEFT
	TILT_R_UP
	TILT_R_RIGHT
	TILT_R_DOWN
	TILT_R_LEFT
)

// Direction is a full tilt of one stick at a compass angle.
// Two directions are equal iff stick and angle match, so == works.
type Direction struct {
	Stick  Stick
	Degree int
}

var (
	UP         = Direction{LEFT_STICK, 90}
	RIGHT      = Direction{LEFT_STICK, 0}
	DOWN       = Direction{LEFT_STICK, -90}
	LEFT       = Direction{LEFT_STICK, -180}
	UP_RIGHT   = Direction{LEFT_STICK, 45}
	DOWN_RIGHT = Direction{LEFT_STICK, -45}
	DOWN_LEFT  = Direction{LEFT_STICK, -135}
	UP_LEFT    = Direction{LEFT_STICK, 135}

	R_UP         = Direction{RIGHT_STICK, 90}
	R_RIGHT      = Direction{RIGHT_STICK, 0}
	R_DOWN       = Direction{RIGHT_STICK, -90}
	R_LEFT       = Direction{RIGHT_STICK, -180}
	R_UP_RIGHT   = Direction{RIGHT_STICK, 45}
	R_DOWN_RIGHT = Direction{RIGHT_STICK, -45}
	R_DOWN_LEFT  = Direction{RIGHT_STICK, -135}
	R_UP_LEFT    = Direction{RIGHT_STICK, 135}
)

var directionNames = []struct {
	d    Direction
	name string
}{
	{UP, "UP"}, {RIGHT, "RIGHT"}, {DOWN, "DOWN"}, {LEFT, "LEFT"},
	{UP_RIGHT, "UP_RIGHT"}, {DOWN_RIGHT, "DOWN_RIGHT"},
	{DOWN_LEFT, "DOWN_LEFT"}, {UP_LEFT, "UP_LEFT"},
	{R_UP, "R_UP"}, {R_RIGHT, "R_RIGHT"}, {R_DOWN, "R_DOWN"}, {R_LEFT, "R_LEFT"},
	{R_UP_RIGHT, "R_UP_RIGHT"}, {R_DOWN_RIGHT, "R_DOWN_RIGHT"},
	{R_DOWN_LEFT, "R_DOWN_LEFT"}, {R_UP_LEFT, "R_UP_LEFT"},
}

func (d Direction) isControl() {}

func (d Direction) String() string {
	for _, n := range directionNames {
		if n.d == d {
			return n.name
		}
	}
	return d.Stick.String() + "@" + strconv.Itoa(d.Degree)
}

// Axes returns the stick position in math orientation (y grows upward):
//
//	x = round(127.5*cos(θ) + 127.5)
//	y = floor(127.5*sin(θ) + 127.5)
func (d Direction) Axes() (x, y uint8) {
	rad := float64(d.Degree) * math.Pi / 180
	return uint8(math.Round(127.5*math.Cos(rad) + 127.5)),
		uint8(math.Floor(127.5*math.Sin(rad) + 127.5))
}

// Tilts classifies the final axis position relative to center.
func (d Direction) Tilts() []Tilt {
	x, y := d.Axes()
	var up, right, down, left = TILT_UP, TILT_RIGHT, TILT_DOWN, TILT_LEFT
	if d.Stick == RIGHT_STICK {
		up, right, down, left = TILT_R_UP, TILT_R_RIGHT, TILT_R_DOWN, TILT_R_LEFT
	}

	var tilts []Tilt
	if x < AXIS_CENTER {
		tilts = append(tilts, left)
	} else if x > AXIS_CENTER {
		tilts = append(tilts, right)
	}
	// floor puts the neutral y at 127
	if y < AXIS_CENTER-1 {
		tilts = append(tilts, down)
	} else if y > AXIS_CENTER-1 {
		tilts = append(tilts, up)
	}
	return tilts
}

// ParseControl resolves a control by name: button names ("A", "ZL"),
// hat names ("HAT_TOP") and direction names ("UP", "R_DOWN_LEFT").
// Matching is case-insensitive.
func ParseControl(name string) (Control, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	for _, b := range buttonNames {
		if b.name == n {
			return b.b, nil
		}
	}
	for i, h := range hatNames {
		if h == n {
			return Hat(i), nil
		}
	}
	for _, d := range directionNames {
		if d.name == n {
			return d.d, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownControl, "%q", name)
}

// ParseControls parses a "+" joined combo such as "A+UP".
func ParseControls(combo string) ([]Control, error) {
	var out []Control
	for _, part := range strings.Split(combo, "+") {
		c, err := ParseControl(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
