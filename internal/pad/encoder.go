package pad

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Flags packed into the two low bits of the button field.
const (
	RIGHT_STICK_FLAG = 0x1
	LEFT_STICK_FLAG  = 0x2
)

// END_LINE tells the firmware to release everything.
const END_LINE = "end"

// Serialize renders the state as one protocol line (without the line
// terminator):
//
//	<button_hex> <hat_decimal> [<lx_hex> <ly_hex>] [<rx_hex> <ry_hex>]
//
// A stick pair is present only if that stick changed since the last call;
// the changed flags are cleared here.
func (s *ControllerState) Serialize() string {
	btn := uint32(s.Buttons) << 2
	fields := make([]string, 2, 6)

	if s.LeftChanged {
		btn |= LEFT_STICK_FLAG
		fields = append(fields, hex(s.LeftX), hex(s.LeftY))
	}
	if s.RightChanged {
		btn |= RIGHT_STICK_FLAG
		fields = append(fields, hex(s.RightX), hex(s.RightY))
	}
	fields[0] = fmt.Sprintf("0x%04x", btn)
	fields[1] = strconv.Itoa(int(s.Hat))

	s.LeftChanged = false
	s.RightChanged = false

	return strings.Join(fields, " ")
}

func (s *ControllerState) String() string {
	return fmt.Sprintf("Btns[%v] Hat[%v] Joy[LX:%d LY:%d RX:%d RY:%d]",
		s.Buttons, s.Hat, s.LeftX, s.LeftY, s.RightX, s.RightY)
}

// Frame is one decoded protocol line.
type Frame struct {
	End     bool
	Buttons Button
	Hat     Hat

	HasLeft  bool
	LeftX    uint8
	LeftY    uint8
	HasRight bool
	RightX   uint8
	RightY   uint8
}

// ParseFrame decodes a line produced by Serialize (or the end sentinel).
// This is what the firmware does on its side of the link.
func ParseFrame(line string) (Frame, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)
	if len(fields) == 1 && fields[0] == END_LINE {
		return Frame{End: true, Hat: HAT_CENTER}, nil
	}
	if len(fields) < 2 {
		return Frame{}, errors.Errorf("short frame %q", line)
	}

	btn, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "0x"), 16, 32)
	if err != nil {
		return Frame{}, errors.Wrapf(err, "button field %q", fields[0])
	}
	hat, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil || hat > uint64(HAT_CENTER) {
		return Frame{}, errors.Errorf("hat field %q", fields[1])
	}

	f := Frame{
		Buttons:  Button(btn >> 2),
		Hat:      Hat(hat),
		HasLeft:  btn&LEFT_STICK_FLAG != 0,
		HasRight: btn&RIGHT_STICK_FLAG != 0,
	}

	want := 2
	if f.HasLeft {
		want += 2
	}
	if f.HasRight {
		want += 2
	}
	if len(fields) != want {
		return Frame{}, errors.Errorf("frame %q has %d fields, flags say %d", line, len(fields), want)
	}

	rest := fields[2:]
	if f.HasLeft {
		if f.LeftX, f.LeftY, err = parsePair(rest); err != nil {
			return Frame{}, err
		}
		rest = rest[2:]
	}
	if f.HasRight {
		if f.RightX, f.RightY, err = parsePair(rest); err != nil {
			return Frame{}, err
		}
	}
	return f, nil
}

// Apply folds a decoded frame into a state the way the firmware tracks it:
// absent stick pairs keep their last value, End releases everything.
func (s *ControllerState) Apply(f Frame) {
	if f.End {
		*s = *NewControllerState()
		return
	}
	s.Buttons = f.Buttons
	s.Hat = f.Hat
	if f.HasLeft {
		s.LeftX, s.LeftY = f.LeftX, f.LeftY
	}
	if f.HasRight {
		s.RightX, s.RightY = f.RightX, f.RightY
	}
}

func hex(v uint8) string {
	return strconv.FormatUint(uint64(v), 16)
}

func parsePair(fields []string) (uint8, uint8, error) {
	x, err := strconv.ParseUint(fields[0], 16, 8)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "stick x %q", fields[0])
	}
	y, err := strconv.ParseUint(fields[1], 16, 8)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "stick y %q", fields[1])
	}
	return uint8(x), uint8(y), nil
}
