package pad

// ControllerState holds everything the firmware needs to reproduce the pad.
// LeftChanged/RightChanged record whether a stick moved since the last
// serialized frame; Serialize consumes them.
type ControllerState struct {
	Buttons Button
	Hat     Hat
	LeftX   uint8
	LeftY   uint8
	RightX  uint8
	RightY  uint8

	LeftChanged  bool
	RightChanged bool
}

// NewControllerState returns a state at rest: no buttons, hat centered,
// both sticks centered and not yet sent.
func NewControllerState() *ControllerState {
	return &ControllerState{
		Hat:    HAT_CENTER,
		LeftX:  AXIS_CENTER,
		LeftY:  AXIS_CENTER,
		RightX: AXIS_CENTER,
		RightY: AXIS_CENTER,
	}
}

func (s *ControllerState) SetButtons(buttons ...Button) {
	for _, b := range buttons {
		s.Buttons |= b
	}
}

func (s *ControllerState) UnsetButtons(buttons ...Button) {
	for _, b := range buttons {
		s.Buttons &^= b
	}
}

func (s *ControllerState) ResetAllButtons() {
	s.Buttons = 0
}

// SetHat takes the first hat of the list; an empty list centers the hat.
func (s *ControllerState) SetHat(hats ...Hat) {
	if len(hats) == 0 {
		s.Hat = HAT_CENTER
		return
	}
	s.Hat = hats[0]
}

func (s *ControllerState) UnsetHat() {
	s.Hat = HAT_CENTER
}

// SetDirections moves the sticks. The y axis is flipped before storing
// because the firmware's y grows downward.
func (s *ControllerState) SetDirections(dirs ...Direction) {
	for _, d := range dirs {
		x, y := d.Axes()
		y = AXIS_MAX - y
		switch d.Stick {
		case LEFT_STICK:
			if s.LeftX != x || s.LeftY != y {
				s.LeftChanged = true
			}
			s.LeftX, s.LeftY = x, y
		case RIGHT_STICK:
			if s.RightX != x || s.RightY != y {
				s.RightChanged = true
			}
			s.RightX, s.RightY = x, y
		}
	}
}

// UnsetDirections recenters the axes implicated by the tilts. The other
// axis of the same stick is pushed to its nearest extreme when it was off
// center, so releasing one key of a diagonal leaves a full cardinal tilt.
// Observed firmware behavior, kept as is.
func (s *ControllerState) UnsetDirections(tilts ...Tilt) {
	has := func(a, b Tilt) bool {
		for _, t := range tilts {
			if t == a || t == b {
				return true
			}
		}
		return false
	}

	if has(TILT_UP, TILT_DOWN) {
		s.LeftY = AXIS_CENTER
		s.LeftX = snapToExtreme(s.LeftX)
		s.LeftChanged = true
	}
	if has(TILT_RIGHT, TILT_LEFT) {
		s.LeftX = AXIS_CENTER
		s.LeftY = snapToExtreme(s.LeftY)
		s.LeftChanged = true
	}
	if has(TILT_R_UP, TILT_R_DOWN) {
		s.RightY = AXIS_CENTER
		s.RightX = snapToExtreme(s.RightX)
		s.RightChanged = true
	}
	if has(TILT_R_RIGHT, TILT_R_LEFT) {
		s.RightX = AXIS_CENTER
		s.RightY = snapToExtreme(s.RightY)
		s.RightChanged = true
	}
}

func (s *ControllerState) ResetAllDirections() {
	s.LeftX, s.LeftY = AXIS_CENTER, AXIS_CENTER
	s.RightX, s.RightY = AXIS_CENTER, AXIS_CENTER
	s.LeftChanged = true
	s.RightChanged = true
}

func snapToExtreme(v uint8) uint8 {
	switch {
	case v == AXIS_CENTER:
		return AXIS_CENTER
	case v < AXIS_CENTER:
		return AXIS_MIN
	default:
		return AXIS_MAX
	}
}
