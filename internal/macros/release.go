package macros

import (
	"time"

	"pokecon/internal/command"
	"pokecon/internal/pad"
	"pokecon/internal/registry"
)

const AUTO_RELEASE = "auto release"

// Box layout and templates of the release walk.
const (
	BOX_ROWS = 5
	BOX_COLS = 6

	SHINY_TEMPLATE  = "shiny_mark.png"
	STATUS_TEMPLATE = "status.png"
)

func init() {
	registry.Register(AutoRelease)
}

// AutoRelease walks a box row by row, snaking left and right, and
// releases every Pokémon that is not shiny. It expects the cursor on the
// top-left slot of an open box. Without frames it releases blindly.
func AutoRelease() command.Definition {
	return command.Definition{
		Name:    AUTO_RELEASE,
		Kind:    command.ImageAware,
		Routine: autoRelease,
	}
}

func autoRelease(s *command.Session) error {
	if err := s.Wait(500 * time.Millisecond); err != nil {
		return err
	}

	for row := 0; row < BOX_ROWS; row++ {
		for col := 0; col < BOX_COLS; col++ {
			if err := visit(s); err != nil {
				return err
			}
			if col == BOX_COLS-1 {
				continue
			}
			dir := pad.RIGHT
			if row%2 == 1 {
				dir = pad.LEFT
			}
			if err := s.Press(command.DEFAULT_DURATION, 200*time.Millisecond, dir); err != nil {
				return err
			}
		}
		if err := s.Press(command.DEFAULT_DURATION, 200*time.Millisecond, pad.DOWN); err != nil {
			return err
		}
	}

	// back out of the box
	for _, wait := range []time.Duration{2 * time.Second, 2 * time.Second, 1500 * time.Millisecond} {
		if err := s.Press(command.DEFAULT_DURATION, wait, pad.B); err != nil {
			return err
		}
	}
	return nil
}

func visit(s *command.Session) error {
	if !s.FramesOpen() {
		return release(s)
	}
	shiny, err := s.IsContainTemplate(SHINY_TEMPLATE, command.Threshold(0.9))
	if err != nil || shiny {
		return err
	}
	// the status template only matches the Japanese UI
	occupied, err := s.IsContainTemplate(STATUS_TEMPLATE, command.Threshold(0.7))
	if err != nil || !occupied {
		return err
	}
	return release(s)
}

type step struct {
	ctl  pad.Control
	wait time.Duration
}

var releaseSteps = []step{
	{pad.A, 500 * time.Millisecond},
	{pad.UP, 200 * time.Millisecond},
	{pad.UP, 200 * time.Millisecond},
	{pad.A, time.Second},
	{pad.UP, 200 * time.Millisecond},
	{pad.A, 1500 * time.Millisecond},
	{pad.A, 300 * time.Millisecond},
}

func release(s *command.Session) error {
	for _, st := range releaseSteps {
		if err := s.Press(command.DEFAULT_DURATION, st.wait, st.ctl); err != nil {
			return err
		}
	}
	return nil
}
