// Package input turns press/hold/release intents into controller state
// changes and writes one protocol frame per change.
package input

import (
	"github.com/rs/zerolog/log"

	"pokecon/internal/pad"
	"pokecon/internal/transport"
)

// Controller is one input session bound to a transport. Not safe for
// concurrent use; callers serialize keyboard input and commands.
type Controller struct {
	tr      transport.Transport
	state   *pad.ControllerState
	holding []pad.Control
}

func New(tr transport.Transport) *Controller {
	return &Controller{
		tr:    tr,
		state: pad.NewControllerState(),
	}
}

// State exposes the current controller state, for display.
func (c *Controller) State() pad.ControllerState {
	return *c.state
}

// Holding returns the controls currently held.
func (c *Controller) Holding() []pad.Control {
	out := make([]pad.Control, len(c.holding))
	copy(out, c.holding)
	return out
}

// Press applies the controls plus anything held, and sends the frame.
func (c *Controller) Press(controls ...pad.Control) {
	all := append([]pad.Control(nil), controls...)
	for _, h := range c.holding {
		if !contains(all, h) {
			all = append(all, h)
		}
	}
	log.Debug().Stringer("controls", controlList(all)).Msg("press")

	buttons, hats, dirs := split(all)
	c.state.SetButtons(buttons...)
	c.state.SetHat(hats...)
	c.state.SetDirections(dirs...)
	c.send()
}

// PressEnd releases the controls. The hat always returns to center.
func (c *Controller) PressEnd(controls ...pad.Control) {
	buttons, _, dirs := split(controls)
	var tilts []pad.Tilt
	for _, d := range dirs {
		tilts = append(tilts, d.Tilts()...)
	}

	c.state.UnsetButtons(buttons...)
	c.state.UnsetHat()
	c.state.UnsetDirections(tilts...)
	c.send()
}

// Hold adds the controls to the held set and presses them. If any of
// them is already held, or named twice, nothing happens.
func (c *Controller) Hold(controls ...pad.Control) bool {
	for i, ctl := range controls {
		if contains(c.holding, ctl) {
			log.Warn().Stringer("control", ctl).Msg("already in holding state")
			return false
		}
		if contains(controls[:i], ctl) {
			log.Warn().Stringer("control", ctl).Msg("held twice in one call")
			return false
		}
	}
	c.holding = append(c.holding, controls...)
	c.Press(controls...)
	return true
}

// HoldEnd drops the controls from the held set and releases them.
func (c *Controller) HoldEnd(controls ...pad.Control) {
	for _, ctl := range controls {
		i := index(c.holding, ctl)
		if i < 0 {
			log.Warn().Stringer("control", ctl).Msg("not in holding state")
			continue
		}
		c.holding = append(c.holding[:i], c.holding[i+1:]...)
	}
	c.PressEnd(controls...)
}

// End tells the firmware to release everything and lets go of the
// transport. Later calls are no-ops.
func (c *Controller) End() {
	if c.tr == nil {
		return
	}
	c.tr.WriteLine(pad.END_LINE)
	c.tr = nil
	c.holding = nil
}

func (c *Controller) send() {
	line := c.state.Serialize()
	if c.tr == nil {
		log.Warn().Str("line", line).Msg("input session already ended")
		return
	}
	c.tr.WriteLine(line)
}

func split(controls []pad.Control) (buttons []pad.Button, hats []pad.Hat, dirs []pad.Direction) {
	for _, ctl := range controls {
		switch v := ctl.(type) {
		case pad.Button:
			buttons = append(buttons, v)
		case pad.Hat:
			hats = append(hats, v)
		case pad.Direction:
			dirs = append(dirs, v)
		}
	}
	return
}

func index(list []pad.Control, c pad.Control) int {
	for i, v := range list {
		if v == c {
			return i
		}
	}
	return -1
}

func contains(list []pad.Control, c pad.Control) bool {
	return index(list, c) >= 0
}

type controlList []pad.Control

func (l controlList) String() string {
	s := "["
	for i, c := range l {
		if i > 0 {
			s += " "
		}
		s += c.String()
	}
	return s + "]"
}
