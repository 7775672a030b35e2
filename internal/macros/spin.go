package macros

import (
	"time"

	"pokecon/internal/command"
	"pokecon/internal/pad"
	"pokecon/internal/registry"
)

const SPIN = "spin"

const (
	SPIN_STEP = 30 // degrees per frame
	SPIN_HOLD = 50 * time.Millisecond
)

func init() {
	registry.Register(Spin)
}

// Spin sweeps the left stick round in circles until stopped, which runs
// the player in circles (egg hatching).
func Spin() command.Definition {
	return command.Definition{
		Name: SPIN,
		Kind: command.Plain,
		Routine: func(s *command.Session) error {
			for deg := 0; ; deg = (deg + SPIN_STEP) % 360 {
				d := pad.Direction{Stick: pad.LEFT_STICK, Degree: deg}
				if err := s.Press(SPIN_HOLD, 0, d); err != nil {
					return err
				}
			}
		},
	}
}
