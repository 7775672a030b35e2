// Package macros holds the commands that ship with the binary. Each file
// registers its command at init; import the package for its side effect.
package macros

import (
	"time"

	"pokecon/internal/command"
	"pokecon/internal/pad"
	"pokecon/internal/registry"
)

const MASH_A = "mash A"

func init() {
	registry.Register(MashA)
}

// MashA presses A every half second until stopped.
func MashA() command.Definition {
	return command.Definition{
		Name: MASH_A,
		Kind: command.Plain,
		Routine: func(s *command.Session) error {
			for {
				if err := s.Wait(500 * time.Millisecond); err != nil {
					return err
				}
				if err := s.Tap(pad.A); err != nil {
					return err
				}
			}
		},
	}
}
