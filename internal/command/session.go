package command

import (
	"time"

	"github.com/rs/zerolog"

	"pokecon/internal/input"
	"pokecon/internal/pad"
)

// Defaults used by Tap and by scripts that leave timings out.
const (
	DEFAULT_DURATION = 100 * time.Millisecond
	DEFAULT_WAIT     = 100 * time.Millisecond
)

// Session is what a routine drives. Every primitive ends at a checkpoint
// and returns ErrStopped once a stop was requested; waits are one sleep
// followed by the checkpoint, so a stop lands after at most one wait.
type Session struct {
	cmd *Command
	in  *input.Controller
	log zerolog.Logger
}

// Log returns the run's logger.
func (s *Session) Log() *zerolog.Logger {
	return &s.log
}

// Alive reports whether no stop has been requested.
func (s *Session) Alive() bool {
	return s.cmd.alive.Load()
}

func (s *Session) checkpoint() error {
	if !s.cmd.alive.Load() {
		return ErrStopped
	}
	return nil
}

// Wait sleeps for d, then checks for a stop.
func (s *Session) Wait(d time.Duration) error {
	if d > 0 {
		s.cmd.env.sleep(d)
	}
	return s.checkpoint()
}

// Press holds the controls for duration, releases them and waits.
func (s *Session) Press(duration, wait time.Duration, controls ...pad.Control) error {
	s.in.Press(controls...)
	if err := s.Wait(duration); err != nil {
		return err
	}
	s.in.PressEnd(controls...)
	return s.Wait(wait)
}

// Tap is Press with the default duration and wait.
func (s *Session) Tap(controls ...pad.Control) error {
	return s.Press(DEFAULT_DURATION, DEFAULT_WAIT, controls...)
}

// PressRep presses repeat times with interval between presses (none
// after the last), then waits.
func (s *Session) PressRep(repeat int, duration, interval, wait time.Duration, controls ...pad.Control) error {
	for i := 0; i < repeat; i++ {
		gap := interval
		if i == repeat-1 {
			gap = 0
		}
		if err := s.Press(duration, gap, controls...); err != nil {
			return err
		}
	}
	return s.Wait(wait)
}

// Hold keeps the controls pressed until HoldEnd, then waits.
func (s *Session) Hold(wait time.Duration, controls ...pad.Control) error {
	s.in.Hold(controls...)
	return s.Wait(wait)
}

// HoldEnd releases held controls.
func (s *Session) HoldEnd(controls ...pad.Control) error {
	s.in.HoldEnd(controls...)
	return s.checkpoint()
}

// Finish ends the routine from inside: routines return its result.
func (s *Session) Finish() error {
	s.cmd.SendStopRequest()
	return ErrStopped
}
