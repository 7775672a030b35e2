package script

import (
	"time"

	"pokecon/internal/command"
	"pokecon/internal/pad"
)

type stmt interface {
	run(s *command.Session) error
}

type stmts []stmt

func (b stmts) run(s *command.Session) error {
	for _, st := range b {
		if err := st.run(s); err != nil {
			return err
		}
	}
	return nil
}

type pressStmt struct {
	controls       []pad.Control
	duration, wait time.Duration
}

func (p pressStmt) run(s *command.Session) error {
	return s.Press(p.duration, p.wait, p.controls...)
}

type pressRepStmt struct {
	controls                 []pad.Control
	repeat                   int
	duration, interval, wait time.Duration
}

func (p pressRepStmt) run(s *command.Session) error {
	return s.PressRep(p.repeat, p.duration, p.interval, p.wait, p.controls...)
}

type holdStmt struct {
	controls []pad.Control
	wait     time.Duration
}

func (h holdStmt) run(s *command.Session) error {
	return s.Hold(h.wait, h.controls...)
}

type holdEndStmt struct {
	controls []pad.Control
}

func (h holdEndStmt) run(s *command.Session) error {
	return s.HoldEnd(h.controls...)
}

type waitStmt struct {
	d time.Duration
}

func (w waitStmt) run(s *command.Session) error {
	return s.Wait(w.d)
}

type logStmt struct {
	msg string
}

func (l logStmt) run(s *command.Session) error {
	s.Log().Info().Msg(l.msg)
	return nil
}

type screenshotStmt struct{}

func (screenshotStmt) run(s *command.Session) error {
	if _, err := s.Screenshot(); err != nil {
		s.Log().Warn().Err(err).Msg("screenshot")
	}
	return nil
}

type finishStmt struct{}

func (finishStmt) run(s *command.Session) error {
	return s.Finish()
}

// repeatStmt runs its body n times, forever when n < 0. Every pass ends
// on a stop check, so a body of only log lines can still be stopped.
type repeatStmt struct {
	n    int
	body stmts
}

func (r repeatStmt) run(s *command.Session) error {
	for i := 0; r.n < 0 || i < r.n; i++ {
		if err := r.body.run(s); err != nil {
			return err
		}
		if err := s.Wait(0); err != nil {
			return err
		}
		if len(r.body) == 0 {
			if err := s.Wait(command.DEFAULT_WAIT); err != nil {
				return err
			}
		}
	}
	return nil
}

type ifStmt struct {
	negate    bool
	template  string
	threshold float64
	then      stmts
	otherwise stmts
}

func (f ifStmt) run(s *command.Session) error {
	found, err := s.IsContainTemplate(f.template, command.Threshold(f.threshold))
	if err != nil {
		return err
	}
	if found != f.negate {
		return f.then.run(s)
	}
	return f.otherwise.run(s)
}
