// Package command runs user routines ("commands") on a background
// goroutine against an input session. Cancellation is cooperative: every
// primitive a routine calls ends at a checkpoint that returns ErrStopped
// once a stop was requested, and the routine hands that error back up.
package command

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"pokecon/internal/capture"
	"pokecon/internal/input"
	"pokecon/internal/transport"
	"pokecon/internal/vision"
)

var (
	// ErrStopped is the checkpoint outcome after a stop request. It ends the
	// routine and counts as a clean finish.
	ErrStopped = errors.New("command stopped")

	// ErrBusy is returned by Start while a previous run is still active.
	ErrBusy = errors.New("command already running")

	// ErrNotImageAware is returned by image primitives of plain commands.
	ErrNotImageAware = errors.New("command is not image aware")
)

// Kind tags what a command needs besides the input session.
type Kind uint8

const (
	Plain Kind = iota
	ImageAware
)

func (k Kind) String() string {
	if k == ImageAware {
		return "image"
	}
	return "plain"
}

// Routine is the body of a command. It must return the error of any
// primitive that fails, ErrStopped included.
type Routine func(s *Session) error

// Definition is what a command plugin provides.
type Definition struct {
	Name    string
	Kind    Kind
	Routine Routine
}

// State of a command's run loop.
type State int32

const (
	Idle State = iota
	Running
	StopRequested
	Cleanup
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case StopRequested:
		return "stop requested"
	case Cleanup:
		return "cleanup"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type env struct {
	frames      capture.Source
	matcher     vision.Matcher
	templates   string
	annotate    string
	screenshots string
	sleep       func(time.Duration)
}

// Option configures a Command.
type Option func(*env)

// WithFrames binds the frame source image-aware commands read from.
func WithFrames(src capture.Source) Option {
	return func(e *env) { e.frames = src }
}

// WithTemplates sets the directory template names are resolved in.
func WithTemplates(dir string) Option {
	return func(e *env) { e.templates = dir }
}

// WithMatcher replaces the default NCC matcher.
func WithMatcher(m vision.Matcher) Option {
	return func(e *env) { e.matcher = m }
}

// WithAnnotateDir saves an annotated image for every successful match.
func WithAnnotateDir(dir string) Option {
	return func(e *env) { e.annotate = dir }
}

// WithScreenshotDir sets where Session.Screenshot writes.
func WithScreenshotDir(dir string) Option {
	return func(e *env) { e.screenshots = dir }
}

// WithSleep replaces time.Sleep, for tests.
func WithSleep(fn func(time.Duration)) Option {
	return func(e *env) { e.sleep = fn }
}

// Command is a runnable instance of a Definition. It keeps nothing across
// runs except its definition and injected capabilities.
type Command struct {
	def Definition
	env env

	mu         sync.Mutex
	state      atomic.Int32
	alive      atomic.Bool
	done       chan struct{}
	onComplete func()
}

// New checks the definition against the capabilities it needs.
func New(def Definition, opts ...Option) (*Command, error) {
	if def.Name == "" {
		return nil, errors.New("command has no name")
	}
	if def.Routine == nil {
		return nil, errors.Errorf("command %q has no routine", def.Name)
	}

	e := env{
		matcher:     vision.NCC{},
		templates:   "templates",
		screenshots: "screenshot",
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(&e)
	}
	if def.Kind == ImageAware && e.frames == nil {
		return nil, errors.Errorf("command %q needs a frame source", def.Name)
	}
	return &Command{def: def, env: e}, nil
}

func (c *Command) Name() string { return c.def.Name }
func (c *Command) Kind() Kind   { return c.def.Kind }

func (c *Command) State() State {
	return State(c.state.Load())
}

func (c *Command) IsRunning() bool {
	return c.State() != Idle
}

// Start runs the routine on a new goroutine with a fresh input session
// on tr and returns at once. onComplete, if set, is called once when the
// run ends, whatever the reason.
func (c *Command) Start(tr transport.Transport, onComplete func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != Idle {
		return errors.Wrap(ErrBusy, c.def.Name)
	}

	done := make(chan struct{})
	c.done = done
	c.onComplete = onComplete
	c.alive.Store(true)
	c.state.Store(int32(Running))

	logger := log.With().
		Str("command", c.def.Name).
		Str("run", uuid.NewString()).
		Logger()
	sess := &Session{cmd: c, in: input.New(tr), log: logger}

	go c.run(sess, done)
	return nil
}

// SendStopRequest asks a running routine to stop at its next checkpoint.
// It is a no-op when nothing is running or a stop is already pending.
func (c *Command) SendStopRequest() {
	if c.alive.CompareAndSwap(true, false) {
		c.state.CompareAndSwap(int32(Running), int32(StopRequested))
		log.Info().Str("command", c.def.Name).Msg("sent a stop request")
	}
}

// Done is closed when the current (or last) run has fully cleaned up.
func (c *Command) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

func (c *Command) run(sess *Session, done chan struct{}) {
	sess.log.Info().Str("kind", c.def.Kind.String()).Msg("command started")

	err := c.invoke(sess)
	switch {
	case err == nil, errors.Is(err, ErrStopped):
		sess.log.Info().Msg("finished successfully")
	default:
		sess.log.Error().Stack().Err(err).Msg("command failed")
	}

	c.cleanup(sess, done)
}

func (c *Command) invoke(sess *Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	if err := sess.checkpoint(); err != nil {
		return err
	}
	return c.def.Routine(sess)
}

func (c *Command) cleanup(sess *Session, done chan struct{}) {
	c.state.Store(int32(Cleanup))
	c.alive.Store(false)
	sess.in.End()

	c.mu.Lock()
	cb := c.onComplete
	c.onComplete = nil
	c.state.Store(int32(Idle))
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
	close(done)
}
