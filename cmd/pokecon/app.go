package main

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"pokecon/internal/binding"
	"pokecon/internal/capture"
	"pokecon/internal/command"
	"pokecon/internal/config"
	"pokecon/internal/input"
	"pokecon/internal/pad"
	"pokecon/internal/registry"
	"pokecon/internal/transport"
)

// manualInput serializes the direct input sources (keyboard, pad,
// console) on one input session.
type manualInput struct {
	mu sync.Mutex
	in *input.Controller
}

func (m *manualInput) Press(controls ...pad.Control) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.in.Press(controls...)
}

func (m *manualInput) PressEnd(controls ...pad.Control) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.in.PressEnd(controls...)
}

func (m *manualInput) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.in.End()
}

// suspender is a direct input source that goes quiet while a command
// owns the link.
type suspender interface {
	Suspend()
	Resume()
}

// app owns the serial link and lends it to one command at a time. While
// a command runs the direct input sources are suspended and console
// presses are refused.
type app struct {
	cfg      *config.Config
	serial   *transport.Serial
	frames   *capture.FileSource
	registry *registry.Registry
	manual   *manualInput
	keyboard *binding.Keyboard

	mu       sync.Mutex
	running  *command.Command
	bindings []suspender
}

func newApp(cfg *config.Config, reg *registry.Registry, frames *capture.FileSource) *app {
	tr := transport.NewSerial(cfg.Serial.Baud, cfg.Serial.ShowSerial)
	manual := &manualInput{in: input.New(tr)}
	kb := binding.NewKeyboard(manual, nil)
	return &app{
		cfg:      cfg,
		serial:   tr,
		frames:   frames,
		registry: reg,
		manual:   manual,
		keyboard: kb,
		bindings: []suspender{kb},
	}
}

// attach adds a direct input source, suspended at once if a command is
// running.
func (a *app) attach(b suspender) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running != nil {
		b.Suspend()
	}
	a.bindings = append(a.bindings, b)
}

func (a *app) suspend() {
	for _, b := range a.bindings {
		b.Suspend()
	}
}

func (a *app) resume() {
	for _, b := range a.bindings {
		b.Resume()
	}
}

func (a *app) commandOptions() []command.Option {
	opts := []command.Option{
		command.WithTemplates(a.cfg.TemplatesDir),
		command.WithScreenshotDir(a.cfg.Capture.ScreenshotDir),
		command.WithAnnotateDir(a.cfg.AnnotateDir),
	}
	if a.frames != nil {
		opts = append(opts, command.WithFrames(a.frames))
	}
	return opts
}

func (a *app) busy() *command.Command {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// start runs the named command on the serial link.
func (a *app) start(name string) error {
	e, ok := a.registry.Get(name)
	if !ok {
		return errors.Errorf("no command named %q", name)
	}
	c, err := e.Command(a.commandOptions()...)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running != nil {
		return errors.Wrap(command.ErrBusy, a.running.Name())
	}
	a.suspend()
	if err := c.Start(a.serial, func() { a.finished(c) }); err != nil {
		a.resume()
		return err
	}
	a.running = c
	return nil
}

func (a *app) finished(c *command.Command) {
	a.mu.Lock()
	if a.running == c {
		a.running = nil
		a.resume()
	}
	a.mu.Unlock()
	log.Info().Str("command", c.Name()).Msg("ready")
}

// stop asks the running command to stop and waits up to timeout.
func (a *app) stop(timeout time.Duration) error {
	c := a.busy()
	if c == nil {
		return errors.New("no command is running")
	}
	c.SendStopRequest()
	select {
	case <-c.Done():
		return nil
	case <-time.After(timeout):
		return errors.Errorf("%s did not stop within %v", c.Name(), timeout)
	}
}

// press taps a control combination such as "A" or "ZL+UP".
func (a *app) press(combo string, duration time.Duration) error {
	if c := a.busy(); c != nil {
		return errors.Wrap(command.ErrBusy, c.Name())
	}
	controls, err := pad.ParseControls(combo)
	if err != nil {
		return err
	}
	a.manual.Press(controls...)
	time.Sleep(duration)
	a.manual.PressEnd(controls...)
	return nil
}

func (a *app) screenshot() (string, error) {
	if a.frames == nil {
		return "", errors.New("no capture source configured")
	}
	return capture.SaveScreenshot(a.frames, a.cfg.Capture.ScreenshotDir)
}

func (a *app) reload() (registry.Report, error) {
	return a.registry.Reload()
}

func (a *app) connect(port string) error {
	if c := a.busy(); c != nil {
		return errors.Wrap(command.ErrBusy, c.Name())
	}
	return a.serial.Open(port)
}

func (a *app) status() string {
	var b strings.Builder
	port := a.serial.Port()
	if port == "" {
		port = "(not connected)"
	}
	b.WriteString("port: " + port + "\n")
	if c := a.busy(); c != nil {
		b.WriteString("running: " + c.Name() + " (" + c.State().String() + ")\n")
	} else {
		b.WriteString("running: -\n")
	}
	if a.frames != nil {
		state := "waiting for first frame"
		if _, ok := a.frames.Read(); ok {
			state = "ok"
		}
		b.WriteString("capture: " + a.frames.Path + " " + state + "\n")
	}
	return b.String()
}

// close stops whatever runs and releases the link.
func (a *app) close() {
	if a.busy() != nil {
		if err := a.stop(5 * time.Second); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}
	if a.serial.IsOpen() {
		a.manual.End()
	}
	a.serial.Close()
}
