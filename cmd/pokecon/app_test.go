package main

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"pokecon/internal/command"
	"pokecon/internal/config"
	"pokecon/internal/macros"
	"pokecon/internal/registry"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tap.pcs"), []byte("name tap\npress A\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.ScriptsDir = dir
	reg, err := registry.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	return newApp(cfg, reg, nil)
}

func TestStartStop(t *testing.T) {
	a := newTestApp(t)
	if err := a.start(macros.MASH_A); err != nil {
		t.Fatal(err)
	}
	if err := a.start("tap"); !errors.Is(err, command.ErrBusy) {
		t.Errorf("second start = %v, want busy", err)
	}
	if err := a.press("A", time.Millisecond); !errors.Is(err, command.ErrBusy) {
		t.Errorf("press while running = %v, want busy", err)
	}
	if err := a.stop(2 * time.Second); err != nil {
		t.Fatal(err)
	}

	// the completion callback clears the slot
	deadline := time.Now().Add(time.Second)
	for a.busy() != nil {
		if time.Now().After(deadline) {
			t.Fatal("still busy after stop")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := a.stop(time.Second); err == nil {
		t.Error("stop with nothing running succeeded")
	}
}

type fakeBinding struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeBinding) Suspend() { f.record("suspend") }
func (f *fakeBinding) Resume()  { f.record("resume") }

func (f *fakeBinding) record(ev string) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
}

func (f *fakeBinding) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func TestBindingsQuietWhileRunning(t *testing.T) {
	a := newTestApp(t)
	pad := &fakeBinding{}
	a.attach(pad)

	if err := a.start(macros.MASH_A); err != nil {
		t.Fatal(err)
	}
	if got := pad.seen(); !reflect.DeepEqual(got, []string{"suspend"}) {
		t.Errorf("after start = %q", got)
	}
	late := &fakeBinding{}
	a.attach(late)
	if got := late.seen(); !reflect.DeepEqual(got, []string{"suspend"}) {
		t.Errorf("attached while running = %q", got)
	}

	if err := a.stop(2 * time.Second); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(time.Second)
	for a.busy() != nil {
		if time.Now().After(deadline) {
			t.Fatal("still busy after stop")
		}
		time.Sleep(5 * time.Millisecond)
	}
	for _, b := range []*fakeBinding{pad, late} {
		if got := b.seen(); !reflect.DeepEqual(got, []string{"suspend", "resume"}) {
			t.Errorf("after stop = %q", got)
		}
	}
}

func TestStartErrors(t *testing.T) {
	a := newTestApp(t)
	if err := a.start("nope"); err == nil {
		t.Error("unknown command started")
	}
	// no capture source configured
	if err := a.start(macros.AUTO_RELEASE); err == nil {
		t.Error("image-aware command started without frames")
	}
	if _, err := a.screenshot(); err == nil {
		t.Error("screenshot without capture")
	}
	if err := a.press("TURBO", 0); err == nil {
		t.Error("unknown control pressed")
	}
}

func TestComplete(t *testing.T) {
	a := newTestApp(t)
	if got, want := complete(a, "st"), []string{"start", "status", "stop"}; !reflect.DeepEqual(got, want) {
		t.Errorf("complete(st) = %q, want %q", got, want)
	}
	if got, want := complete(a, "start ma"), []string{"start " + macros.MASH_A}; !reflect.DeepEqual(got, want) {
		t.Errorf("complete(start ma) = %q, want %q", got, want)
	}
}
