// Package binding feeds physical input devices into an input session:
// a keyboard read from evdev and a game pad read through the joystick
// driver.
package binding

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"pokecon/internal/pad"
)

// Inputter is the part of input.Controller the bindings drive.
type Inputter interface {
	Press(controls ...pad.Control)
	PressEnd(controls ...pad.Control)
}

// KeyEvent is one key going down or up. Key is a lower-case name such
// as "l", "shift_l" or "up".
type KeyEvent struct {
	Key  string
	Down bool
}

// DefaultKeyMap lays the pad out on the right hand (face buttons on
// ijkl) and the left hand (stick on wasd).
func DefaultKeyMap() map[string]pad.Control {
	return map[string]pad.Control{
		"l":       pad.A,
		"k":       pad.B,
		"j":       pad.X,
		"i":       pad.Y,
		"q":       pad.L,
		"e":       pad.R,
		"u":       pad.ZL,
		"o":       pad.ZR,
		"shift_l": pad.L_CLICK,
		"shift_r": pad.R_CLICK,
		"ctrl_l":  pad.MINUS,
		"ctrl_r":  pad.PLUS,
		"h":       pad.HOME,
		"f":       pad.CAPTURE,
		"w":       pad.UP,
		"d":       pad.RIGHT,
		"s":       pad.DOWN,
		"a":       pad.LEFT,
		"up":      pad.HAT_TOP,
		"right":   pad.HAT_RIGHT,
		"down":    pad.HAT_BTM,
		"left":    pad.HAT_LEFT,
	}
}

// Keyboard turns key events into presses. Keys mapped to stick
// directions combine: the last two held ones form a diagonal.
type Keyboard struct {
	in   Inputter
	keys map[string]pad.Control

	mu        sync.Mutex
	holding   []string
	dirKeys   []string
	suspended atomic.Bool
}

// NewKeyboard binds keys to in; a nil map means DefaultKeyMap.
func NewKeyboard(in Inputter, keys map[string]pad.Control) *Keyboard {
	if keys == nil {
		keys = DefaultKeyMap()
	}
	return &Keyboard{in: in, keys: keys}
}

// Suspend drops key events until Resume, for while a command owns the
// transport. Keys held at that point are released and forgotten.
func (k *Keyboard) Suspend() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.suspended.Store(true)

	var held []pad.Control
	for _, key := range k.holding {
		held = append(held, k.keys[key])
	}
	for _, key := range k.dirKeys {
		held = append(held, k.keys[key])
	}
	if len(held) > 0 {
		k.in.PressEnd(held...)
	}
	k.holding, k.dirKeys = nil, nil
}

func (k *Keyboard) Resume() {
	k.suspended.Store(false)
}

// Run handles events until ctx is done or events is closed.
func (k *Keyboard) Run(ctx context.Context, events <-chan KeyEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Down {
				k.KeyDown(ev.Key)
			} else {
				k.KeyUp(ev.Key)
			}
		}
	}
}

// KeyDown presses the key's control. Auto-repeat of a held key is
// ignored.
func (k *Keyboard) KeyDown(key string) {
	ctl, ok := k.keys[key]
	if !ok {
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.suspended.Load() {
		return
	}
	if has(k.holding, key) || has(k.dirKeys, key) {
		return
	}
	log.Debug().Str("key", key).Stringer("control", ctl).Msg("key pressed")

	if _, isDir := ctl.(pad.Direction); isDir {
		k.dirKeys = append(k.dirKeys, key)
		k.pressDirection()
		return
	}
	k.holding = append(k.holding, key)
	k.in.Press(ctl)
}

// KeyUp releases the key's control. A released direction key hands the
// stick back to the keys still held.
func (k *Keyboard) KeyUp(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.suspended.Load() {
		return
	}

	switch {
	case has(k.dirKeys, key):
		k.dirKeys = remove(k.dirKeys, key)
		k.in.PressEnd(k.keys[key])
		k.pressDirection()
	case has(k.holding, key):
		k.holding = remove(k.holding, key)
		k.in.PressEnd(k.keys[key])
	}
}

func (k *Keyboard) pressDirection() {
	switch len(k.dirKeys) {
	case 0:
		return
	case 1:
		k.in.Press(k.keys[k.dirKeys[0]])
		return
	}

	last := k.dirKeys[len(k.dirKeys)-2:]
	var a, b pad.Direction
	a, _ = k.keys[last[0]].(pad.Direction)
	b, _ = k.keys[last[1]].(pad.Direction)
	if d, ok := diagonal(a, b); ok {
		k.in.Press(d)
	}
}

var diagonals = []struct{ a, b, both pad.Direction }{
	{pad.UP, pad.RIGHT, pad.UP_RIGHT},
	{pad.DOWN, pad.RIGHT, pad.DOWN_RIGHT},
	{pad.DOWN, pad.LEFT, pad.DOWN_LEFT},
	{pad.UP, pad.LEFT, pad.UP_LEFT},
	{pad.R_UP, pad.R_RIGHT, pad.R_UP_RIGHT},
	{pad.R_DOWN, pad.R_RIGHT, pad.R_DOWN_RIGHT},
	{pad.R_DOWN, pad.R_LEFT, pad.R_DOWN_LEFT},
	{pad.R_UP, pad.R_LEFT, pad.R_UP_LEFT},
}

// diagonal combines two cardinal directions of one stick. Opposite
// directions have none.
func diagonal(a, b pad.Direction) (pad.Direction, bool) {
	for _, d := range diagonals {
		if (a == d.a && b == d.b) || (a == d.b && b == d.a) {
			return d.both, true
		}
	}
	return pad.Direction{}, false
}

func has(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
