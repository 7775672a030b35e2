//go:build linux

package binding

import (
	"context"
	"encoding/binary"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const (
	EV_KEY = 0x01

	// _IOW('E', 0x90, int)
	EVIOCGRAB = 0x40044590
)

// struct input_event: a timeval then type, code and value.
var eventSize = int(unsafe.Sizeof(unix.Timeval{})) + 8

// Linux key codes of the keys the default map uses, plus the rest of
// the letters so custom maps can use them.
var keyNames = map[uint16]string{
	16: "q", 17: "w", 18: "e", 19: "r", 20: "t", 21: "y", 22: "u", 23: "i", 24: "o", 25: "p",
	30: "a", 31: "s", 32: "d", 33: "f", 34: "g", 35: "h", 36: "j", 37: "k", 38: "l",
	44: "z", 45: "x", 46: "c", 47: "v", 48: "b", 49: "n", 50: "m",
	29: "ctrl_l", 42: "shift_l", 54: "shift_r", 97: "ctrl_r",
	57:  "space",
	103: "up", 105: "left", 106: "right", 108: "down",
}

// ReadKeys streams key events from an evdev device such as
// /dev/input/event3 until ctx is done or the device goes away. With grab
// the device's keys stop reaching other programs.
func ReadKeys(ctx context.Context, path string, grab bool) (<-chan KeyEvent, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrap(err, "open input device")
	}
	if grab {
		if err := grabDevice(f); err != nil {
			log.Warn().Err(err).Str("device", path).Msg("could not grab input device")
		}
	}

	out := make(chan KeyEvent, 64)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		f.Close()
	}()

	go func() {
		defer close(out)
		defer close(stop)

		p := &eventParser{size: eventSize}
		buf := make([]byte, 64*eventSize)
		for {
			n, err := f.Read(buf)
			if n > 0 {
				p.feed(buf[:n], func(typ, code uint16, value int32) {
					ev, ok := keyEvent(typ, code, value)
					if !ok {
						return
					}
					select {
					case out <- ev:
					case <-ctx.Done():
					}
				})
			}
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Str("device", path).Msg("input device closed")
				}
				return
			}
		}
	}()
	return out, nil
}

func grabDevice(f *os.File) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return errors.Wrap(err, "raw conn")
	}
	var ioctlErr error
	if err := rc.Control(func(fd uintptr) {
		ioctlErr = unix.IoctlSetInt(int(fd), EVIOCGRAB, 1)
	}); err != nil {
		return errors.Wrap(err, "raw control")
	}
	return errors.Wrap(ioctlErr, "EVIOCGRAB")
}

// keyEvent keeps presses and releases of known keys; value 2 is
// auto-repeat.
func keyEvent(typ, code uint16, value int32) (KeyEvent, bool) {
	if typ != EV_KEY || value == 2 {
		return KeyEvent{}, false
	}
	name, ok := keyNames[code]
	if !ok {
		return KeyEvent{}, false
	}
	return KeyEvent{Key: name, Down: value == 1}, true
}

// eventParser splits a byte stream into input_event records; reads may
// end mid-record.
type eventParser struct {
	buf  []byte
	size int
}

func (p *eventParser) feed(chunk []byte, cb func(typ, code uint16, value int32)) {
	p.buf = append(p.buf, chunk...)
	off := p.size - 8
	for len(p.buf) >= p.size {
		ev := p.buf[:p.size]
		p.buf = p.buf[p.size:]
		cb(binary.LittleEndian.Uint16(ev[off:]),
			binary.LittleEndian.Uint16(ev[off+2:]),
			int32(binary.LittleEndian.Uint32(ev[off+4:])))
	}
}
