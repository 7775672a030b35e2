//go:build !linux

package binding

import (
	"context"

	"github.com/pkg/errors"
)

// ReadKeys needs Linux evdev.
func ReadKeys(ctx context.Context, path string, grab bool) (<-chan KeyEvent, error) {
	return nil, errors.New("keyboard input devices are only supported on linux")
}
