// Package capture provides frame sources with latest-frame semantics: a
// producer keeps replacing the current frame and readers never block it.
package capture

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"pokecon/internal/vision"
)

// Source is what image-aware commands read frames from.
type Source interface {
	Read() (vision.Frame, bool)
	IsOpen() bool
}

// Latest holds the most recent frame pushed by a producer.
type Latest struct {
	mu     sync.RWMutex
	frame  vision.Frame
	ok     bool
	closed bool
	seq    uint64
}

func NewLatest() *Latest {
	return &Latest{}
}

// Push replaces the current frame. It never waits for readers.
func (l *Latest) Push(f vision.Frame) {
	l.mu.Lock()
	l.frame = f
	l.ok = true
	l.seq++
	l.mu.Unlock()
}

// Read returns the current frame, false until the first Push or after Close.
func (l *Latest) Read() (vision.Frame, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed || !l.ok {
		return vision.Frame{}, false
	}
	return l.frame, true
}

// Seq counts pushes, so callers can tell a new frame from a repeated one.
func (l *Latest) Seq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seq
}

func (l *Latest) IsOpen() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.closed
}

func (l *Latest) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

// SaveScreenshot writes the current frame of src into dir as
// screenshot_YYYYMMDDhhmmss.png and returns the path.
func SaveScreenshot(src Source, dir string) (string, error) {
	frame, ok := src.Read()
	if !ok {
		return "", errors.New("no frame available")
	}
	name := fmt.Sprintf("screenshot_%s.png", time.Now().Format("20060102150405"))
	path := filepath.Join(dir, name)
	if err := vision.SavePNG(frame, path); err != nil {
		return "", err
	}
	log.Info().Str("file", name).Msg("successfully saved image")
	return path, nil
}
