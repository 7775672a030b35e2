// Package transporttest provides an in-memory transport for tests.
package transporttest

import (
	"sync"
)

// Recorder keeps every written line. It is safe for concurrent use so
// tests can read while a command goroutine writes.
type Recorder struct {
	mu     sync.Mutex
	lines  []string
	open   bool
	notify chan string
}

func NewRecorder() *Recorder {
	return &Recorder{open: true, notify: make(chan string, 1024)}
}

func (r *Recorder) Open(string) error {
	r.mu.Lock()
	r.open = true
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() {
	r.mu.Lock()
	r.open = false
	r.mu.Unlock()
}

func (r *Recorder) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

func (r *Recorder) WriteLine(line string) {
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
	select {
	case r.notify <- line:
	default:
	}
}

// Lines returns a copy of everything written so far.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Count returns how many times line was written.
func (r *Recorder) Count(line string) int {
	n := 0
	for _, l := range r.Lines() {
		if l == line {
			n++
		}
	}
	return n
}

// Last returns the most recent line, or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) == 0 {
		return ""
	}
	return r.lines[len(r.lines)-1]
}

// Written delivers lines as they are written (best effort, buffered).
func (r *Recorder) Written() <-chan string {
	return r.notify
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.lines = nil
	r.mu.Unlock()
}
