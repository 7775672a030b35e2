// Package logbus carries log events from the core to whoever displays
// them. The bus is an io.Writer for zerolog: every JSON event written to
// it is decoded once and handed to each subscriber whose filters accept
// it. A subscriber that falls behind loses events; the writer never
// blocks.
package logbus

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const DEFAULT_BUFFER = 256

// Event is one decoded log line.
type Event struct {
	Level   zerolog.Level  `json:"level"`
	Time    time.Time      `json:"time"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// FilterFunc reports whether a subscriber wants the event.
type FilterFunc func(e *Event) bool

// MinLevel accepts events at level l or above.
func MinLevel(l zerolog.Level) FilterFunc {
	return func(e *Event) bool { return e.Level >= l }
}

// Field accepts events whose field key has the given string value, such
// as Field("command", "mash A").
func Field(key, value string) FilterFunc {
	return func(e *Event) bool {
		v, ok := e.Fields[key].(string)
		return ok && v == value
	}
}

// Subscription receives events on Ch until Close.
type Subscription struct {
	Ch <-chan *Event

	ch      chan *Event
	filters []FilterFunc
	bus     *Bus
	once    sync.Once
}

func (s *Subscription) accepts(e *Event) bool {
	for _, f := range s.filters {
		if !f(e) {
			return false
		}
	}
	return true
}

// Close unsubscribes and closes Ch.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

type Bus struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	dropped atomic.Uint64
}

func New() *Bus {
	return &Bus{subs: map[*Subscription]struct{}{}}
}

// Subscribe returns a subscription buffering up to buffer events.
func (b *Bus) Subscribe(buffer int, filters ...FilterFunc) *Subscription {
	if buffer <= 0 {
		buffer = DEFAULT_BUFFER
	}
	ch := make(chan *Event, buffer)
	s := &Subscription{Ch: ch, ch: ch, filters: filters, bus: b}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Dropped counts events lost to full subscriber buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Publish hands e to every interested subscriber without waiting.
func (b *Bus) Publish(e *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if !s.accepts(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Write decodes one zerolog JSON event and publishes it. Lines that are
// not JSON objects are published as plain info messages.
func (b *Bus) Write(p []byte) (int, error) {
	b.Publish(Decode(p))
	return len(p), nil
}

// Decode turns a zerolog JSON line into an Event.
func Decode(p []byte) *Event {
	e := &Event{Level: zerolog.InfoLevel, Time: time.Now()}
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err != nil {
		e.Message = string(p)
		return e
	}

	if s, ok := raw[zerolog.LevelFieldName].(string); ok {
		if l, err := zerolog.ParseLevel(s); err == nil {
			e.Level = l
		}
		delete(raw, zerolog.LevelFieldName)
	}
	if s, ok := raw[zerolog.TimestampFieldName].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			e.Time = t
		}
		delete(raw, zerolog.TimestampFieldName)
	}
	if s, ok := raw[zerolog.MessageFieldName].(string); ok {
		e.Message = s
		delete(raw, zerolog.MessageFieldName)
	}
	if len(raw) > 0 {
		e.Fields = raw
	}
	return e
}

// Close ends every subscription.
func (b *Bus) Close() {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()
	for _, s := range subs {
		s.Close()
	}
}
