package logbus

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func receive(t *testing.T, s *Subscription) *Event {
	t.Helper()
	select {
	case e := <-s.Ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	return nil
}

func TestBusFanOut(t *testing.T) {
	b := New()
	all := b.Subscribe(8)
	warn := b.Subscribe(8, MinLevel(zerolog.WarnLevel))
	mash := b.Subscribe(8, Field("command", "mash A"))

	logger := zerolog.New(b).With().Timestamp().Logger()
	logger.Info().Str("command", "mash A").Msg("command started")
	logger.Warn().Str("port", "/dev/ttyUSB0").Msg("write failed")

	e := receive(t, all)
	if e.Message != "command started" || e.Level != zerolog.InfoLevel || e.Fields["command"] != "mash A" {
		t.Errorf("first event = %+v", e)
	}
	if e.Time.IsZero() {
		t.Error("time not decoded")
	}
	if e := receive(t, all); e.Message != "write failed" {
		t.Errorf("second event = %+v", e)
	}
	if e := receive(t, warn); e.Level != zerolog.WarnLevel {
		t.Errorf("warn subscriber got %+v", e)
	}
	if e := receive(t, mash); e.Message != "command started" {
		t.Errorf("command subscriber got %+v", e)
	}
	select {
	case e := <-mash.Ch:
		t.Errorf("command subscriber got unrelated %+v", e)
	default:
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	b := New()
	s := b.Subscribe(1)
	logger := zerolog.New(b)
	for i := 0; i < 5; i++ {
		logger.Info().Int("i", i).Msg("tick")
	}
	if b.Dropped() != 4 {
		t.Errorf("dropped = %d, want 4", b.Dropped())
	}
	if e := receive(t, s); e.Fields["i"] != float64(0) {
		t.Errorf("kept %+v, want the first event", e)
	}
}

func TestCloseSubscription(t *testing.T) {
	b := New()
	s := b.Subscribe(1)
	s.Close()
	s.Close()
	if _, ok := <-s.Ch; ok {
		t.Error("channel still open")
	}
	b.Write([]byte(`{"level":"info","message":"after close"}`))
}

func TestDecodePlainText(t *testing.T) {
	e := Decode([]byte("not json"))
	if e.Message != "not json" || e.Level != zerolog.InfoLevel {
		t.Errorf("Decode = %+v", e)
	}
}

func TestHandler(t *testing.T) {
	b := New()
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?level=warn"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// wait for the handler to subscribe
	deadline := time.Now().Add(time.Second)
	for {
		b.mu.RLock()
		n := len(b.subs)
		b.mu.RUnlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	logger := zerolog.New(b)
	logger.Info().Msg("quiet")
	logger.Error().Msg("loud")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e Event
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatal(err)
	}
	if e.Message != "loud" || e.Level != zerolog.ErrorLevel {
		t.Errorf("streamed %+v", e)
	}
}
