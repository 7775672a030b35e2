package transport

import (
	"testing"
)

func TestSerialClosedWriteIsNoop(t *testing.T) {
	s := NewSerial(0, true)
	if s.BaudRate != BAUD_RATE {
		t.Errorf("default baud = %d", s.BaudRate)
	}
	if s.IsOpen() {
		t.Fatal("new transport reports open")
	}
	// must not panic or block
	s.WriteLine("0x0000 8")
	s.Close()
	if s.Port() != "" {
		t.Errorf("Port() = %q on closed transport", s.Port())
	}
}

func TestSerialOpenMissingPort(t *testing.T) {
	s := NewSerial(BAUD_RATE, false)
	if err := s.Open("/dev/pokecon-does-not-exist"); err == nil {
		s.Close()
		t.Fatal("expected error opening a missing port")
	}
	if s.IsOpen() {
		t.Error("failed open left the transport open")
	}
}
