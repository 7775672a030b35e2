package transport

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

const (
	BAUD_RATE  = 9600
	LINE_ENDER = "\r\n"
)

// Transport is the link to the controller firmware. WriteLine never
// fails from the caller's point of view; errors are logged.
type Transport interface {
	Open(port string) error
	Close()
	IsOpen() bool
	WriteLine(line string)
}

// Serial writes protocol lines to a serial port. It buffers nothing and
// does no locking: one writer at a time.
type Serial struct {
	BaudRate   int
	ShowSerial bool

	port serial.Port
	name string
}

// NewSerial returns a closed transport.
func NewSerial(baud int, showSerial bool) *Serial {
	if baud <= 0 {
		baud = BAUD_RATE
	}
	return &Serial{BaudRate: baud, ShowSerial: showSerial}
}

// Open connects to the named port, closing any previous one.
func (s *Serial) Open(name string) error {
	if s.port != nil {
		s.Close()
	}

	log.Info().Str("port", name).Msg("connecting")
	mode := &serial.Mode{
		BaudRate: s.BaudRate,
		DataBits: 8,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		log.Error().Err(err).Str("port", name).Msg("port cannot be established")
		return errors.Wrapf(err, "open %s", name)
	}

	s.port = port
	s.name = name
	return nil
}

func (s *Serial) Close() {
	if s.port == nil {
		return
	}
	if err := s.port.Close(); err != nil {
		log.Warn().Err(err).Str("port", s.name).Msg("close error")
	}
	s.port = nil
}

func (s *Serial) IsOpen() bool {
	return s.port != nil
}

// Port returns the name of the open port, or "".
func (s *Serial) Port() string {
	if s.port == nil {
		return ""
	}
	return s.name
}

func (s *Serial) WriteLine(line string) {
	if s.port == nil {
		log.Error().Str("line", line).Msg("attempting to use a port that is not open")
		return
	}
	if _, err := s.port.Write([]byte(line + LINE_ENDER)); err != nil {
		log.Error().Err(err).Str("port", s.name).Msg("serial write error")
	}
	if s.ShowSerial {
		log.Debug().Str("port", s.name).Msg(line)
	}
}

// ListPorts returns the serial ports present on the system, sorted.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "list serial ports")
	}
	if len(ports) == 0 {
		return nil, errors.New("cannot detect serial ports")
	}
	sort.Strings(ports)
	return ports, nil
}
