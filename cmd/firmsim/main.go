// Command firmsim stands in for the controller firmware: it reads
// protocol lines from a serial port (or stdin), tracks the pad state the
// way the microcontroller does and prints it.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"pokecon/internal/pad"
	"pokecon/internal/transport"
)

// openPort opens the port the host writes to, from the other end.
func openPort(name string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	return port, nil
}

// simulate applies every line of r to a fresh state. The state is
// printed to w at most once per every, and always on "end". It returns
// the number of frames applied when r is exhausted.
func simulate(r io.Reader, w io.Writer, every time.Duration) (int, error) {
	state := pad.NewControllerState()
	frames := 0
	lastPrint := time.Now()

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		f, err := pad.ParseFrame(sc.Text())
		if err != nil {
			log.Warn().Err(err).Msg("bad frame, dropping")
			continue
		}
		state.Apply(f)
		frames++

		if f.End {
			fmt.Fprintf(w, "end: %v\n", state)
			lastPrint = time.Now()
			continue
		}
		if time.Since(lastPrint) > every {
			fmt.Fprintf(w, "State: %v\n", state)
			lastPrint = time.Now()
		}
	}
	if err := sc.Err(); err != nil {
		return frames, errors.Wrap(err, "read")
	}
	fmt.Fprintf(w, "State: %v\n", state)
	return frames, nil
}

func main() {
	portName := flag.String("port", "", "Serial port to read (default stdin)")
	baud := flag.Int("baud", transport.BAUD_RATE, "Baud rate")
	listPorts := flag.Bool("ports", false, "List serial ports and exit")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()

	if *listPorts {
		ports, err := transport.ListPorts()
		if err != nil {
			log.Fatal().Err(err).Msg("ports")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	var in io.Reader = os.Stdin
	if *portName != "" {
		port, err := openPort(*portName, *baud)
		if err != nil {
			log.Fatal().Err(err).Msg("firmware port")
		}
		defer port.Close()
		log.Info().Str("port", *portName).Int("baud", *baud).Msg("listening")
		in = port
	}

	n, err := simulate(in, os.Stdout, time.Second)
	if err != nil {
		log.Error().Err(err).Int("frames", n).Msg("stopped")
		return
	}
	log.Info().Int("frames", n).Msg("input closed")
}
