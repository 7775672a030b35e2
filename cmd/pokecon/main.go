// Command pokecon drives a Switch controller emulator over a serial link
// from the keyboard, a game pad or macro commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"

	"pokecon/internal/binding"
	"pokecon/internal/capture"
	"pokecon/internal/config"
	"pokecon/internal/logbus"
	_ "pokecon/internal/macros"
	"pokecon/internal/registry"
)

const historyFile = ".pokecon_history"

func setupLogging(level string, bus *logbus.Bus) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, bus)).
		Level(lvl).
		With().Timestamp().Logger()
}

func loadConfig(path string, explicit bool) *config.Config {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg
	}
	if explicit || !os.IsNotExist(errors.Cause(err)) {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	return config.Default()
}

func main() {
	cfgFile := flag.String("config", "", "Config file (default "+config.DEFAULT_PATH+")")
	port := flag.String("port", "", "Serial port, overrides the config")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	// ---- config & logger ----
	path := *cfgFile
	if path == "" {
		path = config.DEFAULT_PATH
	}
	cfg := loadConfig(path, *cfgFile != "")
	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	bus := logbus.New()
	defer bus.Close()
	setupLogging(cfg.Log.Level, bus)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---- collaborators ----
	reg, err := registry.New(cfg.ScriptsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("loading commands")
	}

	var frames *capture.FileSource
	if cfg.Capture.Source != "" {
		frames = capture.NewFileSource(cfg.Capture.Source, cfg.Capture.Interval.Duration)
		go frames.Run(ctx)
	}

	a := newApp(cfg, reg, frames)
	defer a.close()
	if cfg.Serial.Port != "" {
		if err := a.connect(cfg.Serial.Port); err != nil {
			log.Warn().Err(err).Msg("continuing without a serial port")
		}
	}

	if cfg.Keyboard.Device != "" {
		events, err := binding.ReadKeys(ctx, cfg.Keyboard.Device, cfg.Keyboard.Grab)
		if err != nil {
			log.Warn().Err(err).Msg("keyboard disabled")
		} else {
			go a.keyboard.Run(ctx, events)
		}
	}
	if cfg.Gamepad.Index >= 0 {
		gp, err := binding.OpenGamepad(a.manual, cfg.Gamepad.Index, cfg.Gamepad.Deadzone)
		if err != nil {
			log.Warn().Err(err).Msg("game pad disabled")
		} else {
			a.attach(gp)
			go func() {
				if err := gp.Run(ctx); err != nil {
					log.Warn().Err(err).Msg("game pad stopped")
				}
			}()
		}
	}
	if cfg.Log.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/logs", bus.Handler())
		srv := &http.Server{Addr: cfg.Log.Listen, Handler: mux}
		go func() {
			log.Info().Str("addr", cfg.Log.Listen).Msg("log stream listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("log stream")
			}
		}()
		defer srv.Close()
	}

	// ---- CLI args or interactive ----
	if flag.NArg() > 0 {
		runCommand(a, flag.Arg(0), flag.Args()[1:])
		if c := a.busy(); c != nil {
			select {
			case <-c.Done():
			case <-ctx.Done():
			}
		}
		return
	}
	repl(ctx, a)
}

func repl(ctx context.Context, a *app) {
	shell := liner.NewLiner()
	defer shell.Close()

	shell.SetCtrlCAborts(true)
	shell.SetCompleter(func(line string) []string { return complete(a, line) })

	if f, err := os.Open(historyFile); err == nil {
		shell.ReadHistory(f)
		f.Close()
	}

	fmt.Println("Interactive mode  type \"help\" for commands, Ctrl-D to quit.")
	for ctx.Err() == nil {
		input, err := shell.Prompt("> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			fmt.Println()
			break
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		shell.AppendHistory(input)

		if input == "help" {
			names := make([]string, 0, len(cliCommands))
			for name := range cliCommands {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				c := cliCommands[name]
				fmt.Printf("  %-28s %s\n", c.Usage, c.Description)
			}
			continue
		}
		if input == "quit" || input == "exit" {
			break
		}

		tokens := strings.Fields(input)
		runCommand(a, tokens[0], tokens[1:])
	}

	if f, err := os.Create(historyFile); err == nil {
		shell.WriteHistory(f)
		f.Close()
	}
}
