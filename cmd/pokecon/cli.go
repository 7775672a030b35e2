package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"pokecon/internal/command"
	"pokecon/internal/transport"
)

type CLICommand struct {
	Name        string
	Usage       string
	MinArgs     int
	MaxArgs     int
	Handler     func(a *app, args []string) error
	Description string
}

var cliCommands = map[string]CLICommand{
	"ports": {
		Name: "ports", Usage: "ports", MinArgs: 0, MaxArgs: 0,
		Handler: func(a *app, args []string) error {
			ports, err := transport.ListPorts()
			if err != nil {
				return err
			}
			for _, p := range ports {
				fmt.Println(" ", p)
			}
			return nil
		},
		Description: "List serial ports",
	},
	"connect": {
		Name: "connect", Usage: "connect <port>", MinArgs: 1, MaxArgs: 1,
		Handler:     func(a *app, args []string) error { return a.connect(args[0]) },
		Description: "Open a serial port",
	},
	"list": {
		Name: "list", Usage: "list", MinArgs: 0, MaxArgs: 0,
		Handler: func(a *app, args []string) error {
			for _, e := range a.registry.Entries() {
				fmt.Printf("  %-24s %-6s %s\n", e.Name, e.Kind, e.Source)
			}
			return nil
		},
		Description: "List commands",
	},
	"start": {
		Name: "start", Usage: "start <command name>", MinArgs: 1, MaxArgs: 16,
		Handler:     func(a *app, args []string) error { return a.start(strings.Join(args, " ")) },
		Description: "Run a command",
	},
	"stop": {
		Name: "stop", Usage: "stop", MinArgs: 0, MaxArgs: 0,
		Handler:     func(a *app, args []string) error { return a.stop(10 * time.Second) },
		Description: "Stop the running command",
	},
	"reload": {
		Name: "reload", Usage: "reload", MinArgs: 0, MaxArgs: 0,
		Handler: func(a *app, args []string) error {
			rep, err := a.reload()
			if err != nil {
				return err
			}
			fmt.Printf("loaded %d, reloaded %d, removed %d, failed %d\n",
				len(rep.Loaded), len(rep.Reloaded), len(rep.Removed), len(rep.Failed))
			paths := make([]string, 0, len(rep.Failed))
			for p := range rep.Failed {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			for _, p := range paths {
				fmt.Printf("  %v\n", rep.Failed[p])
			}
			return nil
		},
		Description: "Rescan the scripts directory",
	},
	"press": {
		Name: "press", Usage: "press <controls> [seconds]", MinArgs: 1, MaxArgs: 2,
		Handler: func(a *app, args []string) error {
			d := command.DEFAULT_DURATION
			if len(args) == 2 {
				secs, err := strconv.ParseFloat(args[1], 64)
				if err != nil || secs < 0 {
					return errors.Errorf("bad duration %q", args[1])
				}
				d = time.Duration(secs * float64(time.Second))
			}
			return a.press(args[0], d)
		},
		Description: "Press controls, e.g. press A+UP 0.5",
	},
	"screenshot": {
		Name: "screenshot", Usage: "screenshot", MinArgs: 0, MaxArgs: 0,
		Handler: func(a *app, args []string) error {
			path, err := a.screenshot()
			if err == nil {
				fmt.Println(" ", path)
			}
			return err
		},
		Description: "Save the latest frame",
	},
	"status": {
		Name: "status", Usage: "status", MinArgs: 0, MaxArgs: 0,
		Handler: func(a *app, args []string) error {
			fmt.Print(a.status())
			return nil
		},
		Description: "Show port, command and capture state",
	},
}

func runCommand(a *app, name string, args []string) {
	cmd, ok := cliCommands[name]
	if !ok {
		fmt.Printf("unknown command %q\n", name)
		return
	}
	if len(args) < cmd.MinArgs || len(args) > cmd.MaxArgs {
		fmt.Printf("usage: %s\n", cmd.Usage)
		return
	}
	if err := cmd.Handler(a, args); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

// complete offers console commands, then command names after "start ".
func complete(a *app, line string) (c []string) {
	if rest, ok := strings.CutPrefix(line, "start "); ok {
		for _, name := range a.registry.Names() {
			if strings.HasPrefix(name, rest) {
				c = append(c, "start "+name)
			}
		}
		return
	}
	for name := range cliCommands {
		if strings.HasPrefix(name, strings.ToLower(line)) {
			c = append(c, name)
		}
	}
	sort.Strings(c)
	return
}
