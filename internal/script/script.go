// Package script reads macro files into command definitions.
//
// A macro file is one statement per line:
//
//	name "A連打"
//	loop {
//	    wait 0.5
//	    press A
//	}
//
// Blocks open with "{" at the end of a line and close with "}" on its
// own line ("} else {" is allowed after an if block). Times are seconds.
package script

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"pokecon/internal/command"
	"pokecon/internal/pad"
)

// EXT is the file extension of macro files.
const EXT = ".pcs"

// ErrSyntax wraps every parse error.
var ErrSyntax = errors.New("syntax error")

// Parse reads a macro from r; name is used in error messages.
func Parse(name string, r io.Reader) (command.Definition, error) {
	p := &parser{file: name}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		p.lines = append(p.lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return command.Definition{}, errors.Wrapf(err, "read %s", name)
	}

	body, err := p.block(false)
	if err != nil {
		return command.Definition{}, err
	}
	if p.name == "" {
		return command.Definition{}, p.errorf(0, "missing name statement")
	}

	kind := command.Plain
	if p.image {
		kind = command.ImageAware
	}
	return command.Definition{
		Name: p.name,
		Kind: kind,
		Routine: func(s *command.Session) error {
			return body.run(s)
		},
	}, nil
}

type parser struct {
	file  string
	lines []string
	pos   int

	name  string
	image bool
}

func (p *parser) errorf(line int, format string, args ...any) error {
	return errors.Wrapf(ErrSyntax, "%s:%d: "+format, append([]any{p.file, line}, args...)...)
}

// block parses statements until a closing brace (nested) or EOF (top).
// A nested block returns with p.pos still on the closing line.
func (p *parser) block(nested bool) (stmts, error) {
	var out stmts
	for p.pos < len(p.lines) {
		lineNo := p.pos + 1
		toks, err := tokenize(p.lines[p.pos])
		if err != nil {
			return nil, p.errorf(lineNo, "%v", err)
		}
		p.pos++
		if len(toks) == 0 {
			continue
		}
		if toks[0] == "}" {
			if !nested {
				return nil, p.errorf(lineNo, "unexpected }")
			}
			p.pos-- // let the caller look at the closer
			return out, nil
		}

		st, err := p.statement(lineNo, toks)
		if err != nil {
			return nil, err
		}
		if st != nil {
			out = append(out, st)
		}
	}
	if nested {
		return nil, p.errorf(len(p.lines), "missing }")
	}
	return out, nil
}

// body parses a nested block whose "{" ended the current line and
// consumes the closing line, returning its remaining tokens.
func (p *parser) body() (stmts, []string, error) {
	b, err := p.block(true)
	if err != nil {
		return nil, nil, err
	}
	closer, _ := tokenize(p.lines[p.pos])
	p.pos++
	return b, closer[1:], nil
}

func (p *parser) statement(lineNo int, toks []string) (stmt, error) {
	args := toks[1:]
	opensBlock := len(args) > 0 && args[len(args)-1] == "{"
	if opensBlock {
		args = args[:len(args)-1]
	}
	noBlock := func() error {
		if opensBlock {
			return p.errorf(lineNo, "%s does not take a block", toks[0])
		}
		return nil
	}

	switch toks[0] {
	case "name":
		if err := noBlock(); err != nil {
			return nil, err
		}
		if len(args) != 1 || args[0] == "" {
			return nil, p.errorf(lineNo, "name needs one value")
		}
		p.name = args[0]
		return nil, nil

	case "image":
		if err := noBlock(); err != nil {
			return nil, err
		}
		p.image = true
		return nil, nil

	case "press":
		if err := noBlock(); err != nil {
			return nil, err
		}
		if len(args) < 1 || len(args) > 3 {
			return nil, p.errorf(lineNo, "usage: press CONTROLS [duration] [wait]")
		}
		ctls, err := pad.ParseControls(args[0])
		if err != nil {
			return nil, p.errorf(lineNo, "%v", err)
		}
		times, err := p.durations(lineNo, args[1:], command.DEFAULT_DURATION, command.DEFAULT_WAIT)
		if err != nil {
			return nil, err
		}
		return pressStmt{ctls, times[0], times[1]}, nil

	case "press_rep":
		if err := noBlock(); err != nil {
			return nil, err
		}
		if len(args) < 2 || len(args) > 5 {
			return nil, p.errorf(lineNo, "usage: press_rep CONTROLS count [duration] [interval] [wait]")
		}
		ctls, err := pad.ParseControls(args[0])
		if err != nil {
			return nil, p.errorf(lineNo, "%v", err)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return nil, p.errorf(lineNo, "bad repeat count %q", args[1])
		}
		times, err := p.durations(lineNo, args[2:], command.DEFAULT_DURATION, command.DEFAULT_WAIT, command.DEFAULT_WAIT)
		if err != nil {
			return nil, err
		}
		return pressRepStmt{ctls, n, times[0], times[1], times[2]}, nil

	case "hold":
		if err := noBlock(); err != nil {
			return nil, err
		}
		if len(args) < 1 || len(args) > 2 {
			return nil, p.errorf(lineNo, "usage: hold CONTROLS [wait]")
		}
		ctls, err := pad.ParseControls(args[0])
		if err != nil {
			return nil, p.errorf(lineNo, "%v", err)
		}
		times, err := p.durations(lineNo, args[1:], command.DEFAULT_WAIT)
		if err != nil {
			return nil, err
		}
		return holdStmt{ctls, times[0]}, nil

	case "hold_end":
		if err := noBlock(); err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, p.errorf(lineNo, "usage: hold_end CONTROLS")
		}
		ctls, err := pad.ParseControls(args[0])
		if err != nil {
			return nil, p.errorf(lineNo, "%v", err)
		}
		return holdEndStmt{ctls}, nil

	case "wait":
		if err := noBlock(); err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, p.errorf(lineNo, "usage: wait seconds")
		}
		times, err := p.durations(lineNo, args, 0)
		if err != nil {
			return nil, err
		}
		return waitStmt{times[0]}, nil

	case "log":
		if err := noBlock(); err != nil {
			return nil, err
		}
		return logStmt{strings.Join(args, " ")}, nil

	case "screenshot":
		if err := noBlock(); err != nil {
			return nil, err
		}
		p.image = true
		return screenshotStmt{}, nil

	case "finish":
		if err := noBlock(); err != nil {
			return nil, err
		}
		return finishStmt{}, nil

	case "repeat":
		if !opensBlock || len(args) != 1 {
			return nil, p.errorf(lineNo, "usage: repeat N {")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return nil, p.errorf(lineNo, "bad repeat count %q", args[0])
		}
		b, rest, err := p.body()
		if err != nil {
			return nil, err
		}
		if len(rest) != 0 {
			return nil, p.errorf(lineNo, "unexpected %q after }", strings.Join(rest, " "))
		}
		return repeatStmt{n, b}, nil

	case "loop":
		if !opensBlock || len(args) != 0 {
			return nil, p.errorf(lineNo, "usage: loop {")
		}
		b, rest, err := p.body()
		if err != nil {
			return nil, err
		}
		if len(rest) != 0 {
			return nil, p.errorf(lineNo, "unexpected %q after }", strings.Join(rest, " "))
		}
		return repeatStmt{-1, b}, nil

	case "if":
		return p.ifStatement(lineNo, args, opensBlock)
	}

	return nil, p.errorf(lineNo, "unknown statement %q", toks[0])
}

// if [not] template NAME [threshold] {
func (p *parser) ifStatement(lineNo int, args []string, opensBlock bool) (stmt, error) {
	const usage = "usage: if [not] template NAME [threshold] {"
	if !opensBlock {
		return nil, p.errorf(lineNo, "%s", usage)
	}
	st := ifStmt{threshold: command.DEFAULT_THRESHOLD}
	if len(args) > 0 && args[0] == "not" {
		st.negate = true
		args = args[1:]
	}
	if len(args) < 2 || len(args) > 3 || args[0] != "template" {
		return nil, p.errorf(lineNo, "%s", usage)
	}
	st.template = args[1]
	if len(args) == 3 {
		v, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return nil, p.errorf(lineNo, "bad threshold %q", args[2])
		}
		st.threshold = v
	}
	p.image = true

	var rest []string
	var err error
	if st.then, rest, err = p.body(); err != nil {
		return nil, err
	}
	switch {
	case len(rest) == 0:
	case len(rest) == 2 && rest[0] == "else" && rest[1] == "{":
		var tail []string
		if st.otherwise, tail, err = p.body(); err != nil {
			return nil, err
		}
		if len(tail) != 0 {
			return nil, p.errorf(lineNo, "unexpected %q after else block", strings.Join(tail, " "))
		}
	default:
		return nil, p.errorf(lineNo, "unexpected %q after }", strings.Join(rest, " "))
	}
	return st, nil
}

// durations parses optional seconds values, falling back to defaults.
func (p *parser) durations(lineNo int, args []string, defaults ...time.Duration) ([]time.Duration, error) {
	if len(args) > len(defaults) {
		return nil, p.errorf(lineNo, "too many values")
	}
	out := append([]time.Duration(nil), defaults...)
	for i, a := range args {
		secs, err := strconv.ParseFloat(a, 64)
		if err != nil || secs < 0 {
			return nil, p.errorf(lineNo, "bad time %q", a)
		}
		out[i] = time.Duration(secs * float64(time.Second))
	}
	return out, nil
}

// tokenize splits on blanks, keeps "quoted strings" whole and drops
// # comments.
func tokenize(line string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(line) {
		switch c := line[i]; {
		case c == ' ' || c == '\t':
			i++
		case c == '#':
			return toks, nil
		case c == '"':
			j := strings.IndexByte(line[i+1:], '"')
			if j < 0 {
				return nil, errors.New("unterminated string")
			}
			toks = append(toks, line[i+1:i+1+j])
			i += j + 2
		default:
			j := i
			for j < len(line) && line[j] != ' ' && line[j] != '\t' && line[j] != '#' {
				j++
			}
			toks = append(toks, line[i:j])
			i = j
		}
	}
	return toks, nil
}
