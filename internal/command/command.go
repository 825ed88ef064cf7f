// Package command parses the line protocol that drives the viewer:
//
//	action(arg1, arg2, ...)
//
// Arguments are separated by commas and trimmed of surrounding spaces; a
// comma preceded by a backslash is part of the argument. Empty arguments are
// dropped. A bare action without parentheses has no arguments.
package command

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is one parsed line.
type Command struct {
	Action string
	Args   []string
}

// SyntaxError reports a line that is not a command.
type SyntaxError struct {
	Line   string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid command %q: %s", e.Line, e.Reason)
}

// Parse reads a single command line.
func Parse(line string) (Command, error) {
	s := strings.TrimSpace(line)
	if s == "" {
		return Command{}, &SyntaxError{Line: line, Reason: "empty line"}
	}

	open := strings.IndexByte(s, '(')
	if open < 0 {
		if strings.ContainsAny(s, " ,)") {
			return Command{}, &SyntaxError{Line: line, Reason: "missing '('"}
		}
		return Command{Action: s}, nil
	}
	action := strings.TrimSpace(s[:open])
	if action == "" {
		return Command{}, &SyntaxError{Line: line, Reason: "missing action"}
	}
	if !strings.HasSuffix(s, ")") {
		return Command{}, &SyntaxError{Line: line, Reason: "missing ')'"}
	}
	return Command{Action: action, Args: splitArgs(s[open+1 : len(s)-1])}, nil
}

func splitArgs(body string) []string {
	var (
		args []string
		cur  strings.Builder
	)
	flush := func() {
		if a := strings.Trim(cur.String(), " "); a != "" {
			args = append(args, a)
		}
		cur.Reset()
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body) && body[i+1] == ',':
			cur.WriteByte(',')
			i++
		case c == ',':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return args
}

// Arg returns argument i or "" when absent.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Int parses argument i as an integer.
func (c Command) Int(i int) (int, error) {
	if i >= len(c.Args) {
		return 0, fmt.Errorf("%s: missing argument %d", c.Action, i+1)
	}
	n, err := strconv.Atoi(c.Args[i])
	if err != nil {
		return 0, fmt.Errorf("%s: argument %d: %w", c.Action, i+1, err)
	}
	return n, nil
}

// Float parses argument i as a float.
func (c Command) Float(i int) (float64, error) {
	if i >= len(c.Args) {
		return 0, fmt.Errorf("%s: missing argument %d", c.Action, i+1)
	}
	f, err := strconv.ParseFloat(c.Args[i], 64)
	if err != nil {
		return 0, fmt.Errorf("%s: argument %d: %w", c.Action, i+1, err)
	}
	return f, nil
}

// String formats the command back into a line Parse accepts.
func (c Command) String() string {
	esc := make([]string, len(c.Args))
	for i, a := range c.Args {
		esc[i] = strings.ReplaceAll(a, ",", `\,`)
	}
	return c.Action + "(" + strings.Join(esc, ", ") + ")"
}
