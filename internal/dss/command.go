// Package dss defines the text command interface to a feeder solver and the
// parser for its OpenDSS style script grammar.
package dss

import (
	"fmt"
	"strconv"
	"strings"
)

// Prop is one key=value argument.
type Prop struct {
	Key   string
	Value string
}

// Command is a parsed script line. Verb, Class and property keys are lower
// case; Name and values keep their original spelling.
type Command struct {
	Verb  string
	Class string
	Name  string
	Args  []string
	Props []Prop
}

// Prop returns the value of the last property named key.
func (c Command) Prop(key string) (string, bool) {
	key = strings.ToLower(key)
	for i := len(c.Props) - 1; i >= 0; i-- {
		if c.Props[i].Key == key {
			return c.Props[i].Value, true
		}
	}
	return "", false
}

// Target is the "class.name" the command addresses, if any.
func (c Command) Target() string {
	if c.Class == "" {
		return c.Name
	}
	return c.Class + "." + c.Name
}

// Parse splits one script line into a Command. "New" and "Edit" take a
// Class.Name target, "BatchEdit" a class..pattern target, and "~" or "More"
// continue the previous element with more properties.
func Parse(line string) (Command, error) {
	toks, err := tokenize(line)
	if err != nil {
		return Command{}, &SolverError{Op: "parse", Command: line, Err: err}
	}
	if len(toks) == 0 {
		return Command{}, &SolverError{Op: "parse", Command: line, Err: fmt.Errorf("empty command")}
	}
	cmd := Command{Verb: strings.ToLower(toks[0])}
	if cmd.Verb == "more" {
		cmd.Verb = "~"
	}
	rest := toks[1:]

	switch cmd.Verb {
	case "new", "edit", "batchedit":
		if len(rest) == 0 {
			return Command{}, &SolverError{Op: "parse", Command: line, Err: fmt.Errorf("%s needs a target", cmd.Verb)}
		}
		target := rest[0]
		if k, v, ok := strings.Cut(target, "="); ok && strings.EqualFold(k, "object") {
			target = v
		}
		sep := "."
		if cmd.Verb == "batchedit" {
			sep = ".."
		}
		class, name, ok := strings.Cut(target, sep)
		if !ok || class == "" || name == "" {
			return Command{}, &SolverError{Op: "parse", Command: line, Err: fmt.Errorf("target %q is not class%sname", target, sep)}
		}
		cmd.Class, cmd.Name = strings.ToLower(class), name
		rest = rest[1:]
	}

	for _, tok := range rest {
		k, v, ok := strings.Cut(tok, "=")
		if !ok || strings.HasPrefix(tok, "[") || strings.HasPrefix(tok, "\"") {
			cmd.Args = append(cmd.Args, tok)
			continue
		}
		if k == "" {
			return Command{}, &SolverError{Op: "parse", Command: line, Err: fmt.Errorf("property without a name in %q", tok)}
		}
		cmd.Props = append(cmd.Props, Prop{Key: strings.ToLower(k), Value: v})
	}
	return cmd, nil
}

// tokenize splits on white space outside brackets, parentheses and quotes.
func tokenize(line string) ([]string, error) {
	var (
		toks  []string
		cur   strings.Builder
		stack []rune
	)
	closing := map[rune]rune{'[': ']', '(': ')', '{': '}', '"': '"', '\'': '\''}
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		if n := len(stack); n > 0 {
			cur.WriteRune(r)
			top := stack[n-1]
			switch {
			case r == top:
				stack = stack[:n-1]
			case top != '"' && top != '\'' && closing[r] != 0:
				stack = append(stack, closing[r])
			case r == ']' || r == ')' || r == '}':
				if top != '"' && top != '\'' {
					return nil, fmt.Errorf("unbalanced %q", r)
				}
			}
			continue
		}
		switch {
		case r == ' ' || r == '\t' || r == ',':
			flush()
		case closing[r] != 0:
			cur.WriteRune(r)
			stack = append(stack, closing[r])
		case r == ']' || r == ')' || r == '}':
			return nil, fmt.Errorf("unbalanced %q", r)
		default:
			cur.WriteRune(r)
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("missing %q", stack[len(stack)-1])
	}
	flush()
	return toks, nil
}

// Unquote strips one pair of enclosing brackets, parentheses or quotes.
func Unquote(s string) string {
	if len(s) >= 2 {
		switch s[0] {
		case '[', '(', '{', '"', '\'':
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// ParseArray reads a bracketed list of numbers such as "[0 25 .8 1.0]".
func ParseArray(s string) ([]float64, error) {
	fields := strings.FieldsFunc(Unquote(s), func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("array element %q: %w", f, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseFloat reads a scalar property value.
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(Unquote(s), 64)
}

// FormatFloat renders v for a script line.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
