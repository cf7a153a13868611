// Package parsing turns raw command text into a structured Command. It never
// fails on malformed input; degenerate text degrades to a command without
// options so that all domain validation happens in the handlers.
package parsing

import "strings"

// Option is a single short-named option with its raw string parameters.
type Option struct {
	Name   string
	Params []string
}

// Command is a parsed request: a leading name token, the ordered option list,
// and the free-text tokens that followed the name when the remainder was not
// an option block.
type Command struct {
	Name    string
	Options []Option
	Args    []string
}

// HasParams reports whether the option carries at least one parameter.
func (o Option) HasParams() bool {
	return len(o.Params) > 0
}

// Parse splits command text of the form "name [-opt [param ...]] ..." into a
// Command. Text after the first space is treated as an option block only when
// its first non-space character is '-'; otherwise it is kept as free-text
// arguments. Empty fragments produced by consecutive or trailing dashes are
// dropped.
func Parse(text string) Command {
	name, rest, found := strings.Cut(text, " ")
	cmd := Command{Name: name}
	if !found {
		return cmd
	}

	rest = strings.TrimLeft(rest, " ")
	if rest == "" {
		return cmd
	}
	if rest[0] != '-' {
		cmd.Args = strings.Fields(rest)
		return cmd
	}

	for _, fragment := range strings.Split(rest, "-") {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}
		cmd.Options = append(cmd.Options, parseOption(fragment))
	}
	return cmd
}

func parseOption(fragment string) Option {
	name, params, found := strings.Cut(fragment, " ")
	option := Option{Name: name}
	if found {
		option.Params = strings.Fields(params)
	}
	return option
}
