package chisel

import (
	"fmt"
	"io"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
)

// MissingArgumentError is returned when a required argument was not given.
type MissingArgumentError struct {
	Arg   string
	Usage string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("Whoops! You are missing the <%s> argument.\n\nUsage: %s", e.Arg, e.Usage)
}

// Lex splits a command line with shell quoting rules.
func Lex(line string) ([]string, error) {
	words, err := shellquote.Split(line)
	if err != nil {
		return nil, fmt.Errorf("failed to split command line: %v", err)
	}
	return words, nil
}

// Parse splits tokens into positional arguments and option values.
//
// Commands without options never treat tokens starting with `-` as flags, so
// `bmessage -[UIView setFrame:]` is a single argument. Surplus leading tokens
// are joined with spaces into the first argument and missing trailing
// arguments are filled from their defaults.
func Parse(cmd Command, tokens []string) ([]string, Values, error) {
	var args []string
	values := make(Values)

	if len(cmd.Options()) == 0 {
		args = dropFirst(tokens, "--")
	} else {
		fs := pflag.NewFlagSet(cmd.Name(), pflag.ContinueOnError)
		fs.SetOutput(io.Discard)
		fs.SetInterspersed(true)
		strs := make(map[string]*string)
		for _, opt := range cmd.Options() {
			name := opt.Long
			if name == "" {
				name = opt.Short
			}
			if opt.Boolean {
				fs.BoolP(name, opt.Short, false, opt.Help)
			} else {
				strs[opt.Arg] = fs.StringP(name, opt.Short, defaultString(opt.Default), opt.Help)
			}
		}
		if err := fs.Parse(tokens); err != nil {
			return nil, nil, err
		}
		for _, opt := range cmd.Options() {
			name := opt.Long
			if name == "" {
				name = opt.Short
			}
			switch {
			case opt.Boolean:
				def := cast.ToBool(opt.Default)
				if fs.Changed(name) {
					values[opt.Arg] = !def
				} else {
					values[opt.Arg] = def
				}
			case fs.Changed(name):
				values[opt.Arg] = *strs[opt.Arg]
			default:
				values[opt.Arg] = opt.Default
			}
		}
		args = fs.Args()
	}

	declared := cmd.Args()
	if n := len(declared); n > 0 && len(args) > n {
		overhead := len(args) - n
		head := strings.Join(args[:overhead+1], " ")
		args = append([]string{head}, args[overhead+1:]...)
	}
	for i := len(args); i < len(declared); i++ {
		if declared[i].Required() {
			return nil, nil, &MissingArgumentError{Arg: declared[i].Arg, Usage: Usage(cmd)}
		}
		args = append(args, defaultString(declared[i].Default))
	}

	return args, values, nil
}

func defaultString(v any) string {
	if v == nil {
		return ""
	}
	return cast.ToString(v)
}

func dropFirst(tokens []string, tok string) []string {
	for i, t := range tokens {
		if t == tok {
			out := append([]string(nil), tokens[:i]...)
			return append(out, tokens[i+1:]...)
		}
	}
	return append([]string(nil), tokens...)
}
