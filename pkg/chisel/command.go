// Package chisel is the command framework: command declarations, argument
// and option parsing, help synthesis, the registry and per-session state.
package chisel

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Argument declares a positional argument or an option of a command.
//
// For positional arguments an empty Default means the argument is required.
// For options Default is the value used when the flag is not given. Boolean
// options flip their default when given.
type Argument struct {
	Short   string // single letter, without the dash
	Long    string // long name, without the dashes
	Arg     string
	Type    string
	Help    string
	Default any
	Boolean bool
}

// Required reports whether a positional argument has no default.
func (a Argument) Required() bool {
	if a.Default == nil {
		return true
	}
	s, ok := a.Default.(string)
	return ok && s == ""
}

func (a Argument) flag() string {
	switch {
	case a.Long != "" && a.Short != "":
		return "--" + a.Long + "/-" + a.Short
	case a.Long != "":
		return "--" + a.Long
	default:
		return "-" + a.Short
	}
}

// Values holds parsed option values keyed by Argument.Arg.
type Values map[string]any

// String returns the option as a string.
func (v Values) String(name string) string {
	return cast.ToString(v[name])
}

// Bool returns the option as a bool.
func (v Values) Bool(name string) bool {
	return cast.ToBool(v[name])
}

// Int returns the option as an int.
func (v Values) Int(name string) (int, error) {
	n, err := cast.ToIntE(strings.TrimSpace(cast.ToString(v[name])))
	if err != nil {
		return 0, fmt.Errorf("option %s: %v", name, err)
	}
	return n, nil
}

// Float returns the option as a float64.
func (v Values) Float(name string) (float64, error) {
	f, err := cast.ToFloat64E(strings.TrimSpace(cast.ToString(v[name])))
	if err != nil {
		return 0, fmt.Errorf("option %s: %v", name, err)
	}
	return f, nil
}

// Has reports whether the option holds a non-empty value.
func (v Values) Has(name string) bool {
	val, ok := v[name]
	if !ok || val == nil {
		return false
	}
	if s, ok := val.(string); ok {
		return s != ""
	}
	return true
}

// RunFunc runs a parsed command.
type RunFunc func(ctx context.Context, s *Session, args []string, opts Values) error

// RawRunFunc runs a command on its unparsed tokens.
type RawRunFunc func(ctx context.Context, s *Session, tokens []string) error

// Command is a user-facing command.
type Command interface {
	Name() string
	Description() string
	Args() []Argument
	Options() []Argument
	Run(ctx context.Context, s *Session, args []string, opts Values) error
}

// RawCommand is a Command that takes its tokens as typed, with no argument
// combining or defaulting.
type RawCommand interface {
	Command
	RunRaw(ctx context.Context, s *Session, tokens []string) error
}

// Spec is the declaration shared by Func and RawFunc.
type Spec struct {
	Name        string
	Description string
	Args        []Argument
	Options     []Argument
}

// Func adapts a Spec and a RunFunc into a Command.
type Func struct {
	spec Spec
	fn   RunFunc
}

func (f *Func) Name() string { return f.spec.Name }

func (f *Func) Description() string { return f.spec.Description }

func (f *Func) Args() []Argument { return f.spec.Args }

func (f *Func) Options() []Argument { return f.spec.Options }

func (f *Func) Run(ctx context.Context, s *Session, args []string, opts Values) error {
	return f.fn(ctx, s, args, opts)
}

// RawFunc adapts a Spec and a RawRunFunc into a RawCommand.
type RawFunc struct {
	spec Spec
	fn   RawRunFunc
}

func (f *RawFunc) Name() string { return f.spec.Name }

func (f *RawFunc) Description() string { return f.spec.Description }

func (f *RawFunc) Args() []Argument { return f.spec.Args }

func (f *RawFunc) Options() []Argument { return nil }

func (f *RawFunc) Run(ctx context.Context, s *Session, args []string, _ Values) error {
	return f.fn(ctx, s, args)
}

func (f *RawFunc) RunRaw(ctx context.Context, s *Session, tokens []string) error {
	return f.fn(ctx, s, tokens)
}

// New returns a Command.
func New(spec Spec, fn RunFunc) Command {
	return &Func{spec: spec, fn: fn}
}

// NewRaw returns a RawCommand.
func NewRaw(spec Spec, fn RawRunFunc) RawCommand {
	return &RawFunc{spec: spec, fn: fn}
}
