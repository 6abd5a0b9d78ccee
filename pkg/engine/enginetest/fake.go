// Package enginetest provides a scripted engine.Engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/blacktop/chisel/pkg/engine"
)

// Handler answers an expression matched by a pattern.
type Handler func(m []string) (*engine.Value, error)

type pattern struct {
	re *regexp.Regexp
	fn Handler
}

type region struct {
	addr uint64
	data []byte
}

// Fake is a scripted engine. Unscripted expressions fail with an *engine.EvalError.
type Fake struct {
	mu sync.Mutex

	values   map[string]*engine.Value
	errs     map[string]error
	descs    map[string]string
	patterns []pattern
	outputs  map[string]string
	memory   []region

	Info engine.TargetInfo

	Evaluated   []string
	Described   []string
	Commands    []string
	Breakpoints []engine.BreakpointSpec
	Enabled     map[int]bool
	Watchpoints []engine.Watchpoint
	Continues   int
	Interrupts  int
	Closed      bool
}

// New returns an empty fake targeting arm64 iOS.
func New() *Fake {
	return &Fake{
		values:  make(map[string]*engine.Value),
		errs:    make(map[string]error),
		descs:   make(map[string]string),
		outputs: make(map[string]string),
		Enabled: make(map[int]bool),
		Info:    engine.TargetInfo{Triple: "arm64-apple-ios", Arch: "arm64"},
	}
}

// On scripts expr to evaluate to value.
func (f *Fake) On(expr, value string) *Fake {
	return f.OnValue(expr, engine.Value{Value: value})
}

// OnValue scripts expr to evaluate to v.
func (f *Fake) OnValue(expr string, v engine.Value) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[expr] = &v
	return f
}

// OnError scripts expr to fail with msg.
func (f *Fake) OnError(expr, msg string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[expr] = &engine.EvalError{Expr: expr, Message: msg}
	return f
}

// OnDescribe scripts the object description of expr.
func (f *Fake) OnDescribe(expr, desc string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.descs[expr] = desc
	return f
}

// OnMatch answers every expression matching re with fn. Exact scripts win.
func (f *Fake) OnMatch(re string, fn Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns = append(f.patterns, pattern{re: regexp.MustCompile(re), fn: fn})
	return f
}

// OnCommand scripts the output of a host command.
func (f *Fake) OnCommand(cmd, output string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[cmd] = output
	return f
}

// SetMemory maps data at addr.
func (f *Fake) SetMemory(addr uint64, data []byte) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memory = append(f.memory, region{addr: addr, data: data})
	sort.Slice(f.memory, func(i, j int) bool { return f.memory[i].addr < f.memory[j].addr })
	return f
}

func (f *Fake) Evaluate(ctx context.Context, expr string, lang engine.Language) (*engine.Value, error) {
	f.mu.Lock()
	f.Evaluated = append(f.Evaluated, expr)
	if err, ok := f.errs[expr]; ok {
		f.mu.Unlock()
		return nil, err
	}
	if v, ok := f.values[expr]; ok {
		f.mu.Unlock()
		out := *v
		return &out, nil
	}
	patterns := append([]pattern(nil), f.patterns...)
	f.mu.Unlock()

	for _, p := range patterns {
		if m := p.re.FindStringSubmatch(expr); m != nil {
			return p.fn(m)
		}
	}
	return nil, &engine.EvalError{Expr: expr, Message: fmt.Sprintf("error: unscripted expression: %s", expr)}
}

func (f *Fake) Describe(ctx context.Context, expr string, lang engine.Language) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Described = append(f.Described, expr)
	if err, ok := f.errs[expr]; ok {
		return "", err
	}
	if d, ok := f.descs[expr]; ok {
		return d, nil
	}
	return "", &engine.EvalError{Expr: expr, Message: fmt.Sprintf("error: unscripted description: %s", expr)}
}

func (f *Fake) ReadMemory(ctx context.Context, addr uint64, length int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.memory {
		end := r.addr + uint64(len(r.data))
		if addr >= r.addr && addr < end {
			off := addr - r.addr
			n := uint64(length)
			if off+n > uint64(len(r.data)) {
				n = uint64(len(r.data)) - off
			}
			out := make([]byte, n)
			copy(out, r.data[off:off+n])
			return out, nil
		}
	}
	return nil, fmt.Errorf("memory read failed for %#x", addr)
}

func (f *Fake) SetBreakpoint(ctx context.Context, spec engine.BreakpointSpec) (*engine.Breakpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Breakpoints = append(f.Breakpoints, spec)
	id := len(f.Breakpoints)
	f.Enabled[id] = true
	return &engine.Breakpoint{ID: id, Spec: spec}, nil
}

func (f *Fake) EnableBreakpoint(ctx context.Context, id int, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id < 1 || id > len(f.Breakpoints) {
		return fmt.Errorf("invalid breakpoint id %d", id)
	}
	f.Enabled[id] = enabled
	return nil
}

func (f *Fake) SetWatchpoint(ctx context.Context, addr uint64, size int, kind engine.WatchKind) (*engine.Watchpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wp := engine.Watchpoint{ID: len(f.Watchpoints) + 1, Address: addr, Size: size, Kind: kind}
	f.Watchpoints = append(f.Watchpoints, wp)
	return &wp, nil
}

func (f *Fake) HandleCommand(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, text)
	return f.outputs[text], nil
}

func (f *Fake) Continue(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Continues++
	return nil
}

func (f *Fake) Interrupt(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Interrupts++
	return nil
}

func (f *Fake) Target(ctx context.Context) (*engine.TargetInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info := f.Info
	return &info, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// CommandLog returns a copy of the host commands run so far.
func (f *Fake) CommandLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Commands...)
}

var _ engine.Engine = (*Fake)(nil)
