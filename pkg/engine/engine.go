// Package engine defines the narrow interface chisel uses to talk to a debugger
// that owns a paused target process.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout is used for every engine round trip when the caller's context
// has no deadline of its own.
const DefaultTimeout = 30 * time.Second

// Language selects the expression parser the engine should use.
type Language string

const (
	ObjC  Language = "objc"
	Swift Language = "swift"
	C     Language = "c"
)

var (
	// ErrUnsupported is returned by drivers that cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by this engine")
	// ErrNilPointer is returned when an expression that must yield an object yields nil.
	ErrNilPointer = errors.New("expression evaluated to a nil pointer")
	// ErrNotRunning is returned when the engine has no live target.
	ErrNotRunning = errors.New("engine has no live target")
)

// EvalError is an expression evaluation failure reported by the debugger.
type EvalError struct {
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	return e.Message
}

// IsEvalError reports whether err came from the debugger's expression evaluator.
func IsEvalError(err error) bool {
	var ee *EvalError
	return errors.As(err, &ee)
}

// Value is the textual result of one evaluated expression.
type Value struct {
	Type    string
	Value   string
	Summary string
}

func (v *Value) String() string {
	if v == nil {
		return ""
	}
	if v.Summary != "" && v.Value != "" {
		return v.Value + " " + v.Summary
	}
	if v.Summary != "" {
		return v.Summary
	}
	return v.Value
}

// Pointer returns the value as a pointer.
func (v *Value) Pointer() (Pointer, error) {
	if v == nil {
		return 0, ErrNilPointer
	}
	return ParsePointer(v.Value)
}

// Pointer is an address in the target process. Zero is the null sentinel.
type Pointer uint64

// ParsePointer parses the hexadecimal pointer strings the engine returns.
// "nil", "NULL" and "<nil>" parse as the null pointer.
func ParsePointer(s string) (Pointer, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "nil", "NULL", "<nil>", "0":
		return 0, nil
	}
	// values such as `0x0000000100e0a000 "summary"` carry a trailing summary
	if i := strings.IndexAny(s, " \t\n"); i > 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("invalid pointer: empty string")
	}
	p, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid pointer %q: %v", s, err)
	}
	return Pointer(p), nil
}

// IsNil reports whether p is the null sentinel.
func (p Pointer) IsNil() bool {
	return p == 0
}

func (p Pointer) String() string {
	return fmt.Sprintf("%#x", uint64(p))
}

// BreakpointSpec describes where to stop.
type BreakpointSpec struct {
	Name         string // symbol name
	FullName     string // fully qualified name, e.g. -[UIView(Cat) setFrame:]
	Regex        string // function name regex
	Address      uint64
	Condition    string
	SkipPrologue *bool
}

func (s BreakpointSpec) String() string {
	switch {
	case s.FullName != "":
		return s.FullName
	case s.Regex != "":
		return "/" + s.Regex + "/"
	case s.Name != "":
		return s.Name
	default:
		return Pointer(s.Address).String()
	}
}

// Breakpoint is a breakpoint created by the engine.
type Breakpoint struct {
	ID   int
	Spec BreakpointSpec
}

// WatchKind selects what triggers a watchpoint.
type WatchKind string

const (
	WatchWrite     WatchKind = "write"
	WatchRead      WatchKind = "read"
	WatchReadWrite WatchKind = "read_write"
)

// Watchpoint is a watchpoint created by the engine.
type Watchpoint struct {
	ID      int
	Address uint64
	Size    int
	Kind    WatchKind
}

// TargetInfo describes the selected target.
type TargetInfo struct {
	Triple string
	Arch   string
	PID    int
}

// Evaluator is the subset of Engine needed to evaluate expressions.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string, lang Language) (*Value, error)
	Describe(ctx context.Context, expr string, lang Language) (string, error)
}

// MemoryReader reads raw target memory.
type MemoryReader interface {
	ReadMemory(ctx context.Context, addr uint64, length int) ([]byte, error)
}

// Engine is the debug engine collaborator.
type Engine interface {
	Evaluator
	MemoryReader
	SetBreakpoint(ctx context.Context, spec BreakpointSpec) (*Breakpoint, error)
	EnableBreakpoint(ctx context.Context, id int, enabled bool) error
	SetWatchpoint(ctx context.Context, addr uint64, size int, kind WatchKind) (*Watchpoint, error)
	HandleCommand(ctx context.Context, text string) (string, error)
	Continue(ctx context.Context) error
	Interrupt(ctx context.Context) error
	Target(ctx context.Context) (*TargetInfo, error)
	Close() error
}

// WithTimeout returns ctx bounded by d unless it already has an earlier deadline.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < d {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
