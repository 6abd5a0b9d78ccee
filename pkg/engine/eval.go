package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cast"
)

// EvaluateExpression evaluates an Objective-C expression and returns its raw value.
func EvaluateExpression(ctx context.Context, e Evaluator, expr string) (string, error) {
	v, err := e.Evaluate(ctx, expr, ObjC)
	if err != nil {
		return "", err
	}
	if v.Value == "" {
		return v.Summary, nil
	}
	return v.Value, nil
}

// EvaluatePointer evaluates expr and parses the result as a pointer.
func EvaluatePointer(ctx context.Context, e Evaluator, expr string) (Pointer, error) {
	v, err := e.Evaluate(ctx, expr, ObjC)
	if err != nil {
		return 0, err
	}
	return v.Pointer()
}

// EvaluateObject evaluates expr as an `id`.
func EvaluateObject(ctx context.Context, e Evaluator, expr string) (Pointer, error) {
	return EvaluatePointer(ctx, e, "(id)("+expr+")")
}

// EvaluateInteger evaluates expr cast to int.
func EvaluateInteger(ctx context.Context, e Evaluator, expr string) (int64, error) {
	out, err := EvaluateExpression(ctx, e, "(int)("+expr+")")
	if err != nil {
		return 0, err
	}
	return ParseInteger(out)
}

// EvaluateFloat evaluates expr cast to double.
func EvaluateFloat(ctx context.Context, e Evaluator, expr string) (float64, error) {
	out, err := EvaluateExpression(ctx, e, "(double)("+expr+")")
	if err != nil {
		return 0, err
	}
	return cast.ToFloat64E(strings.TrimSpace(out))
}

// EvaluateBoolean evaluates expr cast to BOOL.
func EvaluateBoolean(ctx context.Context, e Evaluator, expr string) (bool, error) {
	out, err := EvaluateExpression(ctx, e, "(BOOL)("+expr+")")
	if err != nil {
		return false, err
	}
	return ParseBoolean(out)
}

// EvaluateEffect evaluates expr for its side effects only.
func EvaluateEffect(ctx context.Context, e Evaluator, expr string) error {
	_, err := e.Evaluate(ctx, "(void)("+expr+")", ObjC)
	return err
}

// EvaluateCString evaluates expr as a C string. When the engine does not
// print a summary and can read memory the string is read directly.
func EvaluateCString(ctx context.Context, e Evaluator, expr string) (string, error) {
	v, err := e.Evaluate(ctx, "(const char *)("+expr+")", ObjC)
	if err != nil {
		return "", err
	}
	if v.Summary != "" {
		return Unquote(v.Summary), nil
	}
	p, err := v.Pointer()
	if err != nil {
		return "", err
	}
	if p.IsNil() {
		return "", ErrNilPointer
	}
	mr, ok := e.(MemoryReader)
	if !ok {
		return "", ErrUnsupported
	}
	return ReadCString(ctx, mr, uint64(p), 4096)
}

// DescribeObject returns the object description (`po`) of expr.
func DescribeObject(ctx context.Context, e Evaluator, expr string) (string, error) {
	out, err := e.Describe(ctx, "(id)("+expr+")", ObjC)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// EvaluateInputExpression evaluates user input and returns the raw value.
func EvaluateInputExpression(ctx context.Context, e Evaluator, expr string) (string, error) {
	return EvaluateExpression(ctx, e, expr)
}

// IsNilDescription reports whether an object description means nil.
func IsNilDescription(desc string) bool {
	switch strings.TrimSpace(desc) {
	case "", "nil", "<nil>", "<object returned empty description>":
		return true
	}
	return false
}

// ParseInteger parses the integer forms the debugger prints, including
// character literals such as '\x01' and '\0'.
func ParseInteger(s string) (int64, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "YES", "true":
		return 1, nil
	case "NO", "false":
		return 0, nil
	}
	if strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") && len(s) >= 3 {
		s = s[1 : len(s)-1]
		switch {
		case strings.HasPrefix(s, `\x`):
			n, err := strconv.ParseInt(s[2:], 16, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid integer %q: %v", s, err)
			}
			return n, nil
		case strings.HasPrefix(s, `\`):
			n, err := strconv.ParseInt(s[1:], 8, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid integer %q: %v", s, err)
			}
			return n, nil
		case utf8.RuneCountInString(s) == 1:
			r, _ := utf8.DecodeRuneInString(s)
			return int64(r), nil
		}
	}
	n, err := cast.ToInt64E(s)
	if err != nil {
		if u, uerr := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64); uerr == nil && strings.HasPrefix(s, "0x") {
			return int64(u), nil
		}
		return 0, fmt.Errorf("invalid integer %q: %v", s, err)
	}
	return n, nil
}

// ParseBoolean parses BOOL output.
func ParseBoolean(s string) (bool, error) {
	n, err := ParseInteger(s)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

// Unquote strips the quoting the debugger puts around string summaries.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "@")
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
		return s[1 : len(s)-1]
	}
	return s
}
