package objc

import (
	"context"
	"fmt"
	"strings"

	"github.com/blacktop/chisel/pkg/engine"
)

// Targeter reports the selected target.
type Targeter interface {
	Target(ctx context.Context) (*engine.TargetInfo, error)
}

// CurrentArch returns the architecture component of the target triple.
func CurrentArch(ctx context.Context, t Targeter) (string, error) {
	info, err := t.Target(ctx)
	if err != nil {
		return "", err
	}
	return NormalizeArch(info), nil
}

// NormalizeArch extracts the architecture from info, folding x86_64h into x86_64.
func NormalizeArch(info *engine.TargetInfo) string {
	arch := info.Arch
	if arch == "" {
		arch, _, _ = strings.Cut(info.Triple, "-")
	}
	if arch == "x86_64h" {
		arch = "x86_64"
	}
	return arch
}

// SelfExpression returns the expression for `self` at a function's first
// instruction on arch.
func SelfExpression(arch string) (string, error) {
	switch {
	case arch == "i386":
		return "*(id*)($esp+4)", nil
	case arch == "x86_64":
		return "(id)$rdi", nil
	case arch == "arm64" || arch == "arm64e":
		return "(id)$x0", nil
	case strings.HasPrefix(arch, "armv"):
		return "(id)$r0", nil
	}
	return "", fmt.Errorf("your architecture, %s, is truly fantastic. However, I don't currently support it", arch)
}

// ObjectParameterExpression returns the expression for the object argument at
// index (after self and _cmd) at a function's first instruction on arch.
func ObjectParameterExpression(arch string, index int) (string, error) {
	if index < 0 {
		return "", fmt.Errorf("invalid parameter index %d", index)
	}
	switch {
	case arch == "i386":
		return fmt.Sprintf("*(id*)($esp + %d)", 12+index*4), nil
	case arch == "x86_64":
		if index > 3 {
			return "", fmt.Errorf("current implementation can not return object at index greater than 3 for x86_64")
		}
		return "(id)$" + []string{"rdx", "rcx", "r8", "r9"}[index], nil
	case arch == "arm64" || arch == "arm64e":
		if index > 5 {
			return "", fmt.Errorf("current implementation can not return object at index greater than 5 for arm64")
		}
		return fmt.Sprintf("(id)$x%d", index+2), nil
	case strings.HasPrefix(arch, "armv"):
		if index > 1 {
			return "", fmt.Errorf("current implementation can not return object at index greater than 1 for arm32")
		}
		return fmt.Sprintf("(id)$r%d", index+2), nil
	}
	return "", fmt.Errorf("unsupported architecture %s", arch)
}
