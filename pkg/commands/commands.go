// Package commands implements the user-facing chisel commands.
package commands

import (
	"context"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/apex/log"

	"github.com/blacktop/chisel/internal/colors"
	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/objc"
	"github.com/blacktop/chisel/pkg/uikit"
)

// All returns every command in registration order.
func All() []chisel.Command {
	var cmds []chisel.Command
	for _, group := range [][]chisel.Command{
		printCommands(),
		dataCommands(),
		classDumpCommands(),
		displayCommands(),
		findCommands(),
		accessibilityCommands(),
		flickerCommands(),
		debugCommands(),
		counterCommands(),
		delayCommands(),
		copyCommands(),
		visualizationCommands(),
		componentCommands(),
		whyCommands(),
		xctestCommands(),
		miscCommands(),
	} {
		cmds = append(cmds, group...)
	}
	return cmds
}

// NewRegistry returns a registry holding every command.
func NewRegistry() (*chisel.Registry, error) {
	return chisel.NewRegistry(All()...)
}

// describe prints the object description of expr.
func describe(ctx context.Context, s *chisel.Session, expr string) error {
	desc, err := engine.DescribeObject(ctx, s.Engine, expr)
	if err != nil {
		return err
	}
	s.Println(desc)
	return nil
}

// printValue prints a value the way `p` does.
func printValue(s *chisel.Session, v *engine.Value) {
	if v.Type != "" {
		s.Printf("(%s) %s\n", v.Type, v.String())
		return
	}
	s.Println(v.String())
}

// evaluateAndPrint evaluates expr and prints the result like `p`.
func evaluateAndPrint(ctx context.Context, s *chisel.Session, expr string) error {
	v, err := s.Engine.Evaluate(ctx, expr, engine.ObjC)
	if err != nil {
		return err
	}
	printValue(s, v)
	return nil
}

// highlight prints Objective-C source, colored when the output allows it.
func highlight(s *chisel.Session, src string) {
	if !s.Config.Output.Highlight || !colors.Enabled() {
		s.Printf("%s", src)
		return
	}
	if err := quick.Highlight(s.Out, src, "objective-c", "terminal256", s.Config.Output.Style); err != nil {
		log.WithError(err).Debug("highlight")
		s.Printf("%s", src)
	}
}

// isMac reports whether the target is an AppKit process.
func isMac(ctx context.Context, s *chisel.Session) (bool, error) {
	return objc.IsMacintoshArch(ctx, s.Engine)
}

// keyWindow returns the expression for the root view of the target.
func keyWindow(ctx context.Context, s *chisel.Session) (string, error) {
	mac, err := isMac(ctx, s)
	if err != nil {
		return "", err
	}
	if mac {
		return uikit.MacContentView, nil
	}
	return uikit.KeyWindow, nil
}

// colorClass returns the platform color class.
func colorClass(mac bool) string {
	if mac {
		return "NSColor"
	}
	return "UIColor"
}

// className describes the class of obj.
func className(ctx context.Context, s *chisel.Session, obj string) (string, error) {
	return objc.ClassName(ctx, s.Engine, obj)
}

// recursionSelector returns the selector dumping a view subtree.
func recursionSelector(mac bool) string {
	if mac {
		return "_subtreeDescription"
	}
	return "recursiveDescription"
}

func quote(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
