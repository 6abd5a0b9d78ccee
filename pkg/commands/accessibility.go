package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/hierarchy"
	"github.com/blacktop/chisel/pkg/uikit"
)

// labelFunc returns the accessibility text of view; ok is false when view
// has none and its elements should be visited instead.
type labelFunc func(ctx context.Context, e engine.Evaluator, view string) (label string, ok bool, err error)

// a11yVisitFunc is called for every element of an accessibility walk.
type a11yVisitFunc func(p engine.Pointer, label string, labeled bool, depth int) error

func accessibilityCommands() []chisel.Command {
	aView := []chisel.Argument{{Arg: "aView", Type: "UIView*", Help: "The view to print the hierarchy of.", Default: dynamicKeyWindow}}
	return []chisel.Command{
		chisel.New(chisel.Spec{
			Name:        "pa11y",
			Description: "Print accessibility labels of all views in hierarchy of <aView>",
			Args:        aView,
		}, func(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
			return printAccessibilityHierarchy(ctx, s, args[0], uikit.AccessibilityLabel)
		}),
		chisel.New(chisel.Spec{
			Name:        "pa11yi",
			Description: "Print accessibility identifiers of all views in hierarchy of <aView>",
			Args:        aView,
		}, func(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
			return printAccessibilityHierarchy(ctx, s, args[0], accessibilityIdentifier)
		}),
	}
}

func accessibilityIdentifier(ctx context.Context, e engine.Evaluator, view string) (string, bool, error) {
	p, err := engine.EvaluatePointer(ctx, e, fmt.Sprintf("(id)[%s accessibilityIdentifier]", view))
	if err != nil || p.IsNil() {
		return "", false, err
	}
	id, err := engine.DescribeObject(ctx, e, p.String())
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// startAccessibility starts the accessibility server once per session.
func startAccessibility(ctx context.Context, s *chisel.Session) error {
	if s.AccessibilityStarted() {
		return nil
	}
	if err := uikit.StartAccessibilityServer(ctx, s.Engine); err != nil {
		return err
	}
	s.SetAccessibilityStarted()
	return nil
}

// walkAccessibility visits root and, below every element without a label,
// its accessibility elements.
func walkAccessibility(ctx context.Context, s *chisel.Session, root engine.Pointer, visit a11yVisitFunc) (*hierarchy.Tree, error) {
	return walkAccessibilityWith(ctx, s, root, uikit.AccessibilityLabel, visit)
}

func walkAccessibilityWith(ctx context.Context, s *chisel.Session, root engine.Pointer, label labelFunc, visit a11yVisitFunc) (*hierarchy.Tree, error) {
	return hierarchy.Walk(ctx, root, func(ctx context.Context, p engine.Pointer) ([]engine.Pointer, error) {
		return uikit.AccessibilityElements(ctx, s.Engine, p.String())
	}, func(p engine.Pointer, depth int) error {
		text, ok, err := label(ctx, s.Engine, p.String())
		if err != nil {
			return err
		}
		if err := visit(p, text, ok, depth); err != nil {
			return err
		}
		if ok {
			return hierarchy.SkipChildren
		}
		return nil
	}, s.WalkOptions())
}

func printAccessibilityHierarchy(ctx context.Context, s *chisel.Session, view string, label labelFunc) error {
	if view == dynamicKeyWindow {
		view = uikit.KeyWindow
	}
	if err := startAccessibility(ctx, s); err != nil {
		return err
	}
	root, err := engine.EvaluateObject(ctx, s.Engine, view)
	if err != nil {
		return err
	}
	_, err = walkAccessibilityWith(ctx, s, root, label, func(p engine.Pointer, text string, labeled bool, depth int) error {
		cls, err := className(ctx, s, p.String())
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%s %s", cls, p)
		if labeled {
			line = fmt.Sprintf("(%s %s) %s", cls, p, text)
		}
		s.Println(hierarchy.IndentDepth(line, indentSep, depth))
		return nil
	})
	if err != nil && !errors.Is(err, hierarchy.ErrCycle) {
		return err
	}
	return nil
}
