package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/hierarchy"
	"github.com/blacktop/chisel/pkg/uikit"
)

func findCommands() []chisel.Command {
	return []chisel.Command{
		chisel.New(chisel.Spec{
			Name:        "fv",
			Description: "Find the views whose class names match classNameRegex and puts the address of first on the clipboard.",
			Args:        []chisel.Argument{{Arg: "classNameRegex", Type: "string", Help: "The view-class regex to search the view hierarchy for."}},
		}, runFindView),
		chisel.New(chisel.Spec{
			Name:        "fvc",
			Description: "Find the view controllers whose class names match classNameRegex and puts the address of first on the clipboard.",
			Options: []chisel.Argument{
				{Short: "n", Long: "name", Arg: "classNameRegex", Type: "string", Help: "The view-controller-class regex to search the view controller hierarchy for."},
				{Short: "v", Long: "view", Arg: "view", Type: "UIView", Help: "This function will print the View Controller that owns this view."},
			},
		}, runFindViewController),
		chisel.New(chisel.Spec{
			Name:        "fa11y",
			Description: "Find the views whose accessibility labels match labelRegex and puts the address of the first result on the clipboard.",
			Args:        []chisel.Argument{{Arg: "labelRegex", Type: "string", Help: "The accessibility label regex to search the view hierarchy for."}},
		}, runFindAccessibilityLabel),
	}
}

// printMatchesAndCopyFirst prints every object in haystack whose class
// matches needle and copies the first address.
func printMatchesAndCopyFirst(ctx context.Context, s *chisel.Session, needle, haystack string) error {
	re, err := regexp.Compile(`(?i).*<.*(` + needle + `)\S*: (0x[0-9a-fA-F]*);.*`)
	if err != nil {
		return fmt.Errorf("invalid regex %q: %v", needle, err)
	}
	matches := re.FindAllStringSubmatch(haystack, -1)
	for _, m := range matches {
		cls, err := className(ctx, s, m[2])
		if err != nil {
			return err
		}
		s.Printf("%s %s\n", m[2], cls)
	}
	if len(matches) > 0 {
		s.CopyToClipboard(matches[0][2])
	}
	return nil
}

func runFindView(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	haystack, err := engine.DescribeObject(ctx, s.Engine, "[[[UIApplication sharedApplication] keyWindow] recursiveDescription]")
	if err != nil {
		return err
	}
	return printMatchesAndCopyFirst(ctx, s, args[0], haystack)
}

func runFindViewController(ctx context.Context, s *chisel.Session, _ []string, opts chisel.Values) error {
	name, view := opts.String("classNameRegex"), opts.String("view")
	switch {
	case name != "" && view != "":
		s.Println("Do not set both the --name and --view flags")
		return nil
	case view != "":
		return findOwningViewController(ctx, s, view)
	}
	haystack, err := uikit.ViewControllerRecursiveDescription(ctx, s.Engine, uikit.RootViewController)
	if err != nil {
		return err
	}
	return printMatchesAndCopyFirst(ctx, s, name, haystack)
}

// findOwningViewController walks up from view to the first superview whose
// next responder is a view controller.
func findOwningViewController(ctx context.Context, s *chisel.Session, view string) error {
	start, err := engine.EvaluateObject(ctx, s.Engine, view)
	if err != nil {
		return err
	}
	var owner engine.Pointer
	_, _, err = hierarchy.Chain(ctx, start, func(ctx context.Context, p engine.Pointer) (engine.Pointer, error) {
		ok, err := engine.EvaluateBoolean(ctx, s.Engine, fmt.Sprintf("[(id)[(id)%s nextResponder] isKindOfClass:[UIViewController class]]", p))
		if err != nil {
			return 0, err
		}
		if ok {
			owner, err = engine.EvaluateObject(ctx, s.Engine, fmt.Sprintf("[(id)%s nextResponder]", p))
			return 0, err
		}
		return uikit.Superview(ctx, s.Engine, p)
	}, s.WalkOptions())
	if err != nil && !errors.Is(err, hierarchy.ErrCycle) {
		return err
	}
	if owner.IsNil() {
		s.Println("Could not find an owning view controller")
		return nil
	}
	if err := describe(ctx, s, owner.String()); err != nil {
		return err
	}
	s.CopyToClipboard(owner.String())
	return nil
}

func runFindAccessibilityLabel(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	re, err := regexp.Compile(`(?i).*` + args[0] + `.*`)
	if err != nil {
		return fmt.Errorf("invalid regex %q: %v", args[0], err)
	}
	if err := startAccessibility(ctx, s); err != nil {
		return err
	}
	root, err := engine.EvaluateObject(ctx, s.Engine, uikit.KeyWindow)
	if err != nil {
		return err
	}
	first := ""
	_, err = walkAccessibility(ctx, s, root, func(p engine.Pointer, label string, labeled bool, depth int) error {
		if !labeled || !re.MatchString(label) {
			return nil
		}
		cls, err := className(ctx, s, p.String())
		if err != nil {
			return err
		}
		s.Printf("(%s %s) %s\n", cls, p, label)
		if first == "" {
			first = p.String()
			s.CopyToClipboard(first)
		}
		return nil
	})
	if err != nil && !errors.Is(err, hierarchy.ErrCycle) {
		return err
	}
	return nil
}
