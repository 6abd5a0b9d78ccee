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

func miscCommands() []chisel.Command {
	return []chisel.Command{
		chisel.New(chisel.Spec{
			Name:        "paltrace",
			Description: "Print the Auto Layout trace for the given view. Defaults to the key window.",
			Args:        []chisel.Argument{{Arg: "view", Type: "UIView *", Help: "The view to print the Auto Layout trace for.", Default: uikit.KeyWindow}},
		}, func(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
			return describe(ctx, s, fmt.Sprintf("(id)[%s _autolayoutTrace]", args[0]))
		}),
		chisel.New(chisel.Spec{
			Name:        "input",
			Description: "Input text into text field or text view by accessibility id.",
			Args: []chisel.Argument{
				{Arg: "accessibilityId", Type: "string", Help: "The accessibility ID of the input view."},
				{Arg: "replacementText", Type: "string", Help: "The text to set."},
			},
		}, runInputText),
		chisel.New(chisel.Spec{
			Name:        "uikit",
			Description: "Imports the UIKit module to get access to the types while in lldb.",
		}, func(ctx context.Context, s *chisel.Session, _ []string, _ chisel.Values) error {
			_, err := s.Engine.Evaluate(ctx, "@import UIKit", engine.ObjC)
			return err
		}),
		chisel.New(chisel.Spec{
			Name:        "osand",
			Description: "Open the Simulator sandbox folder of the app in Finder",
		}, func(ctx context.Context, s *chisel.Session, _ []string, _ chisel.Values) error {
			home, err := engine.DescribeObject(ctx, s.Engine, "(NSString*)NSHomeDirectory()")
			if err != nil {
				return err
			}
			s.Println("the home directory:" + home)
			return s.Open(home)
		}),
		chisel.New(chisel.Spec{
			Name:        "present",
			Description: "Present a view controller.",
			Args:        []chisel.Argument{{Arg: "viewController", Type: "UIViewController *", Help: "The view controller to present"}},
		}, func(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
			return reportUserError(s, uikit.PresentViewController(ctx, s.Engine, args[0]))
		}),
		chisel.New(chisel.Spec{
			Name:        "dismiss",
			Description: "Dismiss a presented view controller.",
			Args:        []chisel.Argument{{Arg: "viewController", Type: "UIViewController *", Help: "The view controller to dismiss. Presenting view controller is used if not specified."}},
		}, func(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
			return reportUserError(s, uikit.DismissViewController(ctx, s.Engine, args[0]))
		}),
	}
}

// reportUserError prints the messages meant for the user and returns the rest.
func reportUserError(s *chisel.Session, err error) error {
	for _, target := range []error{uikit.ErrNotViewController, uikit.ErrAlreadyPresented, uikit.ErrNotPresented, uikit.ErrNotLayer} {
		if errors.Is(err, target) {
			s.Println(err)
			return nil
		}
	}
	return err
}

func runInputText(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	id, text := args[0], args[1]
	window, err := keyWindow(ctx, s)
	if err != nil {
		return err
	}
	root, err := engine.EvaluateObject(ctx, s.Engine, window)
	if err != nil {
		return err
	}
	found := false
	_, err = uikit.WalkSubviews(ctx, s.Engine, root, s.WalkOptions(), func(p engine.Pointer, _ int) error {
		ident, err := engine.EvaluateObject(ctx, s.Engine, fmt.Sprintf("[%s accessibilityIdentifier]", p))
		if err != nil || ident.IsNil() {
			return err
		}
		match, err := engine.EvaluateBoolean(ctx, s.Engine, fmt.Sprintf(`[%s isEqualToString:@"%s"]`, ident, quote(id)))
		if err != nil || !match {
			return err
		}
		found = true
		if err := engine.EvaluateEffect(ctx, s.Engine, fmt.Sprintf(`[%s setText:@"%s"]`, p, quote(text))); err != nil {
			return err
		}
		return uikit.FlushCoreAnimationTransaction(ctx, s.Engine)
	})
	if err != nil && !errors.Is(err, hierarchy.ErrCycle) {
		return err
	}
	if !found {
		s.Printf("No view with accessibility identifier %q\n", id)
	}
	return nil
}
