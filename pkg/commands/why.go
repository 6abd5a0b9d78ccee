package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/hierarchy"
	"github.com/blacktop/chisel/pkg/objc"
	"github.com/blacktop/chisel/pkg/uikit"
)

const noIdea = "No idea\n"

func whyCommands() []chisel.Command {
	return []chisel.Command{
		chisel.New(chisel.Spec{
			Name:        "wnvisible",
			Description: "Print the reasons the given view is not visible.",
			Args:        []chisel.Argument{{Arg: "aView", Type: "UIView/NSView *", Help: "The view to check why it isn't visible."}},
		}, runWhyNotVisible),
		chisel.New(chisel.Spec{
			Name:        "wninteractable",
			Description: "Print the reasons the given view is not interactable.",
			Args:        []chisel.Argument{{Arg: "aView", Type: "UIView/NSView *", Help: "The view to check why it isn't interactable."}},
		}, runWhyNotInteractable),
	}
}

func runWhyNotVisible(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	view := args[0]
	isView, err := uikit.IsView(ctx, s.Engine, view)
	if err != nil {
		return err
	}
	if !isView {
		s.Println("Argument is not a view")
		return nil
	}

	var reasons strings.Builder
	frame, err := uikit.Frame(ctx, s.Engine, view)
	if err != nil {
		return err
	}
	if frame.Size.Width == 0 || frame.Size.Height == 0 {
		reasons.WriteString("The width or height is 0. Did you forget to set the frame?\n")
	}
	if frame.Origin.X < 0 || frame.Origin.Y < 0 {
		reasons.WriteString("The x or y values are smaller than 0\n")
	}

	hidden, err := engine.EvaluateBoolean(ctx, s.Engine, fmt.Sprintf("[%s isHidden]", view))
	if err != nil {
		return err
	}
	if hidden {
		reasons.WriteString("View's hidden property is YES\n")
	}
	alpha, err := engine.EvaluateFloat(ctx, s.Engine, fmt.Sprintf("(CGFloat)[%s alpha]", view))
	if err != nil {
		return err
	}
	if alpha == 0 {
		reasons.WriteString("View's alpha property is 0\n")
	}

	superview, err := engine.EvaluateObject(ctx, s.Engine, fmt.Sprintf("[%s superview]", view))
	if err != nil {
		return err
	}
	window, err := engine.EvaluateObject(ctx, s.Engine, fmt.Sprintf("[%s window]", view))
	if err != nil {
		return err
	}
	switch {
	case superview.IsNil():
		reasons.WriteString("View's superview is nil. Did you forget to call addSubview?\n")
	case window.IsNil():
		reasons.WriteString("View is not in the view hierarchy\n")
	}

	clear, err := engine.EvaluateBoolean(ctx, s.Engine, fmt.Sprintf(
		"(id)[%[1]s backgroundColor] == nil || (BOOL)[(id)[%[1]s backgroundColor] isEqual:[UIColor clearColor]]", view))
	if err != nil {
		return err
	}
	if clear {
		n, err := engine.EvaluateInteger(ctx, s.Engine, fmt.Sprintf("[(id)[%s subviews] count]", view))
		if err != nil {
			return err
		}
		if n == 0 {
			reasons.WriteString("View has a clear background and no subviews.\n")
		} else {
			reasons.WriteString("View has a clear background.\n")
		}
	}

	same, err := engine.EvaluateBoolean(ctx, s.Engine, fmt.Sprintf("[[%[1]s backgroundColor] isEqual:(id)[[%[1]s superview] backgroundColor]]", view))
	if err != nil {
		return err
	}
	if same {
		reasons.WriteString("View's background color is equal to superview's background color\n")
	}

	vc, err := owningViewController(ctx, s, view)
	if err != nil {
		return err
	}
	if !vc.IsNil() {
		guide, err := engine.EvaluateFloat(ctx, s.Engine, fmt.Sprintf("(CGFloat)[(id)[%s topLayoutGuide] length]", vc))
		if err != nil {
			return err
		}
		if frame.Origin.Y+frame.Size.Height < guide {
			reasons.WriteString("View might be hidden behind the navigation bar\n")
		}
	}

	if reasons.Len() == 0 {
		s.Printf("%s\n", noIdea)
		return nil
	}
	s.Println(reasons.String())
	return nil
}

// owningViewController follows the responder chain from obj to the first
// view controller, zero if there is none.
func owningViewController(ctx context.Context, s *chisel.Session, obj string) (engine.Pointer, error) {
	start, err := engine.EvaluateObject(ctx, s.Engine, obj)
	if err != nil {
		return 0, err
	}
	var vc engine.Pointer
	_, _, err = hierarchy.Chain(ctx, start, func(ctx context.Context, p engine.Pointer) (engine.Pointer, error) {
		ok, err := objc.IsKindOfClass(ctx, s.Engine, "("+p.String()+")", "UIViewController")
		if err != nil {
			return 0, err
		}
		if ok {
			vc = p
			return 0, nil
		}
		next, err := engine.EvaluateObject(ctx, s.Engine, fmt.Sprintf("[((id)%s) nextResponder]", p))
		if err != nil {
			// the end of the chain
			return 0, nil
		}
		return next, nil
	}, s.WalkOptions())
	if err != nil && !errors.Is(err, hierarchy.ErrCycle) {
		return 0, err
	}
	return vc, nil
}

func runWhyNotInteractable(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	view := args[0]
	isView, err := uikit.IsView(ctx, s.Engine, view)
	if err != nil {
		return err
	}
	if !isView {
		s.Println("Argument is not a view")
		return nil
	}

	var reasons strings.Builder
	enabled, err := engine.EvaluateBoolean(ctx, s.Engine, fmt.Sprintf("[%s isUserInteractionEnabled]", view))
	if err != nil {
		return err
	}
	if !enabled {
		reasons.WriteString("View's userInteractionEnabled property is NO\n")
	}

	control, err := objc.IsKindOfClass(ctx, s.Engine, "("+view+")", "UIControl")
	if err != nil {
		return err
	}
	if control {
		isEnabled, err := engine.EvaluateBoolean(ctx, s.Engine, fmt.Sprintf("[%s isEnabled]", view))
		if err != nil {
			return err
		}
		if !isEnabled {
			reasons.WriteString("View's isEnabled property is NO\n")
		}
		events, err := engine.EvaluateInteger(ctx, s.Engine, fmt.Sprintf("[%s allControlEvents]", view))
		if err != nil {
			return err
		}
		if events == 0 {
			reasons.WriteString("No target/action pairs have been added to this control\n")
		}
	}

	if reasons.Len() == 0 {
		s.Printf("%s\n", noIdea)
		return nil
	}
	s.Println(reasons.String())
	return nil
}
