package commands

import (
	"context"
	"fmt"

	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/uikit"
)

// ComponentKit
func componentCommands() []chisel.Command {
	return []chisel.Command{
		chisel.New(chisel.Spec{
			Name:        "dcomponents",
			Description: "Set debugging options for components.",
			Options: []chisel.Argument{
				{Short: "s", Long: "set", Arg: "set", Help: "Set debug mode for components", Default: false, Boolean: true},
				{Short: "u", Long: "unset", Arg: "unset", Help: "Unset debug mode for components", Default: false, Boolean: true},
			},
		}, func(ctx context.Context, s *chisel.Session, _ []string, _ chisel.Values) error {
			s.Println("Debug mode for ComponentKit is deprecated; use Flipper instead.")
			return nil
		}),
		chisel.New(chisel.Spec{
			Name:        "pcomponents",
			Description: "Print a recursive description of components found starting from <aView>.",
			Args: []chisel.Argument{
				{Arg: "aView", Type: "UIView* or CKComponent*", Help: "The view or component from which the search for components begins.", Default: uikit.KeyWindow},
			},
		}, runPrintComponents),
		chisel.New(chisel.Spec{
			Name:        "rcomponents",
			Description: "Synchronously reflow and update all components.",
		}, func(ctx context.Context, s *chisel.Session, _ []string, _ chisel.Values) error {
			return engine.EvaluateEffect(ctx, s.Engine, "[CKComponentDebugController reflowComponents]")
		}),
	}
}

func runPrintComponents(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	view, err := engine.EvaluateInputExpression(ctx, s.Engine, args[0])
	if err != nil {
		return err
	}
	isView, err := uikit.IsView(ctx, s.Engine, view)
	if err != nil {
		return err
	}
	if !isView {
		// a CKComponent
		view, err = engine.EvaluateExpression(ctx, s.Engine, fmt.Sprintf("((CKComponent *)%s).viewContext.view", view))
		if err != nil {
			return err
		}
	}
	return describe(ctx, s, fmt.Sprintf("[CKComponentHierarchyDebugHelper componentHierarchyDescriptionForView:(UIView *)%s]", view))
}
