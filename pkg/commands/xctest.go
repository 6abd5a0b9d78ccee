package commands

import (
	"context"
	"fmt"

	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/xctest"
)

var (
	xcPointerOption = chisel.Argument{Short: "p", Long: "pointer", Arg: "pointer", Type: "BOOL", Help: "Print pointers", Default: false, Boolean: true}
	xcTraitsOption  = chisel.Argument{Short: "t", Long: "traits", Arg: "trait", Type: "BOOL", Help: "Print traits", Default: false, Boolean: true}
	xcFrameOption   = chisel.Argument{Short: "f", Long: "frame", Arg: "frame", Type: "BOOL", Help: "Print frames", Default: false, Boolean: true}
)

func xcElementArg(help string) []chisel.Argument {
	return []chisel.Argument{{Arg: "element", Type: "XCUIElement*", Help: help, Default: xctest.DefaultElement}}
}

func xctestCommands() []chisel.Command {
	return []chisel.Command{
		chisel.New(chisel.Spec{
			Name:        "xdebug",
			Description: "Print debug description the XCUIElement in human readable format.",
			Args:        xcElementArg("The element to print debug description."),
		}, func(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
			return describe(ctx, s, fmt.Sprintf("[%s debugDescription]", args[0]))
		}),
		chisel.New(chisel.Spec{
			Name:        "xtree",
			Description: "Print XCUIElement subtree.",
			Args:        xcElementArg("The element to print tree."),
			Options:     []chisel.Argument{xcPointerOption, xcTraitsOption, xcFrameOption},
		}, func(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
			root, err := loadSnapshot(ctx, s, args[0])
			if err != nil {
				return err
			}
			s.Printf("%s", root.Tree(xcPrintOptions(opts)))
			return nil
		}),
		chisel.New(chisel.Spec{
			Name:        "xobject",
			Description: "Print XCUIElement details.",
			Args:        xcElementArg("The element to print details."),
		}, runXCObject),
		chisel.New(chisel.Spec{
			Name:        "xnoid",
			Description: "Print XCUIElement objects with label but without identifier.",
			Args:        xcElementArg("The element from start to."),
			Options: []chisel.Argument{
				{Short: "s", Long: "status-bar", Arg: "status_bar", Type: "BOOL", Help: "Print status bar items", Default: false, Boolean: true},
				xcPointerOption, xcTraitsOption, xcFrameOption,
			},
		}, func(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
			root, err := loadSnapshot(ctx, s, args[0])
			if err != nil {
				return err
			}
			missing := root.MissingIdentifiers(opts.Bool("status_bar"))
			if missing == nil {
				s.Println("Couldn't found elements without identifier")
				return nil
			}
			s.Printf("%s", missing.Tree(xcPrintOptions(opts)))
			return nil
		}),
	}
}

func xcPrintOptions(opts chisel.Values) xctest.PrintOptions {
	return xctest.PrintOptions{
		Pointer: opts.Bool("pointer"),
		Traits:  opts.Bool("trait"),
		Frame:   opts.Bool("frame"),
	}
}

func elementSnapshot(ctx context.Context, s *chisel.Session, element string) (engine.Pointer, error) {
	p, err := engine.EvaluatePointer(ctx, s.Engine, element)
	if err != nil {
		return 0, err
	}
	return xctest.TakeSnapshot(ctx, s.Engine, p.String())
}

func loadSnapshot(ctx context.Context, s *chisel.Session, element string) (*xctest.Snapshot, error) {
	snap, err := elementSnapshot(ctx, s, element)
	if err != nil {
		return nil, err
	}
	return xctest.Load(ctx, s.Engine, snap, s.WalkOptions())
}

func runXCObject(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	snap, err := elementSnapshot(ctx, s, args[0])
	if err != nil {
		return err
	}
	root, err := xctest.LoadElement(ctx, s.Engine, snap)
	if err != nil {
		return err
	}
	detail, err := xctest.LoadDetail(ctx, s.Engine, snap)
	if err != nil {
		return err
	}
	s.Println(root.DetailSummary(detail))
	return nil
}
