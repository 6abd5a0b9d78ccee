package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cast"

	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/hierarchy"
	"github.com/blacktop/chisel/pkg/uikit"
)

// borderColors is cycled through, one color per level, for recursive borders.
var borderColors = []string{"black", "gray", "red", "green", "blue", "cyan", "yellow", "magenta", "orange", "purple", "brown"}

// levelColor returns the border color for a depth below the starting view.
func levelColor(color string, level int) string {
	idx := slices.Index(borderColors, color)
	if idx < 0 {
		return color
	}
	return borderColors[(idx+level)%len(borderColors)]
}

func displayCommands() []chisel.Command {
	viewOrLayer := func(help string) []chisel.Argument {
		return []chisel.Argument{{Arg: "viewOrLayer", Type: "UIView/NSView/CALayer *", Help: help}}
	}
	depthOption := chisel.Argument{Short: "d", Long: "depth", Arg: "depth", Type: "int", Help: "Number of levels of subviews to border. Each level gets a different color beginning with the provided or default color", Default: 0}

	return []chisel.Command{
		chisel.New(chisel.Spec{
			Name:        "border",
			Description: "Draws a border around <viewOrLayer>. Color and width can be optionally provided. Additionally depth can be provided in order to recursively border subviews.",
			Args:        viewOrLayer("The view/layer to border. NSViews must be layer-backed."),
			Options: []chisel.Argument{
				{Short: "c", Long: "color", Arg: "color", Type: "string", Help: "A color name such as 'red', 'green', 'magenta', etc.", Default: "red"},
				{Short: "w", Long: "width", Arg: "width", Type: "CGFloat", Help: "Desired width of border.", Default: 2.0},
				depthOption,
			},
		}, runBorder),
		chisel.New(chisel.Spec{
			Name:        "unborder",
			Description: "Removes border around <viewOrLayer>.",
			Args:        viewOrLayer("The view/layer to unborder."),
			Options:     []chisel.Argument{depthOption},
		}, runUnborder),
		chisel.New(chisel.Spec{
			Name:        "mask",
			Description: "Add a transparent rectangle to the window to reveal a possibly obscured or hidden view or layer's bounds",
			Args:        viewOrLayer("The view/layer to mask."),
			Options: []chisel.Argument{
				{Short: "c", Long: "color", Arg: "color", Type: "string", Help: "A color name such as 'red', 'green', 'magenta', etc.", Default: "red"},
				{Short: "a", Long: "alpha", Arg: "alpha", Type: "CGFloat", Help: "Desired alpha of mask.", Default: 0.5},
			},
		}, runMask),
		chisel.New(chisel.Spec{
			Name:        "unmask",
			Description: "Remove mask from a view or layer",
			Args:        viewOrLayer("The view/layer to mask."),
		}, func(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
			obj, err := engine.EvaluateObject(ctx, s.Engine, args[0])
			if err != nil {
				return err
			}
			return uikit.UnmaskView(ctx, s.Engine, obj.String())
		}),
		chisel.New(chisel.Spec{
			Name:        "caflush",
			Description: "Force Core Animation to flush. This will 'repaint' the UI but also may mess with ongoing animations.",
		}, func(ctx context.Context, s *chisel.Session, _ []string, _ chisel.Values) error {
			return uikit.FlushCoreAnimationTransaction(ctx, s.Engine)
		}),
		chisel.New(chisel.Spec{
			Name:        "show",
			Description: "Show a view or layer.",
			Args:        viewOrLayer("The view/layer to show."),
		}, func(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
			return uikit.SetViewHidden(ctx, s.Engine, args[0], false)
		}),
		chisel.New(chisel.Spec{
			Name:        "hide",
			Description: "Hide a view or layer.",
			Args:        viewOrLayer("The view/layer to hide."),
		}, func(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
			return uikit.SetViewHidden(ctx, s.Engine, args[0], true)
		}),
		chisel.New(chisel.Spec{
			Name:        "slowanim",
			Description: "Slows down animations. Works on the iOS Simulator and a device.",
			Args:        []chisel.Argument{{Arg: "speed", Type: "float", Help: "Animation speed (default 0.1).", Default: "0.1"}},
		}, func(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
			speed, err := cast.ToFloat64E(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return uikit.SlowAnimation(ctx, s.Engine, speed)
		}),
		chisel.New(chisel.Spec{
			Name:        "unslowanim",
			Description: "Turn off slow animations.",
		}, func(ctx context.Context, s *chisel.Session, _ []string, _ chisel.Values) error {
			return uikit.SlowAnimation(ctx, s.Engine, 1)
		}),
	}
}

// setBorder sets the border of the layer of obj. A zero width removes it.
func setBorder(ctx context.Context, s *chisel.Session, obj string, color string, width float64, mac bool) error {
	layer, err := uikit.ConvertToLayer(ctx, s.Engine, obj)
	if err != nil {
		return err
	}
	if err := engine.EvaluateEffect(ctx, s.Engine, fmt.Sprintf("[%s setBorderWidth:(CGFloat)%s]", layer, uikit.FormatFloat(width))); err != nil {
		return err
	}
	if width == 0 {
		return nil
	}
	return engine.EvaluateEffect(ctx, s.Engine, fmt.Sprintf("[%s setBorderColor:(CGColorRef)[(id)[%s %sColor] CGColor]]", layer, colorClass(mac), color))
}

// applyBorder borders obj and, when it is a view, depth levels of subviews.
func applyBorder(ctx context.Context, s *chisel.Session, arg, color string, width float64, depth int) error {
	mac, err := isMac(ctx, s)
	if err != nil {
		return err
	}
	obj, err := engine.EvaluateObject(ctx, s.Engine, arg)
	if err != nil {
		return err
	}
	isView, err := uikit.IsView(ctx, s.Engine, obj.String())
	if err != nil {
		return err
	}
	if !isView {
		if depth > 0 {
			s.Println("Recursive bordering is only supported for UIViews or NSViews")
			return nil
		}
		err = setBorder(ctx, s, obj.String(), color, width, mac)
	} else {
		_, err = uikit.WalkSubviews(ctx, s.Engine, obj, s.WalkOptions(), func(p engine.Pointer, level int) error {
			if err := setBorder(ctx, s, p.String(), levelColor(color, level), width, mac); err != nil {
				return err
			}
			if level >= depth {
				return hierarchy.SkipChildren
			}
			return nil
		})
	}
	if errors.Is(err, uikit.ErrNotLayer) {
		s.Println(err)
		return nil
	}
	if err != nil && !errors.Is(err, hierarchy.ErrCycle) {
		return err
	}
	return uikit.FlushCoreAnimationTransaction(ctx, s.Engine)
}

func runBorder(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
	width, err := opts.Float("width")
	if err != nil {
		return err
	}
	depth, err := opts.Int("depth")
	if err != nil {
		return err
	}
	return applyBorder(ctx, s, args[0], opts.String("color"), width, depth)
}

func runUnborder(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
	depth, err := opts.Int("depth")
	if err != nil {
		return err
	}
	return applyBorder(ctx, s, args[0], "", 0, depth)
}

func runMask(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
	alpha, err := opts.Float("alpha")
	if err != nil {
		return err
	}
	obj, err := engine.EvaluateObject(ctx, s.Engine, args[0])
	if err != nil {
		return err
	}
	err = uikit.MaskView(ctx, s.Engine, obj.String(), opts.String("color"), alpha)
	if errors.Is(err, uikit.ErrNotLayer) {
		s.Println(err)
		return nil
	}
	return err
}
