package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/MakeNowJust/heredoc/v2"

	"github.com/blacktop/chisel/internal/utils"
	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/uikit"
)

var viewSearchIntro = heredoc.Doc(`

	Use the following and (q) to quit.
	(w) move to superview
	(s) move to first subview
	(a) move to previous sibling
	(d) move to next sibling
	(p) print the hierarchy
`)

func flickerCommands() []chisel.Command {
	return []chisel.Command{
		chisel.New(chisel.Spec{
			Name:        "flicker",
			Description: "Quickly show and hide a view to quickly help visualize where it is.",
			Args:        []chisel.Argument{{Arg: "viewOrLayer", Type: "UIView/NSView*", Help: "The view to flicker."}},
		}, runFlicker),
		chisel.New(chisel.Spec{
			Name:        "vs",
			Description: "Interactively search for a view by walking the hierarchy.",
			Args:        []chisel.Argument{{Arg: "view", Type: "UIView*", Help: "The view to begin the search from."}},
		}, runViewSearch),
	}
}

func runFlicker(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	obj, err := engine.EvaluateObject(ctx, s.Engine, args[0])
	if err != nil {
		return err
	}
	hidden, err := engine.EvaluateBoolean(ctx, s.Engine, fmt.Sprintf("[%s isHidden]", obj))
	if err != nil {
		return err
	}
	for range 2 {
		if err := uikit.SetViewHidden(ctx, s.Engine, obj.String(), !hidden); err != nil {
			return err
		}
		if err := uikit.SetViewHidden(ctx, s.Engine, obj.String(), hidden); err != nil {
			return err
		}
	}
	return nil
}

// viewWalker moves a highlight mask around the view hierarchy.
type viewWalker struct {
	s       *chisel.Session
	current engine.Pointer
}

func (w *viewWalker) setCurrentView(ctx context.Context, view engine.Pointer) error {
	if view.IsNil() {
		return nil
	}
	if !w.current.IsNil() {
		if err := uikit.UnmaskView(ctx, w.s.Engine, w.current.String()); err != nil {
			return err
		}
	}
	w.current = view
	if err := uikit.MaskView(ctx, w.s.Engine, view.String(), "red", 0.4); err != nil {
		return err
	}
	return describe(ctx, w.s, view.String())
}

func (w *viewWalker) subviews(ctx context.Context, view engine.Pointer) (engine.Pointer, int64, error) {
	subviews, err := engine.EvaluateObject(ctx, w.s.Engine, fmt.Sprintf("[%s subviews]", view))
	if err != nil {
		return 0, 0, err
	}
	n, err := engine.EvaluateInteger(ctx, w.s.Engine, fmt.Sprintf("[(id)%s count]", subviews))
	return subviews, n, err
}

func (w *viewWalker) firstSubview(ctx context.Context) (engine.Pointer, error) {
	subviews, n, err := w.subviews(ctx, w.current)
	if err != nil || n == 0 {
		return 0, err
	}
	return engine.EvaluateObject(ctx, w.s.Engine, fmt.Sprintf("[%s objectAtIndex:0]", subviews))
}

func (w *viewWalker) nthSibling(ctx context.Context, n int64) (engine.Pointer, error) {
	super, err := uikit.Superview(ctx, w.s.Engine, w.current)
	if err != nil || super.IsNil() {
		return w.current, err
	}
	subviews, count, err := w.subviews(ctx, super)
	if err != nil || count == 0 {
		return w.current, err
	}
	idx, err := engine.EvaluateInteger(ctx, w.s.Engine, fmt.Sprintf("[(id)%s indexOfObject:%s]", subviews, w.current))
	if err != nil {
		return 0, err
	}
	next := ((idx+n)%count + count) % count
	return engine.EvaluateObject(ctx, w.s.Engine, fmt.Sprintf("[(id)%s objectAtIndex:%d]", subviews, next))
}

// handle runs one key press. It reports whether the walk is over.
func (w *viewWalker) handle(ctx context.Context, input string) (bool, error) {
	old := w.current
	switch input {
	case "q":
		w.s.CopyToClipboard(old.String())
		w.s.Printf("\nI hope %s was what you were looking for. I put it on your clipboard.\n", old)
		return true, uikit.UnmaskView(ctx, w.s.Engine, old.String())
	case "w":
		v, err := uikit.Superview(ctx, w.s.Engine, old)
		if err != nil {
			return false, err
		}
		if v.IsNil() {
			w.s.Println("There is no superview. Where are you trying to go?!")
		}
		return false, w.setCurrentView(ctx, v)
	case "s":
		v, err := w.firstSubview(ctx)
		if err != nil {
			return false, err
		}
		if v.IsNil() {
			w.s.Printf("\nThe view has no subviews.\n\n")
		}
		return false, w.setCurrentView(ctx, v)
	case "d", "a":
		n := int64(-1)
		if input == "a" {
			n = 1
		}
		v, err := w.nthSibling(ctx, n)
		if err != nil {
			return false, err
		}
		if v == old {
			w.s.Printf("\nThere are no sibling views to this view.\n\n")
		}
		return false, w.setCurrentView(ctx, v)
	case "p":
		mac, err := isMac(ctx, w.s)
		if err != nil {
			return false, err
		}
		return false, describe(ctx, w.s, fmt.Sprintf("[(id)%s %s]", old, recursionSelector(mac)))
	default:
		w.s.Printf("\nI really have no idea what you meant by '%s'... =\\\n\n", input)
	}
	return false, nil
}

// nextKey reads one command, from a prompt on a terminal or a line otherwise.
type nextKey func() (string, error)

func keyReader(s *chisel.Session) nextKey {
	if f, ok := s.In.(*os.File); ok && utils.IsTerminal(f) {
		return func() (string, error) {
			var answer string
			if err := survey.AskOne(&survey.Input{Message: "(w/s/a/d/p/q)"}, &answer); err != nil {
				return "", err
			}
			return strings.TrimSpace(answer), nil
		}
	}
	return func() (string, error) {
		line, err := s.ReadLine()
		return strings.TrimSpace(line), err
	}
}

func runViewSearch(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	s.Printf("%s\n", viewSearchIntro)
	start, err := engine.EvaluateObject(ctx, s.Engine, args[0])
	if err != nil {
		return err
	}
	w := &viewWalker{s: s}
	if err := w.setCurrentView(ctx, start); err != nil {
		return err
	}
	next := keyReader(s)
	for {
		input, err := next()
		if err == io.EOF {
			return uikit.UnmaskView(ctx, s.Engine, w.current.String())
		}
		if err != nil {
			return err
		}
		if input == "" {
			continue
		}
		done, err := w.handle(ctx, input)
		if err != nil || done {
			return err
		}
	}
}
