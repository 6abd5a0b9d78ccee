package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/hierarchy"
	"github.com/blacktop/chisel/pkg/uikit"
)

const (
	dynamicKeyWindow = "__keyWindow_dynamic__"
	dynamicRootVC    = "__keyWindow_rootVC_dynamic__"
	indentSep        = "   | "
)

var (
	shortRE  = regexp.MustCompile(`:.*(?:\n|$)`)
	mediumRE = regexp.MustCompile(`;.*(?:\n|$)`)

	tableViewClassRE    = regexp.MustCompile(`UITableView: (0x[0-9a-fA-F]+);`)
	tableViewSubclassRE = regexp.MustCompile(`(0x[0-9a-fA-F]+); baseClass = UITableView;`)
	anyPointerRE        = regexp.MustCompile(`(0x[0-9a-fA-F]+)[;>]`)
)

func printCommands() []chisel.Command {
	return []chisel.Command{
		chisel.New(chisel.Spec{
			Name: "pviews",
			Description: heredoc.Doc(`
				Print the recursion description of <aView>.

				--short and --medium cut every line at its first ':' or ';'.`),
			Args: []chisel.Argument{
				{Arg: "aView", Type: "UIView*/NSView*", Help: "The view to print the description of.", Default: dynamicKeyWindow},
			},
			Options: []chisel.Argument{
				{Short: "u", Long: "up", Arg: "upwards", Help: "Print only the hierarchy directly above the view, up to its window.", Default: false, Boolean: true},
				{Short: "d", Long: "depth", Arg: "depth", Type: "int", Help: "Print only to a given depth. 0 indicates infinite depth.", Default: 0},
				{Short: "w", Long: "window", Arg: "window", Type: "int", Help: "Specify the window to print a description for. Check which windows exist with \"po (id)[[UIApplication sharedApplication] windows]\".", Default: 0},
				{Short: "s", Long: "short", Arg: "short", Help: "Print a short description of the view.", Default: false, Boolean: true},
				{Short: "m", Long: "medium", Arg: "medium", Help: "Print a medium description of the view.", Default: false, Boolean: true},
			},
		}, runPrintViews),
		chisel.New(chisel.Spec{
			Name:        "pvc",
			Description: "Print the recursion description of <aViewController>.",
			Args: []chisel.Argument{
				{Arg: "aViewController", Type: "UIViewController*", Help: "The view controller to print the description of.", Default: dynamicRootVC},
			},
			Options: []chisel.Argument{
				{Short: "g", Long: "dot", Arg: "dot", Help: "Print the hierarchy as a Graphviz digraph.", Default: false, Boolean: true},
			},
		}, runPrintViewControllers),
		chisel.New(chisel.Spec{
			Name:        "pclass",
			Description: "Print the inheritance starting from an instance of any class.",
			Args:        []chisel.Argument{{Arg: "object", Type: "id", Help: "The instance to examine."}},
		}, runPrintClassHierarchy),
		chisel.New(chisel.Spec{
			Name:        "presponder",
			Description: "Print the responder chain starting from a specific responder.",
			Args:        []chisel.Argument{{Arg: "startResponder", Type: "UIResponder *", Help: "The responder to use to start walking the chain."}},
		}, runPrintResponderChain),
		chisel.New(chisel.Spec{
			Name:        "ptv",
			Description: "Print the highest table view in the hierarchy.",
		}, runPrintTableView),
		chisel.New(chisel.Spec{
			Name:        "pcells",
			Description: "Print the visible cells of the highest table view in the hierarchy.",
		}, runPrintTableViewCells),
		chisel.New(chisel.Spec{
			Name:        "pinternals",
			Description: "Show the internals of an object by dereferencing it as a pointer.",
			Args:        []chisel.Argument{{Arg: "object", Type: "id", Help: "Object expression to be evaluated."}},
		}, runPrintInternals),
		chisel.New(chisel.Spec{
			Name:        "pivar",
			Description: "Print the value of an object's named instance variable.",
			Args: []chisel.Argument{
				{Arg: "object", Type: "id", Help: "Object expression to be evaluated."},
				{Arg: "ivarName", Help: "Name of instance variable to print."},
			},
		}, runPrintIvar),
		chisel.New(chisel.Spec{
			Name:        "pca",
			Description: "Print layer tree from the perspective of the render server.",
		}, func(ctx context.Context, s *chisel.Session, _ []string, _ chisel.Values) error {
			return describe(ctx, s, "[NSString stringWithCString:(char *)CARenderServerGetInfo(0, 2, 0)]")
		}),
		chisel.New(chisel.Spec{
			Name:        "panim",
			Description: "Prints if the code is currently execution with a UIView animation block.",
		}, func(ctx context.Context, s *chisel.Session, _ []string, _ chisel.Values) error {
			return evaluateAndPrint(ctx, s, "(BOOL)[UIView _isInAnimationBlock]")
		}),
		chisel.New(chisel.Spec{
			Name:        "pkp",
			Description: "Print out the value of the key path expression using -valueForKeyPath:",
			Args:        []chisel.Argument{{Arg: "keypath", Type: "NSString *", Help: "The keypath to print"}},
		}, runPrintKeyPath),
	}
}

func runPrintViews(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
	maxDepth, err := opts.Int("depth")
	if err != nil {
		return err
	}
	window, err := opts.Int("window")
	if err != nil {
		return err
	}
	mac, err := isMac(ctx, s)
	if err != nil {
		return err
	}

	view := args[0]
	switch {
	case window > 0 && mac:
		view = fmt.Sprintf("(id)[[[[NSApplication sharedApplication] windows] objectAtIndex:%d] contentView]", window)
	case window > 0:
		view = fmt.Sprintf("(id)[[[UIApplication sharedApplication] windows] objectAtIndex:%d]", window)
	case view == dynamicKeyWindow && mac:
		view = uikit.MacContentView
	case view == dynamicKeyWindow:
		view = uikit.KeyWindow
	}

	if opts.Bool("upwards") {
		desc, err := uikit.UpwardsRecursiveDescription(ctx, s.Engine, view, maxDepth, s.WalkOptions())
		if err != nil {
			return err
		}
		if desc == "" {
			s.Println("Failed to walk view hierarchy. Make sure you pass a view, not any other kind of object or expression.")
			return nil
		}
		s.Printf("%s", desc)
		return nil
	}

	desc, err := engine.DescribeObject(ctx, s.Engine, fmt.Sprintf("[%s %s]", view, recursionSelector(mac)))
	if err != nil {
		return err
	}
	s.Println(filterViewDescription(desc, maxDepth, opts.Bool("short"), opts.Bool("medium")))
	return nil
}

// filterViewDescription trims a recursive view description to maxDepth
// levels and optionally shortens every line.
func filterViewDescription(desc string, maxDepth int, short, medium bool) string {
	if maxDepth > 0 {
		prefix := strings.Repeat(indentSep, maxDepth) + " "
		var kept []string
		for line := range strings.SplitSeq(desc, "\n") {
			if !strings.HasPrefix(line, prefix) {
				kept = append(kept, line)
			}
		}
		desc = strings.Join(kept, "\n")
	}
	switch {
	case short:
		desc = shortRE.ReplaceAllString(desc, ">\n")
	case medium:
		desc = mediumRE.ReplaceAllString(desc, ">\n")
	}
	return strings.TrimRight(desc, "\n")
}

func runPrintViewControllers(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
	mac, err := isMac(ctx, s)
	if err != nil {
		return err
	}
	vc := args[0]
	if vc == dynamicRootVC {
		vc = uikit.RootViewController
		if mac {
			vc = uikit.MacContentViewControl
		}
	}

	if opts.Bool("dot") {
		return printViewControllerGraph(ctx, s, vc)
	}
	if !mac {
		return describe(ctx, s, fmt.Sprintf("[%s _printHierarchy]", vc))
	}
	desc, err := uikit.ViewControllerRecursiveDescription(ctx, s.Engine, vc)
	if err != nil {
		return err
	}
	s.Println(strings.TrimRight(desc, "\n"))
	return nil
}

func printViewControllerGraph(ctx context.Context, s *chisel.Session, vc string) error {
	root, err := engine.EvaluateObject(ctx, s.Engine, vc)
	if err != nil {
		return err
	}
	if root.IsNil() {
		s.Println("Argument must be a UIViewController")
		return nil
	}
	tree, err := hierarchy.Walk(ctx, root, func(ctx context.Context, p engine.Pointer) ([]engine.Pointer, error) {
		return uikit.Elements(ctx, s.Engine, fmt.Sprintf("[%s childViewControllers]", p))
	}, func(p engine.Pointer, depth int) error { return nil }, s.WalkOptions())
	if err != nil && !errors.Is(err, hierarchy.ErrCycle) {
		return err
	}
	for _, p := range tree.Nodes() {
		name, err := className(ctx, s, p.String())
		if err != nil {
			return err
		}
		tree.Label(p, fmt.Sprintf("%s %s", name, p))
	}
	return tree.DOT(s.Out)
}

// printChain prints each node of a chain one indent level deeper than the last.
func printChain(ctx context.Context, s *chisel.Session, start engine.Pointer, next hierarchy.NextFunc) error {
	nodes, _, err := hierarchy.Chain(ctx, start, next, s.WalkOptions())
	if err != nil && !errors.Is(err, hierarchy.ErrCycle) {
		return err
	}
	lines := make([]string, 0, len(nodes))
	for _, p := range nodes {
		desc, err := engine.DescribeObject(ctx, s.Engine, p.String())
		if err != nil {
			return err
		}
		lines = append(lines, desc)
	}
	s.Printf("%s", hierarchy.Indent(lines, indentSep))
	if err != nil {
		s.Println(err)
	}
	return nil
}

func runPrintClassHierarchy(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	cls, err := engine.EvaluatePointer(ctx, s.Engine, fmt.Sprintf("(id)[(id)(%s) class]", args[0]))
	if err != nil {
		return err
	}
	return printChain(ctx, s, cls, func(ctx context.Context, p engine.Pointer) (engine.Pointer, error) {
		return engine.EvaluatePointer(ctx, s.Engine, fmt.Sprintf("(id)[(id)%s superclass]", p))
	})
}

func runPrintResponderChain(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	start := args[0]
	ok, err := engine.EvaluateBoolean(ctx, s.Engine, fmt.Sprintf("[(id)%s isKindOfClass:[UIResponder class]]", start))
	if err != nil {
		return err
	}
	if !ok {
		s.Printf("Whoa, %s is not a UIResponder. =(\n", start)
		return nil
	}
	p, err := engine.EvaluatePointer(ctx, s.Engine, start)
	if err != nil {
		return err
	}
	return printChain(ctx, s, p, func(ctx context.Context, p engine.Pointer) (engine.Pointer, error) {
		return engine.EvaluatePointer(ctx, s.Engine, fmt.Sprintf("(id)[(id)%s nextResponder]", p))
	})
}

// tableViewInHierarchy finds the first table view in the key window.
func tableViewInHierarchy(ctx context.Context, s *chisel.Session) (string, error) {
	desc, err := engine.DescribeObject(ctx, s.Engine, "[(id)[UIWindow keyWindow] recursiveDescription]")
	if err != nil {
		return "", err
	}
	for _, re := range []*regexp.Regexp{tableViewClassRE, tableViewSubclassRE} {
		if m := re.FindStringSubmatch(desc); m != nil {
			return m[1], nil
		}
	}
	for _, m := range anyPointerRE.FindAllStringSubmatch(desc, -1) {
		ok, err := engine.EvaluateBoolean(ctx, s.Engine, fmt.Sprintf("[%s isKindOfClass:(id)[UITableView class]]", m[1]))
		if err != nil {
			return "", err
		}
		if ok {
			return m[1], nil
		}
	}
	return "", nil
}

const noTableView = "Sorry, chump. I couldn't find a table-view. :'("

func runPrintTableView(ctx context.Context, s *chisel.Session, _ []string, _ chisel.Values) error {
	tv, err := tableViewInHierarchy(ctx, s)
	if err != nil {
		return err
	}
	if tv == "" {
		s.Println(noTableView)
		return nil
	}
	if err := describe(ctx, s, tv); err != nil {
		return err
	}
	s.CopyToClipboard(tv)
	return nil
}

func runPrintTableViewCells(ctx context.Context, s *chisel.Session, _ []string, _ chisel.Values) error {
	tv, err := tableViewInHierarchy(ctx, s)
	if err != nil {
		return err
	}
	if tv == "" {
		s.Println(noTableView)
		return nil
	}
	return describe(ctx, s, fmt.Sprintf("[(id)%s visibleCells]", tv))
}

func runPrintInternals(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	obj, err := engine.EvaluateObject(ctx, s.Engine, args[0])
	if err != nil {
		return err
	}
	cls, err := className(ctx, s, obj.String())
	if err != nil {
		return err
	}
	return evaluateAndPrint(ctx, s, fmt.Sprintf("*((%s *)((id)%s))", cls, obj))
}

func runPrintIvar(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	obj, err := engine.EvaluateObject(ctx, s.Engine, args[0])
	if err != nil {
		return err
	}
	ivar := args[1]
	cls, err := className(ctx, s, obj.String())
	if err != nil {
		return err
	}
	enc, err := engine.EvaluateExpression(ctx, s.Engine, fmt.Sprintf(`((char *)ivar_getTypeEncoding((void *)object_getInstanceVariable((id)%s, "%s", 0)))[0]`, obj, ivar))
	if err != nil {
		return err
	}
	expr := fmt.Sprintf("((%s *)(%s))->%s", cls, obj, ivar)
	if strings.Contains(enc, "@") {
		return describe(ctx, s, expr)
	}
	return evaluateAndPrint(ctx, s, expr)
}

func runPrintKeyPath(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	obj, keyPath, ok := strings.Cut(args[0], ".")
	if !ok {
		return describe(ctx, s, obj)
	}
	return describe(ctx, s, fmt.Sprintf(`[%s valueForKeyPath:@"%s"]`, obj, keyPath))
}
