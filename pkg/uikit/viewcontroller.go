package uikit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/objc"
)

var (
	ErrNotViewController = errors.New("Argument must be a UIViewController")
	ErrAlreadyPresented  = errors.New("Argument is already presented")
	ErrNotPresented      = errors.New("Argument must be presented")
)

func isViewController(ctx context.Context, e engine.Evaluator, vc string) (bool, error) {
	return engine.EvaluateBoolean(ctx, e, fmt.Sprintf("%s != nil && ((BOOL)[(id)%s isKindOfClass:(Class)[UIViewController class]])", vc, vc))
}

// PresentViewController presents viewController from the key window's root.
func PresentViewController(ctx context.Context, e engine.Evaluator, viewController string) error {
	vc := "(" + viewController + ")"
	ok, err := isViewController(ctx, e, vc)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotViewController
	}
	notPresented, err := engine.EvaluateBoolean(ctx, e, fmt.Sprintf("[%s presentingViewController] == nil", vc))
	if err != nil {
		return err
	}
	if !notPresented {
		return ErrAlreadyPresented
	}
	return engine.EvaluateEffect(ctx, e, fmt.Sprintf("[[[[UIApplication sharedApplication] keyWindow] rootViewController] presentViewController:%s animated:YES completion:nil]", vc))
}

// DismissViewController dismisses a presented viewController.
func DismissViewController(ctx context.Context, e engine.Evaluator, viewController string) error {
	vc := "(" + viewController + ")"
	ok, err := isViewController(ctx, e, vc)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotViewController
	}
	presented, err := engine.EvaluateBoolean(ctx, e, fmt.Sprintf("[%s presentingViewController] != nil", vc))
	if err != nil {
		return err
	}
	if !presented {
		return ErrNotPresented
	}
	return engine.EvaluateEffect(ctx, e, fmt.Sprintf("[(UIViewController *)%s dismissViewControllerAnimated:YES completion:nil]", vc))
}

const (
	loadedVCFormat = `(id)[[NSString alloc] initWithFormat:@"<%%@: %%p; view = <%%@; %%p>; frame = (%%g, %%g; %%g, %%g)>", ` +
		`(id)NSStringFromClass((id)[(id)%[1]s class]), %[1]s, (id)[(id)[(id)%[1]s view] class], (id)[(id)%[1]s view], ` +
		`((CGRect)[(id)[(id)%[1]s view] frame]).origin.x, ((CGRect)[(id)[(id)%[1]s view] frame]).origin.y, ` +
		`((CGRect)[(id)[(id)%[1]s view] frame]).size.width, ((CGRect)[(id)[(id)%[1]s view] frame]).size.height]`
	unloadedVCFormat = `(id)[[NSString alloc] initWithFormat:@"<%%@: %%p; view not loaded>", (id)NSStringFromClass((id)[(id)%[1]s class]), %[1]s]`

	modalFootnote = "\n// '*M' means the view controller is presented modally."
)

// ViewControllerDescription describes one view controller and its view.
func ViewControllerDescription(ctx context.Context, e engine.Evaluator, viewController string) string {
	vc := "(" + viewController + ")"
	format := unloadedVCFormat
	if loaded, err := engine.EvaluateBoolean(ctx, e, fmt.Sprintf("[(id)%s isViewLoaded]", vc)); err == nil && loaded {
		format = loadedVCFormat
	}
	desc, err := e.Describe(ctx, fmt.Sprintf(format, vc), engine.ObjC)
	if err != nil {
		return "[Error getting description.]"
	}
	return strings.TrimRight(desc, "\n")
}

// ViewControllerRecursiveDescription describes vc, its children and, on
// UIKit, the controllers it presents modally.
func ViewControllerRecursiveDescription(ctx context.Context, eng engine.Engine, vc string) (string, error) {
	root, err := engine.EvaluateObject(ctx, eng, vc)
	if err != nil {
		return "", err
	}
	mac, err := objc.IsMacintoshArch(ctx, eng)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := describeViewController(ctx, eng, &sb, root.String(), "", "", mac); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func describeViewController(ctx context.Context, e engine.Evaluator, sb *strings.Builder, vc, prefix, childPrefix string, mac bool) error {
	sep := ""
	if prefix != "" {
		sep = " "
	}
	fmt.Fprintf(sb, "%s%s%s\n", prefix, sep, ViewControllerDescription(ctx, e, vc))

	nextPrefix := childPrefix + "   |"
	n, err := engine.EvaluateInteger(ctx, e, fmt.Sprintf("[(id)[%s childViewControllers] count]", vc))
	if err != nil {
		return err
	}
	for i := int64(0); i < n; i++ {
		child, err := engine.EvaluateObject(ctx, e, fmt.Sprintf("[(id)[%s childViewControllers] objectAtIndex:%d]", vc, i))
		if err != nil {
			return err
		}
		if err := describeViewController(ctx, e, sb, child.String(), nextPrefix, nextPrefix, mac); err != nil {
			return err
		}
	}
	if mac {
		return nil
	}
	modal, err := engine.EvaluateBoolean(ctx, e, fmt.Sprintf("%[1]s != nil && ((id)[(id)[(id)%[1]s presentedViewController] presentingViewController]) == %[1]s", vc))
	if err != nil {
		return err
	}
	if modal {
		presented, err := engine.EvaluateObject(ctx, e, fmt.Sprintf("(id)[(id)%s presentedViewController]", vc))
		if err != nil {
			return err
		}
		if err := describeViewController(ctx, e, sb, presented.String(), childPrefix+"  *M", nextPrefix, mac); err != nil {
			return err
		}
		sb.WriteString(modalFootnote)
	}
	return nil
}
