package uikit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/hierarchy"
	"github.com/blacktop/chisel/pkg/objc"
)

// ErrNotLayer is returned for objects that are neither layers nor views.
var ErrNotLayer = errors.New("Argument must be a CALayer, UIView, or NSView.")

// FlushCoreAnimationTransaction forces Core Animation to redraw.
func FlushCoreAnimationTransaction(ctx context.Context, e engine.Evaluator) error {
	return engine.EvaluateEffect(ctx, e, "[CATransaction flush]")
}

// SetViewHidden hides or shows obj and flushes.
func SetViewHidden(ctx context.Context, e engine.Evaluator, obj string, hidden bool) error {
	h := 0
	if hidden {
		h = 1
	}
	if err := engine.EvaluateEffect(ctx, e, fmt.Sprintf("[%s setHidden:%d]", obj, h)); err != nil {
		return err
	}
	return FlushCoreAnimationTransaction(ctx, e)
}

// ConvertToLayer returns viewOrLayer if it is a layer, else its layer.
func ConvertToLayer(ctx context.Context, e engine.Evaluator, viewOrLayer string) (string, error) {
	isLayer, err := engine.EvaluateBoolean(ctx, e, fmt.Sprintf("[(id)%s isKindOfClass:(Class)[CALayer class]]", viewOrLayer))
	if err != nil {
		return "", err
	}
	if isLayer {
		return viewOrLayer, nil
	}
	hasLayer, err := engine.EvaluateBoolean(ctx, e, fmt.Sprintf("[(id)%s respondsToSelector:(SEL)@selector(layer)]", viewOrLayer))
	if err != nil {
		return "", err
	}
	if !hasLayer {
		return "", ErrNotLayer
	}
	layer, err := engine.EvaluatePointer(ctx, e, fmt.Sprintf("(CALayer *)[%s layer]", viewOrLayer))
	if err != nil {
		return "", err
	}
	return layer.String(), nil
}

// ConvertPoint converts (x, y) from one view or layer's coordinate space to another's.
func ConvertPoint(ctx context.Context, e engine.Evaluator, x, y float64, from, to string) (Point, error) {
	fromLayer, err := ConvertToLayer(ctx, e, from)
	if err != nil {
		return Point{}, err
	}
	toLayer, err := ConvertToLayer(ctx, e, to)
	if err != nil {
		return Point{}, err
	}
	pt := fmt.Sprintf("((CGPoint)[%s convertPoint:(CGPoint){ .x = %s, .y = %s } toLayer:(CALayer *)%s])",
		fromLayer, FormatFloat(x), FormatFloat(y), toLayer)
	px, err := engine.EvaluateFloat(ctx, e, pt+".x")
	if err != nil {
		return Point{}, err
	}
	py, err := engine.EvaluateFloat(ctx, e, pt+".y")
	if err != nil {
		return Point{}, err
	}
	return Point{X: px, Y: py}, nil
}

// MaskView covers viewOrLayer with a translucent view added to the key
// window. The mask is tagged with the address of what it covers.
func MaskView(ctx context.Context, e engine.Evaluator, viewOrLayer, color string, alpha float64) error {
	if err := UnmaskView(ctx, e, viewOrLayer); err != nil {
		return err
	}
	window, err := engine.EvaluatePointer(ctx, e, "(UIWindow *)[[UIApplication sharedApplication] keyWindow]")
	if err != nil {
		return err
	}
	origin, err := ConvertPoint(ctx, e, 0, 0, viewOrLayer, window.String())
	if err != nil {
		return err
	}
	frame, err := Frame(ctx, e, viewOrLayer)
	if err != nil {
		return err
	}
	rect := Rect{Origin: origin, Size: frame.Size}
	mask, err := engine.EvaluatePointer(ctx, e, fmt.Sprintf("(id)[[UIView alloc] initWithFrame:(CGRect)%s]", rect))
	if err != nil {
		return err
	}
	for _, expr := range []string{
		fmt.Sprintf("[%s setTag:(NSInteger)%s]", mask, viewOrLayer),
		fmt.Sprintf("[%s setBackgroundColor:[UIColor %sColor]]", mask, color),
		fmt.Sprintf("[%s setAlpha:(CGFloat)%s]", mask, FormatFloat(alpha)),
		fmt.Sprintf("[%s addSubview:%s]", window, mask),
	} {
		if err := engine.EvaluateEffect(ctx, e, expr); err != nil {
			return err
		}
	}
	return FlushCoreAnimationTransaction(ctx, e)
}

// UnmaskView removes the mask MaskView added for viewOrLayer.
func UnmaskView(ctx context.Context, e engine.Evaluator, viewOrLayer string) error {
	window, err := engine.EvaluatePointer(ctx, e, "(UIWindow *)[[UIApplication sharedApplication] keyWindow]")
	if err != nil {
		return err
	}
	mask, err := engine.EvaluatePointer(ctx, e, fmt.Sprintf("(UIView *)[%s viewWithTag:(NSInteger)%s]", window, viewOrLayer))
	if err != nil {
		return err
	}
	if err := engine.EvaluateEffect(ctx, e, fmt.Sprintf("[%s removeFromSuperview]", mask)); err != nil {
		return err
	}
	return FlushCoreAnimationTransaction(ctx, e)
}

// IsUIView reports whether obj is a UIView on a UIKit target.
func IsUIView(ctx context.Context, eng engine.Engine, obj string) (bool, error) {
	mac, err := objc.IsMacintoshArch(ctx, eng)
	if err != nil || mac {
		return false, err
	}
	return engine.EvaluateBoolean(ctx, eng, fmt.Sprintf("[(id)%s isKindOfClass:(Class)[UIView class]]", obj))
}

// IsNSView reports whether obj is an NSView on an AppKit target.
func IsNSView(ctx context.Context, eng engine.Engine, obj string) (bool, error) {
	mac, err := objc.IsMacintoshArch(ctx, eng)
	if err != nil || !mac {
		return false, err
	}
	return engine.EvaluateBoolean(ctx, eng, fmt.Sprintf("[(id)%s isKindOfClass:(Class)[NSView class]]", obj))
}

// IsView reports whether obj is a UIView or NSView.
func IsView(ctx context.Context, eng engine.Engine, obj string) (bool, error) {
	mac, err := objc.IsMacintoshArch(ctx, eng)
	if err != nil {
		return false, err
	}
	cls := "UIView"
	if mac {
		cls = "NSView"
	}
	return engine.EvaluateBoolean(ctx, eng, fmt.Sprintf("[(id)%s isKindOfClass:(Class)[%s class]]", obj, cls))
}

// Subviews returns the direct subviews of view.
func Subviews(ctx context.Context, e engine.Evaluator, view engine.Pointer) ([]engine.Pointer, error) {
	subviews, err := engine.EvaluateObject(ctx, e, fmt.Sprintf("[%s subviews]", view))
	if err != nil {
		return nil, err
	}
	if subviews.IsNil() {
		return nil, nil
	}
	return Elements(ctx, e, subviews.String())
}

// Superview returns the superview of view, zero at the top.
func Superview(ctx context.Context, e engine.Evaluator, view engine.Pointer) (engine.Pointer, error) {
	return engine.EvaluatePointer(ctx, e, fmt.Sprintf("(void*)[%s superview]", view))
}

// WalkSubviews visits view and its subviews with their depth.
func WalkSubviews(ctx context.Context, e engine.Evaluator, view engine.Pointer, opts hierarchy.Options, visit hierarchy.VisitFunc) (*hierarchy.Tree, error) {
	return hierarchy.Walk(ctx, view, func(ctx context.Context, p engine.Pointer) ([]engine.Pointer, error) {
		return Subviews(ctx, e, p)
	}, visit, opts)
}

// UpwardsRecursiveDescription describes view and its superviews, outermost
// first. It returns "" when view is not a view. maxDepth counts superviews;
// zero means all of them.
func UpwardsRecursiveDescription(ctx context.Context, eng engine.Engine, view string, maxDepth int, opts hierarchy.Options) (string, error) {
	isView, err := IsView(ctx, eng, view)
	if err != nil || !isView {
		return "", err
	}
	start, err := engine.EvaluatePointer(ctx, eng, "(void*)("+view+")")
	if err != nil {
		return "", err
	}
	if maxDepth > 0 {
		opts.MaxDepth = maxDepth + 1
	}
	views, _, err := hierarchy.Chain(ctx, start, func(ctx context.Context, p engine.Pointer) (engine.Pointer, error) {
		return Superview(ctx, eng, p)
	}, opts)
	if err != nil && !errors.Is(err, hierarchy.ErrCycle) {
		return "", err
	}
	var descs []string
	for i := len(views) - 1; i >= 0; i-- {
		desc, err := eng.Describe(ctx, fmt.Sprintf("(id)[%s debugDescription]", views[i]), engine.ObjC)
		if err != nil {
			return "", err
		}
		if desc = strings.TrimRight(desc, "\n"); desc != "" {
			descs = append(descs, desc)
		}
	}
	return hierarchy.Indent(descs, "   | "), nil
}

// SlowAnimation sets the layer speed of every window.
func SlowAnimation(ctx context.Context, e engine.Evaluator, speed float64) error {
	return engine.EvaluateEffect(ctx, e, fmt.Sprintf(`[[[UIApplication sharedApplication] windows] setValue:@(%s) forKeyPath:@"layer.speed"]`, FormatFloat(speed)))
}
