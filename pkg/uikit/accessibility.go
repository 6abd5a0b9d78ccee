package uikit

import (
	"context"
	"fmt"

	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/objc"
)

// AccessibilityLabelKey is the attribute key of the accessibility label in
// the private accessibility element API.
const AccessibilityLabelKey = 2001

// StartAccessibilityServer starts the accessibility server unless the
// element API is already available.
func StartAccessibilityServer(ctx context.Context, e engine.Evaluator) error {
	ready, err := engine.EvaluateBoolean(ctx, e, "[UIView instancesRespondToSelector:@selector(_accessibilityElementsInContainer:)]")
	if err != nil {
		return err
	}
	if ready {
		return nil
	}
	sim, err := objc.IsIOSSimulator(ctx, e)
	if err != nil {
		return err
	}
	if sim {
		return engine.EvaluateEffect(ctx, e, "[[UIApplication sharedApplication] accessibilityActivate]")
	}
	return engine.EvaluateEffect(ctx, e, "[[[UIApplication sharedApplication] _accessibilityBundlePrincipalClass] _accessibilityStartServer]")
}

// AccessibilityLabel returns the accessibility label of view. ok is false
// when view has none, in which case its elements carry the labels.
func AccessibilityLabel(ctx context.Context, e engine.Evaluator, view string) (label string, ok bool, err error) {
	expr := fmt.Sprintf("(id)[%s accessibilityAttributeValue:%d]", view, AccessibilityLabelKey)
	p, err := engine.EvaluatePointer(ctx, e, expr)
	if err != nil {
		return "", false, err
	}
	if p.IsNil() {
		return "", false, nil
	}
	label, err = engine.DescribeObject(ctx, e, p.String())
	if err != nil {
		return "", false, err
	}
	return label, true, nil
}

// AccessibilityElements returns the visible accessibility elements of view.
func AccessibilityElements(ctx context.Context, e engine.Evaluator, view string) ([]engine.Pointer, error) {
	elements, err := engine.EvaluateObject(ctx, e, fmt.Sprintf("[[[UIApplication sharedApplication] keyWindow] _accessibilityElementsInContainer:0 topLevel:%s includeKB:0]", view))
	if err != nil {
		return nil, err
	}
	if elements.IsNil() {
		return nil, nil
	}
	return Elements(ctx, e, elements.String())
}
