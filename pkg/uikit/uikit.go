// Package uikit builds the UIKit, AppKit and Core Animation expressions the
// view commands evaluate in the target.
package uikit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blacktop/chisel/pkg/engine"
)

// Expressions for well known objects.
const (
	KeyWindow             = "(id)[[UIApplication sharedApplication] keyWindow]"
	RootViewController    = "(id)[[[UIApplication sharedApplication] keyWindow] rootViewController]"
	MacContentView        = "(id)[[[[NSApplication sharedApplication] windows] objectAtIndex:0] contentView]"
	MacContentViewControl = "(id)[[[NSApplication sharedApplication] mainWindow] contentViewController]"
)

// Point is a CGPoint.
type Point struct {
	X, Y float64
}

// Size is a CGSize.
type Size struct {
	Width, Height float64
}

// Rect is a CGRect.
type Rect struct {
	Origin Point
	Size   Size
}

func (r Rect) String() string {
	return fmt.Sprintf("{{%s, %s}, {%s, %s}}",
		FormatFloat(r.Origin.X), FormatFloat(r.Origin.Y),
		FormatFloat(r.Size.Width), FormatFloat(r.Size.Height))
}

// FormatFloat renders f the way it is written in an expression.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Frame returns the frame of view.
func Frame(ctx context.Context, e engine.Evaluator, view string) (Rect, error) {
	var r Rect
	frame := fmt.Sprintf("((CGRect)[(id)%s frame])", view)
	for _, f := range []struct {
		dst  *float64
		path string
	}{
		{&r.Origin.X, ".origin.x"},
		{&r.Origin.Y, ".origin.y"},
		{&r.Size.Width, ".size.width"},
		{&r.Size.Height, ".size.height"},
	} {
		v, err := engine.EvaluateFloat(ctx, e, frame+f.path)
		if err != nil {
			return Rect{}, err
		}
		*f.dst = v
	}
	return r, nil
}

// Elements returns the objects of the NSArray array.
func Elements(ctx context.Context, e engine.Evaluator, array string) ([]engine.Pointer, error) {
	n, err := engine.EvaluateInteger(ctx, e, fmt.Sprintf("[(id)%s count]", array))
	if err != nil {
		return nil, err
	}
	out := make([]engine.Pointer, 0, n)
	for i := int64(0); i < n; i++ {
		p, err := engine.EvaluateObject(ctx, e, fmt.Sprintf("[(id)%s objectAtIndex:%d]", array, i))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
