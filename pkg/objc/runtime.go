package objc

import (
	"context"
	"fmt"
	"strings"

	"github.com/blacktop/chisel/pkg/engine"
)

// GetClass looks a class up by name.
func GetClass(ctx context.Context, e engine.Evaluator, name string) (engine.Pointer, error) {
	return engine.EvaluatePointer(ctx, e, fmt.Sprintf(`(void*)objc_getClass("%s")`, name))
}

// ObjectGetClass returns the class (or metaclass, for a class) of obj.
func ObjectGetClass(ctx context.Context, e engine.Evaluator, obj string) (engine.Pointer, error) {
	return engine.EvaluatePointer(ctx, e, fmt.Sprintf("(void*)object_getClass((id)%s)", obj))
}

// ClassGetName returns the name of cls.
func ClassGetName(ctx context.Context, e engine.Evaluator, cls string) (string, error) {
	return engine.EvaluateCString(ctx, e, fmt.Sprintf("class_getName((Class)%s)", cls))
}

// ClassGetSuperclass returns the superclass of cls, zero for a root class.
func ClassGetSuperclass(ctx context.Context, e engine.Evaluator, cls string) (engine.Pointer, error) {
	return engine.EvaluatePointer(ctx, e, fmt.Sprintf("(void*)class_getSuperclass((Class)%s)", cls))
}

// ClassIsMetaClass reports whether cls is a metaclass.
func ClassIsMetaClass(ctx context.Context, e engine.Evaluator, cls string) (bool, error) {
	return engine.EvaluateBoolean(ctx, e, fmt.Sprintf("class_isMetaClass((Class)%s)", cls))
}

// ClassGetInstanceMethod returns the Method for sel on cls, zero if none.
func ClassGetInstanceMethod(ctx context.Context, e engine.Evaluator, cls, sel string) (engine.Pointer, error) {
	return engine.EvaluatePointer(ctx, e, fmt.Sprintf("(void*)class_getInstanceMethod((Class)%s, @selector(%s))", cls, sel))
}

// ClassItselfImplementsSelector reports whether cls provides its own
// implementation of sel rather than inheriting it.
func ClassItselfImplementsSelector(ctx context.Context, e engine.Evaluator, cls, sel string) (bool, error) {
	m, err := ClassGetInstanceMethod(ctx, e, cls, sel)
	if err != nil {
		return false, err
	}
	if m.IsNil() {
		return false, nil
	}
	super, err := ClassGetSuperclass(ctx, e, cls)
	if err != nil {
		return false, err
	}
	if super.IsNil() {
		return true, nil
	}
	sm, err := ClassGetInstanceMethod(ctx, e, super.String(), sel)
	if err != nil {
		return false, err
	}
	return m != sm, nil
}

// IsClassObject reports whether obj is a class (its class is a metaclass).
func IsClassObject(ctx context.Context, e engine.Evaluator, obj string) (bool, error) {
	cls, err := ObjectGetClass(ctx, e, obj)
	if err != nil {
		return false, err
	}
	if cls.IsNil() {
		return false, nil
	}
	return ClassIsMetaClass(ctx, e, cls.String())
}

// IsKindOfClass sends -isKindOfClass: to obj.
func IsKindOfClass(ctx context.Context, e engine.Evaluator, obj, className string) (bool, error) {
	return engine.EvaluateBoolean(ctx, e, fmt.Sprintf("[(id)%s isKindOfClass:[%s class]]", obj, className))
}

// ClassName returns the description of obj's class.
func ClassName(ctx context.Context, e engine.Evaluator, obj string) (string, error) {
	return engine.DescribeObject(ctx, e, "[("+obj+") class]")
}

// IsMacintoshArch reports whether the target is a macOS AppKit process.
func IsMacintoshArch(ctx context.Context, eng engine.Engine) (bool, error) {
	arch, err := CurrentArch(ctx, eng)
	if err != nil {
		return false, err
	}
	if arch != "x86_64" && arch != "arm64" {
		return false, nil
	}
	info, err := eng.Target(ctx)
	if err != nil {
		return false, err
	}
	// arm64 is shared with iOS so only a macOS triple qualifies there
	if arch == "arm64" && !strings.Contains(info.Triple, "macos") {
		return false, nil
	}
	return engine.EvaluateBoolean(ctx, eng, `(void*)objc_getClass("NSApplication") != nil`)
}

// IsIOSSimulator reports whether the target runs in the iOS simulator.
func IsIOSSimulator(ctx context.Context, e engine.Evaluator) (bool, error) {
	model, err := engine.DescribeObject(ctx, e, "[[UIDevice currentDevice] model]")
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(model), "simulator"), nil
}

// IsIOSDevice reports whether the target runs on an iOS device.
func IsIOSDevice(ctx context.Context, eng engine.Engine) (bool, error) {
	mac, err := IsMacintoshArch(ctx, eng)
	if err != nil || mac {
		return false, err
	}
	sim, err := IsIOSSimulator(ctx, eng)
	if err != nil {
		return false, err
	}
	return !sim, nil
}
