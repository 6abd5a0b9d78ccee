package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/apex/log"
	"github.com/blacktop/go-macho"
	"github.com/blacktop/go-macho/types"

	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/hierarchy"
	"github.com/blacktop/chisel/pkg/objc"
)

var methodRE = regexp.MustCompile(`^(?P<scope>[-+])?\[(?P<target>.*?)(?P<category>\(.+\))?\s+(?P<selector>.*)\]`)

// dladdrBody resolves the image containing the current pc. %s selects the
// Dl_info field to return.
const dladdrBody = `({ struct { const char *fname; void *fbase; const char *sname; void *saddr; } info; (void)dladdr((void *)$pc, (void *)&info); %s; })`

func debugCommands() []chisel.Command {
	return []chisel.Command{
		chisel.New(chisel.Spec{
			Name:        "wivar",
			Description: "Set a watchpoint for an object's instance variable.",
			Args: []chisel.Argument{
				{Arg: "object", Type: "id", Help: "Object expression to be evaluated."},
				{Arg: "ivarName", Help: "Name of the instance variable to watch."},
			},
		}, runWatchIvar),
		chisel.New(chisel.Spec{
			Name:        "binside",
			Description: "Set a breakpoint for a relative address within the framework/library that's currently running. This does the work of finding the offset for the framework/library and sliding your address accordingly.",
			Args:        []chisel.Argument{{Arg: "address", Type: "string", Help: "Address within the currently running framework to set a breakpoint on."}},
			Options: []chisel.Argument{
				{Short: "f", Long: "file", Arg: "file", Type: "string", Help: "Local copy of the Mach-O to read the __TEXT segment from (default: the image path in the target)."},
			},
		}, runBreakInside),
		chisel.New(chisel.Spec{
			Name:        "bmessage",
			Description: "Set a breakpoint for a selector on a class, even if the class itself doesn't override that selector. It walks the hierarchy until it finds a class that does implement the selector and sets a conditional breakpoint there.",
			Args:        []chisel.Argument{{Arg: "expression", Type: "string", Help: `Expression to set a breakpoint on, e.g. "-[MyView setFrame:]", "+[MyView awesomeClassMethod]" or "-[0xabcd1234 setFrame:]"`}},
		}, runBreakMessage),
		chisel.New(chisel.Spec{
			Name:        "mwarning",
			Description: "simulate a memory warning",
		}, func(ctx context.Context, s *chisel.Session, _ []string, _ chisel.Values) error {
			return engine.EvaluateEffect(ctx, s.Engine, "[[UIApplication sharedApplication] performSelector:@selector(_performMemoryWarning)]")
		}),
	}
}

func runWatchIvar(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	obj, err := engine.EvaluateObject(ctx, s.Engine, args[0])
	if err != nil {
		return err
	}
	addr, ivar := uint64(obj), args[1]

	offset, err := engine.EvaluateExpression(ctx, s.Engine, fmt.Sprintf(`(ptrdiff_t)ivar_getOffset((void*)object_getInstanceVariable((id)%d, "%s", 0))`, addr, ivar))
	if err != nil {
		return err
	}
	off, err := engine.ParseInteger(offset)
	if err != nil {
		return err
	}
	size, err := engine.EvaluateExpression(ctx, s.Engine, fmt.Sprintf(`unsigned int size = 0;`+
		`char *typeEncoding = (char *)ivar_getTypeEncoding((void*)class_getInstanceVariable((Class)object_getClass((id)%d), "%s"));`+
		`(char *)NSGetSizeAndAlignment(typeEncoding, &size, 0);`+
		`size`, addr, ivar))
	if err != nil {
		return err
	}
	n, err := engine.ParseInteger(size)
	if err != nil {
		return err
	}

	wp, err := s.Engine.SetWatchpoint(ctx, addr+uint64(off), int(n), engine.WatchWrite)
	if err != nil {
		s.Printf("Could not create the watchpoint: %v\n", err)
		return nil
	}
	s.Printf("Remember to delete the watchpoint using: watchpoint delete %d\n", wp.ID)
	return nil
}

// textVMAddr returns the preferred load address of the __TEXT segment of the
// Mach-O at path.
func textVMAddr(path string) (uint64, error) {
	m, err := macho.Open(path)
	if err != nil {
		return 0, err
	}
	defer m.Close()
	text := m.Segment("__TEXT")
	if text == nil {
		return 0, fmt.Errorf("%s has no __TEXT segment", path)
	}
	return text.Addr, nil
}

// loadedTextVMAddr reads the __TEXT segment address from the Mach-O header
// mapped at base in the target.
func loadedTextVMAddr(ctx context.Context, mr engine.MemoryReader, base uint64) (uint64, error) {
	m, err := macho.NewFile(engine.NewReaderAt(ctx, mr, base), macho.FileConfig{
		LoadIncluding: []types.LoadCmd{types.LC_SEGMENT_64, types.LC_SEGMENT},
	})
	if err != nil {
		return 0, err
	}
	text := m.Segment("__TEXT")
	if text == nil {
		return 0, fmt.Errorf("image at %#x has no __TEXT segment", base)
	}
	return text.Addr, nil
}

// slideAddress converts a file address (or an offset from the image start)
// into a load address for an image loaded at base.
func slideAddress(addr, base, textAddr uint64) uint64 {
	if addr < textAddr {
		return base + addr
	}
	return addr - textAddr + base
}

func runBreakInside(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
	addr, err := engine.ParseInteger(args[0])
	if err != nil {
		return fmt.Errorf("invalid address %q: %v", args[0], err)
	}
	base, err := engine.EvaluatePointer(ctx, s.Engine, fmt.Sprintf(dladdrBody, "(void *)info.fbase"))
	if err != nil {
		return err
	}
	if base.IsNil() {
		s.Println("Could not find the image containing the current frame")
		return nil
	}

	path := opts.String("file")
	if path == "" {
		path, err = engine.EvaluateCString(ctx, s.Engine, fmt.Sprintf(dladdrBody, "info.fname"))
		if err != nil {
			return err
		}
	}
	textAddr, err := textVMAddr(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Debug("Reading __TEXT segment from target memory")
		if textAddr, err = loadedTextVMAddr(ctx, s.Engine, uint64(base)); err != nil {
			return fmt.Errorf("could not find the __TEXT segment of %s: %w", path, err)
		}
	}
	load := slideAddress(uint64(addr), uint64(base), textAddr)
	log.WithFields(log.Fields{
		"image": path,
		"base":  base,
		"text":  fmt.Sprintf("%#x", textAddr),
	}).Debug("Sliding address")

	bp, err := s.Engine.SetBreakpoint(ctx, engine.BreakpointSpec{Address: load})
	if err != nil {
		return err
	}
	s.Printf("Breakpoint %d: address = %s\n", bp.ID, engine.Pointer(load))
	return nil
}

// methodTarget is the receiver a bmessage breakpoint is conditioned on.
type methodTarget struct {
	object  engine.Pointer
	class   engine.Pointer
	isClass bool
}

func resolveMethodTarget(ctx context.Context, s *chisel.Session, expr string, classMethod bool) (*methodTarget, error) {
	t := &methodTarget{}
	obj, err := engine.EvaluateObject(ctx, s.Engine, "("+expr+")")
	if err != nil || obj.IsNil() {
		// not an object expression, so it names a class
		t.isClass = true
		obj, err = engine.EvaluateObject(ctx, s.Engine, fmt.Sprintf("[%s class]", expr))
		if err != nil && !engine.IsEvalError(err) {
			return nil, err
		}
	}
	t.object = obj
	if obj.IsNil() {
		return t, nil
	}
	cls, err := engine.EvaluateObject(ctx, s.Engine, fmt.Sprintf("[%s class]", obj))
	if err != nil && !engine.IsEvalError(err) {
		return nil, err
	}
	t.class = cls
	if classMethod && !cls.IsNil() {
		t.class, err = objc.ObjectGetClass(ctx, s.Engine, cls.String())
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func runBreakMessage(ctx context.Context, s *chisel.Session, args []string, _ chisel.Values) error {
	m := methodRE.FindStringSubmatch(args[0])
	if m == nil {
		s.Println("Failed to parse expression. Do you even Objective-C?!")
		return nil
	}
	arch, err := objc.CurrentArch(ctx, s.Engine)
	if err != nil {
		return err
	}
	self, err := objc.SelfExpression(arch)
	if err != nil {
		s.Println(err)
		return nil
	}

	scope := m[methodRE.SubexpIndex("scope")]
	target := m[methodRE.SubexpIndex("target")]
	category := m[methodRE.SubexpIndex("category")]
	selector := m[methodRE.SubexpIndex("selector")]
	classMethod := scope == "+"
	if !classMethod {
		scope = "-"
	}

	t, err := resolveMethodTarget(ctx, s, target, classMethod)
	if err != nil {
		return err
	}
	if t.class.IsNil() {
		s.Printf("Couldn't find a class from the expression \"%s\". Did you typo?\n", target)
		return nil
	}

	var found engine.Pointer
	_, _, err = hierarchy.Chain(ctx, t.class, func(ctx context.Context, cls engine.Pointer) (engine.Pointer, error) {
		ok, err := objc.ClassItselfImplementsSelector(ctx, s.Engine, cls.String(), selector)
		if err != nil {
			return 0, err
		}
		if ok {
			found = cls
			return 0, nil
		}
		return objc.ClassGetSuperclass(ctx, s.Engine, cls.String())
	}, s.WalkOptions())
	if err != nil && !errors.Is(err, hierarchy.ErrCycle) {
		return err
	}
	if found.IsNil() {
		s.Printf("There doesn't seem to be an implementation of %s in the class hierarchy. Made a boo boo with the selector name?\n", selector)
		return nil
	}

	name, err := s.ClassName(ctx, found)
	if err != nil {
		return err
	}
	fullName := fmt.Sprintf("%s[%s%s %s]", scope, name, category, selector)
	condition := fmt.Sprintf("(void*)%s == %s", self, t.object)
	if t.isClass {
		condition = fmt.Sprintf("(void*)object_getClass(%s) == %s", self, t.class)
	}
	s.Printf("Setting a breakpoint at %s with condition %s\n", fullName, condition)

	skip := false
	spec := engine.BreakpointSpec{Condition: condition, SkipPrologue: &skip}
	if category != "" {
		spec.FullName = fullName
	} else {
		spec.Regex = fmt.Sprintf(`\%s\[%s(\(.+\))? %s\]`, scope, regexp.QuoteMeta(name), strings.TrimSpace(selector))
	}
	_, err = s.Engine.SetBreakpoint(ctx, spec)
	return err
}
