package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/objc"
)

func classDumpCommands() []chisel.Command {
	return []chisel.Command{
		chisel.New(chisel.Spec{
			Name:        "pmethods",
			Description: "Print the class and instance methods of a class.",
			Args:        []chisel.Argument{{Arg: "instance or class", Type: "instance or Class", Help: "an Objective-C Class."}},
			Options: []chisel.Argument{
				{Short: "a", Long: "address", Arg: "showaddr", Help: "Print the implementation address of the method", Default: false, Boolean: true},
				{Short: "i", Long: "instance", Arg: "insmethod", Help: "Print the instance methods", Default: false, Boolean: true},
				{Short: "c", Long: "class", Arg: "clsmethod", Help: "Print the class methods", Default: false, Boolean: true},
				{Short: "n", Long: "name", Arg: "clsname", Help: "Take the argument as class name", Default: false, Boolean: true},
			},
		}, runPrintMethods),
		chisel.New(chisel.Spec{
			Name:        "pproperties",
			Description: "Print the properties of an instance or Class",
			Args:        []chisel.Argument{{Arg: "instance or class", Type: "instance or Class", Help: "an Objective-C Class."}},
			Options: []chisel.Argument{
				{Short: "n", Long: "name", Arg: "clsname", Help: "Take the argument as class name", Default: false, Boolean: true},
			},
		}, runPrintProperties),
	}
}

// resolveClass returns the class named or referenced by arg. A zero pointer
// means a message has already been printed.
func resolveClass(ctx context.Context, s *chisel.Session, arg string, byName bool) (engine.Pointer, error) {
	if byName {
		cls, err := objc.GetClass(ctx, s.Engine, arg)
		if err != nil {
			return 0, err
		}
		if cls.IsNil() {
			s.Printf("Class not found: %s\n", arg)
		}
		return cls, nil
	}
	obj, err := engine.EvaluateObject(ctx, s.Engine, arg)
	if err != nil {
		return 0, err
	}
	if obj.IsNil() {
		s.Println("Invalid argument. Please specify an instance or a Class.")
		return 0, nil
	}
	isClass, err := objc.IsClassObject(ctx, s.Engine, obj.String())
	if err != nil {
		return 0, err
	}
	if isClass {
		return obj, nil
	}
	return objc.ObjectGetClass(ctx, s.Engine, obj.String())
}

func runPrintMethods(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
	cls, err := resolveClass(ctx, s, args[0], opts.Bool("clsname"))
	if err != nil || cls.IsNil() {
		return err
	}
	instance, class := opts.Bool("insmethod"), opts.Bool("clsmethod")
	if !instance && !class {
		instance, class = true, true
	}
	showAddr := opts.Bool("showaddr")

	var sb strings.Builder
	if class {
		meta, err := objc.ObjectGetClass(ctx, s.Engine, cls.String())
		if err != nil {
			return err
		}
		methods, err := objc.Methods(ctx, s.Engine, meta.String())
		if err != nil {
			return err
		}
		sb.WriteString("Class Methods:\n")
		writeMethods(&sb, methods, "+ ", showAddr)
	}
	if instance {
		methods, err := objc.Methods(ctx, s.Engine, cls.String())
		if err != nil {
			return err
		}
		if class {
			sb.WriteString("\n")
		}
		sb.WriteString("Instance Methods:\n")
		writeMethods(&sb, methods, "- ", showAddr)
	}
	highlight(s, sb.String())
	return nil
}

func writeMethods(sb *strings.Builder, methods []objc.Method, prefix string, showAddr bool) {
	if len(methods) == 0 {
		sb.WriteString("No methods were found\n")
		return
	}
	for _, m := range methods {
		sb.WriteString(prefix + m.PrettyPrint())
		if showAddr {
			sb.WriteString(" " + m.Imp().String())
		}
		sb.WriteByte('\n')
	}
}

func runPrintProperties(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
	cls, err := resolveClass(ctx, s, args[0], opts.Bool("clsname"))
	if err != nil || cls.IsNil() {
		return err
	}
	props, err := objc.Properties(ctx, s.Engine, cls.String())
	if err != nil {
		return err
	}
	var sb strings.Builder
	for _, p := range props {
		fmt.Fprintln(&sb, p.PrettyPrint())
	}
	highlight(s, sb.String())
	return nil
}
