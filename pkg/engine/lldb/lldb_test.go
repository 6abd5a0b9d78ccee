package lldb

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/blacktop/chisel/pkg/engine"
)

func boolPtr(b bool) *bool { return &b }

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    *engine.Value
		wantErr string
	}{
		{
			name: "pointer with summary",
			raw:  []string{`(NSString *) $0 = 0x0000000100e0a000 @"hello"`},
			want: &engine.Value{Type: "NSString *", Value: "0x0000000100e0a000", Summary: `@"hello"`},
		},
		{
			name: "c string",
			raw:  []string{`(const char *) $1 = 0x0000000100003f90 "UIView"`},
			want: &engine.Value{Type: "const char *", Value: "0x0000000100003f90", Summary: `"UIView"`},
		},
		{
			name: "scalar",
			raw:  []string{"(lldb) expression -l objc -- (int)(5)", "(int) $2 = 5"},
			want: &engine.Value{Type: "int", Value: "5"},
		},
		{
			name: "multi-line struct",
			raw:  []string{"(CGRect) $3 = {", "  origin = (x = 0, y = 0)", "  size = (width = 320, height = 480)", "}"},
			want: &engine.Value{Type: "CGRect", Value: "{\n  origin = (x = 0, y = 0)\n  size = (width = 320, height = 480)\n}"},
		},
		{
			name: "no result",
			raw:  nil,
			want: &engine.Value{},
		},
		{
			name:    "error",
			raw:     []string{"error: use of undeclared identifier 'foo'", "    foo", "    ^"},
			wantErr: "error: use of undeclared identifier 'foo'\n    foo\n    ^",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseValue("expr", clean(tt.raw))
			if tt.wantErr != "" {
				if !engine.IsEvalError(err) || err.Error() != tt.wantErr {
					t.Fatalf("parseValue() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseValue() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseIDs(t *testing.T) {
	bp, err := parseBreakpointID(clean([]string{"Breakpoint 3: where = UIKitCore`-[UIView setFrame:], address = 0x00000001854b1e2c"}))
	if err != nil || bp != 3 {
		t.Errorf("parseBreakpointID() = %d, %v", bp, err)
	}
	wp, err := parseWatchpointID(clean([]string{"Watchpoint created: Watchpoint 2: addr = 0x600000c04418 size = 8 state = enabled type = w"}))
	if err != nil || wp != 2 {
		t.Errorf("parseWatchpointID() = %d, %v", wp, err)
	}
	if _, err := parseBreakpointID(clean([]string{"error: no function named foo"})); err == nil {
		t.Error("parseBreakpointID() should surface lldb errors")
	}
}

func TestParseTargetList(t *testing.T) {
	o := clean([]string{
		"Current targets:",
		"* target #0: /Applications/Demo.app/Demo ( arch=arm64-apple-ios-simulator, platform=ios-simulator, pid=4242, state=stopped )",
	})
	info, err := parseTargetList(o)
	if err != nil {
		t.Fatal(err)
	}
	want := &engine.TargetInfo{Triple: "arm64-apple-ios-simulator", Arch: "arm64", PID: 4242}
	if !reflect.DeepEqual(info, want) {
		t.Errorf("parseTargetList() = %+v, want %+v", info, want)
	}
}

func TestBreakpointCommand(t *testing.T) {
	tests := []struct {
		spec engine.BreakpointSpec
		want string
	}{
		{
			engine.BreakpointSpec{FullName: "-[UIView setFrame:]", Condition: `(void*)object_getClass((id)$x0) == 0x1000`, SkipPrologue: boolPtr(false)},
			`breakpoint set --fullname "-[UIView setFrame:]" --condition "(void*)object_getClass((id)$x0) == 0x1000" --skip-prologue false`,
		},
		{
			engine.BreakpointSpec{Regex: `-\[UIView(\(.+\))? setFrame:\]`},
			`breakpoint set --func-regex "-\\[UIView(\\(.+\\))? setFrame:\\]"`,
		},
		{
			engine.BreakpointSpec{Address: 0x100003f00},
			`breakpoint set --address 0x100003f00`,
		},
	}
	for _, tt := range tests {
		got, err := breakpointCommand(tt.spec)
		if err != nil || got != tt.want {
			t.Errorf("breakpointCommand() = %q, %v; want %q", got, err, tt.want)
		}
	}
	if _, err := breakpointCommand(engine.BreakpointSpec{}); err == nil {
		t.Error("breakpointCommand() should reject an empty spec")
	}
}

func TestExpressionLines(t *testing.T) {
	if got := expressionLines("(id)[NSObject new]", engine.ObjC, true); got != "expression -l objc -O -- (id)[NSObject new]" {
		t.Errorf("single line = %q", got)
	}
	got := expressionLines("({\nint x = 1;\n\nx;})", engine.ObjC, false)
	if got != "expression -l objc --\n({\nint x = 1;\nx;})\n" {
		t.Errorf("multi line = %q", got)
	}
}

// fakeLLDB answers commands the way lldb does on a pipe: it echoes the
// command behind a prompt and fails on the unknown sentinel command.
type fakeLLDB struct {
	replies map[string][]string
	sig     chan struct{}
}

func (f *fakeLLDB) serve(in io.Reader, out io.WriteCloser) {
	defer out.Close()
	s := bufio.NewScanner(in)
	for s.Scan() {
		line := s.Text()
		fmt.Fprintf(out, "(lldb) %s\n", line)
		switch {
		case strings.HasPrefix(line, sentinelPrefix):
			fmt.Fprintf(out, "error: '%s' is not a valid command.\n", line)
		case line == "process continue":
			fmt.Fprintln(out, "Process 4242 resuming")
			<-f.sig
			fmt.Fprintln(out, "Process 4242 stopped")
		default:
			for _, r := range f.replies[line] {
				fmt.Fprintln(out, r)
			}
		}
	}
}

func startFake(t *testing.T, replies map[string][]string) (*Engine, *fakeLLDB) {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	f := &fakeLLDB{replies: replies, sig: make(chan struct{}, 1)}
	go f.serve(inR, outW)
	e := newEngine(Config{Timeout: time.Second}, inW, outR, func() error {
		f.sig <- struct{}{}
		return nil
	})
	t.Cleanup(func() {
		inW.Close()
		e.eg.Wait()
	})
	return e, f
}

func TestEngineRoundTrip(t *testing.T) {
	e, _ := startFake(t, map[string][]string{
		"expression -l objc -- (id)[UIApplication sharedApplication]": {"(UIApplication *) $0 = 0x0000000104a0b2c0"},
		"expression -l objc -O -- (id)(0x104a0b2c0)":                  {"<UIApplication: 0x104a0b2c0>"},
		"expression -l objc -- (int)(undefined)":                      {"error: use of undeclared identifier 'undefined'"},
		"breakpoint set --name \"objc_exception_throw\"":               {"Breakpoint 1: where = libobjc.A.dylib`objc_exception_throw, address = 0x0000000180064e1c"},
		"target list":                                                 {"Current targets:", "* target #0: /tmp/Demo ( arch=x86_64-apple-macosx, platform=host, pid=77, state=stopped )"},
	})
	ctx := context.Background()

	v, err := e.Evaluate(ctx, "(id)[UIApplication sharedApplication]", engine.ObjC)
	if err != nil || v.Value != "0x0000000104a0b2c0" || v.Type != "UIApplication *" {
		t.Fatalf("Evaluate() = %+v, %v", v, err)
	}
	desc, err := e.Describe(ctx, "(id)(0x104a0b2c0)", engine.ObjC)
	if err != nil || desc != "<UIApplication: 0x104a0b2c0>" {
		t.Fatalf("Describe() = %q, %v", desc, err)
	}
	if _, err := e.Evaluate(ctx, "(int)(undefined)", engine.ObjC); !engine.IsEvalError(err) {
		t.Fatalf("Evaluate() error = %v, want EvalError", err)
	}
	bp, err := e.SetBreakpoint(ctx, engine.BreakpointSpec{Name: "objc_exception_throw"})
	if err != nil || bp.ID != 1 {
		t.Fatalf("SetBreakpoint() = %+v, %v", bp, err)
	}
	info, err := e.Target(ctx)
	if err != nil || info.Arch != "x86_64" || info.PID != 77 {
		t.Fatalf("Target() = %+v, %v", info, err)
	}
	// unscripted commands print nothing
	v, err = e.Evaluate(ctx, "@import UIKit", engine.ObjC)
	if err != nil || v.Value != "" || v.Summary != "" {
		t.Fatalf("Evaluate(@import) = %+v, %v", v, err)
	}
}

func TestEngineContinueInterrupt(t *testing.T) {
	e, _ := startFake(t, map[string][]string{
		"expression -l objc -- (BOOL)(YES)": {"(BOOL) $0 = YES"},
	})
	ctx := context.Background()
	if err := e.Continue(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.Interrupt(ctx); err != nil {
		t.Fatal(err)
	}
	v, err := e.Evaluate(ctx, "(BOOL)(YES)", engine.ObjC)
	if err != nil || v.Value != "YES" {
		t.Fatalf("Evaluate() after interrupt = %+v, %v", v, err)
	}
}

func TestEngineTimeoutDiscardsStaleOutput(t *testing.T) {
	e, _ := startFake(t, map[string][]string{
		"expression -l objc -- (int)(1)": {"(int) $0 = 1"},
		"expression -l objc -- (int)(2)": {"(int) $1 = 2"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Evaluate(ctx, "(int)(1)", engine.ObjC); err == nil {
		t.Fatal("Evaluate() with a canceled context should fail")
	}

	v, err := e.Evaluate(context.Background(), "(int)(2)", engine.ObjC)
	if err != nil || v.Value != "2" {
		t.Fatalf("Evaluate() = %+v, %v", v, err)
	}
}
