package chisel

import (
	"bytes"
	"context"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/engine/enginetest"
)

var viewsSpec = Spec{
	Name:        "pviews",
	Description: "Print the recursion description of <aView>.",
	Args: []Argument{
		{Arg: "aView", Type: "UIView*/NSView*", Help: "The view to print the description of.", Default: "__keyWindow_dynamic__"},
	},
	Options: []Argument{
		{Short: "u", Long: "up", Arg: "upwards", Help: "Print only the hierarchy directly above the view, up to its window.", Default: false, Boolean: true},
		{Short: "d", Long: "depth", Arg: "depth", Type: "int", Help: "Print only to a given depth. 0 indicates infinite depth.", Default: 0},
	},
}

func noop(context.Context, *Session, []string, Values) error { return nil }

func TestParse(t *testing.T) {
	twoArgs := New(Spec{
		Name: "pair",
		Args: []Argument{
			{Arg: "first", Help: "first"},
			{Arg: "second", Help: "second"},
		},
	}, noop)
	bmessage := New(Spec{
		Name: "bmessage",
		Args: []Argument{{Arg: "expression", Help: "Expression to set a breakpoint on"}},
	}, noop)
	views := New(viewsSpec, noop)
	flipped := New(Spec{
		Name: "flip",
		Options: []Argument{
			{Short: "n", Long: "no-open", Arg: "open", Help: "Do not open the file.", Default: true, Boolean: true},
		},
	}, noop)

	tests := []struct {
		name     string
		cmd      Command
		line     string
		wantArgs []string
		wantOpts Values
		wantErr  string
	}{
		{
			name:     "dash tokens are arguments without options",
			cmd:      bmessage,
			line:     "-[UIView setFrame:]",
			wantArgs: []string{"-[UIView setFrame:]"},
			wantOpts: Values{},
		},
		{
			name:     "surplus joined into first argument",
			cmd:      twoArgs,
			line:     "[self view] layer x",
			wantArgs: []string{"[self view] layer", "x"},
			wantOpts: Values{},
		},
		{
			name:     "default filled in",
			cmd:      views,
			line:     "",
			wantArgs: []string{"__keyWindow_dynamic__"},
			wantOpts: Values{"upwards": false, "depth": 0},
		},
		{
			name:     "flags parsed",
			cmd:      views,
			line:     "-u --depth 3 0x1234",
			wantArgs: []string{"0x1234"},
			wantOpts: Values{"upwards": true, "depth": "3"},
		},
		{
			name:     "boolean default true flips to false",
			cmd:      flipped,
			line:     "-n",
			wantArgs: []string{},
			wantOpts: Values{"open": false},
		},
		{
			name:    "missing argument",
			cmd:     twoArgs,
			line:    "one",
			wantErr: "Whoops! You are missing the <second> argument.\n\nUsage: pair first second",
		},
		{
			name:    "unknown flag",
			cmd:     views,
			line:    "--bogus",
			wantErr: "unknown flag",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Lex(tt.line)
			if err != nil {
				t.Fatal(err)
			}
			args, opts, err := Parse(tt.cmd, tokens)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Parse() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(args) == 0 && len(tt.wantArgs) == 0 {
				args = tt.wantArgs
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %q, want %q", args, tt.wantArgs)
			}
			if !reflect.DeepEqual(opts, tt.wantOpts) {
				t.Errorf("opts = %v, want %v", opts, tt.wantOpts)
			}
		})
	}
}

func TestValues(t *testing.T) {
	v := Values{"depth": "3", "width": 2.0, "up": true, "empty": ""}
	if n, err := v.Int("depth"); err != nil || n != 3 {
		t.Errorf("Int() = %d, %v", n, err)
	}
	if f, err := v.Float("width"); err != nil || f != 2.0 {
		t.Errorf("Float() = %v, %v", f, err)
	}
	if !v.Bool("up") || v.Has("empty") || v.Has("missing") || !v.Has("depth") {
		t.Errorf("unexpected Bool/Has results for %v", v)
	}
	if _, err := (Values{"depth": "deep"}).Int("depth"); err == nil {
		t.Error("Int() should fail on a non-number")
	}
}

func TestHelp(t *testing.T) {
	want := "Print the recursion description of <aView>." +
		"\n\nArguments:" +
		"\n  <aView>; Type: UIView*/NSView*; The view to print the description of." +
		"\n\nOptions:" +
		"\n  --up/-u ; Print only the hierarchy directly above the view, up to its window." +
		"\n  --depth/-d <depth>; Type: int; Print only to a given depth. 0 indicates infinite depth." +
		"\n\nSyntax: pviews [--up] [--depth=depth] <aView>"
	if got := Help(New(viewsSpec, noop)); got != want {
		t.Errorf("Help() =\n%s\nwant\n%s", got, want)
	}
	if got := Usage(New(viewsSpec, noop)); got != "pviews [aView]" {
		t.Errorf("Usage() = %q", got)
	}
}

func TestRegistry(t *testing.T) {
	var ran []string
	record := func(_ context.Context, _ *Session, args []string, _ Values) error {
		ran = append(ran, strings.Join(args, "|"))
		return nil
	}
	r, err := NewRegistry(New(Spec{Name: "pclass", Args: []Argument{{Arg: "object"}}}, record))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Register(New(Spec{Name: "pclass"}, noop)); err == nil {
		t.Error("Register() should reject a duplicate name")
	}

	f := enginetest.New().OnCommand("frame variable", "(int) x = 1")
	var out bytes.Buffer
	s := NewSession(f, nil, &out)
	ctx := context.Background()

	if err := r.Execute(ctx, s, "pclass [self view]"); err != nil {
		t.Fatal(err)
	}
	if err := r.Execute(ctx, s, "pclass"); err != nil {
		t.Fatal(err)
	}
	if err := r.Execute(ctx, s, "frame variable"); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ran, []string{"[self view]"}) {
		t.Errorf("ran = %q", ran)
	}
	if got := f.CommandLog(); !reflect.DeepEqual(got, []string{"frame variable"}) {
		t.Errorf("engine commands = %q", got)
	}
	want := "Whoops! You are missing the <object> argument.\n\nUsage: pclass object\n(int) x = 1\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
	if names := r.Names(); !reflect.DeepEqual(names, []string{"pclass"}) {
		t.Errorf("Names() = %q", names)
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		line, name, rest string
	}{
		{"pviews", "pviews", ""},
		{"pviews 0x1", "pviews", "0x1"},
		{"pviews\t0x1", "pviews", "0x1"},
		{"  pclass \t [self view] ", "pclass", "[self view]"},
		{"", "", ""},
	}
	for _, tt := range tests {
		name, rest := SplitCommand(tt.line)
		if name != tt.name || rest != tt.rest {
			t.Errorf("SplitCommand(%q) = %q, %q; want %q, %q", tt.line, name, rest, tt.name, tt.rest)
		}
	}

	var ran []string
	r, err := NewRegistry(New(Spec{Name: "pclass", Args: []Argument{{Arg: "object"}}}, func(_ context.Context, _ *Session, args []string, _ Values) error {
		ran = append(ran, args[0])
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	f := enginetest.New()
	s := NewSession(f, nil, new(bytes.Buffer))
	if err := r.Execute(context.Background(), s, "pclass\t0x1"); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ran, []string{"0x1"}) {
		t.Errorf("ran = %q, want [0x1]", ran)
	}
	if cmds := f.CommandLog(); len(cmds) != 0 {
		t.Errorf("tab separated command passed to the engine: %q", cmds)
	}
}

func TestSessionReadLine(t *testing.T) {
	s := NewSession(enginetest.New(), nil, new(bytes.Buffer))
	s.In = strings.NewReader("vs 0x1\r\ns\nq")
	for _, want := range []string{"vs 0x1", "s", "q"} {
		got, err := s.ReadLine()
		if err != nil || got != want {
			t.Errorf("ReadLine() = %q, %v; want %q", got, err, want)
		}
	}
	if _, err := s.ReadLine(); err != io.EOF {
		t.Errorf("ReadLine() at end = %v, want EOF", err)
	}
}

func TestRawCommand(t *testing.T) {
	var got []string
	raw := NewRaw(Spec{Name: "incrementcounter"}, func(_ context.Context, _ *Session, tokens []string) error {
		got = tokens
		return nil
	})
	r, _ := NewRegistry(raw)
	s := NewSession(enginetest.New(), nil, &bytes.Buffer{})
	if err := r.Execute(context.Background(), s, `incrementcounter "key_{}" (int)5`); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"key_{}", "(int)5"}) {
		t.Errorf("tokens = %q", got)
	}
}

func TestSessionCounters(t *testing.T) {
	s := NewSession(enginetest.New(), nil, &bytes.Buffer{})
	s.IncrementCounter("b")
	s.IncrementCounter("a")
	s.IncrementCounter("b")
	if n, ok := s.Counter("b"); !ok || n != 2 {
		t.Errorf("Counter(b) = %d, %v", n, ok)
	}
	s.ResetCounter("b")
	want := []Counter{{"a", 1}, {"b", 0}}
	if got := s.Counters(); !reflect.DeepEqual(got, want) {
		t.Errorf("Counters() = %v, want %v", got, want)
	}
	s.ResetCounters()
	if len(s.Counters()) != 0 {
		t.Error("ResetCounters() left entries behind")
	}
}

func TestSessionClassNameCache(t *testing.T) {
	f := enginetest.New().OnValue("(const char *)(class_getName((Class)0x1000))", engine.Value{Summary: `"UIView"`})
	s := NewSession(f, nil, &bytes.Buffer{})
	for i := 0; i < 3; i++ {
		name, err := s.ClassName(context.Background(), 0x1000)
		if err != nil || name != "UIView" {
			t.Fatalf("ClassName() = %q, %v", name, err)
		}
	}
	if len(f.Evaluated) != 1 {
		t.Errorf("ClassName() evaluated %d times, want 1", len(f.Evaluated))
	}
}

func TestSessionCloseStopsTimers(t *testing.T) {
	f := enginetest.New()
	s := NewSession(f, nil, &bytes.Buffer{})
	fired := make(chan struct{}, 1)
	s.After(50*time.Millisecond, func() { fired <- struct{}{} })
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fired:
		t.Error("timer fired after Close()")
	case <-time.After(150 * time.Millisecond):
	}
	if !f.Closed {
		t.Error("Close() did not close the engine")
	}
}
