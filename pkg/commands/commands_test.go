package commands

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/blacktop/go-macho/types"

	"github.com/blacktop/chisel/internal/config"
	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/engine"
	"github.com/blacktop/chisel/pkg/engine/enginetest"
)

type testSession struct {
	*chisel.Session
	fake      *enginetest.Fake
	out       *bytes.Buffer
	clipboard []string
	opened    []string
	registry  *chisel.Registry
}

func newTestSession(t *testing.T) *testSession {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Highlight = false
	cfg.Paths.CopyDir = filepath.Join(t.TempDir(), "copy")
	cfg.Paths.ImageDir = filepath.Join(t.TempDir(), "images")

	ts := &testSession{fake: enginetest.New(), out: new(bytes.Buffer)}
	ts.Session = chisel.NewSession(ts.fake, cfg, ts.out)
	ts.Clipboard = func(text string) error {
		ts.clipboard = append(ts.clipboard, text)
		return nil
	}
	ts.Open = func(path string) error {
		ts.opened = append(ts.opened, path)
		return nil
	}
	ts.Now = func() time.Time { return time.Date(2024, 3, 9, 10, 11, 12, 0, time.UTC) }

	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	ts.registry = reg
	return ts
}

func (ts *testSession) run(t *testing.T, line string) string {
	t.Helper()
	ts.out.Reset()
	if err := ts.registry.Execute(context.Background(), ts.Session, line); err != nil {
		t.Fatalf("Execute(%q) error = %v", line, err)
	}
	return ts.out.String()
}

func TestRegistryNames(t *testing.T) {
	ts := newTestSession(t)
	for _, name := range []string{
		"pviews", "pvc", "pclass", "presponder", "ptv", "pcells", "pinternals", "pivar",
		"pca", "panim", "pkp", "pjson", "pdata", "pds", "pdocspath", "pbundlepath", "pcurl",
		"pblock", "pmethods", "pproperties", "border", "unborder", "mask", "unmask", "caflush",
		"show", "hide", "slowanim", "unslowanim", "fv", "fvc", "fa11y", "pa11y", "pa11yi",
		"flicker", "vs", "wivar", "binside", "bmessage", "mwarning", "incrementcounter",
		"printcounter", "printcounters", "resetcounter", "resetcounters", "zzz", "copy",
		"showimage", "showimageref", "showview", "showlayer", "paltrace", "pcomponents",
		"rcomponents", "dcomponents", "input", "wnvisible", "wninteractable", "xdebug",
		"xtree", "xobject", "xnoid", "uikit", "osand", "present", "dismiss",
	} {
		if _, ok := ts.registry.Lookup(name); !ok {
			t.Errorf("command %q is not registered", name)
		}
	}
}

func TestUnknownCommandGoesToEngine(t *testing.T) {
	ts := newTestSession(t)
	ts.fake.OnCommand("bt", "frame #0: 0x1 UIKit`-[UIView layoutSubviews]")
	if got, want := ts.run(t, "bt"), "frame #0: 0x1 UIKit`-[UIView layoutSubviews]\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestFilterViewDescription(t *testing.T) {
	desc := strings.Join([]string{
		"<UIWindow: 0x1; frame = (0 0; 10 10)>",
		"   | <UIView: 0x2; frame = (0 0; 5 5)>",
		"   |    | <UILabel: 0x3; text = 'x'>",
	}, "\n") + "\n"

	tests := []struct {
		name          string
		depth         int
		short, medium bool
		want          string
	}{
		{"all", 0, false, false, strings.TrimRight(desc, "\n")},
		{"depth", 1, false, false, "<UIWindow: 0x1; frame = (0 0; 10 10)>\n   | <UIView: 0x2; frame = (0 0; 5 5)>"},
		{"short", 1, true, false, "<UIWindow>\n   | <UIView>"},
		{"medium", 0, false, true, "<UIWindow: 0x1>\n   | <UIView: 0x2>\n   |    | <UILabel: 0x3>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filterViewDescription(desc, tt.depth, tt.short, tt.medium); got != tt.want {
				t.Errorf("filterViewDescription() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintClassHierarchy(t *testing.T) {
	ts := newTestSession(t)
	ts.fake.
		On("(id)[(id)(button) class]", "0x10").
		On("(id)[(id)0x10 superclass]", "0x20").
		On("(id)[(id)0x20 superclass]", "0x0").
		OnDescribe("(id)(0x10)", "UIButton").
		OnDescribe("(id)(0x20)", "UIControl")

	if got, want := ts.run(t, "pclass button"), "UIButton\n   | UIControl\n"; got != want {
		t.Errorf("pclass output = %q, want %q", got, want)
	}
}

func TestPrintResponderChainRejectsNonResponders(t *testing.T) {
	ts := newTestSession(t)
	ts.fake.On("(BOOL)([(id)obj isKindOfClass:[UIResponder class]])", "NO")
	if got, want := ts.run(t, "presponder obj"), "Whoa, obj is not a UIResponder. =(\n"; got != want {
		t.Errorf("presponder output = %q, want %q", got, want)
	}
}

func TestPrintKeyPath(t *testing.T) {
	ts := newTestSession(t)
	ts.fake.OnDescribe(`(id)([self valueForKeyPath:@"view.backgroundColor"])`, "UIExtendedGrayColorSpace 1 1")
	if got, want := ts.run(t, "pkp self.view.backgroundColor"), "UIExtendedGrayColorSpace 1 1\n"; got != want {
		t.Errorf("pkp output = %q, want %q", got, want)
	}
}

func TestFindView(t *testing.T) {
	ts := newTestSession(t)
	ts.fake.
		OnDescribe("(id)([[[UIApplication sharedApplication] keyWindow] recursiveDescription])", strings.Join([]string{
			"<UIWindow: 0x100; frame = (0 0; 375 812)>",
			"   | <UIButton: 0x200; frame = (0 0; 44 44)>",
			"   |    | <UIButtonLabel: 0x300; frame = (0 0; 20 20)>",
		}, "\n")).
		OnDescribe("(id)([(0x200) class])", "UIButton").
		OnDescribe("(id)([(0x300) class])", "UIButtonLabel")

	if got, want := ts.run(t, "fv button"), "0x200 UIButton\n0x300 UIButtonLabel\n"; got != want {
		t.Errorf("fv output = %q, want %q", got, want)
	}
	if len(ts.clipboard) != 1 || ts.clipboard[0] != "0x200" {
		t.Errorf("clipboard = %v, want [0x200]", ts.clipboard)
	}
}

func TestWhyNotInteractable(t *testing.T) {
	ts := newTestSession(t)
	ts.fake.
		On("(BOOL)([(id)v isKindOfClass:(Class)[UIView class]])", "YES").
		On("(BOOL)([v isUserInteractionEnabled])", "NO").
		On("(BOOL)([(id)(v) isKindOfClass:[UIControl class]])", "YES").
		On("(BOOL)([v isEnabled])", "YES").
		On("(int)([v allControlEvents])", "0")

	want := "View's userInteractionEnabled property is NO\nNo target/action pairs have been added to this control\n\n"
	if got := ts.run(t, "wninteractable v"); got != want {
		t.Errorf("wninteractable output = %q, want %q", got, want)
	}

	ts.fake.On("(BOOL)([(id)label isKindOfClass:(Class)[UIView class]])", "NO")
	if got, want := ts.run(t, "wninteractable label"), "Argument is not a view\n"; got != want {
		t.Errorf("wninteractable output = %q, want %q", got, want)
	}

	ts.fake.
		On("(BOOL)([(id)b isKindOfClass:(Class)[UIView class]])", "YES").
		On("(BOOL)([b isUserInteractionEnabled])", "YES").
		On("(BOOL)([(id)(b) isKindOfClass:[UIControl class]])", "NO")
	if got, want := ts.run(t, "wninteractable b"), "No idea\n\n"; got != want {
		t.Errorf("wninteractable output = %q, want %q", got, want)
	}
}

func TestCounters(t *testing.T) {
	ts := newTestSession(t)
	ts.fake.On("(int)5", "5")

	ts.run(t, "incrementcounter log_{} (int)5")
	ts.run(t, "incrementcounter log_{} (int)5")
	ts.run(t, "incrementcounter other")

	if got, want := ts.run(t, "printcounter log_{} (int)5"), "2\n"; got != want {
		t.Errorf("printcounter = %q, want %q", got, want)
	}
	if got, want := ts.run(t, "printcounters"), "log_5: 2\nother: 1\n"; got != want {
		t.Errorf("printcounters = %q, want %q", got, want)
	}
	ts.run(t, "resetcounter other")
	if got, want := ts.run(t, "printcounter other"), "0\n"; got != want {
		t.Errorf("printcounter after reset = %q, want %q", got, want)
	}
	if got, want := ts.run(t, "printcounter nope"), "No counter named \"nope\"\n"; got != want {
		t.Errorf("printcounter missing = %q, want %q", got, want)
	}
	ts.run(t, "resetcounters")
	if got := ts.run(t, "printcounters"); got != "" {
		t.Errorf("printcounters after resetcounters = %q", got)
	}
}

func TestFormatKey(t *testing.T) {
	tests := []struct {
		format  string
		args    []string
		want    string
		wantErr bool
	}{
		{format: "plain", want: "plain"},
		{format: "{}_{}", args: []string{"a", "b"}, want: "a_b"},
		{format: "{1}-{0}", args: []string{"a", "b"}, want: "b-a"},
		{format: "{{literal}}", want: "{literal}"},
		{format: "{}", wantErr: true},
		{format: "{x}", args: []string{"a"}, wantErr: true},
		{format: "open {", args: []string{"a"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got, err := formatKey(tt.format, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("formatKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("formatKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWatchIvar(t *testing.T) {
	ts := newTestSession(t)
	ts.fake.
		On("(id)(obj)", "0x1000").
		On(`(ptrdiff_t)ivar_getOffset((void*)object_getInstanceVariable((id)4096, "_name", 0))`, "16").
		On(`unsigned int size = 0;`+
			`char *typeEncoding = (char *)ivar_getTypeEncoding((void*)class_getInstanceVariable((Class)object_getClass((id)4096), "_name"));`+
			`(char *)NSGetSizeAndAlignment(typeEncoding, &size, 0);`+
			`size`, "8")

	if got, want := ts.run(t, "wivar obj _name"), "Remember to delete the watchpoint using: watchpoint delete 1\n"; got != want {
		t.Errorf("wivar output = %q, want %q", got, want)
	}
	if len(ts.fake.Watchpoints) != 1 {
		t.Fatalf("got %d watchpoints, want 1", len(ts.fake.Watchpoints))
	}
	if wp := ts.fake.Watchpoints[0]; wp.Address != 0x1010 || wp.Size != 8 {
		t.Errorf("watchpoint = %+v, want address 0x1010 size 8", wp)
	}
}

func TestSlideAddress(t *testing.T) {
	tests := []struct {
		addr, base, text, want uint64
	}{
		{addr: 0x1234, base: 0x100000000, text: 0x0, want: 0x100001234},
		{addr: 0x100001234, base: 0x104000000, text: 0x100000000, want: 0x104001234},
		{addr: 0x40, base: 0x104000000, text: 0x100000000, want: 0x104000040},
	}
	for _, tt := range tests {
		if got := slideAddress(tt.addr, tt.base, tt.text); got != tt.want {
			t.Errorf("slideAddress(%#x, %#x, %#x) = %#x, want %#x", tt.addr, tt.base, tt.text, got, tt.want)
		}
	}
}

func TestCopyData(t *testing.T) {
	ts := newTestSession(t)
	ts.fake.
		On("(BOOL)([(id)(d) isKindOfClass:[NSURL class]])", "NO").
		On("(BOOL)([(id)(d) isKindOfClass:[NSData class]])", "YES").
		On("(void *)[(id)(d) bytes]", "0x5000").
		On("(NSUInteger)[(id)(d) length]", "4").
		SetMemory(0x5000, []byte("abcd"))

	out := ts.run(t, "copy --no-open --filename blob.bin d")
	path := filepath.Join(ts.Config.Paths.CopyDir, "blob.bin")
	if want := path + " (4 B)\n"; out != want {
		t.Errorf("copy output = %q, want %q", out, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "abcd" {
		t.Errorf("copied %q, want %q", data, "abcd")
	}
	if len(ts.opened) != 0 {
		t.Errorf("opened %v with --no-open", ts.opened)
	}
}

func TestPrintDataHex(t *testing.T) {
	ts := newTestSession(t)
	ts.fake.
		On("(void *)[(id)d bytes]", "0x5000").
		On("(NSUInteger)[(id)d length]", "4").
		SetMemory(0x5000, []byte("abcd"))

	out := ts.run(t, "pdata --hex d")
	if !strings.Contains(out, "61 62 63 64") || !strings.Contains(out, "|abcd|") {
		t.Errorf("pdata --hex output = %q", out)
	}
}

func TestCopyUnsupported(t *testing.T) {
	ts := newTestSession(t)
	ts.fake.
		On("(BOOL)([(id)(s) isKindOfClass:[NSURL class]])", "NO").
		On("(BOOL)([(id)(s) isKindOfClass:[NSData class]])", "NO").
		OnDescribe("(id)([((s)) class])", "__NSCFString")
	if got, want := ts.run(t, "copy s"), "__NSCFString isn't supported. You can copy an NSURL or NSData.\n"; got != want {
		t.Errorf("copy output = %q, want %q", got, want)
	}
}

func TestDelayedCommand(t *testing.T) {
	ts := newTestSession(t)
	ran := make(chan string, 1)
	ts.Exec = func(_ context.Context, line string) error {
		ran <- line
		return nil
	}
	defer ts.Close()

	ts.run(t, "zzz 0.01 pviews --short")
	select {
	case line := <-ran:
		if line != "pviews --short" {
			t.Errorf("delayed command = %q, want %q", line, "pviews --short")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("delayed command did not run")
	}
	if ts.fake.Continues != 1 || ts.fake.Interrupts != 1 {
		t.Errorf("continues = %d, interrupts = %d, want 1 and 1", ts.fake.Continues, ts.fake.Interrupts)
	}
}

func TestComponentKitDebugModeIsDeprecated(t *testing.T) {
	ts := newTestSession(t)
	if got, want := ts.run(t, "dcomponents -s"), "Debug mode for ComponentKit is deprecated; use Flipper instead.\n"; got != want {
		t.Errorf("dcomponents output = %q, want %q", got, want)
	}
}

func TestXCDebug(t *testing.T) {
	ts := newTestSession(t)
	ts.fake.OnDescribe("(id)([(XCUIApplication *)[[XCUIApplication alloc] init] debugDescription])", "Attributes: Application\n")
	if got, want := ts.run(t, "xdebug"), "Attributes: Application\n"; got != want {
		t.Errorf("xdebug output = %q, want %q", got, want)
	}
}

// scriptViewTree scripts a view 0x1 whose subviews array 0x10 holds 0x2 and
// 0x3. Everything else, including the mask drawing, evaluates to zero.
func scriptViewTree(f *enginetest.Fake) {
	f.On("(id)(0x1)", "0x1").
		On("(id)([0x1 subviews])", "0x10").
		On("(int)([(id)0x10 count])", "2").
		On("(id)([0x10 objectAtIndex:0])", "0x2").
		On("(int)([(id)0x10 indexOfObject:0x2])", "0").
		On("(int)([(id)0x10 indexOfObject:0x3])", "1").
		On("(id)([(id)0x10 objectAtIndex:0])", "0x2").
		On("(id)([(id)0x10 objectAtIndex:1])", "0x3").
		On("(void*)[0x2 superview]", "0x1").
		On("(void*)[0x3 superview]", "0x1").
		OnDescribe("(id)(0x1)", "<UIWindow: 0x1>").
		OnDescribe("(id)(0x2)", "<UIView: 0x2>").
		OnDescribe("(id)(0x3)", "<UILabel: 0x3>").
		OnMatch(`.`, func(m []string) (*engine.Value, error) {
			if strings.Contains(m[0], "respondsToSelector") {
				return &engine.Value{Value: "1"}, nil
			}
			return &engine.Value{Value: "0"}, nil
		})
}

func TestViewSearch(t *testing.T) {
	tests := []struct {
		name      string
		keys      string
		described []string
		clipboard []string
		want      []string
	}{
		{
			name:      "navigate and quit",
			keys:      "s\nd\ns\na\nw\nw\nx\nq\n",
			described: []string{"(id)(0x1)", "(id)(0x2)", "(id)(0x3)", "(id)(0x2)", "(id)(0x1)"},
			clipboard: []string{"0x1"},
			want: []string{
				"<UILabel: 0x3>",
				"The view has no subviews.",
				"There is no superview. Where are you trying to go?!",
				"I really have no idea what you meant by 'x'",
				"I hope 0x1 was what you were looking for. I put it on your clipboard.",
			},
		},
		{
			name:      "end of input",
			keys:      "s\n",
			described: []string{"(id)(0x1)", "(id)(0x2)"},
			want:      []string{"Use the following and (q) to quit.", "<UIView: 0x2>"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestSession(t)
			scriptViewTree(ts.fake)
			ts.In = strings.NewReader(tt.keys)

			out := ts.run(t, "vs 0x1")
			if !reflect.DeepEqual(ts.fake.Described, tt.described) {
				t.Errorf("described %v, want %v", ts.fake.Described, tt.described)
			}
			if !reflect.DeepEqual(ts.clipboard, tt.clipboard) {
				t.Errorf("clipboard = %v, want %v", ts.clipboard, tt.clipboard)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			if cmds := ts.fake.CommandLog(); len(cmds) != 0 {
				t.Errorf("keys reached the engine as commands: %q", cmds)
			}
		})
	}
}

// machoHeader returns a 64-bit Mach-O header with a single __TEXT segment.
func machoHeader(t *testing.T, textAddr uint64) []byte {
	t.Helper()
	seg := types.Segment64{LoadCmd: types.LC_SEGMENT_64, Len: 72, Addr: textAddr, Memsz: 0x4000, Filesz: 0x4000, Maxprot: 5, Prot: 5}
	copy(seg.Name[:], "__TEXT")
	hdr := types.FileHeader{Magic: types.Magic64, CPU: types.CPUArm64, Type: types.MH_EXECUTE, NCommands: 1, SizeCommands: 72}
	var buf bytes.Buffer
	for _, v := range []any{hdr, seg} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func TestBreakInside(t *testing.T) {
	const base = 0x104000000
	tests := []struct {
		name    string
		line    string
		memory  bool
		want    uint64
		wantErr string
	}{
		{name: "file address", line: "binside 0x100001234", memory: true, want: 0x104001234},
		{name: "offset", line: "binside 0x1234", memory: true, want: 0x104001234},
		{name: "unreadable image", line: "binside 0x100001234", wantErr: "could not find the __TEXT segment of /private/var/containers/Bundle/Application/ABCD/App.app/App"},
		{name: "bad address", line: "binside main", wantErr: `invalid address "main"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestSession(t)
			ts.fake.On(fmt.Sprintf(dladdrBody, "(void *)info.fbase"), "0x104000000").
				OnValue("(const char *)("+fmt.Sprintf(dladdrBody, "info.fname")+")", engine.Value{
					Value:   "0x1040a0000",
					Summary: `"/private/var/containers/Bundle/Application/ABCD/App.app/App"`,
				})
			if tt.memory {
				ts.fake.SetMemory(base, machoHeader(t, 0x100000000))
			}

			ts.out.Reset()
			err := ts.registry.Execute(context.Background(), ts.Session, tt.line)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Execute(%q) error = %v, want %q", tt.line, err, tt.wantErr)
				}
				if len(ts.fake.Breakpoints) != 0 {
					t.Errorf("breakpoint set after an error: %+v", ts.fake.Breakpoints)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute(%q) error = %v", tt.line, err)
			}
			if len(ts.fake.Breakpoints) != 1 || ts.fake.Breakpoints[0].Address != tt.want {
				t.Fatalf("breakpoints = %+v, want one at %#x", ts.fake.Breakpoints, tt.want)
			}
			if want := fmt.Sprintf("Breakpoint 1: address = %#x\n", tt.want); ts.out.String() != want {
				t.Errorf("output = %q, want %q", ts.out.String(), want)
			}
		})
	}
}

func TestBreakMessage(t *testing.T) {
	const (
		getMethod = "(void*)class_getInstanceMethod((Class)%s, @selector(setFrame:))"
		getSuper  = "(void*)class_getSuperclass((Class)%s)"
	)
	tests := []struct {
		name   string
		script func(f *enginetest.Fake)
		want   string
		regex  string
	}{
		{
			name: "inherited implementation",
			script: func(f *enginetest.Fake) {
				f.On(fmt.Sprintf(getMethod, "0xc1"), "0xa1").
					On(fmt.Sprintf(getSuper, "0xc1"), "0xc2").
					On(fmt.Sprintf(getMethod, "0xc2"), "0xa1").
					On(fmt.Sprintf(getSuper, "0xc2"), "0xc3").
					On(fmt.Sprintf(getMethod, "0xc3"), "0xa2").
					OnValue("(const char *)(class_getName((Class)0xc2))", engine.Value{Value: "0x9000", Summary: `"UIView"`})
			},
			want:  "Setting a breakpoint at -[UIView setFrame:] with condition (void*)object_getClass((id)$x0) == 0xc1\n",
			regex: `\-\[UIView(\(.+\))? setFrame:\]`,
		},
		{
			name: "superclass cycle",
			script: func(f *enginetest.Fake) {
				f.On(fmt.Sprintf(getMethod, "0xc1"), "0xa1").
					On(fmt.Sprintf(getSuper, "0xc1"), "0xc2").
					On(fmt.Sprintf(getMethod, "0xc2"), "0xa1").
					On(fmt.Sprintf(getSuper, "0xc2"), "0xc1")
			},
			want: "There doesn't seem to be an implementation of setFrame: in the class hierarchy. Made a boo boo with the selector name?\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestSession(t)
			ts.fake.On("(id)([MyView class])", "0xc1").On("(id)([0xc1 class])", "0xc1")
			tt.script(ts.fake)

			if out := ts.run(t, "bmessage -[MyView setFrame:]"); out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
			if tt.regex == "" {
				if len(ts.fake.Breakpoints) != 0 {
					t.Errorf("unexpected breakpoints %+v", ts.fake.Breakpoints)
				}
				return
			}
			if len(ts.fake.Breakpoints) != 1 || ts.fake.Breakpoints[0].Regex != tt.regex {
				t.Errorf("breakpoints = %+v, want regex %q", ts.fake.Breakpoints, tt.regex)
			}
		})
	}
}
