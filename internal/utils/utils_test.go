package utils

import (
	"bytes"
	"strings"
	"testing"

	"github.com/blacktop/chisel/internal/colors"
)

func TestPad(t *testing.T) {
	tests := []struct {
		length int
		want   string
	}{
		{0, " "},
		{-3, " "},
		{4, "    "},
	}
	for _, tt := range tests {
		if got := Pad(tt.length); got != tt.want {
			t.Errorf("Pad(%d) = %q, want %q", tt.length, got, tt.want)
		}
	}
}

func TestStrSliceHas(t *testing.T) {
	if !StrSliceHas([]string{"UIView", "CALayer"}, "calayer") {
		t.Error("StrSliceHas() should match case-insensitively")
	}
	if StrSliceHas([]string{"UIView"}, "UIViewController") {
		t.Error("StrSliceHas() should not match substrings")
	}
}

func TestDisplayImageInTerminal(t *testing.T) {
	var buf bytes.Buffer
	if err := DisplayImageInTerminal(&buf, []byte("png"), 100, 0); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	if !strings.HasPrefix(got, "\033]1337;File=inline=1;size=3;width=100px:") {
		t.Errorf("unexpected prefix: %q", got)
	}
	if !strings.HasSuffix(got, "cG5n\a\n") {
		t.Errorf("unexpected payload: %q", got)
	}
}

func TestHexDump(t *testing.T) {
	off := false
	colors.Init(&off)

	data := append([]byte("hello world!"), 0, 0, 0, 0, 0)
	lines := strings.Split(HexDump(data, 0x10), "\n")
	if len(lines) != 3 || lines[2] != "" {
		t.Fatalf("HexDump() = %q", lines)
	}
	if want := "00000010  68 65 6c 6c 6f 20 77 6f  72 6c 64 21 00 00 00 00  |hello world!....|"; lines[0] != want {
		t.Errorf("line 0 = %q, want %q", lines[0], want)
	}
	if !strings.HasPrefix(lines[1], "00000020  00 ") || !strings.HasSuffix(lines[1], "|.|") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if HexDump(nil, 0) != "" {
		t.Error("HexDump(nil) should be empty")
	}
}
