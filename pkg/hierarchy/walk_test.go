package hierarchy

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/blacktop/chisel/pkg/engine"
)

func nextFrom(links map[engine.Pointer]engine.Pointer, calls map[engine.Pointer]int) NextFunc {
	return func(_ context.Context, p engine.Pointer) (engine.Pointer, error) {
		if calls != nil {
			calls[p]++
		}
		return links[p], nil
	}
}

func TestChain(t *testing.T) {
	tests := []struct {
		name    string
		links   map[engine.Pointer]engine.Pointer
		start   engine.Pointer
		opts    Options
		want    []engine.Pointer
		wantErr error
	}{
		{
			name:  "terminates at sentinel",
			links: map[engine.Pointer]engine.Pointer{0x10: 0x20, 0x20: 0x30},
			start: 0x10,
			opts:  DefaultOptions,
			want:  []engine.Pointer{0x10, 0x20, 0x30},
		},
		{
			name:  "nil start",
			start: 0,
			opts:  DefaultOptions,
		},
		{
			name:    "cycle returns partial result",
			links:   map[engine.Pointer]engine.Pointer{0x10: 0x20, 0x20: 0x10},
			start:   0x10,
			opts:    DefaultOptions,
			want:    []engine.Pointer{0x10, 0x20},
			wantErr: ErrCycle,
		},
		{
			name:  "unguarded cycle bounded by depth",
			links: map[engine.Pointer]engine.Pointer{0x10: 0x20, 0x20: 0x10},
			start: 0x10,
			opts:  Options{MaxDepth: 5},
			want:  []engine.Pointer{0x10, 0x20, 0x10, 0x20, 0x10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := Chain(context.Background(), tt.start, nextFrom(tt.links, nil), tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Chain() error = %v, want %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Chain() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChainVisitsOnce(t *testing.T) {
	links := map[engine.Pointer]engine.Pointer{}
	for i := engine.Pointer(1); i < 50; i++ {
		links[i] = i + 1
	}
	calls := make(map[engine.Pointer]int)
	nodes, tree, err := Chain(context.Background(), 1, nextFrom(links, calls), DefaultOptions)
	if err != nil {
		t.Fatalf("Chain() error = %v", err)
	}
	if len(nodes) != 50 || tree.Len() != 50 {
		t.Fatalf("Chain() visited %d nodes (tree %d), want 50", len(nodes), tree.Len())
	}
	for p, n := range calls {
		if n != 1 {
			t.Errorf("node %s expanded %d times", p, n)
		}
	}
}

func TestChainCycleError(t *testing.T) {
	links := map[engine.Pointer]engine.Pointer{0x1: 0x2, 0x2: 0x3, 0x3: 0x2}
	_, _, err := Chain(context.Background(), 0x1, nextFrom(links, nil), DefaultOptions)
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("Chain() error = %v, want *CycleError", err)
	}
	if ce.Node != 0x2 || ce.Depth != 3 {
		t.Errorf("CycleError = %+v", ce)
	}
}

func TestWalk(t *testing.T) {
	kids := map[engine.Pointer][]engine.Pointer{
		0x1: {0x2, 0x3},
		0x2: {0x4},
		0x3: {0, 0x5},
	}
	children := func(_ context.Context, p engine.Pointer) ([]engine.Pointer, error) {
		return kids[p], nil
	}

	tests := []struct {
		name string
		opts Options
		skip engine.Pointer
		want []string
	}{
		{"full", DefaultOptions, 0, []string{"0x1", "   | 0x2", "   |    | 0x4", "   | 0x3", "   |    | 0x5"}},
		{"max depth", Options{GuardCycles: true, MaxDepth: 1}, 0, []string{"0x1", "   | 0x2", "   | 0x3"}},
		{"skip children", DefaultOptions, 0x2, []string{"0x1", "   | 0x2", "   | 0x3", "   |    | 0x5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			visit := func(p engine.Pointer, depth int) error {
				got = append(got, IndentDepth(p.String(), "   | ", depth))
				if p == tt.skip {
					return SkipChildren
				}
				return nil
			}
			if _, err := Walk(context.Background(), 0x1, children, visit, tt.opts); err != nil {
				t.Fatalf("Walk() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Walk() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWalkCycle(t *testing.T) {
	children := func(_ context.Context, p engine.Pointer) ([]engine.Pointer, error) {
		return []engine.Pointer{0x1}, nil
	}
	var visited int
	_, err := Walk(context.Background(), 0x1, children, func(engine.Pointer, int) error {
		visited++
		return nil
	}, DefaultOptions)
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("Walk() error = %v, want ErrCycle", err)
	}
	if visited != 1 {
		t.Errorf("visited %d nodes, want 1", visited)
	}
}

func TestIndent(t *testing.T) {
	got := Indent([]string{"UIView", "UIResponder", "NSObject"}, "   | ")
	want := "UIView\n   | UIResponder\n   |    | NSObject\n"
	if got != want {
		t.Errorf("Indent() = %q, want %q", got, want)
	}
}

func TestTreeDOT(t *testing.T) {
	links := map[engine.Pointer]engine.Pointer{0x10: 0x20}
	_, tree, err := Chain(context.Background(), 0x10, nextFrom(links, nil), DefaultOptions)
	if err != nil {
		t.Fatal(err)
	}
	tree.Label(0x20, "UIResponder")
	var buf bytes.Buffer
	if err := tree.DOT(&buf); err != nil {
		t.Fatalf("DOT() error = %v", err)
	}
	out := buf.String()
	for _, s := range []string{"digraph", `"0x10"`, `"0x20"`, "UIResponder"} {
		if !strings.Contains(out, s) {
			t.Errorf("DOT() output missing %q:\n%s", s, out)
		}
	}
	kids, err := tree.Children("0x10")
	if err != nil || !reflect.DeepEqual(kids, []string{"0x20"}) {
		t.Errorf("Children() = %v, %v", kids, err)
	}
}
