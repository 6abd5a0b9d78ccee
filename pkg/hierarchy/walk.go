// Package hierarchy walks null terminated chains and trees of objects in the
// target (superclasses, responders, views, view controllers).
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dominikbraun/graph"

	"github.com/blacktop/chisel/pkg/engine"
)

var (
	// ErrCycle is returned when a walk reaches a node it already visited.
	ErrCycle = errors.New("cycle detected in object graph")
	// SkipChildren can be returned by a VisitFunc to not descend into a node.
	SkipChildren = errors.New("skip children")
)

// Options control how far and how safely a walk goes.
type Options struct {
	// GuardCycles stops a walk at the first revisited node.
	GuardCycles bool
	// MaxDepth bounds the walk. 0 means unlimited.
	MaxDepth int
}

// DefaultOptions guard against cycles with no depth limit.
var DefaultOptions = Options{GuardCycles: true}

// NextFunc returns the node following p, zero at the end of the chain.
type NextFunc func(ctx context.Context, p engine.Pointer) (engine.Pointer, error)

// ChildrenFunc returns the children of p.
type ChildrenFunc func(ctx context.Context, p engine.Pointer) ([]engine.Pointer, error)

// VisitFunc is called once per node in depth-first pre-order.
type VisitFunc func(p engine.Pointer, depth int) error

// CycleError reports where a walk found a cycle.
type CycleError struct {
	Node  engine.Pointer
	Depth int
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s revisited at depth %d", ErrCycle, e.Node, e.Depth)
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// Tree records the nodes and edges a walk visited.
type Tree struct {
	g      graph.Graph[string, string]
	opts   Options
	labels map[string]string
	root   engine.Pointer
	order  []engine.Pointer
}

func newTree(opts Options) *Tree {
	return &Tree{g: graph.New(graph.StringHash, graph.Directed()), opts: opts, labels: make(map[string]string)}
}

// Len returns the number of distinct nodes visited.
func (t *Tree) Len() int {
	return len(t.order)
}

// Nodes returns the visited nodes in visit order.
func (t *Tree) Nodes() []engine.Pointer {
	return append([]engine.Pointer(nil), t.order...)
}

// Root returns the first node visited.
func (t *Tree) Root() engine.Pointer {
	return t.root
}

// add records p (and the edge from parent). It reports a revisit as a
// CycleError when cycles are guarded.
func (t *Tree) add(p, parent engine.Pointer, hasParent bool, depth int) error {
	err := t.g.AddVertex(p.String())
	switch {
	case err == nil:
		if len(t.order) == 0 {
			t.root = p
		}
		t.order = append(t.order, p)
	case errors.Is(err, graph.ErrVertexAlreadyExists):
		if t.opts.GuardCycles {
			if hasParent {
				_ = t.g.AddEdge(parent.String(), p.String(), graph.EdgeAttribute("style", "dashed"))
			}
			return &CycleError{Node: p, Depth: depth}
		}
	default:
		return err
	}
	if hasParent {
		if err := t.g.AddEdge(parent.String(), p.String()); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return err
		}
	}
	return nil
}

// Label sets the DOT label of a visited node.
func (t *Tree) Label(p engine.Pointer, label string) {
	t.labels[p.String()] = label
}

// Chain follows next from start until the zero pointer and returns every node
// in order. On a cycle it returns the nodes visited so far and an ErrCycle.
func Chain(ctx context.Context, start engine.Pointer, next NextFunc, opts Options) ([]engine.Pointer, *Tree, error) {
	t := newTree(opts)
	var nodes []engine.Pointer
	var prev engine.Pointer
	for p := start; !p.IsNil(); {
		if err := ctx.Err(); err != nil {
			return nodes, t, err
		}
		if opts.MaxDepth > 0 && len(nodes) >= opts.MaxDepth {
			break
		}
		if err := t.add(p, prev, len(nodes) > 0, len(nodes)); err != nil {
			return nodes, t, err
		}
		nodes = append(nodes, p)
		n, err := next(ctx, p)
		if err != nil {
			return nodes, t, err
		}
		prev, p = p, n
	}
	return nodes, t, nil
}

// Walk visits root and its descendants depth first. Children of a node at
// MaxDepth are not visited.
func Walk(ctx context.Context, root engine.Pointer, children ChildrenFunc, visit VisitFunc, opts Options) (*Tree, error) {
	t := newTree(opts)
	if root.IsNil() {
		return t, nil
	}
	return t, walk(ctx, t, root, 0, false, 0, children, visit)
}

func walk(ctx context.Context, t *Tree, p engine.Pointer, parent engine.Pointer, hasParent bool, depth int, children ChildrenFunc, visit VisitFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.add(p, parent, hasParent, depth); err != nil {
		return err
	}
	if err := visit(p, depth); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	if t.opts.MaxDepth > 0 && depth >= t.opts.MaxDepth {
		return nil
	}
	kids, err := children(ctx, p)
	if err != nil {
		return err
	}
	for _, c := range kids {
		if c.IsNil() {
			continue
		}
		if err := walk(ctx, t, c, p, true, depth+1, children, visit); err != nil {
			return err
		}
	}
	return nil
}

// Indent renders lines with sep repeated once per level.
func Indent(lines []string, sep string) string {
	var sb strings.Builder
	for i, line := range lines {
		sb.WriteString(strings.Repeat(sep, i))
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// IndentDepth prefixes line with sep repeated depth times.
func IndentDepth(line, sep string, depth int) string {
	return strings.Repeat(sep, depth) + line
}
