package hierarchy

import (
	"io"
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

// DOT writes the walked graph in Graphviz format. Nodes carry their label
// when one was set.
func (t *Tree) DOT(w io.Writer) error {
	adj, err := t.g.AdjacencyMap()
	if err != nil {
		return err
	}
	out := graph.New(graph.StringHash, graph.Directed())
	ids := make([]string, 0, len(adj))
	for id := range adj {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		label, ok := t.labels[id]
		if !ok {
			label = id
		}
		if err := out.AddVertex(id, graph.VertexAttribute("label", label)); err != nil {
			return err
		}
	}
	for _, id := range ids {
		for target, e := range adj[id] {
			if err := out.AddEdge(id, target, graph.EdgeAttributes(e.Properties.Attributes)); err != nil {
				return err
			}
		}
	}
	return draw.DOT(out, w)
}

// Children returns the direct children recorded for the node with the given id.
func (t *Tree) Children(id string) ([]string, error) {
	adj, err := t.g.AdjacencyMap()
	if err != nil {
		return nil, err
	}
	edges, ok := adj[id]
	if !ok {
		return nil, graph.ErrVertexNotFound
	}
	out := make([]string, 0, len(edges))
	for k := range edges {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}
