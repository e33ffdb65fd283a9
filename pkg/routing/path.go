package routing

import (
	"github.com/azybler/ch_router/pkg/graph"
	"github.com/azybler/ch_router/pkg/weighting"
)

// Path is the result of a point-to-point search. When Found is false the
// other fields are zero.
type Path struct {
	Found bool
	// Nodes lists every node on the path, source first.
	Nodes []uint32
	// Edges lists the original edges traversed, one fewer than Nodes.
	Edges    []graph.EdgeID
	Weight   float64
	Distance float64 // meters
	Millis   int64
}

// hop is one edge of a search tree traversed from -> to. It may be a
// shortcut.
type hop struct {
	edge     graph.EdgeID
	from, to uint32
}

// pathBuilder turns hops into a Path made of original edges only.
type pathBuilder struct {
	w        weighting.Weighting
	unpacker *Unpacker
	path     *Path
}

func newPathBuilder(g *graph.Graph, w weighting.Weighting) *pathBuilder {
	return &pathBuilder{w: w, unpacker: NewUnpacker(g)}
}

func (b *pathBuilder) build(source uint32, hops []hop) (*Path, error) {
	p := &Path{Found: true, Nodes: []uint32{source}}
	b.path = p
	for _, h := range hops {
		if err := b.unpacker.Unpack(h.edge, h.from, h.to, b.add); err != nil {
			return nil, err
		}
	}
	b.path = nil
	return p, nil
}

func (b *pathBuilder) add(e graph.EdgeView) {
	p := b.path
	p.Nodes = append(p.Nodes, e.Adj)
	p.Edges = append(p.Edges, e.ID)
	p.Weight += e.Weight
	dist := b.w.RevertWeight(e.Weight, e.Flags)
	p.Distance += dist
	p.Millis += b.w.CalcMillis(dist, e.Flags)
}
