package routing

import (
	"fmt"
	"math"
	"slices"

	"github.com/azybler/ch_router/pkg/graph"
	"github.com/azybler/ch_router/pkg/weighting"
)

// Dijkstra is the plain one-to-one search over original edges. Levels and
// shortcuts are ignored, which makes it the reference the hierarchy is
// checked against. Not safe for concurrent use.
type Dijkstra struct {
	g       *graph.Graph
	weight  []float64
	parent  []graph.EdgeID
	touched []uint32
	heap    MinHeap
	paths   *pathBuilder
	hops    []hop
}

func NewDijkstra(g *graph.Graph, w weighting.Weighting) *Dijkstra {
	n := g.NumNodes()
	d := &Dijkstra{
		g:      g,
		weight: make([]float64, n),
		parent: make([]graph.EdgeID, n),
		heap:   MinHeap{items: make([]PQItem, 0, 256)},
		paths:  newPathBuilder(g, w),
	}
	for i := range d.weight {
		d.weight[i] = math.Inf(1)
	}
	return d
}

func originalOut(e graph.EdgeView) bool { return !e.Shortcut && e.Forward() }

// FindPath returns the shortest path from source to target.
func (d *Dijkstra) FindPath(source, target uint32) (*Path, error) {
	if !d.g.HasNode(source) || !d.g.HasNode(target) {
		return nil, fmt.Errorf("%w: %d->%d", graph.ErrNodeOutOfRange, source, target)
	}
	for _, n := range d.touched {
		d.weight[n] = math.Inf(1)
	}
	d.touched = d.touched[:0]
	d.heap.Reset()

	d.relabel(source, 0, graph.NoEdge)
	for d.heap.Len() > 0 {
		cur := d.heap.Pop()
		if cur.Weight > d.weight[cur.Node] {
			continue
		}
		if cur.Node == target {
			return d.extract(source, target)
		}
		for e := range d.g.Edges(cur.Node, originalOut) {
			if nw := cur.Weight + e.Weight; nw < d.weight[e.Adj] {
				d.relabel(e.Adj, nw, e.ID)
			}
		}
	}
	return &Path{}, nil
}

func (d *Dijkstra) relabel(n uint32, w float64, e graph.EdgeID) {
	if math.IsInf(d.weight[n], 1) {
		d.touched = append(d.touched, n)
	}
	d.weight[n] = w
	d.parent[n] = e
	d.heap.Push(n, w)
}

func (d *Dijkstra) extract(source, target uint32) (*Path, error) {
	d.hops = d.hops[:0]
	for n := target; n != source; {
		e, ok := d.g.EdgeState(d.parent[n], n)
		if !ok {
			return nil, fmt.Errorf("%w: parent edge %d of %d", graph.ErrStorageInconsistency, d.parent[n], n)
		}
		d.hops = append(d.hops, hop{edge: e.ID, from: e.Adj, to: n})
		n = e.Adj
	}
	slices.Reverse(d.hops)
	return d.paths.build(source, d.hops)
}
