package routing

import (
	"fmt"
	"math"
	"slices"

	"github.com/azybler/ch_router/pkg/graph"
	"github.com/azybler/ch_router/pkg/weighting"
)

const noNode = ^uint32(0) // sentinel for "no node"

// QueryOptions tunes a Query.
type QueryOptions struct {
	// MaxVisitedNodes stops the search once that many nodes have been
	// settled in total; 0 means no limit. A stopped search reports no path.
	MaxVisitedNodes int
}

// side holds one direction of the bidirectional search.
type side struct {
	weight []float64
	parent []graph.EdgeID // edge that labeled the node
	heap   MinHeap
	filter graph.EdgeFilter
}

func newSide(n int, filter graph.EdgeFilter) side {
	s := side{
		weight: make([]float64, n),
		parent: make([]graph.EdgeID, n),
		heap:   MinHeap{items: make([]PQItem, 0, 256)},
		filter: filter,
	}
	for i := range s.weight {
		s.weight[i] = math.Inf(1)
		s.parent[i] = graph.NoEdge
	}
	return s
}

// Query runs bidirectional searches over a prepared graph. Both fronts only
// climb: the forward front follows out-edges towards higher levels and the
// backward front follows in-edges towards higher levels. They meet at the
// highest node of the shortest path.
//
// A Query owns its scratch state and must not be used from more than one
// goroutine. Any number of Queries may share one graph.
type Query struct {
	g       *graph.Graph
	opts    QueryOptions
	fwd     side
	bwd     side
	touched []uint32
	visited int
	paths   *pathBuilder
	hops    []hop
}

// NewQuery allocates search state for g.
func NewQuery(g *graph.Graph, w weighting.Weighting, opts QueryOptions) *Query {
	n := g.NumNodes()
	return &Query{
		g:       g,
		opts:    opts,
		fwd:     newSide(n, g.Upward(graph.OutEdges)),
		bwd:     newSide(n, g.Upward(graph.InEdges)),
		touched: make([]uint32, 0, 1024),
		paths:   newPathBuilder(g, w),
	}
}

// Visited returns the number of nodes settled by the last FindPath.
func (q *Query) Visited() int { return q.visited }

// reset clears only the touched entries for fast reuse.
func (q *Query) reset() {
	for _, n := range q.touched {
		q.fwd.weight[n] = math.Inf(1)
		q.bwd.weight[n] = math.Inf(1)
		q.fwd.parent[n] = graph.NoEdge
		q.bwd.parent[n] = graph.NoEdge
	}
	q.touched = q.touched[:0]
	q.fwd.heap.Reset()
	q.bwd.heap.Reset()
	q.visited = 0
}

func (q *Query) label(s *side, n uint32, w float64, e graph.EdgeID) {
	if math.IsInf(q.fwd.weight[n], 1) && math.IsInf(q.bwd.weight[n], 1) {
		q.touched = append(q.touched, n)
	}
	s.weight[n] = w
	s.parent[n] = e
	s.heap.Push(n, w)
}

// FindPath returns the shortest path from source to target. An unreachable
// target, or a search cut off by MaxVisitedNodes, yields a Path with Found
// false and a nil error.
func (q *Query) FindPath(source, target uint32) (*Path, error) {
	if !q.g.HasNode(source) || !q.g.HasNode(target) {
		return nil, fmt.Errorf("%w: %d->%d", graph.ErrNodeOutOfRange, source, target)
	}
	q.reset()
	if source == target {
		return &Path{Found: true, Nodes: []uint32{source}}, nil
	}

	q.label(&q.fwd, source, 0, graph.NoEdge)
	q.label(&q.bwd, target, 0, graph.NoEdge)

	best := math.Inf(1)
	meet := noNode
	for q.fwd.heap.Len() > 0 || q.bwd.heap.Len() > 0 {
		if q.fwd.heap.PeekWeight() < best {
			if !q.settle(&q.fwd, &q.bwd, &best, &meet) {
				return &Path{}, nil
			}
		}
		if q.bwd.heap.PeekWeight() < best {
			if !q.settle(&q.bwd, &q.fwd, &best, &meet) {
				return &Path{}, nil
			}
		}
		if q.fwd.heap.PeekWeight() >= best && q.bwd.heap.PeekWeight() >= best {
			break
		}
	}
	if meet == noNode {
		return &Path{}, nil
	}
	return q.extract(source, meet)
}

// settle pops one node from s and relaxes its edges. It returns false when
// the visited limit has been reached.
func (q *Query) settle(s, other *side, best *float64, meet *uint32) bool {
	item := s.heap.Pop()
	u, d := item.Node, item.Weight
	if d > s.weight[u] {
		return true // stale
	}
	if q.opts.MaxVisitedNodes > 0 && q.visited >= q.opts.MaxVisitedNodes {
		return false
	}
	q.visited++

	if ow := other.weight[u]; !math.IsInf(ow, 1) && d+ow < *best {
		*best = d + ow
		*meet = u
	}

	for e := range q.g.Edges(u, s.filter) {
		if nd := d + e.Weight; nd < s.weight[e.Adj] {
			q.label(s, e.Adj, nd, e.ID)
		}
	}
	return true
}

// extract stitches the two search trees together at meet.
func (q *Query) extract(source, meet uint32) (*Path, error) {
	q.hops = q.hops[:0]
	for n := meet; q.fwd.parent[n] != graph.NoEdge; {
		e, ok := q.g.EdgeState(q.fwd.parent[n], n)
		if !ok {
			return nil, fmt.Errorf("%w: parent edge %d of %d", graph.ErrStorageInconsistency, q.fwd.parent[n], n)
		}
		q.hops = append(q.hops, hop{edge: e.ID, from: e.Adj, to: n})
		n = e.Adj
	}
	slices.Reverse(q.hops)
	for n := meet; q.bwd.parent[n] != graph.NoEdge; {
		e, ok := q.g.EdgeState(q.bwd.parent[n], n)
		if !ok {
			return nil, fmt.Errorf("%w: parent edge %d of %d", graph.ErrStorageInconsistency, q.bwd.parent[n], n)
		}
		q.hops = append(q.hops, hop{edge: e.ID, from: n, to: e.Adj})
		n = e.Adj
	}
	return q.paths.build(source, q.hops)
}
