package ch

import (
	"errors"
	"fmt"
	"math"

	"github.com/azybler/ch_router/pkg/graph"
)

// ErrExcludedNodeViolation means a witness search touched the node being
// contracted. It is never expected and aborts preprocessing.
var ErrExcludedNodeViolation = errors.New("witness search reached excluded node")

// WitnessStatus classifies a witness search outcome.
type WitnessStatus int

const (
	// WitnessFound: the target was settled within both limits.
	WitnessFound WitnessStatus = iota
	// WitnessLimitExceeded: the weight or visited limit cut the search off.
	// Nothing is known about paths beyond the limit.
	WitnessLimitExceeded
	// WitnessUnreachable: the search space was exhausted without the target.
	WitnessUnreachable
)

func (s WitnessStatus) String() string {
	switch s {
	case WitnessFound:
		return "found"
	case WitnessLimitExceeded:
		return "limit exceeded"
	case WitnessUnreachable:
		return "unreachable"
	}
	return fmt.Sprintf("WitnessStatus(%d)", int(s))
}

// WitnessResult reports how the target was (or was not) reached.
type WitnessResult struct {
	Status  WitnessStatus
	Weight  float64      // target weight, only for WitnessFound
	Node    uint32       // target node, only for WitnessFound
	Edge    graph.EdgeID // last edge into Node
	Visited int          // nodes expanded
}

// witnessHeapItem is an entry in the witness search min-heap.
type witnessHeapItem struct {
	node   uint32
	weight float64
}

func (a witnessHeapItem) less(b witnessHeapItem) bool {
	return a.weight < b.weight || (a.weight == b.weight && a.node < b.node)
}

// witnessHeap is a concrete-typed binary min-heap with hole-sift.
type witnessHeap struct {
	items []witnessHeapItem
}

func (h *witnessHeap) Len() int { return len(h.items) }

func (h *witnessHeap) Peek() witnessHeapItem { return h.items[0] }

func (h *witnessHeap) Push(node uint32, weight float64) {
	h.items = append(h.items, witnessHeapItem{node, weight})
	h.siftUp(len(h.items) - 1)
}

func (h *witnessHeap) Pop() witnessHeapItem {
	top := h.items[0]
	n := len(h.items) - 1
	h.items[0] = h.items[n]
	h.items = h.items[:n]
	if n > 0 {
		h.siftDown(0)
	}
	return top
}

func (h *witnessHeap) siftUp(i int) {
	item := h.items[i]
	for i > 0 {
		parent := (i - 1) / 2
		if !item.less(h.items[parent]) {
			break
		}
		h.items[i] = h.items[parent]
		i = parent
	}
	h.items[i] = item
}

func (h *witnessHeap) siftDown(i int) {
	n := len(h.items)
	item := h.items[i]
	for {
		child := 2*i + 1
		if child >= n {
			break
		}
		if right := child + 1; right < n && h.items[right].less(h.items[child]) {
			child = right
		}
		if !h.items[child].less(item) {
			break
		}
		h.items[i] = h.items[child]
		i = child
	}
	h.items[i] = item
}

func (h *witnessHeap) Reset() {
	h.items = h.items[:0]
}

// WitnessSearch is a bounded one-to-one Dijkstra over uncontracted nodes
// that never enters one excluded node. It is reused across calls: reset
// costs O(touched), not O(nodes). Not safe for concurrent use.
type WitnessSearch struct {
	g       *graph.Graph
	weight  []float64
	edge    []graph.EdgeID
	touched []uint32
	heap    witnessHeap
}

// NewWitnessSearch allocates search state for every node currently in g.
func NewWitnessSearch(g *graph.Graph) *WitnessSearch {
	n := g.NumNodes()
	ws := &WitnessSearch{
		g:      g,
		weight: make([]float64, n),
		edge:   make([]graph.EdgeID, n),
		heap:   witnessHeap{items: make([]witnessHeapItem, 0, 256)},
	}
	for i := range ws.weight {
		ws.weight[i] = math.Inf(1)
	}
	return ws
}

func (ws *WitnessSearch) reset() {
	for _, n := range ws.touched {
		ws.weight[n] = math.Inf(1)
	}
	ws.touched = ws.touched[:0]
	ws.heap.Reset()
}

func (ws *WitnessSearch) label(n uint32, w float64, e graph.EdgeID) {
	if math.IsInf(ws.weight[n], 1) {
		ws.touched = append(ws.touched, n)
	}
	ws.weight[n] = w
	ws.edge[n] = e
	ws.heap.Push(n, w)
}

// Find searches from source to target without using excluded. The target is
// reported found only if its weight is <= weightLimit and it is reached
// before visitedLimit nodes have been expanded.
func (ws *WitnessSearch) Find(source, target, excluded uint32, weightLimit float64, visitedLimit int) (WitnessResult, error) {
	if source == excluded || target == excluded {
		return WitnessResult{}, fmt.Errorf("%w: %d->%d excluding %d", ErrExcludedNodeViolation, source, target, excluded)
	}
	ws.reset()
	ws.label(source, 0, graph.NoEdge)

	visited := 0
	for ws.heap.Len() > 0 {
		cur := ws.heap.Peek()
		if cur.weight > ws.weight[cur.node] {
			ws.heap.Pop() // stale
			continue
		}
		if cur.weight > weightLimit {
			return WitnessResult{Status: WitnessLimitExceeded, Visited: visited}, nil
		}
		if cur.node == target {
			return WitnessResult{
				Status:  WitnessFound,
				Weight:  cur.weight,
				Node:    cur.node,
				Edge:    ws.edge[cur.node],
				Visited: visited,
			}, nil
		}
		if visited >= visitedLimit {
			return WitnessResult{Status: WitnessLimitExceeded, Visited: visited}, nil
		}
		ws.heap.Pop()
		if cur.node == excluded {
			return WitnessResult{}, fmt.Errorf("%w: expanded %d", ErrExcludedNodeViolation, excluded)
		}
		visited++

		for e := range ws.g.Edges(cur.node, graph.OutEdges) {
			if e.Adj == excluded || ws.g.Level(e.Adj) != 0 {
				continue
			}
			if w := cur.weight + e.Weight; w < ws.weight[e.Adj] {
				ws.label(e.Adj, w, e.ID)
			}
		}
	}
	return WitnessResult{Status: WitnessUnreachable, Visited: visited}, nil
}
