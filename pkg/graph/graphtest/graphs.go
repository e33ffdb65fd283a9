// Package graphtest builds small graphs shared by tests across packages.
package graphtest

import (
	"math/rand/v2"

	"github.com/azybler/ch_router/pkg/graph"
	"github.com/azybler/ch_router/pkg/weighting"
)

// Example is the seven-edge example graph:
//
//	5-1-----2
//	   \ __/|
//	    0   |
//	   /    |
//	  4-----3
func Example() *graph.Graph {
	g := graph.New()
	g.AddEdge(0, 1, 1, true)
	g.AddEdge(0, 2, 1, true)
	g.AddEdge(0, 4, 3, true)
	g.AddEdge(1, 2, 2, true)
	g.AddEdge(2, 3, 1, true)
	g.AddEdge(4, 3, 2, true)
	g.AddEdge(5, 1, 2, true)
	return g
}

// Directed is a fully one-way graph on nodes 2..5; 0 and 1 are isolated.
// The shortest 4->2 path is 4,3,5,2 with weight 3.
func Directed() *graph.Graph {
	g := graph.New()
	g.AddEdge(5, 4, 3, false)
	g.AddEdge(4, 5, 10, false)
	g.AddEdge(2, 4, 1, false)
	g.AddEdge(5, 2, 1, false)
	g.AddEdge(3, 5, 1, false)
	g.AddEdge(4, 3, 1, false)
	return g
}

// DirectedCycle is an 18-node cycle with a one-way detour:
// 0-1-...-9-10, 10->11, 11-12-...-17-0 and 11->9 with weight 3.
func DirectedCycle() *graph.Graph {
	g := graph.New()
	for i := uint32(0); i < 10; i++ {
		g.AddEdge(i, i+1, 1, true)
	}
	g.AddEdge(10, 11, 1, false)
	g.AddEdge(11, 12, 1, true)
	g.AddEdge(11, 9, 3, false)
	for i := uint32(12); i < 17; i++ {
		g.AddEdge(i, i+1, 1, true)
	}
	g.AddEdge(17, 0, 1, true)
	return g
}

// ParallelEdges has two parallel edges 0-1 (10 and 4) plus 0-2 and 0-3.
func ParallelEdges() *graph.Graph {
	g := graph.New()
	g.AddEdge(0, 1, 10, true)
	g.AddEdge(0, 1, 4, true)
	g.AddEdge(0, 2, 10, true)
	g.AddEdge(0, 3, 10, true)
	return g
}

// Roundabout is a network with a one-way roundabout 4->5->6->7->13->12->4.
func Roundabout() *graph.Graph {
	g := graph.New()
	both := [][2]uint32{
		{16, 0}, {0, 9}, {0, 17}, {9, 10}, {10, 11}, {11, 28}, {28, 29}, {29, 30}, {30, 31}, {31, 4},
		{17, 1}, {15, 1}, {14, 1}, {14, 18}, {18, 19}, {19, 20}, {20, 15}, {19, 21}, {21, 16},
		{1, 2}, {2, 3}, {3, 4},
	}
	for _, e := range both {
		g.AddEdge(e[0], e[1], 1, true)
	}
	for _, e := range [][2]uint32{{4, 5}, {5, 6}, {6, 7}, {7, 13}, {13, 12}, {12, 4}} {
		g.AddEdge(e[0], e[1], 1, false)
	}
	for _, e := range [][2]uint32{{7, 8}, {8, 22}, {22, 23}, {23, 24}, {24, 25}, {25, 27}, {27, 5}} {
		g.AddEdge(e[0], e[1], 1, true)
	}
	g.AddEdge(25, 26, 1, false)
	g.AddEdge(26, 25, 1, false)
	return g
}

// Shortcuts is a 17-node mesh with a few long detours.
func Shortcuts() *graph.Graph {
	g := graph.New()
	for _, e := range [][3]uint32{
		{0, 1, 1}, {0, 2, 1}, {1, 2, 1}, {2, 3, 1}, {1, 4, 1}, {2, 9, 1}, {9, 3, 1}, {10, 3, 1},
		{4, 5, 1}, {5, 6, 1}, {6, 7, 1}, {7, 8, 1}, {8, 9, 1}, {4, 11, 1}, {9, 14, 1}, {10, 14, 1},
		{11, 12, 1}, {12, 15, 1}, {12, 13, 1}, {13, 16, 1}, {15, 16, 2}, {14, 16, 1},
	} {
		g.AddEdge(e[0], e[1], float64(e[2]), true)
	}
	return g
}

// Bi is a ring with a chord:
//
//	0-1-2-3-4
//	|     / |
//	|    8  |
//	\   /   /
//	 7-6-5-/
func Bi() *graph.Graph {
	g := graph.New()
	g.AddEdge(0, 1, 100, true)
	g.AddEdge(1, 2, 1, true)
	g.AddEdge(2, 3, 1, true)
	g.AddEdge(3, 4, 1, true)
	g.AddEdge(4, 5, 25, true)
	g.AddEdge(5, 6, 25, true)
	g.AddEdge(6, 7, 5, true)
	g.AddEdge(7, 0, 5, true)
	g.AddEdge(3, 8, 20, true)
	g.AddEdge(8, 6, 20, true)
	return g
}

// Grid builds a rows x cols grid with random integer weights in [1, 10].
// About one inner edge in five is one-way; the outer ring stays two-way so
// the corners always reach each other. Node (r, c) has id r*cols+c and sits
// at (1.3+r*0.0009, 103.8+c*0.0009), roughly 100 m apart.
func Grid(rows, cols int, seed uint64) *graph.Graph {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	g := graph.NewWithCapacity(rows*cols, 2*rows*cols)
	id := func(r, c int) uint32 { return uint32(r*cols + c) }
	for r := range rows {
		for c := range cols {
			g.SetNode(id(r, c), 1.3+float64(r)*0.0009, 103.8+float64(c)*0.0009)
		}
	}
	add := func(a, b uint32, border bool) {
		w := float64(1 + rng.IntN(10))
		if rng.IntN(5) == 0 && !border {
			if rng.IntN(2) == 0 {
				a, b = b, a
			}
			g.AddEdge(a, b, w, false)
			return
		}
		g.AddEdge(a, b, w, true)
	}
	for r := range rows {
		for c := range cols {
			if c+1 < cols {
				add(id(r, c), id(r, c+1), r == 0 || r == rows-1)
			}
			if r+1 < rows {
				add(id(r, c), id(r+1, c), c == 0 || c == cols-1)
			}
		}
	}
	return g
}

// Unpacking is the chain 10->0->1->...->6 with one-way shortcuts
// 0->2, 0->3, ..., 0->6 and levels already assigned, as if contracted.
// Each edge is 1 m long and one-way at 30 km/h.
func Unpacking(w weighting.Weighting) (*graph.Graph, error) {
	g := graph.New()
	flags := weighting.CarFlags(30, true, false)
	weight := w.CalcWeight(1, flags)
	if _, err := g.AddEdgeFlags(10, 0, weight, flags); err != nil {
		return nil, err
	}
	chain := make([]graph.EdgeID, 0, 6)
	for i := uint32(0); i < 6; i++ {
		e, err := g.AddEdgeFlags(i, i+1, weight, flags)
		if err != nil {
			return nil, err
		}
		chain = append(chain, e)
	}

	prev := chain[0]
	for i := 1; i < len(chain); i++ {
		sum := g.Edge(prev).Weight + g.Edge(chain[i]).Weight
		sc, err := g.Shortcut(0, uint32(i+1)).Weight(sum).Flags(graph.FlagForward).Skipped(prev, chain[i]).Add()
		if err != nil {
			return nil, err
		}
		prev = sc
	}

	for node, level := range map[uint32]int32{0: 10, 6: 9, 5: 8, 4: 7, 3: 6, 2: 5, 1: 4, 10: 3} {
		g.SetLevel(node, level)
	}
	return g, nil
}

// Edge unwraps the result of AddEdge or AddEdgeFlags for fixtures whose
// weights are known to be valid.
func Edge(id graph.EdgeID, err error) graph.EdgeID {
	if err != nil {
		panic(err)
	}
	return id
}
