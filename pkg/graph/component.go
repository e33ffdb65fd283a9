package graph

// UnionFind implements a disjoint-set data structure with path halving
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx, ry := uf.Find(x), uf.Find(y)
	if rx == ry {
		return false
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// Size returns the number of elements in x's set.
func (uf *UnionFind) Size(x uint32) uint32 {
	return uf.size[uf.Find(x)]
}

// LargestComponent returns the ascending node ids of the largest weakly
// connected component. Ties go to the component holding the lowest node id.
func LargestComponent(g *Graph) []uint32 {
	n := uint32(g.NumNodes())
	if n == 0 {
		return nil
	}

	uf := NewUnionFind(n)
	for id := range g.head {
		uf.Union(g.base[id], g.head[id])
	}

	bestRoot, bestSize := uint32(0), uint32(0)
	for i := range n {
		if s := uf.Size(i); s > bestSize {
			bestRoot, bestSize = uf.Find(i), s
		}
	}

	nodes := make([]uint32, 0, bestSize)
	for i := range n {
		if uf.Find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}
	return nodes
}

// FilterToComponent returns a new graph holding only the given nodes and the
// original edges between them, renumbered densely in the order given.
// Shortcuts and levels are not carried over.
func FilterToComponent(g *Graph, nodes []uint32) *Graph {
	if len(nodes) == 0 {
		return New()
	}

	oldToNew := make(map[uint32]uint32, len(nodes))
	for newIdx, oldIdx := range nodes {
		oldToNew[oldIdx] = uint32(newIdx)
	}

	out := NewWithCapacity(len(nodes), g.NumOriginalEdges())
	for newIdx, oldIdx := range nodes {
		out.SetNode(uint32(newIdx), g.lat[oldIdx], g.lon[oldIdx])
	}
	for id := range g.head {
		if g.skip1[id] != NoEdge {
			continue
		}
		from, ok := oldToNew[g.base[id]]
		if !ok {
			continue
		}
		to, ok := oldToNew[g.head[id]]
		if !ok {
			continue
		}
		out.appendEdge(from, to, g.weight[id], g.flags[id], NoEdge, NoEdge)
	}
	return out
}
