package graph

import (
	"errors"
	"fmt"
	"iter"
	"math"
)

// Flags holds per-edge direction bits plus opaque domain bits owned by the weighting.
type Flags uint32

const (
	FlagForward  Flags = 1 << 0
	FlagBackward Flags = 1 << 1
	FlagBoth           = FlagForward | FlagBackward

	directionMask = FlagBoth
)

// Forward reports whether the edge can be traversed from base to adj.
func (f Flags) Forward() bool { return f&FlagForward != 0 }

// Backward reports whether the edge can be traversed from adj to base.
func (f Flags) Backward() bool { return f&FlagBackward != 0 }

// Direction returns only the direction bits.
func (f Flags) Direction() Flags { return f & directionMask }

// WithDirection replaces the direction bits, keeping the domain bits.
func (f Flags) WithDirection(dir Flags) Flags { return f&^directionMask | dir&directionMask }

// Reversed swaps forward and backward, keeping the domain bits.
func (f Flags) Reversed() Flags {
	dir := Flags(0)
	if f.Forward() {
		dir |= FlagBackward
	}
	if f.Backward() {
		dir |= FlagForward
	}
	return f.WithDirection(dir)
}

// EdgeID identifies an edge or shortcut. IDs are dense and never reused.
type EdgeID int32

// NoEdge marks an absent edge reference.
const NoEdge EdgeID = -1

var (
	ErrInvalidShortcut      = errors.New("invalid shortcut")
	ErrStorageInconsistency = errors.New("storage inconsistency")
	ErrNodeOutOfRange       = errors.New("node out of range")
	ErrInvalidEdge          = errors.New("invalid edge")
)

// EdgeView is an edge seen from one of its endpoints. Flags are oriented
// relative to Base: Forward means Base->Adj is traversable.
type EdgeView struct {
	ID       EdgeID
	Base     uint32
	Adj      uint32
	Weight   float64
	Flags    Flags
	Shortcut bool
	Skipped1 EdgeID
	Skipped2 EdgeID
}

func (e EdgeView) Forward() bool  { return e.Flags.Forward() }
func (e EdgeView) Backward() bool { return e.Flags.Backward() }

// Graph is a leveled multigraph. Edges and shortcuts share one id space and
// are append-only. Levels are 0 until a node is contracted.
//
// A Graph is safe for concurrent reads once no more edges, shortcuts or
// levels are being written.
type Graph struct {
	lat   []float64
	lon   []float64
	level []int32
	adj   [][]EdgeID // incident edge ids per node, ascending

	// Edge columns indexed by EdgeID.
	base    []uint32
	head    []uint32
	weight  []float64
	flags   []Flags
	skip1   []EdgeID
	skip2   []EdgeID
	numScut int
}

// New returns an empty graph. Nodes are created on first reference.
func New() *Graph {
	return &Graph{}
}

// NewWithCapacity preallocates storage for the given node and edge counts.
func NewWithCapacity(nodes, edges int) *Graph {
	return &Graph{
		lat:    make([]float64, 0, nodes),
		lon:    make([]float64, 0, nodes),
		level:  make([]int32, 0, nodes),
		adj:    make([][]EdgeID, 0, nodes),
		base:   make([]uint32, 0, edges),
		head:   make([]uint32, 0, edges),
		weight: make([]float64, 0, edges),
		flags:  make([]Flags, 0, edges),
		skip1:  make([]EdgeID, 0, edges),
		skip2:  make([]EdgeID, 0, edges),
	}
}

func (g *Graph) ensureNode(n uint32) {
	for uint32(len(g.level)) <= n {
		g.lat = append(g.lat, 0)
		g.lon = append(g.lon, 0)
		g.level = append(g.level, 0)
		g.adj = append(g.adj, nil)
	}
}

// SetNode stores the coordinates of a node, creating it if needed.
func (g *Graph) SetNode(n uint32, lat, lon float64) {
	g.ensureNode(n)
	g.lat[n] = lat
	g.lon[n] = lon
}

func (g *Graph) NumNodes() int     { return len(g.level) }
func (g *Graph) NumEdges() int     { return len(g.head) }
func (g *Graph) NumShortcuts() int { return g.numScut }

// NumOriginalEdges counts edges that are not shortcuts.
func (g *Graph) NumOriginalEdges() int { return len(g.head) - g.numScut }

func (g *Graph) Lat(n uint32) float64 { return g.lat[n] }
func (g *Graph) Lon(n uint32) float64 { return g.lon[n] }

// Level returns the contraction level of n, 0 if not yet contracted.
func (g *Graph) Level(n uint32) int32 { return g.level[n] }

func (g *Graph) SetLevel(n uint32, level int32) {
	g.ensureNode(n)
	g.level[n] = level
}

// HasNode reports whether n is a valid node id.
func (g *Graph) HasNode(n uint32) bool { return int(n) < len(g.level) }

// AddEdge creates an original edge with the given weight.
func (g *Graph) AddEdge(from, to uint32, weight float64, bidirectional bool) (EdgeID, error) {
	flags := FlagForward
	if bidirectional {
		flags = FlagBoth
	}
	return g.AddEdgeFlags(from, to, weight, flags)
}

// AddEdgeFlags creates an original edge carrying direction and domain flags.
// The weight must be finite and non-negative.
func (g *Graph) AddEdgeFlags(from, to uint32, weight float64, flags Flags) (EdgeID, error) {
	if !validWeight(weight) {
		return NoEdge, fmt.Errorf("%w: %d->%d weight %v", ErrInvalidEdge, from, to, weight)
	}
	return g.appendEdge(from, to, weight, flags, NoEdge, NoEdge), nil
}

func validWeight(w float64) bool {
	return w >= 0 && !math.IsInf(w, 0)
}

func (g *Graph) appendEdge(from, to uint32, weight float64, flags Flags, s1, s2 EdgeID) EdgeID {
	g.ensureNode(max(from, to))
	id := EdgeID(len(g.head))
	g.base = append(g.base, from)
	g.head = append(g.head, to)
	g.weight = append(g.weight, weight)
	g.flags = append(g.flags, flags)
	g.skip1 = append(g.skip1, s1)
	g.skip2 = append(g.skip2, s2)
	g.adj[from] = append(g.adj[from], id)
	if to != from {
		g.adj[to] = append(g.adj[to], id)
	}
	if s1 != NoEdge {
		g.numScut++
	}
	return id
}

func (g *Graph) validEdge(id EdgeID) bool {
	return id >= 0 && int(id) < len(g.head)
}

// Edge returns the stored orientation of an edge.
func (g *Graph) Edge(id EdgeID) EdgeView {
	return g.view(id, g.base[id])
}

func (g *Graph) view(id EdgeID, base uint32) EdgeView {
	e := EdgeView{
		ID:       id,
		Base:     g.base[id],
		Adj:      g.head[id],
		Weight:   g.weight[id],
		Flags:    g.flags[id],
		Shortcut: g.skip1[id] != NoEdge,
		Skipped1: g.skip1[id],
		Skipped2: g.skip2[id],
	}
	if base != e.Base {
		e.Base, e.Adj = e.Adj, e.Base
		e.Flags = e.Flags.Reversed()
	}
	return e
}

// EdgeState returns edge id as seen from base. The second result is false
// when the edge does not exist or is not incident to base. Direction flags
// are not checked; callers that need a traversable edge test Forward or
// Backward on the result, and the unpacker also checks the far endpoint.
func (g *Graph) EdgeState(id EdgeID, base uint32) (EdgeView, bool) {
	if !g.validEdge(id) {
		return EdgeView{}, false
	}
	if g.base[id] != base && g.head[id] != base {
		return EdgeView{}, false
	}
	return g.view(id, base), true
}

// EdgeFilter selects edges during iteration.
type EdgeFilter func(EdgeView) bool

var (
	AllEdges EdgeFilter = func(EdgeView) bool { return true }
	OutEdges EdgeFilter = func(e EdgeView) bool { return e.Forward() }
	InEdges  EdgeFilter = func(e EdgeView) bool { return e.Backward() }
)

// Upward narrows f to edges leading to a node of equal or higher level.
func (g *Graph) Upward(f EdgeFilter) EdgeFilter {
	return func(e EdgeView) bool {
		return g.level[e.Adj] >= g.level[e.Base] && f(e)
	}
}

// Edges iterates the edges incident to node in id order, oriented from node.
// A nil filter selects every edge.
func (g *Graph) Edges(node uint32, filter EdgeFilter) iter.Seq[EdgeView] {
	return func(yield func(EdgeView) bool) {
		if int(node) >= len(g.adj) {
			return
		}
		for _, id := range g.adj[node] {
			e := g.view(id, node)
			if filter != nil && !filter(e) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// Degree returns the number of edges incident to node.
func (g *Graph) Degree(node uint32) int {
	if int(node) >= len(g.adj) {
		return 0
	}
	return len(g.adj[node])
}

// ShortcutBuilder collects the fields of a shortcut before it is appended.
type ShortcutBuilder struct {
	g        *Graph
	from, to uint32
	weight   float64
	flags    Flags
	skip1    EdgeID
	skip2    EdgeID
}

// Shortcut starts a shortcut from -> to. Nothing is stored until Add.
func (g *Graph) Shortcut(from, to uint32) *ShortcutBuilder {
	return &ShortcutBuilder{g: g, from: from, to: to, flags: FlagForward, skip1: NoEdge, skip2: NoEdge}
}

func (b *ShortcutBuilder) Weight(w float64) *ShortcutBuilder {
	b.weight = w
	return b
}

// Flags sets the direction of the shortcut. Domain bits are dropped.
func (b *ShortcutBuilder) Flags(f Flags) *ShortcutBuilder {
	b.flags = f.Direction()
	return b
}

// Skipped sets the two replaced edges, e1 near from and e2 near to.
func (b *ShortcutBuilder) Skipped(e1, e2 EdgeID) *ShortcutBuilder {
	b.skip1, b.skip2 = e1, e2
	return b
}

// Add validates and appends the shortcut.
func (b *ShortcutBuilder) Add() (EdgeID, error) {
	if err := b.g.checkShortcut(b.from, b.to, b.weight, b.skip1, b.skip2); err != nil {
		return NoEdge, err
	}
	if b.flags.Direction() == 0 {
		return NoEdge, fmt.Errorf("%w: %d->%d has no direction", ErrInvalidShortcut, b.from, b.to)
	}
	return b.g.appendEdge(b.from, b.to, b.weight, b.flags, b.skip1, b.skip2), nil
}

func (g *Graph) checkShortcut(from, to uint32, weight float64, s1, s2 EdgeID) error {
	if from == to {
		return fmt.Errorf("%w: loop at %d", ErrInvalidShortcut, from)
	}
	if !g.HasNode(from) || !g.HasNode(to) {
		return fmt.Errorf("%w: %d->%d", ErrNodeOutOfRange, from, to)
	}
	if !g.validEdge(s1) || !g.validEdge(s2) {
		return fmt.Errorf("%w: unknown skipped edges %d, %d", ErrInvalidShortcut, s1, s2)
	}
	if !validWeight(weight) {
		return fmt.Errorf("%w: weight %v", ErrInvalidShortcut, weight)
	}
	if weight != g.weight[s1]+g.weight[s2] {
		return fmt.Errorf("%w: weight %v != %v + %v", ErrInvalidShortcut, weight, g.weight[s1], g.weight[s2])
	}
	if !g.joins(s1, from, s2, to) && !g.joins(s1, to, s2, from) {
		return fmt.Errorf("%w: edges %d, %d do not connect %d and %d", ErrInvalidShortcut, s1, s2, from, to)
	}
	return nil
}

// joins reports whether a is incident to x, b is incident to y, and both
// meet at a common middle node.
func (g *Graph) joins(a EdgeID, x uint32, b EdgeID, y uint32) bool {
	ea, ok := g.EdgeState(a, x)
	if !ok {
		return false
	}
	eb, ok := g.EdgeState(b, y)
	if !ok {
		return false
	}
	return ea.Adj == eb.Adj
}
