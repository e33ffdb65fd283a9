package ch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/azybler/ch_router/pkg/ch"
	"github.com/azybler/ch_router/pkg/graph"
	"github.com/azybler/ch_router/pkg/graph/graphtest"
)

func prepare(t *testing.T, g *graph.Graph) *ch.Preparation {
	t.Helper()
	p := ch.NewPreparation(g, ch.DefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, p.Prepare(context.Background()))
	return p
}

func levels(g *graph.Graph) []int32 {
	out := make([]int32, g.NumNodes())
	for n := range uint32(g.NumNodes()) {
		out[n] = g.Level(n)
	}
	return out
}

// checkHierarchy asserts that levels are a permutation of 1..N and that
// every shortcut bridges a node contracted before both of its endpoints.
func checkHierarchy(t *testing.T, g *graph.Graph) {
	t.Helper()
	seen := make(map[int32]bool, g.NumNodes())
	for n := range uint32(g.NumNodes()) {
		l := g.Level(n)
		require.True(t, l >= 1 && int(l) <= g.NumNodes(), "node %d level %d", n, l)
		require.False(t, seen[l], "level %d assigned twice", l)
		seen[l] = true
	}
	for id := range graph.EdgeID(g.NumEdges()) {
		e := g.Edge(id)
		if !e.Shortcut {
			continue
		}
		first, ok := g.EdgeState(e.Skipped1, e.Base)
		if !ok {
			first, ok = g.EdgeState(e.Skipped1, e.Adj)
		}
		require.True(t, ok, "shortcut %d", id)
		mid := first.Adj
		assert.Less(t, g.Level(mid), g.Level(e.Base), "shortcut %d", id)
		assert.Less(t, g.Level(mid), g.Level(e.Adj), "shortcut %d", id)
		assert.Equal(t, g.Edge(e.Skipped1).Weight+g.Edge(e.Skipped2).Weight, e.Weight)
	}
}

func TestInitialPriorities(t *testing.T) {
	p := ch.NewPreparation(graphtest.Example(), ch.DefaultConfig(), nil)
	require.NoError(t, p.InitPriorities())

	want := []int{-18, -6, -6, -8, -20, -10}
	for n, prio := range want {
		assert.Equal(t, prio, p.Priority(uint32(n)), "node %d", n)
	}
}

func TestPrepareExampleGraph(t *testing.T) {
	g := graphtest.Example()
	p := prepare(t, g)

	// The removal order found by the edge-difference heuristic never needs
	// a shortcut on this graph.
	assert.Equal(t, 0, p.ShortcutCount())
	assert.Equal(t, 0, g.NumShortcuts())
	assert.Equal(t, []int32{2, 5, 6, 4, 1, 3}, levels(g))
	checkHierarchy(t, g)
}

func TestPrepareDirectedGraph(t *testing.T) {
	g := graphtest.Directed()
	old := g.NumEdges()
	p := prepare(t, g)

	require.Equal(t, 2, p.ShortcutCount())
	require.Equal(t, old+2, g.NumEdges())
	assert.Equal(t, []int32{4, 5, 1, 3, 2, 6}, levels(g))

	s1 := g.Edge(6)
	assert.True(t, s1.Shortcut)
	assert.Equal(t, uint32(5), s1.Base)
	assert.Equal(t, uint32(4), s1.Adj)
	assert.Equal(t, 2.0, s1.Weight)
	assert.Equal(t, graph.FlagForward, s1.Flags.Direction())
	assert.Equal(t, graph.EdgeID(3), s1.Skipped1)
	assert.Equal(t, graph.EdgeID(2), s1.Skipped2)

	s2 := g.Edge(7)
	assert.Equal(t, uint32(5), s2.Base)
	assert.Equal(t, uint32(3), s2.Adj)
	assert.Equal(t, 3.0, s2.Weight)
	assert.Equal(t, graph.FlagForward, s2.Flags.Direction())
	assert.Equal(t, graph.EdgeID(6), s2.Skipped1)
	assert.Equal(t, graph.EdgeID(5), s2.Skipped2)

	checkHierarchy(t, g)
}

func TestPrepareParallelEdges(t *testing.T) {
	g := graphtest.ParallelEdges()
	p := prepare(t, g)
	assert.Equal(t, 0, p.ShortcutCount())
	checkHierarchy(t, g)
}

func TestPrepareLargerGraphs(t *testing.T) {
	for name, build := range map[string]func() *graph.Graph{
		"cycle":      graphtest.DirectedCycle,
		"roundabout": graphtest.Roundabout,
		"shortcuts":  graphtest.Shortcuts,
		"bi":         graphtest.Bi,
		"grid":       func() *graph.Graph { return graphtest.Grid(12, 12, 3) },
	} {
		t.Run(name, func(t *testing.T) {
			g := build()
			p := prepare(t, g)
			assert.Equal(t, g.NumShortcuts(), p.ShortcutCount())
			checkHierarchy(t, g)
		})
	}
}

func TestPrepareIsDeterministic(t *testing.T) {
	a := graphtest.Grid(10, 10, 11)
	b := graphtest.Grid(10, 10, 11)
	prepare(t, a)
	prepare(t, b)

	require.Equal(t, levels(a), levels(b))
	require.Equal(t, a.NumEdges(), b.NumEdges())
	for id := range graph.EdgeID(a.NumEdges()) {
		assert.Equal(t, a.Edge(id), b.Edge(id))
	}
}

func TestDryRunMergesBothDirections(t *testing.T) {
	g := graph.New()
	g.AddEdge(0, 2, 2, true)
	g.AddEdge(10, 2, 2, true)
	g.AddEdge(11, 2, 2, true)
	e3 := graphtest.Edge(g.AddEdge(2, 1, 2, true))
	// A longer one-way edge must not produce its own shortcut.
	g.AddEdge(2, 1, 10, false)
	e5 := graphtest.Edge(g.AddEdge(1, 3, 2, true))
	g.AddEdge(3, 4, 2, true)
	g.AddEdge(3, 5, 2, true)
	g.AddEdge(3, 6, 2, true)
	g.AddEdge(3, 7, 2, true)

	p := ch.NewPreparation(g, ch.DefaultConfig(), nil)
	scs, err := p.DryRunShortcuts(1)
	require.NoError(t, err)
	require.Len(t, scs, 1)

	sc := scs[0]
	assert.Equal(t, uint32(2), sc.From)
	assert.Equal(t, uint32(3), sc.To)
	assert.Equal(t, 4.0, sc.Weight)
	assert.Equal(t, graph.FlagBoth, sc.Flags)
	assert.Equal(t, e3, sc.Skipped1)
	assert.Equal(t, e5, sc.Skipped2)
	assert.Equal(t, 2, sc.OriginalEdges)

	// Nothing was written.
	assert.Equal(t, 10, g.NumEdges())
	assert.Equal(t, int32(0), g.Level(1))
}

func TestDryRunRoundabout(t *testing.T) {
	g := graph.New()
	e0 := graphtest.Edge(g.AddEdge(1, 3, 1, true))
	e1 := graphtest.Edge(g.AddEdge(3, 4, 1, true))
	e2 := graphtest.Edge(g.AddEdge(4, 5, 1, false))
	e3 := graphtest.Edge(g.AddEdge(5, 6, 1, false))
	g.AddEdge(6, 7, 1, true)
	e5 := graphtest.Edge(g.AddEdge(6, 8, 2, false))
	e6 := graphtest.Edge(g.AddEdge(8, 4, 1, false))
	for n, l := range map[uint32]int32{3: 3, 5: 5, 7: 7, 8: 8} {
		g.SetLevel(n, l)
	}

	s7, err := g.Shortcut(1, 4).Weight(2).Flags(graph.FlagBoth).Skipped(e0, e1).Add()
	require.NoError(t, err)
	s8, err := g.Shortcut(4, 6).Weight(2).Flags(graph.FlagForward).Skipped(e2, e3).Add()
	require.NoError(t, err)
	s9, err := g.Shortcut(6, 4).Weight(3).Flags(graph.FlagForward).Skipped(e5, e6).Add()
	require.NoError(t, err)

	p := ch.NewPreparation(g, ch.DefaultConfig(), nil)
	scs, err := p.DryRunShortcuts(4)
	require.NoError(t, err)

	// Different weights per direction keep the two shortcuts apart.
	require.Len(t, scs, 2)
	assert.Equal(t, ch.Shortcut{From: 1, To: 6, Weight: 4, Flags: graph.FlagForward, Skipped1: s7, Skipped2: s8, OriginalEdges: 4}, scs[0])
	assert.Equal(t, ch.Shortcut{From: 6, To: 1, Weight: 5, Flags: graph.FlagForward, Skipped1: s9, Skipped2: s7, OriginalEdges: 4}, scs[1])
}

func TestDryRunUnknownNode(t *testing.T) {
	p := ch.NewPreparation(graphtest.Example(), ch.DefaultConfig(), nil)
	_, err := p.DryRunShortcuts(42)
	assert.ErrorIs(t, err, graph.ErrNodeOutOfRange)
}

func TestPrepareTwice(t *testing.T) {
	g := graphtest.Example()
	p := prepare(t, g)
	assert.ErrorIs(t, p.Prepare(context.Background()), ch.ErrAlreadyPrepared)

	// A fresh run over an already leveled graph is refused too.
	fresh := ch.NewPreparation(g, ch.DefaultConfig(), nil)
	assert.ErrorIs(t, fresh.Prepare(context.Background()), ch.ErrAlreadyPrepared)
}

func TestPrepareCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := graphtest.Example()
	p := ch.NewPreparation(g, ch.DefaultConfig(), nil)
	assert.ErrorIs(t, p.Prepare(ctx), context.Canceled)
	assert.Equal(t, int32(0), g.Level(0))
}

func TestPrepareEmptyGraph(t *testing.T) {
	g := graph.New()
	p := prepare(t, g)
	assert.Equal(t, 0, p.ShortcutCount())
}

func TestPrepareLogsProgress(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	g := graphtest.Grid(5, 5, 1)

	cfg := ch.DefaultConfig()
	cfg.LogInterval = 5
	p := ch.NewPreparation(g, cfg, zap.New(core))
	require.NoError(t, p.Prepare(context.Background()))

	assert.Equal(t, 1, logs.FilterMessage("starting contraction").Len())
	assert.Equal(t, 5, logs.FilterMessage("contraction progress").Len())

	done := logs.FilterMessage("contraction complete").All()
	require.Len(t, done, 1)
	assert.Equal(t, int64(p.ShortcutCount()), done[0].ContextMap()["shortcuts"])
}
