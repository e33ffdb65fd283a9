package routing

import (
	"fmt"

	"github.com/azybler/ch_router/pkg/graph"
)

// Unpacker expands shortcuts into the original edges they replace. It keeps
// an explicit stack so deep hierarchies cannot overflow the goroutine stack.
// Reusable, not safe for concurrent use.
type Unpacker struct {
	g     *graph.Graph
	stack []unpackFrame
}

type unpackFrame struct {
	edge     graph.EdgeID
	from, to uint32
}

func NewUnpacker(g *graph.Graph) *Unpacker {
	return &Unpacker{g: g, stack: make([]unpackFrame, 0, 64)}
}

// Unpack walks edge from -> to and calls emit for every original edge in
// travel order, each oriented from its travel start.
func (u *Unpacker) Unpack(edge graph.EdgeID, from, to uint32, emit func(graph.EdgeView)) error {
	u.stack = append(u.stack[:0], unpackFrame{edge, from, to})

	for len(u.stack) > 0 {
		f := u.stack[len(u.stack)-1]
		u.stack = u.stack[:len(u.stack)-1]

		e, ok := u.g.EdgeState(f.edge, f.from)
		if !ok || e.Adj != f.to {
			return fmt.Errorf("%w: edge %d does not lead %d->%d", graph.ErrStorageInconsistency, f.edge, f.from, f.to)
		}
		if !e.Shortcut {
			emit(e)
			continue
		}

		first, second := e.Skipped1, e.Skipped2
		firstView, ok := u.g.EdgeState(first, f.from)
		if !ok {
			first, second = second, first
			if firstView, ok = u.g.EdgeState(first, f.from); !ok {
				return fmt.Errorf("%w: shortcut %d skips %d and %d, neither touches %d",
					graph.ErrStorageInconsistency, f.edge, e.Skipped1, e.Skipped2, f.from)
			}
		}
		mid := firstView.Adj
		u.stack = append(u.stack,
			unpackFrame{second, mid, f.to},
			unpackFrame{first, f.from, mid})
	}
	return nil
}
