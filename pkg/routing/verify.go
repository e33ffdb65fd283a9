package routing

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/azybler/ch_router/pkg/graph"
	"github.com/azybler/ch_router/pkg/weighting"
)

// Pair is a source/target query.
type Pair struct {
	Source, Target uint32
}

// Mismatch records a pair where the hierarchy and the baseline disagree.
type Mismatch struct {
	Pair
	CHFound        bool
	CHWeight       float64
	BaselineFound  bool
	BaselineWeight float64
}

const verifyTolerance = 1e-6

// RandomPairs draws count pairs of nodes in [0, numNodes) from a seeded
// source, so runs are reproducible.
func RandomPairs(numNodes, count int, seed uint64) []Pair {
	if numNodes == 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(seed, seed+1))
	pairs := make([]Pair, count)
	for i := range pairs {
		pairs[i] = Pair{uint32(rng.IntN(numNodes)), uint32(rng.IntN(numNodes))}
	}
	return pairs
}

// Verify runs every pair through both a Query and a Dijkstra and returns the
// pairs whose results differ. Work is spread over at most workers goroutines,
// each with its own search state.
func Verify(ctx context.Context, g *graph.Graph, w weighting.Weighting, pairs []Pair, workers int) ([]Mismatch, error) {
	if workers <= 0 {
		workers = 1
	}
	chunk := (len(pairs) + workers - 1) / workers

	var (
		mu         sync.Mutex
		mismatches []Mismatch
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for start := 0; start < len(pairs); start += chunk {
		part := pairs[start:min(start+chunk, len(pairs))]
		eg.Go(func() error {
			q := NewQuery(g, w, QueryOptions{})
			d := NewDijkstra(g, w)
			for _, p := range part {
				if err := ctx.Err(); err != nil {
					return err
				}
				got, err := q.FindPath(p.Source, p.Target)
				if err != nil {
					return err
				}
				want, err := d.FindPath(p.Source, p.Target)
				if err != nil {
					return err
				}
				if sameResult(got, want) {
					continue
				}
				mu.Lock()
				mismatches = append(mismatches, Mismatch{
					Pair:           p,
					CHFound:        got.Found,
					CHWeight:       got.Weight,
					BaselineFound:  want.Found,
					BaselineWeight: want.Weight,
				})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return mismatches, nil
}

func sameResult(a, b *Path) bool {
	if a.Found != b.Found {
		return false
	}
	if !a.Found {
		return true
	}
	return math.Abs(a.Weight-b.Weight) <= verifyTolerance*max(1, math.Abs(b.Weight))
}
